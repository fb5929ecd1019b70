package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/proisp/radiusd/internal/acctengine"
	"github.com/proisp/radiusd/internal/authengine"
	"github.com/proisp/radiusd/internal/config"
	"github.com/proisp/radiusd/internal/database"
	"github.com/proisp/radiusd/internal/dispatcher"
	"github.com/proisp/radiusd/internal/logstore"
	"github.com/proisp/radiusd/internal/models"
	"github.com/proisp/radiusd/internal/nasregistry"
	"github.com/proisp/radiusd/internal/scheduler"
	"github.com/proisp/radiusd/internal/sessionbuffer"
	"github.com/proisp/radiusd/internal/sessionstore"
	"github.com/proisp/radiusd/internal/statsjobs"
	"github.com/proisp/radiusd/internal/userstore"
)

func main() {
	log.Println("starting radiusd...")

	cfg := config.Load()

	if err := database.Connect(cfg); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := models.AutoMigrate(database.DB); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	nasRegistry := nasregistry.New(database.DB)
	users := userstore.New(database.DB)
	sessions := sessionstore.New(database.DB)
	logs := logstore.New(database.DB)
	stats := statsjobs.New(database.DB)

	buffer := sessionbuffer.New(database.DB, sessions, users)

	authEng := authengine.New(users, buffer, logs, cfg.AcctInterimInterval)
	acctEng := acctengine.New(buffer, sessions, users)

	disp := dispatcher.New(cfg.BindAddress, cfg.AuthPort, cfg.AcctPort, nasRegistry, authEng, acctEng, logs)
	if err := disp.Start(); err != nil {
		log.Fatalf("failed to start RADIUS listeners: %v", err)
	}
	log.Printf("radiusd listening (auth port %d, acct port %d)", cfg.AuthPort, cfg.AcctPort)

	sched := scheduler.New(buffer)
	registerJobs(sched, cfg, buffer, sessions, users, logs, stats)
	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	disp.Stop(shutdownCtx)
	sched.Stop()

	log.Println("shutdown complete")
}

// registerJobs wires the scheduler's nine periodic jobs to their
// default intervals. Each job is independent; a failure in one logs
// and does not prevent the others from running on schedule.
func registerJobs(sched *scheduler.Scheduler, cfg *config.Config, buffer *sessionbuffer.Buffer, sessions *sessionstore.Store, users *userstore.Store, logs *logstore.Store, stats *statsjobs.Collector) {
	sched.AddJob(&scheduler.Job{
		ID:       "buffer_flush",
		Name:     "session buffer flush",
		Interval: cfg.SessionBufferFlush,
		Fn:       buffer.Flush,
	})

	sched.AddJob(&scheduler.Job{
		ID:       "dead_session_reap",
		Name:     "dead session reap",
		Interval: cfg.DeadSessionInterval,
		Fn: func(ctx context.Context) error {
			staleThreshold := time.Now().UTC().Add(-time.Duration(cfg.StaleSessionMultiplier*cfg.AcctInterimInterval) * time.Second)
			usernames, stopped, err := sessions.CleanupDeadSessions(ctx, staleThreshold)
			if err != nil {
				return err
			}
			if stopped == 0 {
				return nil
			}
			log.Printf("dead_session_reap: stopped %d session(s) across %d user(s)", stopped, len(usernames))
			return refreshCounts(ctx, sessions, users, usernames)
		},
	})

	sched.AddJob(&scheduler.Job{
		ID:       "inactive_session_trim",
		Name:     "inactive session trim",
		Interval: cfg.InactiveSessionInterval,
		Fn: func(ctx context.Context) error {
			deleted, err := sessions.CleanupInactiveSessions(ctx, cfg.MaxInactiveSessions)
			if err != nil {
				return err
			}
			if deleted > 0 {
				log.Printf("inactive_session_trim: deleted %d stopped session row(s)", deleted)
			}
			return nil
		},
	})

	sched.AddJob(&scheduler.Job{
		ID:       "log_retention",
		Name:     "log retention",
		Interval: cfg.LogRetentionInterval,
		Fn: func(ctx context.Context) error {
			deleted, err := logs.Prune(ctx, cfg.RadiusLogRetention)
			if err != nil {
				return err
			}
			if deleted > 0 {
				log.Printf("log_retention: pruned %d log entries", deleted)
			}
			return nil
		},
	})

	sched.AddJob(&scheduler.Job{
		ID:       "stale_session_cleanup",
		Name:     "stale session cleanup by age",
		Interval: cfg.StaleSessionJobInterval,
		Fn: func(ctx context.Context) error {
			usernames, stopped, err := sessions.CleanupStaleByAge(ctx, cfg.StaleSessionMaxAge)
			if err != nil {
				return err
			}
			if stopped == 0 {
				return nil
			}
			log.Printf("stale_session_cleanup: stopped %d session(s) across %d user(s)", stopped, len(usernames))
			return refreshCounts(ctx, sessions, users, usernames)
		},
	})

	sched.AddJob(&scheduler.Job{
		ID:       "stats_server_sessions",
		Name:     "server active sessions snapshot",
		Interval: cfg.StatsInterval,
		Fn:       stats.ServerActiveSessions,
	})
	sched.AddJob(&scheduler.Job{
		ID:       "stats_server_traffic",
		Name:     "server traffic snapshot",
		Interval: cfg.StatsInterval,
		Fn:       stats.ServerTotalTraffic,
	})
	sched.AddJob(&scheduler.Job{
		ID:       "stats_user_sessions",
		Name:     "per-user active sessions snapshot",
		Interval: cfg.StatsInterval,
		Fn:       stats.UsersActiveSessions,
	})
	sched.AddJob(&scheduler.Job{
		ID:       "stats_user_traffic",
		Name:     "per-user traffic snapshot",
		Interval: cfg.StatsInterval,
		Fn:       stats.UsersTotalTraffic,
	})
}

func refreshCounts(ctx context.Context, sessions *sessionstore.Store, users *userstore.Store, usernames []string) error {
	for _, username := range usernames {
		active, err := sessions.CountActive(ctx, nil, username)
		if err != nil {
			log.Printf("ERROR recomputing session count for user=%s: %v", username, err)
			continue
		}
		if err := users.RefreshSessionCounts(ctx, nil, username, active); err != nil {
			log.Printf("ERROR refreshing session counts for user=%s: %v", username, err)
		}
	}
	return nil
}
