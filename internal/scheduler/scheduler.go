// Package scheduler is the single-worker periodic job runner: every
// registered job runs to completion on one goroutine before the next
// due job starts, so flushes, reaping, and stats sampling never
// interleave with each other.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/proisp/radiusd/internal/sessionbuffer"
)

// Job is one periodic task. Missed runs always coalesce: a job that is
// overdue by any amount runs once on the next tick, never once per
// missed interval. MisfireGrace is stored with the job but the runner
// does not read it.
type Job struct {
	ID           string
	Name         string
	Interval     time.Duration
	MisfireGrace time.Duration
	Fn           func(ctx context.Context) error
}

type jobState struct {
	job        *Job
	nextRun    time.Time
	lastRun    time.Time
	lastErr    error
	runCount   int64
}

// JobInfo is a read-only snapshot of one job's state, for
// introspection (mirrors the source's get_scheduler_jobs()).
type JobInfo struct {
	ID       string
	Name     string
	NextRun  time.Time
	LastRun  time.Time
	LastErr  error
	RunCount int64
}

type Scheduler struct {
	mu       sync.Mutex
	states   []*jobState
	buffer   *sessionbuffer.Buffer
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	logger   *log.Logger
}

// New creates a scheduler. buffer is flushed synchronously as the
// final act of Stop, so no queued accounting operation is lost on a
// graceful shutdown.
func New(buffer *sessionbuffer.Buffer) *Scheduler {
	return &Scheduler{
		buffer: buffer,
		logger: log.New(log.Writer(), "scheduler: ", log.LstdFlags),
	}
}

// AddJob registers a job. Must be called before Start.
func (s *Scheduler) AddJob(job *Job) {
	s.states = append(s.states, &jobState{job: job})
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	for _, st := range s.states {
		st.nextRun = now.Add(st.job.Interval)
	}
	s.stopChan = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()
	s.logger.Printf("started with %d jobs", len(s.states))
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	// Tick once a second, or at the shortest job interval if that is
	// shorter, so sub-second intervals are honored.
	tick := time.Second
	for _, st := range s.states {
		if st.job.Interval > 0 && st.job.Interval < tick {
			tick = st.job.Interval
		}
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case now := <-ticker.C:
			for _, st := range s.states {
				if now.Before(st.nextRun) {
					continue
				}
				s.runOne(st, now)
			}
		}
	}
}

func (s *Scheduler) runOne(st *jobState, now time.Time) {
	ctx := context.Background()
	err := st.job.Fn(ctx)

	s.mu.Lock()
	st.lastRun = now
	st.lastErr = err
	st.runCount++
	// Coalesce: the next run is always relative to now, not to the
	// missed nextRun, so a long misfire never produces a burst of
	// back-to-back catch-up runs.
	st.nextRun = now.Add(st.job.Interval)
	s.mu.Unlock()

	if err != nil {
		s.logger.Printf("ERROR job %s failed: %v", st.job.Name, err)
	}
}

// Stop halts the worker loop, then synchronously drains the Session
// Buffer so no Stop queued before shutdown is lost.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()

	s.buffer.Shutdown(context.Background())
	s.logger.Println("stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Jobs returns a snapshot of every registered job's state.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]JobInfo, 0, len(s.states))
	for _, st := range s.states {
		infos = append(infos, JobInfo{
			ID:       st.job.ID,
			Name:     st.job.Name,
			NextRun:  st.nextRun,
			LastRun:  st.lastRun,
			LastErr:  st.lastErr,
			RunCount: st.runCount,
		})
	}
	return infos
}
