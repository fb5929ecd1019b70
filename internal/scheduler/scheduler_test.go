package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/proisp/radiusd/internal/sessionbuffer"
)

func newTestScheduler() *Scheduler {
	return New(sessionbuffer.New(nil, nil, nil))
}

func TestSchedulerRunsJobRepeatedly(t *testing.T) {
	s := newTestScheduler()
	var runs int64

	s.AddJob(&Job{
		ID:       "tick",
		Name:     "tick job",
		Interval: 50 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		},
	})

	s.Start()
	time.Sleep(300 * time.Millisecond)
	s.Stop()

	got := atomic.LoadInt64(&runs)
	if got < 2 {
		t.Errorf("expected at least 2 runs in 300ms at a 50ms interval, got %d", got)
	}
}

func TestSchedulerRecordsLastError(t *testing.T) {
	s := newTestScheduler()
	wantErr := errors.New("boom")

	s.AddJob(&Job{
		ID:       "failing",
		Name:     "failing job",
		Interval: 30 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			return wantErr
		},
	})

	s.Start()
	time.Sleep(150 * time.Millisecond)
	s.Stop()

	jobs := s.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("len(Jobs()) = %d, want 1", len(jobs))
	}
	if jobs[0].RunCount == 0 {
		t.Error("expected at least one run recorded")
	}
	if !errors.Is(jobs[0].LastErr, wantErr) {
		t.Errorf("LastErr = %v, want %v", jobs[0].LastErr, wantErr)
	}
}

func TestSchedulerRunningState(t *testing.T) {
	s := newTestScheduler()
	if s.Running() {
		t.Error("expected Running() false before Start")
	}

	s.Start()
	if !s.Running() {
		t.Error("expected Running() true after Start")
	}

	s.Stop()
	if s.Running() {
		t.Error("expected Running() false after Stop")
	}
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	s := newTestScheduler()
	s.Start()
	s.Start()
	s.Stop()
}
