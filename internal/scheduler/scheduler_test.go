package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingPurger struct{ calls atomic.Int32 }

func (p *countingPurger) PurgeExpired() int {
	p.calls.Add(1)
	return 0
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSchedulerRunsJobs(t *testing.T) {
	purger := &countingPurger{}
	var failures atomic.Int32

	s := New(quiet(),
		PurgeJob(purger, 20*time.Millisecond),
		Job{Name: "failing", Interval: 20 * time.Millisecond, Run: func(context.Context) error {
			failures.Add(1)
			return errors.New("boom")
		}},
		Job{Name: "disabled", Run: func(context.Context) error {
			t.Errorf("disabled job must not run")
			return nil
		}},
	)
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if purger.calls.Load() > 0 && failures.Load() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("jobs did not run: purge=%d failing=%d", purger.calls.Load(), failures.Load())
}

func TestSchedulerWithoutJobs(t *testing.T) {
	s := New(quiet())
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
}
