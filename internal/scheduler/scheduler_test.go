package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeSweeper struct {
	mu    sync.Mutex
	calls int
	idle  time.Duration
	err   error
}

func (f *fakeSweeper) Sweep(_ context.Context, idle time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.idle = idle
	return 2, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepSessions(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := New(sweeper, time.Minute, 2*time.Hour, discard())

	s.sweepSessions()
	if sweeper.calls != 1 || sweeper.idle != 2*time.Hour {
		t.Fatalf("unexpected sweep %+v", sweeper)
	}

	sweeper.err = errors.New("boom")
	s.sweepSessions()
	if sweeper.calls != 2 {
		t.Fatalf("sweep should run even after an error")
	}
}

func TestStartSchedulesSweep(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := New(sweeper, time.Second, time.Hour, discard())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if s.Jobs() != 1 {
		t.Fatalf("expected 1 job, got %d", s.Jobs())
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		sweeper.mu.Lock()
		calls := sweeper.calls
		sweeper.mu.Unlock()
		if calls > 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("sweep job never ran")
}
