package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Sweeper drops sessions idle for longer than the given duration
type Sweeper interface {
	Sweep(ctx context.Context, idle time.Duration) (int, error)
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	sweeper   Sweeper
	interval  time.Duration
	idle      time.Duration
	logger    *slog.Logger
}

// New creates a new scheduler instance. Sessions idle for longer than idle
// are swept every interval.
func New(sweeper Sweeper, interval, idle time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		sweeper:   sweeper,
		interval:  interval,
		idle:      idle,
		logger:    logger,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.sweepSessions); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Jobs returns the number of scheduled jobs
func (s *Scheduler) Jobs() int {
	return s.scheduler.Len()
}

// sweepSessions removes abandoned quiz and registration sessions
func (s *Scheduler) sweepSessions() {
	removed, err := s.sweeper.Sweep(context.Background(), s.idle)
	if err != nil {
		s.logger.Error("session sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("swept idle sessions", "removed", removed)
	}
}
