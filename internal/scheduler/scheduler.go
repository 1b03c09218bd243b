// Package scheduler runs a batch job on a cron schedule, never overlapping runs.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/rewired-gh/forecastbot/internal/logger"
)

// Job is one batch run.
type Job func(ctx context.Context) error

// Scheduler wraps a cron instance with a single registered job.
type Scheduler struct {
	cron *cron.Cron
	spec string
}

// cronLogger adapts the package logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: %s: %v %v", msg, err, keysAndValues)
}

// New registers job under the standard five-field cron spec (descriptors such
// as "@daily" are accepted). A tick that fires while the previous run is still
// going is skipped.
func New(ctx context.Context, spec string, job Job) (*Scheduler, error) {
	l := cronLogger{}
	c := cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)))

	if _, err := c.AddFunc(spec, func() {
		if err := job(ctx); err != nil {
			logger.Error("Scheduled run failed: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("register job %q: %w", spec, err)
	}
	return &Scheduler{cron: c, spec: spec}, nil
}

// Start starts the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("Scheduler started (%s)", s.spec)
}

// Stop stops the scheduler and waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	logger.Info("Scheduler stopped")
}

// Next returns when the job will next run, for logging.
func (s *Scheduler) Next() string {
	entries := s.cron.Entries()
	if len(entries) == 0 || entries[0].Next.IsZero() {
		return "not scheduled"
	}
	return entries[0].Next.Format("2006-01-02 15:04:05 MST")
}
