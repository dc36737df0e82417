// Package scheduler runs the automation jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/learnloop/campaign-engine/internal/services"
	"github.com/robfig/cron/v3"
	"golang.org/x/exp/slog"
)

// DefaultRunTimeout bounds a single job run; work done before the deadline persists
const DefaultRunTimeout = 10 * time.Minute

// Scheduler invokes registered jobs on cron schedules in a fixed timezone.
// A run that is still going when its next tick fires is skipped.
type Scheduler struct {
	cron       *cron.Cron
	runTimeout time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
}

// New creates a scheduler evaluating schedules in timezone
func New(timezone string, runTimeout time.Duration) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", timezone, err)
	}
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}

	logger := cronLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		runTimeout: runTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Register adds job under name with a five-field cron spec
func (s *Scheduler) Register(name, spec string, job services.JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.runTimeout)
		defer cancel()
		slog.Debug("scheduled job starting", "job", name)
		job(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	slog.Info("job scheduled", "job", name, "schedule", spec)
	return nil
}

// Start starts the cron loop in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling, cancels running jobs and waits for them until ctx ends
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries returns the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// cronLogger forwards cron's logging to slog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
