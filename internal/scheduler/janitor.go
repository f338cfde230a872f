package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultMaxAge is how long terminal executions are kept when not configured.
const DefaultMaxAge = 24 * time.Hour

// DefaultSchedule runs the purge hourly.
const DefaultSchedule = "0 * * * *"

// Cleaner is the interface the janitor uses to purge old executions.
// Satisfied by the engine (avoids import cycle).
type Cleaner interface {
	CleanupOldExecutions(ctx context.Context, maxAge time.Duration) int
}

// Janitor periodically purges terminal executions older than MaxAge.
type Janitor struct {
	cleaner  Cleaner
	schedule cron.Schedule
	maxAge   time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJanitor creates a Janitor with a standard 5-field cron schedule. Empty
// spec and zero maxAge fall back to the defaults.
func NewJanitor(cleaner Cleaner, spec string, maxAge time.Duration, logger *slog.Logger) (*Janitor, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse janitor schedule %q: %w", spec, err)
	}

	return &Janitor{
		cleaner:  cleaner,
		schedule: schedule,
		maxAge:   maxAge,
		logger:   logger,
	}, nil
}

// Start launches the background cleanup loop.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.done != nil {
		j.mu.Unlock()
		return fmt.Errorf("janitor already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.mu.Unlock()

	go j.loop(loopCtx)
	j.logger.Info("janitor started", "max_age", j.maxAge.String())
	return nil
}

func (j *Janitor) loop(ctx context.Context) {
	defer close(j.done)

	for {
		now := time.Now()
		next := j.schedule.Next(now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single cleanup pass.
func (j *Janitor) RunOnce(ctx context.Context) {
	purged := j.cleaner.CleanupOldExecutions(ctx, j.maxAge)
	if purged > 0 {
		j.logger.Info("purged old executions", slog.Int("count", purged))
	}
}

// Stop gracefully shuts down the janitor.
func (j *Janitor) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cancel == nil {
		return nil
	}

	j.cancel()
	<-j.done
	j.cancel = nil
	j.done = nil

	j.logger.Info("janitor stopped")
	return nil
}
