package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/ical-aggregator/internal/persistence"
)

// Scheduler owns the background refresh loop. It starts in a cold state,
// performing an immediate refresh when the store holds no usable data, then
// settles into steady-state polling on the configured schedule. The loop is
// a single sequential goroutine: refreshes are never reentrant and run until
// the context is canceled.
type Scheduler struct {
	refresher *Refresher
	repo      persistence.EventRepository
	schedule  cron.Schedule
	logger    *slog.Logger
	now       func() time.Time
}

// NewScheduler parses the cron-style schedule expression (for example
// "@hourly" or "*/30 * * * *") and returns a Scheduler. The schedule is
// evaluated by the loop itself rather than a cron runner, which keeps the
// refresh strictly sequential.
func NewScheduler(refresher *Refresher, repo persistence.EventRepository, expression string, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", expression, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		refresher: refresher,
		repo:      repo,
		schedule:  schedule,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Run executes the refresh loop until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.needsColdStart(ctx) {
		s.logger.Info("store is empty, running initial refresh")
		if err := s.refresher.Refresh(ctx); err != nil {
			s.logger.Error("initial refresh failed", "error", err)
		}
	}

	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := s.refresher.Refresh(ctx); err != nil {
			// Logged and retried on the next tick only; no immediate retry.
			s.logger.Error("scheduled refresh failed", "error", err)
		}
	}
}

// needsColdStart reports whether the store holds no usable data yet. A count
// failure (for example a missing table) is treated as cold.
func (s *Scheduler) needsColdStart(ctx context.Context) bool {
	count, err := s.repo.CountEvents(ctx)
	if err != nil {
		return true
	}
	return count == 0
}
