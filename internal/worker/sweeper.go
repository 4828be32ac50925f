// Package worker runs the server's background jobs.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/celiaho/HocusFocusToDo/internal/metrics"
)

// ExpiredDeleter removes reset codes that expired at or before now.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ResetSweeper periodically deletes expired password reset codes.
type ResetSweeper struct {
	store    ExpiredDeleter
	metrics  metrics.Recorder
	logger   *slog.Logger
	Interval time.Duration
	now      func() time.Time
}

// NewResetSweeper creates a ResetSweeper that runs every 10 minutes.
func NewResetSweeper(store ExpiredDeleter, rec metrics.Recorder, logger *slog.Logger) *ResetSweeper {
	return &ResetSweeper{
		store:    store,
		metrics:  rec,
		logger:   logger,
		Interval: 10 * time.Minute,
		now:      time.Now,
	}
}

// RunOnce deletes the codes expired by now and returns how many went.
func (s *ResetSweeper) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()

	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Error("reset code sweep failed", slog.String("error", err.Error()))
		return 0, fmt.Errorf("sweep expired reset codes: %w", err)
	}

	s.metrics.RecordResetCodesSwept(n)
	if n > 0 {
		s.logger.Info("expired reset codes swept",
			slog.Int64("deleted_count", n),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
	return n, nil
}

// Run sweeps every Interval until ctx is cancelled. A failed sweep is
// logged and retried on the next tick.
func (s *ResetSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.logger.Info("reset code sweeper started", slog.Duration("interval", s.Interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reset code sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}
