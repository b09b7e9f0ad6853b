// Package jobs holds the periodic background work of the server: the
// escalation scan and the retention purge.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job is one pass of periodic work.
type Job interface {
	Name() string
	RunOnce(ctx context.Context) error
}

// Run executes job every interval until ctx is cancelled. A failed pass is
// logged and the loop continues. Run returns nil on cancellation so it can
// be used directly in an errgroup.
func Run(ctx context.Context, job Job, interval time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("job", job.Name()))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("job started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("job stopped")
			return nil
		case <-ticker.C:
			if err := job.RunOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Error("job pass failed", zap.Error(err))
			}
		}
	}
}
