package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/metrics"
)

// ReadingPurger deletes readings older than a cutoff.
type ReadingPurger interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AlertPurger deletes closed alerts older than a cutoff.
type AlertPurger interface {
	DeleteClosedBefore(ctx context.Context, before time.Time) (int64, error)
}

// RetentionConfig holds retention windows.
type RetentionConfig struct {
	Readings time.Duration // default: 30 days
	Alerts   time.Duration // default: 90 days, closed alerts only
}

// DefaultRetentionConfig returns the default retention windows.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Readings: 30 * 24 * time.Hour,
		Alerts:   90 * 24 * time.Hour,
	}
}

// PurgeResult counts deleted rows.
type PurgeResult struct {
	Readings int64 `json:"readings"`
	Alerts   int64 `json:"alerts"`
}

// Purger enforces the retention windows.
type Purger struct {
	readings ReadingPurger
	alerts   AlertPurger
	config   RetentionConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewPurger creates a purger. Zero windows take their defaults.
func NewPurger(readings ReadingPurger, alerts AlertPurger, config RetentionConfig, logger *zap.Logger) *Purger {
	defaults := DefaultRetentionConfig()
	if config.Readings <= 0 {
		config.Readings = defaults.Readings
	}
	if config.Alerts <= 0 {
		config.Alerts = defaults.Alerts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Purger{
		readings: readings,
		alerts:   alerts,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Name returns "retention".
func (p *Purger) Name() string { return "retention" }

// RunOnce performs a single purge.
func (p *Purger) RunOnce(ctx context.Context) error {
	_, err := p.Purge(ctx)
	return err
}

// Purge deletes readings and closed alerts past their windows.
func (p *Purger) Purge(ctx context.Context) (PurgeResult, error) {
	var res PurgeResult
	now := p.now().UTC()

	n, err := p.readings.DeleteBefore(ctx, now.Add(-p.config.Readings))
	if err != nil {
		metrics.StorageErrors.WithLabelValues("purge_readings").Inc()
		return res, fmt.Errorf("purge readings: %w", err)
	}
	res.Readings = n
	metrics.RetentionPurged.WithLabelValues("readings").Add(float64(n))

	n, err = p.alerts.DeleteClosedBefore(ctx, now.Add(-p.config.Alerts))
	if err != nil {
		metrics.StorageErrors.WithLabelValues("purge_alerts").Inc()
		return res, fmt.Errorf("purge alerts: %w", err)
	}
	res.Alerts = n
	metrics.RetentionPurged.WithLabelValues("alerts").Add(float64(n))

	p.logger.Info("retention purge complete",
		zap.Int64("readings", res.Readings),
		zap.Int64("alerts", res.Alerts))
	return res, nil
}
