package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/alerting"
	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// ActiveAlerts lists alerts in the active state.
type ActiveAlerts interface {
	ListActive(ctx context.Context) ([]*models.Alert, error)
}

// AlertEscalator reloads an alert by id and advances it when its next
// escalation rule is due. The returned alert is the stored state.
type AlertEscalator interface {
	EscalateIfDue(ctx context.Context, id string) (*models.Alert, bool, error)
}

// Dispatcher re-notifies caregivers after an escalation.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *models.Alert) error
}

// EscalationResult summarizes one scan.
type EscalationResult struct {
	Scanned   int `json:"scanned"`
	Escalated int `json:"escalated"`
	Failed    int `json:"failed"`
}

// EscalationScanner escalates overdue active alerts and re-dispatches their
// notifications.
type EscalationScanner struct {
	alerts          ActiveAlerts
	escalator       AlertEscalator
	dispatcher      Dispatcher
	dispatchTimeout time.Duration
	logger          *zap.Logger
}

// NewEscalationScanner creates a scanner. dispatcher may be nil.
func NewEscalationScanner(alerts ActiveAlerts, escalator AlertEscalator, dispatcher Dispatcher, logger *zap.Logger) *EscalationScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationScanner{
		alerts:          alerts,
		escalator:       escalator,
		dispatcher:      dispatcher,
		dispatchTimeout: 30 * time.Second,
		logger:          logger,
	}
}

// Name returns "escalation".
func (s *EscalationScanner) Name() string { return "escalation" }

// RunOnce performs a single scan.
func (s *EscalationScanner) RunOnce(ctx context.Context) error {
	_, err := s.Scan(ctx)
	return err
}

// Scan checks every active alert once. The listing is only a snapshot: an
// alert acknowledged or closed before its turn is skipped. Per-alert
// failures are counted and logged; only a failure to list alerts is
// returned.
func (s *EscalationScanner) Scan(ctx context.Context) (EscalationResult, error) {
	var res EscalationResult

	alerts, err := s.alerts.ListActive(ctx)
	if err != nil {
		return res, fmt.Errorf("list active alerts: %w", err)
	}

	for _, listed := range alerts {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Scanned++

		a, advanced, err := s.escalator.EscalateIfDue(ctx, listed.ID)
		switch {
		case alerting.IsStateConflict(err), alerting.IsNotFound(err):
			s.logger.Debug("escalation skipped", zap.String("alert_id", listed.ID), zap.Error(err))
			continue
		case err != nil:
			res.Failed++
			s.logger.Warn("escalation failed", zap.String("alert_id", listed.ID), zap.Error(err))
			continue
		}
		if !advanced {
			continue
		}
		res.Escalated++
		s.logger.Info("alert escalated",
			zap.String("alert_id", a.ID),
			zap.String("device_id", a.DeviceID),
			zap.Int("level", a.Escalation.Level))

		if s.dispatcher == nil {
			continue
		}
		dctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
		if err := s.dispatcher.Dispatch(dctx, a); err != nil {
			s.logger.Warn("escalation dispatch failed", zap.String("alert_id", a.ID), zap.Error(err))
		}
		cancel()
	}

	if res.Escalated > 0 || res.Failed > 0 {
		s.logger.Info("escalation scan complete",
			zap.Int("scanned", res.Scanned),
			zap.Int("escalated", res.Escalated),
			zap.Int("failed", res.Failed))
	}
	return res, nil
}
