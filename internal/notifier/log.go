package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// LogNotifier stands in for providers that are not configured (SMS gateway,
// push service). It logs each delivery and always succeeds.
type LogNotifier struct {
	channel string
	logger  *zap.Logger
}

// NewLogNotifier creates a log-only notifier for channel.
func NewLogNotifier(channel string, logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{channel: channel, logger: logger.Named(channel)}
}

func (l *LogNotifier) Channel() string {
	return l.channel
}

func (l *LogNotifier) Send(_ context.Context, recipients []string, alert *models.Alert) error {
	l.logger.Info("notification delivered",
		zap.String("channel", l.channel),
		zap.String("alert_id", alert.ID),
		zap.String("device_id", alert.DeviceID),
		zap.String("severity", string(alert.Severity)),
		zap.Strings("recipients", recipients),
		zap.String("title", alert.Title),
	)
	return nil
}

func (l *LogNotifier) Close() error {
	return nil
}
