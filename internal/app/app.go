// Package app assembles VitalGuard components from a loaded configuration.
// It is shared by the server and the operator CLI.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/models"
	"github.com/good-yellow-bee/vitalguard/internal/notifier"
	"github.com/good-yellow-bee/vitalguard/internal/storage"
	"github.com/good-yellow-bee/vitalguard/pkg/config"
)

// OpenStorage opens and migrates the configured database.
func OpenStorage(cfg config.DatabaseConfig, logger *zap.Logger) (storage.Storage, error) {
	var store storage.Storage

	switch cfg.Driver {
	case "postgres":
		store = storage.NewPostgresStorage(storage.PostgresConfig{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
	case "sqlite", "":
		// Auto-create data directory
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		store = storage.NewSQLiteStorage(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("database initialized", zap.String("driver", cfg.Driver))
	return store, nil
}

// NewDispatcher builds the notification dispatcher and registers every
// configured channel. tracker may be nil.
func NewDispatcher(cfg config.NotificationsConfig, tracker notifier.AlertTracker, logger *zap.Logger) (*notifier.Dispatcher, error) {
	d := notifier.NewDispatcher(
		notifier.RateLimitConfig{
			MaxPerWindow: cfg.RateLimit.MaxPerWindow,
			Window:       cfg.RateLimit.Window,
			Enabled:      cfg.RateLimit.Enabled,
		},
		notifier.Recipients{
			Emails:       cfg.Recipients.Emails,
			PhoneNumbers: cfg.Recipients.PhoneNumbers,
			WebhookURLs:  cfg.Recipients.WebhookURLs,
		},
		tracker,
		logger.Named("notifier"),
	)

	if cfg.Email.Host != "" {
		email, err := notifier.NewEmailNotifier(notifier.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		})
		if err != nil {
			return nil, fmt.Errorf("email notifier: %w", err)
		}
		d.Register(email)
	}
	if cfg.SMS {
		d.Register(notifier.NewLogNotifier(models.ChannelSMS, logger))
	}
	if cfg.Push {
		d.Register(notifier.NewLogNotifier(models.ChannelPush, logger))
	}
	if cfg.Webhook.Enabled {
		d.Register(notifier.NewWebhookNotifier(notifier.WebhookConfig{
			Timeout:    cfg.Webhook.Timeout,
			RetryCount: cfg.Webhook.RetryCount,
			Headers:    cfg.Webhook.Headers,
		}))
	}

	logger.Info("notification channels registered", zap.Strings("channels", d.Channels()))
	return d, nil
}
