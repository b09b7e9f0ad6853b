// Package notifier delivers alert notifications to caregivers over email,
// SMS, push and webhooks, and records per-channel delivery on the alert.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/vitalguard/internal/metrics"
	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// Notifier is the interface for all notification channels.
type Notifier interface {
	// Channel returns the channel name (e.g., "email", "webhook").
	Channel() string
	// Send delivers one notification for alert to the given recipients.
	Send(ctx context.Context, recipients []string, alert *models.Alert) error
	// Close releases any resources.
	Close() error
}

// AlertTracker persists per-channel delivery tracking.
type AlertTracker interface {
	UpdateNotifications(ctx context.Context, id string, n models.NotificationStatus, updatedAt time.Time) error
}

var (
	// ErrRateLimited is recorded when a dispatch is dropped by the rate limiter.
	ErrRateLimited = errors.New("rate limited")
	// ErrNoRecipients is recorded when a channel has nobody to notify.
	ErrNoRecipients = errors.New("no recipients")
)

// ChannelError is a delivery failure on one channel.
type ChannelError struct {
	Channel string
	Err     error
}

func (e *ChannelError) Error() string {
	return e.Channel + ": " + e.Err.Error()
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// DispatchError collects the failures of one Dispatch call. It is logged and
// counted by callers, never surfaced to the device that sent the reading.
type DispatchError struct {
	AlertID string
	Errs    []error
}

func (e *DispatchError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("dispatch alert %s: %s", e.AlertID, strings.Join(msgs, "; "))
}

func (e *DispatchError) Unwrap() []error {
	return e.Errs
}

// Recipients holds the statically configured recipients per channel. They
// are added to the ones derived from the alert.
type Recipients struct {
	Emails       []string
	PhoneNumbers []string
	WebhookURLs  []string
}

// Dispatcher manages the registered channels and routes alerts to them.
type Dispatcher struct {
	mu          sync.RWMutex
	notifiers   map[string]Notifier
	rateLimiter *RateLimiter
	recipients  Recipients
	tracker     AlertTracker
	logger      *zap.Logger
	now         func() time.Time
}

// NewDispatcher creates a dispatcher. tracker may be nil, in which case
// delivery tracking is only kept on the in-memory alert.
func NewDispatcher(rl RateLimitConfig, recipients Recipients, tracker AlertTracker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		notifiers:   make(map[string]Notifier),
		rateLimiter: NewRateLimiter(rl),
		recipients:  recipients,
		tracker:     tracker,
		logger:      logger,
		now:         time.Now,
	}
}

// Register adds a notifier to the dispatcher.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers[n.Channel()] = n
}

// Get returns a notifier by channel name.
func (d *Dispatcher) Get(channel string) (Notifier, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.notifiers[channel]
	return n, ok
}

// Channels returns the registered channel names in sorted order.
func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.notifiers))
	for name := range d.notifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch records exactly one delivery attempt per registered channel on
// alert.Notifications and persists the tracking. Channels are sent to
// concurrently, so a slow provider does not delay the others. It returns a
// *DispatchError when any channel failed.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.Alert) error {
	now := d.now().UTC()
	limited := d.rateLimiter != nil && !d.rateLimiter.Allow(alert.DeviceID)

	d.mu.RLock()
	channels := make([]string, 0, len(d.notifiers))
	for name := range d.notifiers {
		if alert.Notifications.Channel(name) != nil {
			channels = append(channels, name)
		}
	}
	sort.Strings(channels)

	recipients := make([][]string, len(channels))
	results := make([]error, len(channels))
	var g errgroup.Group
	for i, name := range channels {
		recipients[i] = d.recipientsFor(name, alert)
		switch {
		case limited:
			results[i] = ErrRateLimited
		case len(recipients[i]) == 0:
			results[i] = ErrNoRecipients
		default:
			n := d.notifiers[name]
			g.Go(func() error {
				results[i] = n.Send(ctx, recipients[i], alert)
				return nil
			})
		}
	}
	_ = g.Wait()
	d.mu.RUnlock()

	var errs []error
	sent := 0
	for i, name := range channels {
		err := results[i]
		record := alert.Notifications.Channel(name)
		at := now
		record.Attempts++
		record.LastAttemptAt = &at
		record.Recipients = recipients[i]
		record.Sent = err == nil
		if err == nil {
			record.LastError = ""
			sent++
			metrics.NotificationsSent.WithLabelValues(name, "sent").Inc()
			continue
		}
		record.LastError = err.Error()
		errs = append(errs, &ChannelError{Channel: name, Err: err})
		metrics.NotificationsSent.WithLabelValues(name, resultLabel(err)).Inc()
	}

	// A dispatch that reached nobody does not count against the device.
	if !limited && sent == 0 && d.rateLimiter != nil {
		d.rateLimiter.Release(alert.DeviceID)
	}

	alert.UpdatedAt = now
	if d.tracker != nil {
		if err := d.tracker.UpdateNotifications(ctx, alert.ID, alert.Notifications, now); err != nil {
			metrics.StorageErrors.WithLabelValues("update_notifications").Inc()
			errs = append(errs, fmt.Errorf("persist delivery tracking: %w", err))
		}
	}

	if len(errs) > 0 {
		return &DispatchError{AlertID: alert.ID, Errs: errs}
	}
	d.logger.Debug("alert dispatched",
		zap.String("alert_id", alert.ID), zap.Int("channels", sent))
	return nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrNoRecipients):
		return "no_recipients"
	default:
		return "failed"
	}
}

// recipientsFor resolves who a channel should reach for alert.
func (d *Dispatcher) recipientsFor(channel string, alert *models.Alert) []string {
	contact := alert.Context.EmergencyContact
	switch channel {
	case models.ChannelEmail:
		return mergeRecipients(contact.Email, d.recipients.Emails)
	case models.ChannelSMS:
		return mergeRecipients(contact.Phone, d.recipients.PhoneNumbers)
	case models.ChannelPush:
		return mergeRecipients(alert.UserID, nil)
	case models.ChannelWebhook:
		return mergeRecipients("", d.recipients.WebhookURLs)
	default:
		return nil
	}
}

func mergeRecipients(primary string, configured []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(r string) {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			return
		}
		seen[r] = true
		out = append(out, r)
	}
	add(primary)
	for _, r := range configured {
		add(r)
	}
	return out
}

// RateLimitStats returns the rate limiter statistics.
func (d *Dispatcher) RateLimitStats() RateLimitStats {
	if d.rateLimiter == nil {
		return RateLimitStats{}
	}
	return d.rateLimiter.Stats()
}

// Close closes all registered notifiers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	d.notifiers = make(map[string]Notifier)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
