package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// WebhookConfig holds outbound webhook settings.
type WebhookConfig struct {
	Timeout    time.Duration     // Per-request timeout (default: 10s)
	RetryCount int               // Retries on transport errors and 5xx responses
	Headers    map[string]string // Extra headers sent with every request
}

// WebhookPayload is the JSON body posted to webhook recipients.
type WebhookPayload struct {
	Event  string        `json:"event"`
	Alert  *models.Alert `json:"alert"`
	SentAt time.Time     `json:"sentAt"`
}

// WebhookNotifier posts alerts as JSON to the configured URLs.
type WebhookNotifier struct {
	client *resty.Client
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "VitalGuard-Webhook/1.0").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	for k, v := range cfg.Headers {
		client.SetHeader(k, v)
	}

	return &WebhookNotifier{client: client}
}

// Channel returns "webhook".
func (w *WebhookNotifier) Channel() string {
	return models.ChannelWebhook
}

// Send posts the alert to every URL. The first failure aborts the rest.
func (w *WebhookNotifier) Send(ctx context.Context, recipients []string, alert *models.Alert) error {
	payload := WebhookPayload{
		Event:  "alert",
		Alert:  alert,
		SentAt: time.Now().UTC(),
	}

	for _, url := range recipients {
		resp, err := w.client.R().
			SetContext(ctx).
			SetBody(payload).
			Post(url)
		if err != nil {
			return fmt.Errorf("post %s: %w", url, err)
		}
		if resp.IsError() {
			return fmt.Errorf("post %s: unexpected status %d", url, resp.StatusCode())
		}
	}
	return nil
}

// Close is a no-op for the webhook notifier.
func (w *WebhookNotifier) Close() error {
	return nil
}
