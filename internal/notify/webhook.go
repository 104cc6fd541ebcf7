// Package notify delivers restock notifications to an external webhook.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"restockwatch/internal/watch"
)

// payload is the JSON body posted to the webhook. Content carries a
// Discord-compatible rendering of the same fields, so the endpoint can be a
// plain Discord webhook without any relay in between.
type payload struct {
	Status    string    `json:"status"`
	Reason    string    `json:"reason"`
	URL       string    `json:"url"`
	CheckedAt time.Time `json:"checked_at"`
	RunID     string    `json:"run_id"`
	Content   string    `json:"content,omitempty"`
}

// Webhook implements watch.Notifier with a single best-effort POST.
type Webhook struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

// NewWebhook builds a notifier posting to url. timeout bounds the delivery
// attempt; zero falls back to 10s.
func NewWebhook(url string, timeout time.Duration, logger *zap.Logger) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &Webhook{client: client, url: url, logger: logger}
}

// Notify posts the notification once. No retries: the caller treats delivery
// as best-effort and only logs failures.
func (w *Webhook) Notify(ctx context.Context, n watch.Notification) error {
	body := payload{
		Status:    string(n.Status),
		Reason:    n.Reason,
		URL:       n.URL,
		CheckedAt: n.CheckedAt,
		RunID:     n.RunID,
		Content: fmt.Sprintf("**Restock alert**\n\n**Status:** %s\n**Reason:** %s\n**URL:** %s",
			n.Status, n.Reason, n.URL),
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook rejected notification: status %d", resp.StatusCode())
	}
	w.logger.Debug("webhook accepted notification",
		zap.Int("status_code", resp.StatusCode()),
		zap.String("run_id", n.RunID),
	)
	return nil
}
