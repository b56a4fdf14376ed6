// Package notification implements the outbound alert channels: a JSON
// webhook and SMTP email. Both read their runtime configuration from the
// settings store and can be reconfigured without a restart.
package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Webhook posts JSON alert payloads to a configured endpoint.
type Webhook struct {
	mu      sync.RWMutex
	url     string
	enabled bool

	client *resty.Client
	log    zerolog.Logger
}

// NewWebhook creates a disabled Webhook; call UpdateConfig to enable it.
func NewWebhook(log zerolog.Logger) *Webhook {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "webstatus/1.0")

	return &Webhook{
		client: client,
		log:    log.With().Str("component", "webhook").Logger(),
	}
}

// UpdateConfig swaps the webhook endpoint configuration.
func (w *Webhook) UpdateConfig(url string, enabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.url = url
	w.enabled = enabled && url != ""

	if w.enabled {
		w.log.Info().Str("url", url).Msg("webhook notifier enabled")
	} else {
		w.log.Info().Msg("webhook notifier disabled")
	}
}

// Enabled reports whether the webhook is configured and active.
func (w *Webhook) Enabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.enabled
}

type webhookTarget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type webhookPayload struct {
	EventType string        `json:"event_type"`
	Target    webhookTarget `json:"target"`
	Message   string        `json:"message"`
	Timestamp string        `json:"timestamp"`
	Failures  int           `json:"failures"`
	Threshold int           `json:"threshold"`
}

func (w *Webhook) send(ctx context.Context, payload webhookPayload) error {
	w.mu.RLock()
	url, enabled := w.url, w.enabled
	w.mu.RUnlock()

	if !enabled {
		return fmt.Errorf("webhook not enabled")
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(url)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}

	w.log.Info().Str("event", payload.EventType).Str("target", payload.Target.Name).Msg("webhook sent")
	return nil
}

// SendThresholdReached posts the down alert for a target that just crossed
// its failure threshold.
func (w *Webhook) SendThresholdReached(ctx context.Context, targetName, targetID string, failures, threshold int, errMsg string) error {
	message := fmt.Sprintf("ALERT: %s is DOWN", targetName)
	if errMsg != "" {
		message += " - " + errMsg
	}
	return w.send(ctx, webhookPayload{
		EventType: "threshold_reached",
		Target:    webhookTarget{ID: targetID, Name: targetName},
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Failures:  failures,
		Threshold: threshold,
	})
}

// SendRecovery posts the recovery notification for a target.
func (w *Webhook) SendRecovery(ctx context.Context, targetName, targetID string) error {
	return w.send(ctx, webhookPayload{
		EventType: "recovered",
		Target:    webhookTarget{ID: targetID, Name: targetName},
		Message:   fmt.Sprintf("RECOVERY: %s is back UP", targetName),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// SendTest posts a test payload to verify the endpoint.
func (w *Webhook) SendTest(ctx context.Context) error {
	return w.send(ctx, webhookPayload{
		EventType: "test",
		Message:   "This is a test notification from webstatus",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
