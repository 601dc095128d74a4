package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dealscout/dealscout/config"
)

// Event types emitted by the ranking pipeline.
const (
	EventRankAllCompleted = "rank_all.completed"
	EventScrapeCompleted  = "scrape.completed"
)

// Event is the payload POSTed to the configured endpoint.
type Event struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// retrySchedule are the waits before each delivery attempt.
var retrySchedule = []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}

// Notifier delivers signed events to a single webhook endpoint. A Notifier
// built from an empty URL is disabled and drops every event silently, so
// callers never need to branch on configuration.
type Notifier struct {
	url    string
	secret string
	client *http.Client
}

// NewNotifier builds a Notifier from the webhook configuration.
func NewNotifier(cfg config.WebhookConfig) *Notifier {
	return &Notifier{
		url:    cfg.URL,
		secret: cfg.Secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether an endpoint is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// Send delivers one event synchronously. When a secret is configured the
// body carries an HMAC-SHA256 signature in X-DealScout-Signature
// ("sha256=<hex>").
func (n *Notifier) Send(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "DealScout-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set("X-DealScout-Signature", "sha256="+sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// SendAsync delivers an event in the background, retrying on the
// 1s/5s/30s schedule. Exhausted retries are logged, not surfaced.
func (n *Notifier) SendAsync(event *Event) {
	if !n.Enabled() {
		return
	}
	go func() {
		for attempt, wait := range retrySchedule {
			time.Sleep(wait)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := n.Send(ctx, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", n.url,
					"event", event.Type,
					"run_id", event.RunID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", n.url,
				"event", event.Type,
				"run_id", event.RunID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", n.url,
			"event", event.Type,
			"run_id", event.RunID,
		)
	}()
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
