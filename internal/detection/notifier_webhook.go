// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package detection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/husarkar-hub/viewguard/internal/config"
	"github.com/husarkar-hub/viewguard/internal/logging"
	"github.com/husarkar-hub/viewguard/internal/metrics"
	"github.com/husarkar-hub/viewguard/internal/models"
)

// WebhookPayload is the JSON body delivered for each scan with findings.
type WebhookPayload struct {
	EventType string                            `json:"event_type"` // suspicious_activity
	Source    string                            `json:"source"`     // viewguard
	Findings  []models.SuspiciousActivityRecord `json:"findings"`
	Timestamp time.Time                         `json:"timestamp"`
}

// WebhookNotifier POSTs detector findings to an operator endpoint. The
// endpoint is outside our control, so deliveries run behind a circuit
// breaker: a dead endpoint stops costing a timeout per scan.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[struct{}]
}

// NewWebhookNotifier builds a notifier from detection config. The breaker
// opens after a 60% failure rate over at least 5 requests and probes again
// after one minute.
func NewWebhookNotifier(cfg *config.DetectionConfig) *WebhookNotifier {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "detection-webhook",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Webhook circuit breaker state change")
		},
	})

	return &WebhookNotifier{
		url:     cfg.WebhookURL,
		enabled: cfg.WebhookEnabled,
		client:  &http.Client{Timeout: 10 * time.Second},
		cb:      cb,
	}
}

// Enabled reports whether deliveries are configured.
func (n *WebhookNotifier) Enabled() bool {
	return n.enabled && n.url != ""
}

// Notify delivers scan findings. A disabled notifier and an empty findings
// list are both no-ops.
func (n *WebhookNotifier) Notify(ctx context.Context, findings []models.SuspiciousActivityRecord) error {
	if !n.Enabled() || len(findings) == 0 {
		return nil
	}

	payload := WebhookPayload{
		EventType: "suspicious_activity",
		Source:    "viewguard",
		Findings:  findings,
		Timestamp: time.Now().UTC(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	_, err = n.cb.Execute(func() (struct{}, error) {
		return struct{}{}, n.post(ctx, body)
	})
	switch {
	case err == nil:
		metrics.WebhookDeliveries.WithLabelValues("ok").Inc()
		return nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.WebhookDeliveries.WithLabelValues("circuit_open").Inc()
		return fmt.Errorf("webhook circuit open: %w", err)
	default:
		metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
