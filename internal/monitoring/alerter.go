package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-wizard/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertLowCompletionRate AlertType = "low_completion_rate"
	AlertOutboxBacklog     AlertType = "outbox_backlog"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Check completion rate; samples below MinSessions are skipped.
	if snap.SessionsTotal >= a.cfg.MinSessions && snap.CompletionRate < a.cfg.CompletionRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertLowCompletionRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Funnel completion rate %.1f%% below threshold %.1f%% (%d completed / %d sessions in last %dh)",
				snap.CompletionRate*100, a.cfg.CompletionRateThreshold*100,
				snap.SessionsCompleted, snap.SessionsTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"completion_rate": snap.CompletionRate,
				"threshold":       a.cfg.CompletionRateThreshold,
				"completed":       snap.SessionsCompleted,
				"total":           snap.SessionsTotal,
			},
			Timestamp: now,
		})
	}

	// Check outbox backlog.
	if a.cfg.OutboxBacklogThreshold > 0 && snap.OutboxBacklog > a.cfg.OutboxBacklogThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertOutboxBacklog,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d undelivered tracking events exceed threshold %d",
				snap.OutboxBacklog, a.cfg.OutboxBacklogThreshold,
			),
			Details: map[string]any{
				"backlog":   snap.OutboxBacklog,
				"threshold": a.cfg.OutboxBacklogThreshold,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.AlertWebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.AlertWebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
