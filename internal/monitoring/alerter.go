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

	"github.com/sells-group/carbon-dashboard/internal/config"
	"github.com/sells-group/carbon-dashboard/internal/marketcap"
	"github.com/sells-group/carbon-dashboard/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertLoadFailureRate AlertType = "dashboard_load_failure_rate"
	AlertMarketCapError  AlertType = "market_cap_error"
)

const defaultMinLoads = 5

// Alert is one webhook payload.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates snapshots against the configured thresholds and posts
// alerts to the webhook.
type Alerter struct {
	cfg     config.MonitoringConfig
	client  *http.Client
	backoff resilience.Backoff
}

// NewAlerter creates an Alerter.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		backoff: resilience.Backoff{
			Attempts: 3,
			Initial:  200 * time.Millisecond,
			Max:      2 * time.Second,
			Jitter:   0.2,
			OnRetry:  resilience.LogRetry("alert webhook"),
		},
	}
}

// Evaluate returns the alerts snap triggers.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	minLoads := a.cfg.MinLoads
	if minLoads <= 0 {
		minLoads = defaultMinLoads
	}
	if snap.Loads >= minLoads && snap.LoadFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertLoadFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Dashboard load failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d loads)",
				snap.LoadFailRate*100, a.cfg.FailureRateThreshold*100, snap.LoadFailures, snap.Loads,
			),
			Details: map[string]any{
				"failure_rate": snap.LoadFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.LoadFailures,
				"loads":        snap.Loads,
			},
			Timestamp: now,
		})
	}

	if snap.EnrichmentErrors > 0 && snap.MarketCapStatus == string(marketcap.StatusError) {
		severity := "medium"
		if snap.MarketCapMissingProvider {
			severity = "high"
		}
		alerts = append(alerts, Alert{
			Type:     AlertMarketCapError,
			Severity: severity,
			Message: fmt.Sprintf("Market-cap enrichment failed %d time(s): %s",
				snap.EnrichmentErrors, snap.MarketCapReason),
			Details: map[string]any{
				"reason":           snap.MarketCapReason,
				"errors":           snap.EnrichmentErrors,
				"passes":           snap.EnrichmentPasses,
				"missing_provider": snap.MarketCapMissingProvider,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts posts alerts to the webhook and returns how many were accepted.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		err := resilience.Retry(ctx, a.backoff, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if err != nil {
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

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if resilience.IsTransient(err) {
			return resilience.Transient(eris.Wrap(err, "monitoring: webhook request"), 0)
		}
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
		if resilience.IsTransientStatus(resp.StatusCode) {
			return resilience.Transient(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
