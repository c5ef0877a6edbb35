package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/carbon-dashboard/internal/config"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	alerts := a.Evaluate(&Snapshot{
		Loads:            100,
		LoadFailures:     5,
		LoadFailRate:     0.05,
		EnrichmentPasses: 100,
		MarketCapStatus:  "ok",
	})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_LoadFailureRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	alerts := a.Evaluate(&Snapshot{
		Loads:        20,
		LoadFailures: 8,
		LoadFailRate: 0.4,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLoadFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
	assert.Equal(t, 8, alerts[0].Details["failed"])
}

func TestAlerter_Evaluate_MinimumLoadsRequired(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	// Three loads is below the default minimum of five.
	alerts := a.Evaluate(&Snapshot{Loads: 3, LoadFailures: 2, LoadFailRate: 0.666})
	assert.Empty(t, alerts)

	a = NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10, MinLoads: 2})
	assert.Len(t, a.Evaluate(&Snapshot{Loads: 3, LoadFailures: 2, LoadFailRate: 0.666}), 1)
}

func TestAlerter_Evaluate_MarketCapError(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	alerts := a.Evaluate(&Snapshot{
		EnrichmentPasses: 4,
		EnrichmentErrors: 2,
		MarketCapStatus:  "error",
		MarketCapReason:  "worker-timeout:8000ms",
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertMarketCapError, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "worker-timeout:8000ms")

	alerts = a.Evaluate(&Snapshot{
		EnrichmentErrors:         1,
		MarketCapStatus:          "error",
		MarketCapReason:          "provider-not-installed",
		MarketCapMissingProvider: true,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, "high", alerts[0].Severity)
}

func TestAlerter_Evaluate_RecoveredEnrichmentIsQuiet(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	// Errors earlier in the window, but the latest pass succeeded.
	alerts := a.Evaluate(&Snapshot{EnrichmentErrors: 1, MarketCapStatus: "ok"})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	alerts := a.Evaluate(&Snapshot{
		Loads:            10,
		LoadFailures:     5,
		LoadFailRate:     0.5,
		EnrichmentErrors: 3,
		MarketCapStatus:  "error",
		MarketCapReason:  "network_or_dns_failure",
	})
	assert.Len(t, alerts, 2)

	types := make(map[AlertType]bool)
	for _, a := range alerts {
		types[a.Type] = true
	}
	assert.True(t, types[AlertLoadFailureRate])
	assert.True(t, types[AlertMarketCapError])
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertLoadFailureRate, Severity: "high", Message: "loads failing"},
		{Type: AlertMarketCapError, Severity: "medium", Message: "worker down"},
	})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertLoadFailureRate, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), nil))
}

func fastRetries(a *Alerter) *Alerter {
	a.backoff.Initial = time.Millisecond
	a.backoff.Max = 2 * time.Millisecond
	a.backoff.OnRetry = nil
	return a
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := fastRetries(NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL}))
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertLoadFailureRate, Message: "test"}})
	assert.Equal(t, 0, sent)
	assert.Equal(t, int32(3), calls.Load(), "5xx is retried until attempts run out")
}

func TestAlerter_SendAlerts_RetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := fastRetries(NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL}))
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertMarketCapError, Message: "worker down"}})
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAlerter_SendAlerts_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	a := fastRetries(NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL}))
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertLoadFailureRate, Message: "test"}}))
	assert.Equal(t, int32(1), calls.Load())
}
