// Package monitoring exposes prometheus metrics for dashboard loads,
// market-cap enrichment and HTTP requests, and runs a background checker
// that alerts a webhook when loads start failing.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carbon"

// Metric names read back by the Collector.
const (
	loadsMetric       = namespace + "_dashboard_loads_total"
	enrichmentsMetric = namespace + "_marketcap_enrichments_total"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the collectors, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	loads              *prometheus.CounterVec
	loadDuration       *prometheus.HistogramVec
	enrichments        *prometheus.CounterVec
	enrichmentDuration prometheus.Histogram
	requests           *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// NewMetrics creates the metrics on a fresh registry, with the Go runtime
// collector included.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,
		loads: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "loads_total",
			Help:      "Dashboard loads by scope and outcome.",
		}, []string{"scope", "outcome"}),
		loadDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "load_duration_seconds",
			Help:      "Dashboard load latency, including enrichment.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"scope"}),
		enrichments: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketcap",
			Name:      "enrichments_total",
			Help:      "Market-cap enrichment passes by status and cache use.",
		}, []string{"status", "cache"}),
		enrichmentDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketcap",
			Name:      "enrichment_duration_seconds",
			Help:      "Market-cap enrichment latency.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 4, 8, 16},
		}),
		requests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		requestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveLoad records one dashboard load.
func (m *Metrics) ObserveLoad(scope string, elapsed time.Duration, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.loads.WithLabelValues(scope, outcome).Inc()
	m.loadDuration.WithLabelValues(scope).Observe(elapsed.Seconds())
}

// ObserveEnrichment records one enrichment pass.
func (m *Metrics) ObserveEnrichment(status string, cacheHit bool, elapsed time.Duration) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	m.enrichments.WithLabelValues(status, cache).Inc()
	m.enrichmentDuration.Observe(elapsed.Seconds())
}

// ObserveRequest records one HTTP request. route is the matched pattern, not
// the raw path.
func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
