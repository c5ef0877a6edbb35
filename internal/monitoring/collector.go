package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/carbon-dashboard/internal/marketcap"
)

// Snapshot holds the activity seen since the previous collection.
type Snapshot struct {
	Loads        int     `json:"loads"`
	LoadFailures int     `json:"load_failures"`
	LoadFailRate float64 `json:"load_fail_rate"`

	EnrichmentPasses int `json:"enrichment_passes"`
	EnrichmentErrors int `json:"enrichment_errors"`

	MarketCapStatus          string `json:"market_cap_status"`
	MarketCapReason          string `json:"market_cap_reason,omitempty"`
	MarketCapMissingProvider bool   `json:"market_cap_missing_provider"`

	Window      time.Duration `json:"window"`
	CollectedAt time.Time     `json:"collected_at"`
}

// DiagnosticsSource reports the latest enrichment diagnostics.
type DiagnosticsSource interface {
	Diagnostics() marketcap.Diagnostics
}

type totals struct {
	loads, loadFailures, passes, passErrors float64
}

// Collector turns the cumulative counters in a registry into per-window
// deltas.
type Collector struct {
	gatherer prometheus.Gatherer
	source   DiagnosticsSource
	now      func() time.Time

	mu       sync.Mutex
	prev     totals
	prevTime time.Time
}

// NewCollector creates a Collector. source may be nil when enrichment is off.
func NewCollector(gatherer prometheus.Gatherer, source DiagnosticsSource) *Collector {
	return &Collector{gatherer: gatherer, source: source, now: time.Now}
}

// Collect gathers a snapshot of activity since the previous call. The first
// call covers everything recorded so far.
func (c *Collector) Collect() (*Snapshot, error) {
	families, err := c.gatherer.Gather()
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: gather metrics")
	}

	var cur totals
	for _, fam := range families {
		switch fam.GetName() {
		case loadsMetric:
			for _, m := range fam.GetMetric() {
				v := m.GetCounter().GetValue()
				cur.loads += v
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "outcome" && lp.GetValue() == OutcomeError {
						cur.loadFailures += v
					}
				}
			}
		case enrichmentsMetric:
			for _, m := range fam.GetMetric() {
				v := m.GetCounter().GetValue()
				cur.passes += v
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "status" && lp.GetValue() == string(marketcap.StatusError) {
						cur.passErrors += v
					}
				}
			}
		}
	}

	now := c.now().UTC()
	c.mu.Lock()
	prev, prevTime := c.prev, c.prevTime
	c.prev, c.prevTime = cur, now
	c.mu.Unlock()

	snap := &Snapshot{
		Loads:            int(cur.loads - prev.loads),
		LoadFailures:     int(cur.loadFailures - prev.loadFailures),
		EnrichmentPasses: int(cur.passes - prev.passes),
		EnrichmentErrors: int(cur.passErrors - prev.passErrors),
		CollectedAt:      now,
	}
	if !prevTime.IsZero() {
		snap.Window = now.Sub(prevTime)
	}
	if snap.Loads > 0 {
		snap.LoadFailRate = float64(snap.LoadFailures) / float64(snap.Loads)
	}
	if c.source != nil {
		diag := c.source.Diagnostics()
		snap.MarketCapStatus = string(diag.Status)
		snap.MarketCapReason = diag.Reason
		snap.MarketCapMissingProvider = diag.MissingProvider
	}
	return snap, nil
}
