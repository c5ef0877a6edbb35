// Package dashboard assembles the carbon-reduction dashboard from the scoring
// database: it reconciles emissions, denominators, targets, reports and
// evidence per company, aggregates industries, and merges market-cap
// enrichment into the company list.
package dashboard

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/carbon-dashboard/internal/config"
	"github.com/sells-group/carbon-dashboard/internal/db"
	"github.com/sells-group/carbon-dashboard/internal/marketcap"
	"github.com/sells-group/carbon-dashboard/internal/model"
	"github.com/sells-group/carbon-dashboard/internal/schema"
)

// Enricher attaches market caps to companies. It never fails; the outcome is
// reported through the diagnostics.
type Enricher interface {
	Enrich(ctx context.Context, companies []model.Company) ([]model.Company, marketcap.Diagnostics)
}

// Observer receives one call per dashboard load.
type Observer interface {
	ObserveLoad(scope string, elapsed time.Duration, err error)
}

// Meta describes how a load was resolved.
type Meta struct {
	Scope              Scope                  `json:"scope"`
	Country            string                 `json:"country,omitempty"`
	RequestedCompanyID string                 `json:"requestedCompanyId,omitempty"`
	ResolvedCompanyID  string                 `json:"resolvedCompanyId,omitempty"`
	Variants           []string               `json:"variants"`
	MarketCap          *marketcap.Diagnostics `json:"marketCap,omitempty"`
	Metrics            *CompanyMetrics        `json:"metrics,omitempty"`
	Evidence           *EvidenceSummary       `json:"evidence,omitempty"`
	GeneratedAt        time.Time              `json:"generatedAt"`
}

// Result is one dashboard response.
type Result struct {
	Data *model.Dashboard `json:"data"`
	Meta Meta             `json:"meta"`
}

// Service loads dashboards from the database.
type Service struct {
	pool     db.Pool
	resolver *schema.Resolver
	enricher Enricher
	observer Observer
	scale    float64
	timeout  time.Duration
	now      func() time.Time
}

// NewService creates a Service. Enrichment is off until WithEnricher is set.
func NewService(pool db.Pool, resolver *schema.Resolver, cfg config.DashboardConfig) *Service {
	scale := cfg.IntensityScale
	if scale <= 0 {
		scale = 1
	}
	return &Service{
		pool:     pool,
		resolver: resolver,
		scale:    scale,
		timeout:  time.Duration(cfg.QueryTimeoutSecs) * time.Second,
		now:      time.Now,
	}
}

// WithEnricher sets the market-cap enricher.
func (s *Service) WithEnricher(e Enricher) *Service {
	s.enricher = e
	return s
}

// WithObserver sets the load observer.
func (s *Service) WithObserver(o Observer) *Service {
	s.observer = o
	return s
}

// Load runs the full pipeline for q: probe, concurrent fetch, reconciliation,
// aggregation, enrichment, then scope narrowing. Any query failure fails the
// whole load.
func (s *Service) Load(ctx context.Context, q Query) (*Result, error) {
	start := s.now()
	res, err := s.load(ctx, q)
	if s.observer != nil {
		scope := q.Scope
		if scope == "" {
			scope = ScopeFull
		}
		s.observer.ObserveLoad(string(scope), s.now().Sub(start), err)
	}
	return res, err
}

func (s *Service) load(ctx context.Context, q Query) (*Result, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	strategy, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "dashboard: resolve schema")
	}
	raw, err := fetchAll(ctx, s.pool, strategy)
	if err != nil {
		return nil, err
	}

	d := assemble(raw, s.scale)

	meta := Meta{
		Scope:              q.Scope,
		Country:            q.Country,
		RequestedCompanyID: q.CompanyID,
		Variants:           strategy.Tags(),
	}
	// Enrichment sees the unfiltered company list so every country shares one
	// cache entry.
	if s.enricher != nil {
		enriched, diag := s.enricher.Enrich(ctx, d.Companies)
		d.Companies = enriched
		meta.MarketCap = &diag
	}
	filterCountry(d, q.Country)
	model.SortByMarketCapDesc(d.Companies)

	if q.Scope == ScopeMain {
		if company, ok := resolveCompany(d.Companies, q.CompanyID); ok {
			meta.ResolvedCompanyID = company.ID
			meta.Metrics = computeMetrics(d, company)
			meta.Evidence = summarizeEvidence(d.EvidenceItems[company.ID])
			restrict(d, []model.Company{company})
		} else {
			restrict(d, []model.Company{})
		}
		d.EvidenceItems = nil
		d.ReportHistory = nil
	}

	meta.GeneratedAt = s.now().UTC()
	return &Result{Data: d, Meta: meta}, nil
}

// assemble reconciles raw rows into a full dashboard covering every company.
func assemble(raw *rawData, scale float64) *model.Dashboard {
	ref := buildReference(raw)
	book := newEvidenceBook()
	l := newLedger()

	d := model.NewDashboard()
	d.Companies = buildCompanies(raw.companies, ref)

	runs, runCompany := buildScoreRuns(raw.scoreRuns)
	d.ScoreRuns = runs
	d.Reports, d.ReportHistory = assembleReports(raw.reports, raw.frameworks)

	droppedEmissions := reconcileEmissions(raw.emissions, l, book)
	droppedDenominators := selectDenominators(raw.denominators, l, book)
	d.EmissionsData = l.byCompany()

	targets, droppedTargets := selectTargets(raw.targets, book)
	d.Targets = targets
	droppedObservations := collectObservations(raw.observations, runCompany, ref.indicatorNames, book)

	d.EvidenceItems = book.forCompanies(d.Companies)
	d.IndustryData = aggregateIndustries(d.Companies, d.ScoreRuns, d.EmissionsData, ref, scale)

	if n := droppedEmissions + droppedDenominators + droppedTargets + droppedObservations; n > 0 {
		zap.L().Debug("dashboard: skipped unusable rows",
			zap.Int("emissions", droppedEmissions),
			zap.Int("denominators", droppedDenominators),
			zap.Int("targets", droppedTargets),
			zap.Int("observations", droppedObservations),
		)
	}
	return d
}
