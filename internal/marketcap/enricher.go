package marketcap

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sells-group/carbon-dashboard/internal/config"
	"github.com/sells-group/carbon-dashboard/internal/model"
)

// Observer receives one call per enrichment pass.
type Observer interface {
	ObserveEnrichment(status string, cacheHit bool, elapsed time.Duration)
}

// Enricher attaches market caps to companies. It never fails: every problem
// is reported through Diagnostics and the companies are returned unchanged.
type Enricher struct {
	cfg      config.MarketCapConfig
	fetcher  Fetcher
	fs       afero.Fs
	now      func() time.Time
	observer Observer

	refs      *fileCache[ReferenceLookup]
	overrides *fileCache[Overrides]
	cache     *Cache

	mu     sync.Mutex
	latest Diagnostics
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithFs sets the filesystem the reference files are read from.
func WithFs(fs afero.Fs) Option {
	return func(e *Enricher) { e.fs = fs }
}

// WithClock sets the clock used for cache expiry and the cooldown.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) { e.now = now }
}

// WithObserver sets the pass observer.
func WithObserver(o Observer) Option {
	return func(e *Enricher) { e.observer = o }
}

// NewEnricher creates an Enricher that resolves values with fetcher.
func NewEnricher(cfg config.MarketCapConfig, fetcher Fetcher, opts ...Option) *Enricher {
	e := &Enricher{
		cfg:     cfg,
		fetcher: fetcher,
		fs:      afero.NewOsFs(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.refs = newFileCache(e.fs, parseReference, emptyReference)
	e.overrides = newFileCache(e.fs, parseOverrides, emptyOverrides)
	e.cache = NewCache(
		time.Duration(cfg.CacheTTLMs)*time.Millisecond,
		time.Duration(cfg.ErrorCooldownMs)*time.Millisecond,
		e.now,
	)
	e.latest = e.base(StatusSkipped, ReasonNotRunYet)
	e.latest.GeneratedAt = time.Time{}
	return e
}

// Diagnostics returns the diagnostics of the latest pass.
func (e *Enricher) Diagnostics() Diagnostics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// Enrich returns companies with market caps attached where one was found. A
// company that gets a value but has no ticker also gets the resolved symbol.
func (e *Enricher) Enrich(ctx context.Context, companies []model.Company) ([]model.Company, Diagnostics) {
	start := e.now()
	out, diag := e.enrich(ctx, companies)

	e.mu.Lock()
	e.latest = diag
	e.mu.Unlock()
	if e.observer != nil {
		e.observer.ObserveEnrichment(string(diag.Status), diag.CacheHit, e.now().Sub(start))
	}
	return out, diag
}

func (e *Enricher) base(status Status, reason string) Diagnostics {
	d := Diagnostics{
		Source:        Source,
		Status:        status,
		Reason:        reason,
		WorkerCommand: e.cfg.WorkerCommand,
		WorkerScript:  e.cfg.WorkerScript,
		GeneratedAt:   e.now().UTC(),
	}
	if w, ok := e.fetcher.(*Worker); ok {
		d.WorkerCommand = w.Command
		d.WorkerScript = ""
		if len(w.Args) > 0 {
			d.WorkerScript = w.Args[0]
		}
	}
	return d
}

func (e *Enricher) enrich(ctx context.Context, companies []model.Company) ([]model.Company, Diagnostics) {
	if len(companies) == 0 {
		return companies, e.base(StatusSkipped, ReasonNoCompanies)
	}
	if !e.cfg.Enabled || e.fetcher == nil {
		return companies, e.base(StatusSkipped, ReasonDisabled)
	}
	if reason, cooling := e.cache.CoolingDown(); cooling {
		return companies, e.base(StatusSkipped, reasonCooldownPrefix+reason)
	}

	refs := e.refs.load(e.cfg.CompanyCodeCSV)
	overrides := e.overrides.load(e.cfg.OverrideCSV)
	key := CacheKey(companies, refs, overrides, e.cfg.LookupLimit)

	if hit, ok := e.cache.lookup(key); ok {
		diag := hit.diag
		diag.CacheHit = true
		diag.GeneratedAt = e.now().UTC()
		zap.L().Debug("marketcap: cache hit", zap.Int("companies_with_market_cap", diag.CompaniesWithMarketCap))
		return apply(companies, hit.marketCaps, hit.symbols), diag
	}

	result, err := e.lookup(ctx, companies, refs, overrides)
	if err != nil && ctx.Err() != nil {
		// The caller went away; the provider is not at fault.
		diag := result.diag
		diag.Status = StatusSkipped
		diag.Reason = ReasonCallerCancelled
		zap.L().Debug("marketcap: enrichment abandoned", zap.Error(ctx.Err()))
		return companies, diag
	}
	if err != nil {
		reason, missing := failureReason(err)
		diag := result.diag
		diag.Status = StatusError
		diag.Reason = reason
		diag.MissingProvider = missing
		e.cache.fail(reason)
		zap.L().Warn("marketcap: enrichment failed", zap.String("reason", reason), zap.Error(err))
		return companies, diag
	}

	e.cache.store(key, result)
	return apply(companies, result.marketCaps, result.symbols), result.diag
}

// lookup resolves symbols for the scoped companies and calls the fetcher: once
// for primary symbols, then once more for Korean companies still missing a
// value, using the other exchange's suffix.
func (e *Enricher) lookup(ctx context.Context, companies []model.Company, refs ReferenceLookup, overrides Overrides) (lookupResult, error) {
	candidates := scoped(companies, e.cfg.LookupLimit)
	res := lookupResult{
		marketCaps: map[string]float64{},
		symbols:    map[string]string{},
		diag:       e.base(StatusOK, ""),
	}
	diag := &res.diag
	diag.LookedUpCompanies = len(candidates)
	diag.CSVRows = refs.Rows
	diag.CSVMissingCodeRows = refs.MissingCode
	diag.CSVInvalidCodeRows = refs.InvalidCode

	country := map[string]string{}
	var order []string
	for _, c := range candidates {
		if v, ok := overrides.ByCompanyID[c.ID]; ok {
			res.marketCaps[c.ID] = v
			diag.OverrideCompanies++
			continue
		}
		ref, hasRef := refs.ByCompanyID[c.ID]
		cc := ""
		if hasRef {
			cc = ref.Country
		}
		if cc == "" {
			cc, _ = model.NormalizeCountry(c.Country)
		}
		if cc == "" {
			continue
		}
		country[c.ID] = cc
		diag.EligibleCompanies++

		for _, candidate := range []string{ref.Code, NormalizeTicker(c.Ticker)} {
			if symbol := InferSymbol(candidate, cc); symbol != "" {
				res.symbols[c.ID] = symbol
				order = append(order, c.ID)
				break
			}
		}
	}

	primary, duplicates := uniqueSymbols(order, res.symbols)
	diag.DuplicateResolvedSymbols = duplicates
	diag.SymbolsRequested = len(primary)
	if len(primary) == 0 {
		if diag.OverrideCompanies == 0 {
			diag.Status = StatusSkipped
			diag.Reason = ReasonNoEligibleSymbols
		}
		diag.CompaniesWithMarketCap = len(res.marketCaps)
		return res, nil
	}

	values, err := e.fetcher.Fetch(ctx, primary)
	if err != nil {
		return res, err
	}
	diag.SymbolsResolved = len(values)
	for _, id := range order {
		if v, ok := values[res.symbols[id]]; ok {
			res.marketCaps[id] = v
		}
	}

	fallback := map[string]string{}
	var fallbackOrder []string
	for _, id := range order {
		if _, done := res.marketCaps[id]; done || country[id] != model.CountryKR {
			continue
		}
		if alt := AlternateSymbol(res.symbols[id]); alt != "" {
			fallback[id] = alt
			fallbackOrder = append(fallbackOrder, id)
		}
	}
	if alts, _ := uniqueSymbols(fallbackOrder, fallback); len(alts) > 0 {
		diag.SymbolsRequested += len(alts)
		values, err := e.fetcher.Fetch(ctx, alts)
		if err != nil {
			return res, err
		}
		diag.SymbolsResolved += len(values)
		for _, id := range fallbackOrder {
			if v, ok := values[fallback[id]]; ok {
				res.marketCaps[id] = v
				res.symbols[id] = fallback[id]
			}
		}
	}

	diag.CompaniesWithMarketCap = len(res.marketCaps)
	return res, nil
}

// uniqueSymbols lists the distinct symbols of ids in order and counts the
// symbols shared by more than one company.
func uniqueSymbols(ids []string, symbols map[string]string) ([]string, int) {
	uses := map[string]int{}
	var out []string
	for _, id := range ids {
		s := symbols[id]
		if uses[s] == 0 {
			out = append(out, s)
		}
		uses[s]++
	}
	duplicates := 0
	for _, n := range uses {
		if n > 1 {
			duplicates++
		}
	}
	return out, duplicates
}

func apply(companies []model.Company, caps map[string]float64, symbols map[string]string) []model.Company {
	out := make([]model.Company, len(companies))
	copy(out, companies)
	for i := range out {
		v, ok := caps[out[i].ID]
		if !ok {
			continue
		}
		out[i].MarketCap = &v
		if out[i].Ticker == "" {
			out[i].Ticker = symbols[out[i].ID]
		}
	}
	return out
}
