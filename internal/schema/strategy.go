package schema

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/carbon-dashboard/internal/db"
)

// Link says how a fact table reaches its company.
type Link string

const (
	// LinkDirect means the table carries company_id itself.
	LinkDirect Link = "direct"
	// LinkSubCompany means the table references sub_company_id, which is
	// joined to sub_company to reach the company.
	LinkSubCompany Link = "sub_company"
)

// Strategy is the resolved query shape for one schema version. Empty column
// names mean the column is absent and the loader uses its fallback.
type Strategy struct {
	EmissionLink    Link
	DenominatorLink Link
	TargetLink      Link

	EmissionUnitColumn string
	ReportDateColumn   string
	FrameworkColumn    string

	CompanyCountry bool
	CompanyTicker  bool
	CompanyI18n    bool
	IndustryI18n   bool
	IndustryAlpha  bool
}

// FromCatalog selects the strategy for a probed catalog. It never fails: a
// missing column selects the fallback variant.
func FromCatalog(c Catalog) Strategy {
	s := Strategy{
		EmissionLink:    linkFor(c, "emission"),
		DenominatorLink: linkFor(c, "denominator"),
		TargetLink:      linkFor(c, "emission_target"),
		CompanyCountry:  c.HasColumn("company", "country"),
		CompanyTicker:   c.HasColumn("company", "ticker"),
		CompanyI18n:     c.HasTable("company_i18n"),
		IndustryI18n:    c.HasTable("industry_i18n"),
		IndustryAlpha:   c.HasTable("scoring_config_alpha"),
	}
	s.EmissionUnitColumn = firstColumn(c, "emission", "unit", "emissions_unit")
	s.ReportDateColumn = firstColumn(c, "report", "submission_date", "publication_date")
	s.FrameworkColumn = firstColumn(c, "report_framework", "framework", "framework_code")
	return s
}

func linkFor(c Catalog, table string) Link {
	if c.HasColumn(table, "company_id") {
		return LinkDirect
	}
	if c.HasColumn(table, "sub_company_id") {
		return LinkSubCompany
	}
	// Neither found (table missing from the catalog view); the direct
	// shape is the current schema.
	return LinkDirect
}

func firstColumn(c Catalog, table string, candidates ...string) string {
	for _, col := range candidates {
		if c.HasColumn(table, col) {
			return col
		}
	}
	return ""
}

// Tags returns the variant tags of the strategy, e.g. "emission:sub_company"
// or "report_date:none", for logs and diagnostics.
func (s Strategy) Tags() []string {
	tags := []string{
		"emission:" + string(s.EmissionLink),
		"denominator:" + string(s.DenominatorLink),
		"target:" + string(s.TargetLink),
		"emission_unit:" + orNone(s.EmissionUnitColumn),
		"report_date:" + orNone(s.ReportDateColumn),
		"framework:" + orNone(s.FrameworkColumn),
	}
	for _, flag := range []struct {
		name string
		on   bool
	}{
		{"company_country", s.CompanyCountry},
		{"company_ticker", s.CompanyTicker},
		{"company_i18n", s.CompanyI18n},
		{"industry_i18n", s.IndustryI18n},
		{"industry_alpha", s.IndustryAlpha},
	} {
		if flag.on {
			tags = append(tags, flag.name)
		}
	}
	return tags
}

func orNone(col string) string {
	if col == "" {
		return "none"
	}
	return col
}

// Resolver probes the schema once per process and caches the strategy. A
// failed probe is not cached, so the next call retries.
type Resolver struct {
	pool db.Pool

	mu       sync.Mutex
	resolved *Strategy
}

// NewResolver creates a Resolver for pool.
func NewResolver(pool db.Pool) *Resolver {
	return &Resolver{pool: pool}
}

// Resolve returns the cached strategy, probing on first use.
func (r *Resolver) Resolve(ctx context.Context) (Strategy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved != nil {
		return *r.resolved, nil
	}

	catalog, err := Probe(ctx, r.pool)
	if err != nil {
		return Strategy{}, err
	}
	s := FromCatalog(catalog)
	r.resolved = &s
	zap.L().Info("schema strategy resolved", zap.Strings("variants", s.Tags()))
	return s, nil
}
