package dashboard

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/carbon-dashboard/internal/model"
)

// Scope selects how much of the dashboard a load returns.
type Scope string

const (
	// ScopeMain returns one resolved company and its industry.
	ScopeMain Scope = "main"
	// ScopeFull returns every company, report history and evidence.
	ScopeFull Scope = "full"
)

// Query errors are caller mistakes; the HTTP layer maps them to 400.
var (
	ErrInvalidScope   = eris.New("dashboard: scope must be main or full")
	ErrInvalidCountry = eris.New("dashboard: country must be KR or JP")
)

// ParseScope parses a scope parameter. Empty means full.
func ParseScope(raw string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ScopeFull:
		return ScopeFull, nil
	case ScopeMain:
		return ScopeMain, nil
	default:
		return "", ErrInvalidScope
	}
}

// Query narrows a dashboard load.
type Query struct {
	Scope     Scope
	Country   string
	CompanyID string
}

// Normalize validates q and folds its country to a supported code.
func (q Query) Normalize() (Query, error) {
	if q.Scope == "" {
		q.Scope = ScopeFull
	}
	if q.Scope != ScopeMain && q.Scope != ScopeFull {
		return q, ErrInvalidScope
	}
	q.CompanyID = strings.TrimSpace(q.CompanyID)
	if strings.TrimSpace(q.Country) != "" {
		code, ok := model.NormalizeCountry(q.Country)
		if !ok {
			return q, ErrInvalidCountry
		}
		q.Country = code
	} else {
		q.Country = ""
	}
	return q, nil
}

// filterCountry keeps companies of country and the per-company entries that
// belong to them. Industry data is kept for the industries still present.
func filterCountry(d *model.Dashboard, country string) {
	if country == "" {
		return
	}
	kept := make([]model.Company, 0, len(d.Companies))
	for _, c := range d.Companies {
		if c.Country == country {
			kept = append(kept, c)
		}
	}
	restrict(d, kept)
}

// resolveCompany picks the requested company when it is present, else the
// first company, which is the highest market cap once sorted.
func resolveCompany(companies []model.Company, requested string) (model.Company, bool) {
	if requested != "" {
		for _, c := range companies {
			if c.ID == requested {
				return c, true
			}
		}
	}
	if len(companies) == 0 {
		return model.Company{}, false
	}
	return companies[0], true
}

// restrict drops every per-company and per-industry entry not belonging to
// companies, and replaces the company list.
func restrict(d *model.Dashboard, companies []model.Company) {
	ids := make(map[string]bool, len(companies))
	industries := make(map[string]bool, len(companies))
	for _, c := range companies {
		ids[c.ID] = true
		industries[c.IndustryID] = true
	}
	d.Companies = companies
	pruneByKey(d.ScoreRuns, ids)
	pruneByKey(d.Reports, ids)
	pruneByKey(d.ReportHistory, ids)
	pruneByKey(d.EmissionsData, ids)
	pruneByKey(d.Targets, ids)
	pruneByKey(d.EvidenceItems, ids)
	pruneByKey(d.IndustryData, industries)
}

func pruneByKey[V any](m map[string]V, keep map[string]bool) {
	for k := range m {
		if !keep[k] {
			delete(m, k)
		}
	}
}
