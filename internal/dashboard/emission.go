package dashboard

import (
	"sort"
	"strconv"

	"github.com/sells-group/carbon-dashboard/internal/model"
)

// Emission scopes as stored in emission.scope.
const (
	scopeS1    = "S1"
	scopeS2    = "S2"
	scopeS1S2  = "S1S2"
	scopeTotal = "TOTAL"
)

type yearKey struct {
	companyID string
	year      int
}

// ledger holds at most one EmissionRecord per (company, year). Emissions and
// denominators both write through it.
type ledger struct {
	records map[yearKey]*model.EmissionRecord
}

func newLedger() *ledger {
	return &ledger{records: map[yearKey]*model.EmissionRecord{}}
}

// get returns the record for key, creating an empty revenue-typed one.
func (l *ledger) get(key yearKey) *model.EmissionRecord {
	rec, ok := l.records[key]
	if !ok {
		rec = &model.EmissionRecord{Year: key.year, DenomType: model.DenomRevenue}
		l.records[key] = rec
	}
	return rec
}

// byCompany returns each company's records, newest year first.
func (l *ledger) byCompany() map[string][]model.EmissionRecord {
	out := map[string][]model.EmissionRecord{}
	for key, rec := range l.records {
		out[key.companyID] = append(out[key.companyID], *rec)
	}
	for _, recs := range out {
		sort.Slice(recs, func(i, j int) bool { return recs[i].Year > recs[j].Year })
	}
	return out
}

// scopeSums accumulates normalized values per scope for one (company, year).
type scopeSums struct {
	s1, s2, s1s2, total float64
	hasTotal            bool
}

// ScopeTriple is a reconciled scope-1/scope-2/total triple in tCO2e.
type ScopeTriple struct {
	S1    float64
	S2    float64
	Total *float64
}

// Reconcile derives a consistent triple from aggregated scope sums. A scope
// counts as known when its sum is positive. A combined S1+2 figure fills the
// unknown side: all of it goes to scope 1 when neither is known, and the
// remainder (never below zero) goes to the missing scope when one is known.
// Total is the reported TOTAL when present, else the combined figure.
func Reconcile(s1, s2, s1s2 float64, total *float64) ScopeTriple {
	out := ScopeTriple{S1: s1, S2: s2}
	if s1s2 > 0 {
		switch {
		case s1 <= 0 && s2 <= 0:
			out.S1 = s1s2
			out.S2 = 0
		case s1 > 0 && s2 <= 0:
			out.S2 = max(0, s1s2-s1)
		case s2 > 0 && s1 <= 0:
			out.S1 = max(0, s1s2-s2)
		}
	}
	switch {
	case total != nil:
		t := *total
		out.Total = &t
	case s1s2 > 0:
		t := s1s2
		out.Total = &t
	}
	return out
}

// reconcileEmissions normalizes units, sums rows per (company, year, scope)
// and writes the reconciled triple into the ledger. Rows without a company,
// year or finite value are skipped; their evidence is still kept.
func reconcileEmissions(rows []emissionRow, l *ledger, book *evidenceBook) int {
	sums := map[yearKey]*scopeSums{}
	dropped := 0

	for _, row := range rows {
		if row.CompanyID == nil {
			dropped++
			continue
		}
		companyID := strconv.FormatInt(*row.CompanyID, 10)

		if row.evidenceFields.present() {
			book.emission[companyID] = append(book.emission[companyID], model.EvidenceItem{
				Category:     model.EvidenceEmission,
				Indicator:    scopeLabel(row.Scope),
				Year:         yearRef(row.Year),
				EvidencePage: pageRef(row.Page),
				EvidenceNote: noteRef(row.Note),
				Status:       statusForLevel(row.DataLevel),
			})
		}

		if row.Year == nil || row.Value == nil || !finite(*row.Value) {
			dropped++
			continue
		}
		unit := ""
		if row.Unit != nil {
			unit = *row.Unit
		}
		value := NormalizeEmission(*row.Value, unit)
		if !finite(value) {
			dropped++
			continue
		}

		switch row.Scope {
		case scopeS1, scopeS2, scopeS1S2, scopeTotal:
		default:
			dropped++
			continue
		}

		key := yearKey{companyID: companyID, year: *row.Year}
		acc, ok := sums[key]
		if !ok {
			acc = &scopeSums{}
			sums[key] = acc
		}
		switch row.Scope {
		case scopeS1:
			acc.s1 += value
		case scopeS2:
			acc.s2 += value
		case scopeS1S2:
			acc.s1s2 += value
		case scopeTotal:
			acc.total += value
			acc.hasTotal = true
		}
	}

	for key, acc := range sums {
		var total *float64
		if acc.hasTotal {
			total = &acc.total
		}
		triple := Reconcile(acc.s1, acc.s2, acc.s1s2, total)
		rec := l.get(key)
		rec.S1Emissions = triple.S1
		rec.S2Emissions = triple.S2
		rec.TotalEmissions = triple.Total
	}
	return dropped
}

func scopeLabel(scope string) string {
	switch scope {
	case scopeS1:
		return "Scope 1"
	case scopeS2:
		return "Scope 2"
	case scopeS1S2:
		return "Scope 1+2"
	case scopeTotal:
		return "Total"
	default:
		return scope
	}
}
