package dashboard

import (
	"strconv"
	"strings"

	"github.com/sells-group/carbon-dashboard/internal/model"
)

// DenominatorPriority ranks a denominator type; lower wins. Unrecognized types
// rank after every known type.
func DenominatorPriority(denomType string) int {
	switch denomType {
	case model.DenomRevenue:
		return 0
	case model.DenomProduction:
		return 1
	case model.DenomOther:
		return 2
	default:
		return 3
	}
}

// DenominatorCandidate is one disclosed denominator for a (company, year).
type DenominatorCandidate struct {
	Value     float64
	Type      string
	DataLevel *int
}

// Eligible reports whether the candidate can be selected at all.
func (c DenominatorCandidate) Eligible() bool {
	return finite(c.Value) && c.Value > 0
}

// Beats reports whether c should replace current. Type priority dominates;
// within a priority the lower data level wins, and a missing level loses to
// any level. Equal candidates keep current, so the first seen wins.
func (c DenominatorCandidate) Beats(current DenominatorCandidate) bool {
	cp, op := DenominatorPriority(c.Type), DenominatorPriority(current.Type)
	if cp != op {
		return cp < op
	}
	switch {
	case c.DataLevel == nil:
		return false
	case current.DataLevel == nil:
		return true
	default:
		return *c.DataLevel < *current.DataLevel
	}
}

func normalizeDenomType(raw *string) string {
	if raw == nil {
		return model.DenomRevenue
	}
	t := strings.ToLower(strings.TrimSpace(*raw))
	if t == "" {
		return model.DenomRevenue
	}
	return t
}

// selectDenominators picks one denominator per (company, year) and merges it
// into the ledger, creating records for years with no emissions.
func selectDenominators(rows []denominatorRow, l *ledger, book *evidenceBook) int {
	chosen := map[yearKey]DenominatorCandidate{}
	var order []yearKey
	dropped := 0

	for _, row := range rows {
		if row.CompanyID == nil {
			dropped++
			continue
		}
		companyID := strconv.FormatInt(*row.CompanyID, 10)
		denomType := normalizeDenomType(row.Type)

		if row.evidenceFields.present() {
			book.denominator[companyID] = append(book.denominator[companyID], model.EvidenceItem{
				Category:     model.EvidenceEmission,
				Indicator:    "Denominator (" + denomType + ")",
				Year:         yearRef(row.Year),
				EvidencePage: pageRef(row.Page),
				EvidenceNote: noteRef(row.Note),
				Status:       statusForLevel(row.DataLevel),
			})
		}

		if row.Year == nil || row.Value == nil {
			dropped++
			continue
		}
		cand := DenominatorCandidate{Value: *row.Value, Type: denomType, DataLevel: row.DataLevel}
		if !cand.Eligible() {
			dropped++
			continue
		}

		key := yearKey{companyID: companyID, year: *row.Year}
		current, ok := chosen[key]
		if !ok {
			order = append(order, key)
			chosen[key] = cand
			continue
		}
		if cand.Beats(current) {
			chosen[key] = cand
		}
	}

	for _, key := range order {
		cand := chosen[key]
		rec := l.get(key)
		rec.DenomValue = cand.Value
		rec.DenomType = cand.Type
	}
	return dropped
}
