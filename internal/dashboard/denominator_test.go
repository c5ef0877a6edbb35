package dashboard

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/carbon-dashboard/internal/model"
)

func denominator(company int64, year int, typ string, value float64, level *int) denominatorRow {
	r := denominatorRow{
		CompanyID: ptr(company),
		Year:      ptr(year),
		Value:     ptr(value),
	}
	if typ != "" {
		r.Type = ptr(typ)
	}
	r.DataLevel = level
	return r
}

func TestDenominatorPriority(t *testing.T) {
	assert.Less(t, DenominatorPriority(model.DenomRevenue), DenominatorPriority(model.DenomProduction))
	assert.Less(t, DenominatorPriority(model.DenomProduction), DenominatorPriority(model.DenomOther))
	assert.Less(t, DenominatorPriority(model.DenomOther), DenominatorPriority("employees"))
}

func TestDenominatorCandidate_Beats(t *testing.T) {
	revenue2 := DenominatorCandidate{Value: 1, Type: model.DenomRevenue, DataLevel: ptr(2)}
	production1 := DenominatorCandidate{Value: 1, Type: model.DenomProduction, DataLevel: ptr(1)}
	revenue1 := DenominatorCandidate{Value: 1, Type: model.DenomRevenue, DataLevel: ptr(1)}
	revenueNil := DenominatorCandidate{Value: 1, Type: model.DenomRevenue}

	assert.True(t, revenue2.Beats(production1), "type priority dominates data level")
	assert.False(t, production1.Beats(revenue2))
	assert.True(t, revenue1.Beats(revenue2))
	assert.False(t, revenue2.Beats(revenue1))
	assert.True(t, revenue2.Beats(revenueNil), "missing level loses")
	assert.False(t, revenueNil.Beats(revenue2))
	assert.False(t, revenue1.Beats(revenue1), "equal keeps current")
}

func TestDenominatorCandidate_Eligible(t *testing.T) {
	assert.True(t, DenominatorCandidate{Value: 0.01}.Eligible())
	assert.False(t, DenominatorCandidate{Value: 0}.Eligible())
	assert.False(t, DenominatorCandidate{Value: -5}.Eligible())
	assert.False(t, DenominatorCandidate{Value: math.NaN()}.Eligible())
	assert.False(t, DenominatorCandidate{Value: math.Inf(1)}.Eligible())
}

func TestSelectDenominators_TypePriorityBeatsConfidence(t *testing.T) {
	l := newLedger()
	rows := []denominatorRow{
		denominator(1, 2024, "production", 900, ptr(1)),
		denominator(1, 2024, "revenue", 500, ptr(2)),
	}
	selectDenominators(rows, l, newEvidenceBook())

	recs := l.byCompany()["1"]
	require.Len(t, recs, 1)
	assert.Equal(t, 500.0, recs[0].DenomValue)
	assert.Equal(t, model.DenomRevenue, recs[0].DenomType)
}

func TestSelectDenominators_LowerLevelWins(t *testing.T) {
	l := newLedger()
	rows := []denominatorRow{
		denominator(1, 2024, "revenue", 300, ptr(3)),
		denominator(1, 2024, "revenue", 100, ptr(1)),
		denominator(1, 2024, "revenue", 200, ptr(2)),
	}
	selectDenominators(rows, l, newEvidenceBook())

	recs := l.byCompany()["1"]
	require.Len(t, recs, 1)
	assert.Equal(t, 100.0, recs[0].DenomValue)
}

func TestSelectDenominators_FirstSeenWinsTie(t *testing.T) {
	l := newLedger()
	rows := []denominatorRow{
		denominator(1, 2024, "revenue", 111, ptr(1)),
		denominator(1, 2024, "revenue", 222, ptr(1)),
	}
	selectDenominators(rows, l, newEvidenceBook())
	assert.Equal(t, 111.0, l.byCompany()["1"][0].DenomValue)
}

func TestSelectDenominators_IneligibleSkipped(t *testing.T) {
	l := newLedger()
	rows := []denominatorRow{
		denominator(1, 2024, "revenue", 0, ptr(1)),
		denominator(1, 2024, "revenue", -10, ptr(1)),
		denominator(1, 2024, "production", 40, ptr(3)),
	}
	dropped := selectDenominators(rows, l, newEvidenceBook())
	assert.Equal(t, 2, dropped)

	rec := l.byCompany()["1"][0]
	assert.Equal(t, 40.0, rec.DenomValue)
	assert.Equal(t, model.DenomProduction, rec.DenomType)
}

func TestSelectDenominators_NullTypeDefaultsToRevenue(t *testing.T) {
	l := newLedger()
	selectDenominators([]denominatorRow{denominator(1, 2024, "", 10, nil)}, l, newEvidenceBook())
	assert.Equal(t, model.DenomRevenue, l.byCompany()["1"][0].DenomType)
}

func TestSelectDenominators_MergesIntoEmissionRecord(t *testing.T) {
	l := newLedger()
	book := newEvidenceBook()
	reconcileEmissions([]emissionRow{emission(1, 2024, scopeS1, 50, "t")}, l, book)
	selectDenominators([]denominatorRow{
		denominator(1, 2024, "Revenue", 25, nil),
		denominator(1, 2022, "production", 10, nil),
	}, l, book)

	recs := l.byCompany()["1"]
	require.Len(t, recs, 2)
	assert.Equal(t, 2024, recs[0].Year)
	assert.Equal(t, 50.0, recs[0].S1Emissions)
	assert.Equal(t, 25.0, recs[0].DenomValue)
	assert.Equal(t, model.DenomRevenue, recs[0].DenomType)

	assert.Equal(t, 2022, recs[1].Year)
	assert.Equal(t, 0.0, recs[1].S1Emissions)
	assert.Equal(t, model.DenomProduction, recs[1].DenomType)
}

func TestSelectDenominators_Evidence(t *testing.T) {
	book := newEvidenceBook()
	row := denominator(3, 2024, "production", 0, ptr(3))
	row.Page = ptr(88)
	selectDenominators([]denominatorRow{row}, newLedger(), book)

	items := book.denominator["3"]
	require.Len(t, items, 1)
	assert.Equal(t, "Denominator (production)", items[0].Indicator)
	assert.Equal(t, model.EvidenceEmission, items[0].Category)
	assert.Equal(t, model.StatusProxy, items[0].Status)
	assert.Equal(t, "p.88", *items[0].EvidencePage)
}
