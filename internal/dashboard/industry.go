package dashboard

import (
	"math"

	"github.com/sells-group/carbon-dashboard/internal/model"
)

// latestRun returns the run with the highest evaluation year.
func latestRun(runs []model.ScoreRun) (model.ScoreRun, bool) {
	if len(runs) == 0 {
		return model.ScoreRun{}, false
	}
	best := runs[0]
	for _, r := range runs[1:] {
		if r.EvalYear > best.EvalYear {
			best = r
		}
	}
	return best, true
}

// latestRecord returns the emission record with the highest year.
func latestRecord(records []model.EmissionRecord) (model.EmissionRecord, bool) {
	if len(records) == 0 {
		return model.EmissionRecord{}, false
	}
	best := records[0]
	for _, r := range records[1:] {
		if r.Year > best.Year {
			best = r
		}
	}
	return best, true
}

// aggregateIndustries computes per-industry statistics over companies. Every
// company counts toward its industry. Scores are each company's latest
// composite score. Average intensity only uses companies whose latest
// emission record is revenue-denominated.
func aggregateIndustries(
	companies []model.Company,
	runs map[string][]model.ScoreRun,
	emissions map[string][]model.EmissionRecord,
	ref reference,
	scale float64,
) map[string]model.IndustryData {
	type acc struct {
		data        model.IndustryData
		intensities []float64
	}
	accs := map[string]*acc{}
	var order []string

	for _, c := range companies {
		a, ok := accs[c.IndustryID]
		if !ok {
			a = &acc{data: model.IndustryData{
				Scores: []float64{},
				Alpha:  ref.alphaFor(c.IndustryID),
			}}
			accs[c.IndustryID] = a
			order = append(order, c.IndustryID)
		}
		a.data.CompanyCount++

		if run, ok := latestRun(runs[c.ID]); ok {
			a.data.Scores = append(a.data.Scores, run.PCRCScore)
		}
		if rec, ok := latestRecord(emissions[c.ID]); ok && rec.DenomType == model.DenomRevenue {
			if v, ok := rec.Intensity(scale); ok && finite(v) {
				a.intensities = append(a.intensities, v)
			}
		}
	}

	out := make(map[string]model.IndustryData, len(accs))
	for _, id := range order {
		a := accs[id]
		if len(a.data.Scores) > 0 {
			a.data.AvgPCRC = round1(mean(a.data.Scores))
		}
		if len(a.intensities) > 0 {
			a.data.AvgIntensity = round1(mean(a.intensities))
		}
		out[id] = a.data
	}
	return out
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
