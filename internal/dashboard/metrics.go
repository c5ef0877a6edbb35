package dashboard

import (
	"math"

	"github.com/sells-group/carbon-dashboard/internal/model"
)

// DataMix is the share of a company's evidence per status, in whole percent.
// Anything not verified or self-reported counts as proxy.
type DataMix struct {
	Verified     int `json:"verified"`
	SelfReported int `json:"selfReported"`
	Proxy        int `json:"proxy"`
}

// CompanyMetrics are the headline figures derived for one company.
type CompanyMetrics struct {
	// IndustryPercentile is the share of the industry's latest scores strictly
	// below the company's latest score.
	IndustryPercentile *int `json:"industryPercentile"`
	// YoYChange is the latest composite score minus the previous year's.
	YoYChange        *float64 `json:"yoyChange"`
	DataMix          DataMix  `json:"dataMix"`
	EvidenceCoverage int      `json:"evidenceCoverage"`
}

// EvidenceSummary counts a company's evidence items per category.
type EvidenceSummary struct {
	Total      int            `json:"total"`
	WithPage   int            `json:"withPage"`
	ByCategory map[string]int `json:"byCategory"`
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(total) * 100))
}

// IndustryPercentile returns the percentile of score within scores, or nil
// when the industry has no scores.
func IndustryPercentile(score float64, scores []float64) *int {
	if len(scores) == 0 {
		return nil
	}
	below := 0
	for _, s := range scores {
		if s < score {
			below++
		}
	}
	p := percent(below, len(scores))
	return &p
}

// YoYChange returns the difference between the two most recent runs. runs
// must be ordered newest first.
func YoYChange(runs []model.ScoreRun) *float64 {
	if len(runs) < 2 {
		return nil
	}
	d := runs[0].PCRCScore - runs[1].PCRCScore
	return &d
}

// Mix computes the evidence status mix. No evidence yields all zeros.
func Mix(items []model.EvidenceItem) DataMix {
	if len(items) == 0 {
		return DataMix{}
	}
	verified, self := 0, 0
	for _, it := range items {
		switch it.Status {
		case model.StatusVerified:
			verified++
		case model.StatusSelfReported:
			self++
		}
	}
	return DataMix{
		Verified:     percent(verified, len(items)),
		SelfReported: percent(self, len(items)),
		Proxy:        percent(len(items)-verified-self, len(items)),
	}
}

// Coverage is the percentage of evidence items carrying a page reference.
func Coverage(items []model.EvidenceItem) int {
	withPage := 0
	for _, it := range items {
		if it.EvidencePage != nil {
			withPage++
		}
	}
	return percent(withPage, len(items))
}

func summarizeEvidence(items []model.EvidenceItem) *EvidenceSummary {
	s := &EvidenceSummary{
		Total: len(items),
		ByCategory: map[string]int{
			model.EvidenceEmission: 0,
			model.EvidenceTarget:   0,
			model.EvidenceMMS:      0,
		},
	}
	for _, it := range items {
		s.ByCategory[it.Category]++
		if it.EvidencePage != nil {
			s.WithPage++
		}
	}
	return s
}

func computeMetrics(d *model.Dashboard, company model.Company) *CompanyMetrics {
	m := &CompanyMetrics{}
	runs := d.ScoreRuns[company.ID]
	if run, ok := latestRun(runs); ok {
		if industry, ok := d.IndustryData[company.IndustryID]; ok {
			m.IndustryPercentile = IndustryPercentile(run.PCRCScore, industry.Scores)
		}
	}
	m.YoYChange = YoYChange(runs)
	evidence := d.EvidenceItems[company.ID]
	// No evidence gives an all-zero mix, not 100% proxy.
	m.DataMix = Mix(evidence)
	m.EvidenceCoverage = Coverage(evidence)
	return m
}
