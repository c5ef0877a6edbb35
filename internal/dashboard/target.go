package dashboard

import (
	"strconv"
	"strings"

	"github.com/sells-group/carbon-dashboard/internal/model"
)

// selectTargets keeps, per company, the target with the furthest target year.
// On equal target years the first row seen is kept. A missing baseline year
// defaults to the target year.
func selectTargets(rows []targetRow, book *evidenceBook) (map[string]model.Target, int) {
	targets := map[string]model.Target{}
	dropped := 0

	for _, row := range rows {
		if row.CompanyID == nil {
			dropped++
			continue
		}
		companyID := strconv.FormatInt(*row.CompanyID, 10)
		scope := ""
		if row.Scope != nil {
			scope = strings.TrimSpace(*row.Scope)
		}

		if row.Page != nil || noteRef(row.Note) != nil {
			status := model.StatusPending
			if row.Page != nil {
				status = model.StatusVerified
			}
			book.target[companyID] = append(book.target[companyID], model.EvidenceItem{
				Category:     model.EvidenceTarget,
				Indicator:    strings.TrimSpace(scope + " target"),
				Year:         yearRef(row.TargetYear),
				EvidencePage: pageRef(row.Page),
				EvidenceNote: noteRef(row.Note),
				Status:       status,
			})
		}

		if row.TargetYear == nil {
			dropped++
			continue
		}
		targetYear := *row.TargetYear
		if current, ok := targets[companyID]; ok && targetYear <= current.TargetYear {
			continue
		}

		baseYear := targetYear
		if row.BaselineYear != nil {
			baseYear = *row.BaselineYear
		}
		pct := 0.0
		if row.ReductionPct != nil && finite(*row.ReductionPct) {
			pct = *row.ReductionPct
		}
		targets[companyID] = model.Target{
			Scope:              scope,
			TargetReductionPct: pct,
			BaseYear:           baseYear,
			TargetYear:         targetYear,
		}
	}
	return targets, dropped
}
