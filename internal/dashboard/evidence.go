package dashboard

import (
	"strconv"
	"strings"

	"github.com/sells-group/carbon-dashboard/internal/model"
)

// statusForLevel maps a data level onto an evidence status. Levels outside
// 1..3 have no status.
func statusForLevel(level *int) string {
	if level == nil {
		return ""
	}
	switch *level {
	case 1:
		return model.StatusVerified
	case 2:
		return model.StatusSelfReported
	case 3:
		return model.StatusProxy
	default:
		return ""
	}
}

func pageRef(page *int) *string {
	if page == nil {
		return nil
	}
	ref := "p." + strconv.Itoa(*page)
	return &ref
}

func noteRef(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func yearRef(year *int) *int {
	if year == nil {
		return nil
	}
	y := *year
	return &y
}

// evidenceBook collects evidence per company and category while the fact
// tables are reconciled.
type evidenceBook struct {
	emission    map[string][]model.EvidenceItem
	denominator map[string][]model.EvidenceItem
	target      map[string][]model.EvidenceItem
	mms         map[string][]model.EvidenceItem
}

func newEvidenceBook() *evidenceBook {
	return &evidenceBook{
		emission:    map[string][]model.EvidenceItem{},
		denominator: map[string][]model.EvidenceItem{},
		target:      map[string][]model.EvidenceItem{},
		mms:         map[string][]model.EvidenceItem{},
	}
}

// forCompanies concatenates each company's evidence in category order:
// emissions, denominators, targets, then MMS observations. Every company gets
// a list, possibly empty.
func (b *evidenceBook) forCompanies(companies []model.Company) map[string][]model.EvidenceItem {
	out := make(map[string][]model.EvidenceItem, len(companies))
	for _, c := range companies {
		items := make([]model.EvidenceItem, 0,
			len(b.emission[c.ID])+len(b.denominator[c.ID])+len(b.target[c.ID])+len(b.mms[c.ID]))
		items = append(items, b.emission[c.ID]...)
		items = append(items, b.denominator[c.ID]...)
		items = append(items, b.target[c.ID]...)
		items = append(items, b.mms[c.ID]...)
		out[c.ID] = items
	}
	return out
}

// collectObservations turns MMS observations into evidence. Observations whose
// score run is unknown are dropped.
func collectObservations(rows []observationRow, runCompany map[int64]string, indicatorNames map[int64]string, book *evidenceBook) int {
	dropped := 0
	for _, row := range rows {
		companyID, ok := runCompany[row.ScoreRunID]
		if !ok {
			dropped++
			continue
		}
		indicator := indicatorNames[row.IndicatorID]
		if indicator == "" {
			indicator = "MMS Indicator"
		}
		status := ""
		if row.Status != nil {
			status = strings.TrimSpace(*row.Status)
		}
		if status == "" {
			status = statusForLevel(row.DataLevel)
		}
		var points *float64
		if row.Points != nil && finite(*row.Points) {
			p := *row.Points
			points = &p
		}
		book.mms[companyID] = append(book.mms[companyID], model.EvidenceItem{
			Category:      model.EvidenceMMS,
			Indicator:     indicator,
			EvidencePage:  pageRef(row.Page),
			EvidenceNote:  noteRef(row.Note),
			Status:        status,
			PointsAwarded: points,
		})
	}
	return dropped
}
