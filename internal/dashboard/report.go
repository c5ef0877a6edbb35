package dashboard

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/carbon-dashboard/internal/model"
)

const dateLayout = "2006-01-02"

// assembleReports returns each company's latest report and its full report
// history, newest first. The latest report is the one with the highest report
// year; the first row seen wins a tie.
func assembleReports(rows []reportRow, frameworks []frameworkRow) (map[string]model.Report, map[string][]model.Report) {
	byReport := map[int64][]string{}
	for _, f := range frameworks {
		if f.Framework == nil {
			continue
		}
		name := strings.TrimSpace(*f.Framework)
		if name == "" {
			continue
		}
		byReport[f.ReportID] = append(byReport[f.ReportID], name)
	}

	latest := map[string]model.Report{}
	history := map[string][]model.Report{}
	for _, row := range rows {
		companyID := strconv.FormatInt(row.CompanyID, 10)
		report := toReport(row, byReport[row.ID])
		history[companyID] = append(history[companyID], report)
		if current, ok := latest[companyID]; !ok || row.Year > current.ReportYear {
			latest[companyID] = report
		}
	}
	for _, reports := range history {
		sort.SliceStable(reports, func(i, j int) bool { return reports[i].ReportYear > reports[j].ReportYear })
	}
	return latest, history
}

func toReport(row reportRow, frameworks []string) model.Report {
	r := model.Report{
		ReportYear: row.Year,
		Frameworks: append([]string{}, frameworks...),
	}
	if row.Date != nil {
		r.PublicationDate = row.Date.Format(dateLayout)
	}
	if row.AssuranceOrg != nil {
		if org := strings.TrimSpace(*row.AssuranceOrg); org != "" {
			r.AssuranceOrg = &org
		}
	}
	return r
}
