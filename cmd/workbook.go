package main

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/carbon-dashboard/internal/dashboard"
)

// Sheet names in the exported workbook.
const (
	sheetCompanies = "Companies"
	sheetEmissions = "Emissions"
	sheetScores    = "Scores"
)

// writeWorkbook flattens a dashboard response into an xlsx workbook with one
// sheet per dataset, rows in company order.
func writeWorkbook(res *dashboard.Result, w io.Writer) error {
	f := xlsx.NewFile()

	companies, err := f.AddSheet(sheetCompanies)
	if err != nil {
		return eris.Wrap(err, "xlsx: add companies sheet")
	}
	emissions, err := f.AddSheet(sheetEmissions)
	if err != nil {
		return eris.Wrap(err, "xlsx: add emissions sheet")
	}
	scores, err := f.AddSheet(sheetScores)
	if err != nil {
		return eris.Wrap(err, "xlsx: add scores sheet")
	}

	addHeader(companies, "id", "name", "country", "industry_id", "industry", "ticker", "market_cap")
	addHeader(emissions, "company_id", "year", "s1_emissions", "s2_emissions", "total_emissions", "denom_value", "denom_type")
	addHeader(scores, "company_id", "eval_year", "pcrc", "ri", "tag", "mms")

	d := res.Data
	for _, c := range d.Companies {
		row := companies.AddRow()
		addStrings(row, c.ID, c.DisplayName(), c.Country, c.IndustryID, c.IndustryName, c.Ticker)
		addOptional(row, c.MarketCap)

		for _, e := range d.EmissionsData[c.ID] {
			row := emissions.AddRow()
			row.AddCell().SetString(c.ID)
			row.AddCell().SetInt(e.Year)
			row.AddCell().SetFloat(e.S1Emissions)
			row.AddCell().SetFloat(e.S2Emissions)
			addOptional(row, e.TotalEmissions)
			row.AddCell().SetFloat(e.DenomValue)
			row.AddCell().SetString(orDash(e.DenomType))
		}

		for _, s := range d.ScoreRuns[c.ID] {
			row := scores.AddRow()
			row.AddCell().SetString(c.ID)
			row.AddCell().SetInt(s.EvalYear)
			row.AddCell().SetFloat(s.PCRCScore)
			row.AddCell().SetFloat(s.RIScore)
			row.AddCell().SetFloat(s.TAGScore)
			row.AddCell().SetFloat(s.MMSScore)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, names ...string) {
	addStrings(sheet.AddRow(), names...)
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addOptional(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v == nil {
		cell.SetString("")
		return
	}
	cell.SetFloat(*v)
}
