package dashboard

import (
	"fmt"

	"github.com/sells-group/carbon-dashboard/internal/schema"
)

// Every statement below is read-only. Variant columns are spliced in from the
// resolved Strategy, never from request input.

const industriesSQL = `SELECT industry_id, industry_name FROM industry`

const industryI18nSQL = `
	SELECT industry_id, locale, name
	FROM industry_i18n`

const companyI18nSQL = `
	SELECT company_id, locale, name
	FROM company_i18n`

const scoreRunsSQL = `
	SELECT sr.score_run_id, sr.company_id, sr.eval_year,
	       sr.ri_score, sr.tag_score, sr.mms_score, sr.pcrc_score,
	       sc.ri_max, sc.tag_max, sc.mms_max
	FROM score_run sr
	LEFT JOIN scoring_config sc ON sc.config_id = sr.config_id
	ORDER BY sr.company_id, sr.eval_year DESC`

const alphaSQL = `
	SELECT DISTINCT ON (industry_id) industry_id, alpha
	FROM scoring_config_alpha
	ORDER BY industry_id, config_id DESC`

const indicatorsSQL = `
	SELECT indicator_id, indicator_name
	FROM mms_indicator_def`

const observationsSQL = `
	SELECT score_run_id, indicator_id, status, points_awarded,
	       data_level, evidence_page, evidence_note
	FROM mms_observation`

func companiesSQL(s schema.Strategy) string {
	country := "NULL::text AS country"
	if s.CompanyCountry {
		country = "c.country"
	}
	ticker := "NULL::text AS ticker"
	if s.CompanyTicker {
		ticker = "c.ticker"
	}
	return fmt.Sprintf(`
	SELECT c.company_id, c.company_name, c.industry_id, %s, %s, i.industry_name
	FROM company c
	LEFT JOIN industry i ON i.industry_id = c.industry_id
	ORDER BY c.company_id`, country, ticker)
}

func reportsSQL(s schema.Strategy) string {
	date := "NULL::date AS report_date"
	if s.ReportDateColumn != "" {
		date = s.ReportDateColumn + "::date AS report_date"
	}
	return fmt.Sprintf(`
	SELECT report_id, company_id, report_year, %s, assurance_org
	FROM report`, date)
}

// frameworksSQL returns "" when report_framework has no usable column.
func frameworksSQL(s schema.Strategy) string {
	if s.FrameworkColumn == "" {
		return ""
	}
	return fmt.Sprintf(`
	SELECT report_id, %s AS framework
	FROM report_framework`, s.FrameworkColumn)
}

func emissionsSQL(s schema.Strategy) string {
	if s.EmissionLink == schema.LinkSubCompany {
		unit := "NULL::text AS unit"
		if s.EmissionUnitColumn != "" {
			unit = "e." + s.EmissionUnitColumn + " AS unit"
		}
		return fmt.Sprintf(`
	SELECT sc.company_id, e.emission_year, e.scope, e.emissions_value, %s,
	       e.data_level, e.evidence_page, e.evidence_note
	FROM emission e
	LEFT JOIN sub_company sc ON sc.sub_company_id = e.sub_company_id
	WHERE e.scope IN ('S1', 'S2', 'S1S2', 'TOTAL')`, unit)
	}

	unit := "NULL::text AS unit"
	if s.EmissionUnitColumn != "" {
		unit = s.EmissionUnitColumn + " AS unit"
	}
	return fmt.Sprintf(`
	SELECT company_id, emission_year, scope, emissions_value, %s,
	       data_level, evidence_page, evidence_note
	FROM emission
	WHERE scope IN ('S1', 'S2', 'S1S2', 'TOTAL')`, unit)
}

func denominatorsSQL(s schema.Strategy) string {
	if s.DenominatorLink == schema.LinkSubCompany {
		return `
	SELECT sc.company_id, d.denom_year, d.denom_type, d.denom_value,
	       d.data_level, d.evidence_page, d.evidence_note
	FROM denominator d
	LEFT JOIN sub_company sc ON sc.sub_company_id = d.sub_company_id`
	}
	return `
	SELECT company_id, denom_year, denom_type, denom_value,
	       data_level, evidence_page, evidence_note
	FROM denominator`
}

func targetsSQL(s schema.Strategy) string {
	if s.TargetLink == schema.LinkSubCompany {
		return `
	SELECT sc.company_id, t.scope, t.baseline_year, t.target_year, t.target_reduction_pct,
	       t.evidence_page, t.evidence_note
	FROM emission_target t
	LEFT JOIN sub_company sc ON sc.sub_company_id = t.sub_company_id`
	}
	return `
	SELECT company_id, scope, baseline_year, target_year, target_reduction_pct,
	       evidence_page, evidence_note
	FROM emission_target`
}
