package dashboard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/carbon-dashboard/internal/db"
	"github.com/sells-group/carbon-dashboard/internal/schema"
)

type industryRow struct {
	ID   int64
	Name *string
}

type localizedRow struct {
	ID     int64
	Locale *string
	Name   *string
}

type companyRow struct {
	ID           int64
	Name         *string
	IndustryID   *int64
	Country      *string
	Ticker       *string
	IndustryName *string
}

type scoreRunRow struct {
	ID        int64
	CompanyID int64
	EvalYear  int
	RIScore   *float64
	TAGScore  *float64
	MMSScore  *float64
	PCRCScore *float64
	RIMax     *float64
	TAGMax    *float64
	MMSMax    *float64
}

type reportRow struct {
	ID           int64
	CompanyID    int64
	Year         int
	Date         *time.Time
	AssuranceOrg *string
}

type frameworkRow struct {
	ReportID  int64
	Framework *string
}

// evidenceFields are the annotation columns shared by the fact tables.
type evidenceFields struct {
	DataLevel *int
	Page      *int
	Note      *string
}

func (e evidenceFields) present() bool {
	return e.Page != nil || noteRef(e.Note) != nil
}

type emissionRow struct {
	CompanyID *int64
	Year      *int
	Scope     string
	Value     *float64
	Unit      *string
	evidenceFields
}

type denominatorRow struct {
	CompanyID *int64
	Year      *int
	Type      *string
	Value     *float64
	evidenceFields
}

type targetRow struct {
	CompanyID    *int64
	Scope        *string
	BaselineYear *int
	TargetYear   *int
	ReductionPct *float64
	Page         *int
	Note         *string
}

type alphaRow struct {
	IndustryID int64
	Alpha      *float64
}

type indicatorRow struct {
	ID   int64
	Name *string
}

type observationRow struct {
	ScoreRunID  int64
	IndicatorID int64
	Status      *string
	Points      *float64
	evidenceFields
}

// rawData is every row one dashboard load reads, before reconciliation.
type rawData struct {
	industries   []industryRow
	industryI18n []localizedRow
	companies    []companyRow
	companyI18n  []localizedRow
	scoreRuns    []scoreRunRow
	reports      []reportRow
	frameworks   []frameworkRow
	emissions    []emissionRow
	denominators []denominatorRow
	targets      []targetRow
	alphas       []alphaRow
	indicators   []indicatorRow
	observations []observationRow
}

// fetchAll issues every dashboard query concurrently. Any failure cancels the
// rest and fails the load; no partial result is returned.
func fetchAll(ctx context.Context, pool db.Pool, s schema.Strategy) (*rawData, error) {
	var raw rawData
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		raw.industries, err = collect(gctx, pool, "industries", industriesSQL, func(row pgx.CollectableRow) (industryRow, error) {
			var r industryRow
			err := row.Scan(&r.ID, &r.Name)
			return r, err
		})
		return err
	})
	if s.IndustryI18n {
		g.Go(func() (err error) {
			raw.industryI18n, err = collect(gctx, pool, "industry names", industryI18nSQL, scanLocalized)
			return err
		})
	}
	g.Go(func() (err error) {
		raw.companies, err = collect(gctx, pool, "companies", companiesSQL(s), func(row pgx.CollectableRow) (companyRow, error) {
			var r companyRow
			err := row.Scan(&r.ID, &r.Name, &r.IndustryID, &r.Country, &r.Ticker, &r.IndustryName)
			return r, err
		})
		return err
	})
	if s.CompanyI18n {
		g.Go(func() (err error) {
			raw.companyI18n, err = collect(gctx, pool, "company names", companyI18nSQL, scanLocalized)
			return err
		})
	}
	g.Go(func() (err error) {
		raw.scoreRuns, err = collect(gctx, pool, "score runs", scoreRunsSQL, func(row pgx.CollectableRow) (scoreRunRow, error) {
			var r scoreRunRow
			err := row.Scan(&r.ID, &r.CompanyID, &r.EvalYear,
				&r.RIScore, &r.TAGScore, &r.MMSScore, &r.PCRCScore,
				&r.RIMax, &r.TAGMax, &r.MMSMax)
			return r, err
		})
		return err
	})
	g.Go(func() (err error) {
		raw.reports, err = collect(gctx, pool, "reports", reportsSQL(s), func(row pgx.CollectableRow) (reportRow, error) {
			var r reportRow
			err := row.Scan(&r.ID, &r.CompanyID, &r.Year, &r.Date, &r.AssuranceOrg)
			return r, err
		})
		return err
	})
	if sql := frameworksSQL(s); sql != "" {
		g.Go(func() (err error) {
			raw.frameworks, err = collect(gctx, pool, "frameworks", sql, func(row pgx.CollectableRow) (frameworkRow, error) {
				var r frameworkRow
				err := row.Scan(&r.ReportID, &r.Framework)
				return r, err
			})
			return err
		})
	}
	g.Go(func() (err error) {
		raw.emissions, err = collect(gctx, pool, "emissions", emissionsSQL(s), func(row pgx.CollectableRow) (emissionRow, error) {
			var r emissionRow
			err := row.Scan(&r.CompanyID, &r.Year, &r.Scope, &r.Value, &r.Unit,
				&r.DataLevel, &r.Page, &r.Note)
			return r, err
		})
		return err
	})
	g.Go(func() (err error) {
		raw.denominators, err = collect(gctx, pool, "denominators", denominatorsSQL(s), func(row pgx.CollectableRow) (denominatorRow, error) {
			var r denominatorRow
			err := row.Scan(&r.CompanyID, &r.Year, &r.Type, &r.Value,
				&r.DataLevel, &r.Page, &r.Note)
			return r, err
		})
		return err
	})
	g.Go(func() (err error) {
		raw.targets, err = collect(gctx, pool, "targets", targetsSQL(s), func(row pgx.CollectableRow) (targetRow, error) {
			var r targetRow
			err := row.Scan(&r.CompanyID, &r.Scope, &r.BaselineYear, &r.TargetYear, &r.ReductionPct,
				&r.Page, &r.Note)
			return r, err
		})
		return err
	})
	if s.IndustryAlpha {
		g.Go(func() (err error) {
			raw.alphas, err = collect(gctx, pool, "industry alpha", alphaSQL, func(row pgx.CollectableRow) (alphaRow, error) {
				var r alphaRow
				err := row.Scan(&r.IndustryID, &r.Alpha)
				return r, err
			})
			return err
		})
	}
	g.Go(func() (err error) {
		raw.indicators, err = collect(gctx, pool, "mms indicators", indicatorsSQL, func(row pgx.CollectableRow) (indicatorRow, error) {
			var r indicatorRow
			err := row.Scan(&r.ID, &r.Name)
			return r, err
		})
		return err
	})
	g.Go(func() (err error) {
		raw.observations, err = collect(gctx, pool, "mms observations", observationsSQL, func(row pgx.CollectableRow) (observationRow, error) {
			var r observationRow
			err := row.Scan(&r.ScoreRunID, &r.IndicatorID, &r.Status, &r.Points,
				&r.DataLevel, &r.Page, &r.Note)
			return r, err
		})
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &raw, nil
}

func scanLocalized(row pgx.CollectableRow) (localizedRow, error) {
	var r localizedRow
	err := row.Scan(&r.ID, &r.Locale, &r.Name)
	return r, err
}

func collect[T any](ctx context.Context, pool db.Pool, what, sql string, scan pgx.RowToFunc[T]) ([]T, error) {
	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "dashboard: query %s", what)
	}
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, eris.Wrapf(err, "dashboard: scan %s", what)
	}
	return out, nil
}
