package dashboard

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/carbon-dashboard/internal/config"
	"github.com/sells-group/carbon-dashboard/internal/marketcap"
	"github.com/sells-group/carbon-dashboard/internal/model"
	"github.com/sells-group/carbon-dashboard/internal/schema"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("KST", 9*60*60))

type fakeEnricher struct {
	caps  map[string]float64
	calls int
}

func (f *fakeEnricher) Enrich(_ context.Context, companies []model.Company) ([]model.Company, marketcap.Diagnostics) {
	f.calls++
	out := make([]model.Company, len(companies))
	copy(out, companies)
	n := 0
	for i := range out {
		if v, ok := f.caps[out[i].ID]; ok {
			out[i].MarketCap = ptr(v)
			n++
		}
	}
	return out, marketcap.Diagnostics{Source: "test", Status: marketcap.StatusOK, CompaniesWithMarketCap: n}
}

type loadObservation struct {
	scope string
	err   error
}

type fakeObserver struct {
	mu   sync.Mutex
	seen []loadObservation
}

func (o *fakeObserver) ObserveLoad(scope string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, loadObservation{scope: scope, err: err})
}

func sqlPattern(fragment string) string {
	return regexp.QuoteMeta(fragment)
}

func expectProbe(mock pgxmock.PgxPoolIface) {
	rows := pgxmock.NewRows([]string{"table_name", "column_name"})
	for _, pair := range [][2]string{
		{"company", "country"},
		{"company", "ticker"},
		{"company_i18n", "locale"},
		{"industry_i18n", "locale"},
		{"emission", "company_id"},
		{"emission", "unit"},
		{"denominator", "company_id"},
		{"emission_target", "company_id"},
		{"report", "publication_date"},
		{"report_framework", "framework"},
		{"scoring_config_alpha", "alpha"},
	} {
		rows.AddRow(pair[0], pair[1])
	}
	mock.ExpectQuery(sqlPattern("FROM information_schema.columns")).
		WithArgs(schema.ProbedTables).
		WillReturnRows(rows)
}

// expectDashboard registers every dashboard query. emissionsErr, when set,
// fails the emissions query.
func expectDashboard(mock pgxmock.PgxPoolIface, emissionsErr error) {
	mock.ExpectQuery(sqlPattern("SELECT industry_id, industry_name FROM industry")).
		WillReturnRows(pgxmock.NewRows([]string{"industry_id", "industry_name"}).
			AddRow(int64(10), ptr("Steel")).
			AddRow(int64(20), ptr("Automobiles")))

	mock.ExpectQuery(sqlPattern("FROM industry_i18n")).
		WillReturnRows(pgxmock.NewRows([]string{"industry_id", "locale", "name"}).
			AddRow(int64(10), ptr("en"), ptr("Steel")).
			AddRow(int64(10), ptr("ja"), ptr("鉄鋼")))

	mock.ExpectQuery(sqlPattern("FROM company c")).
		WillReturnRows(pgxmock.NewRows([]string{"company_id", "company_name", "industry_id", "country", "ticker", "industry_name"}).
			AddRow(int64(1), ptr("POSCO"), ptr(int64(10)), ptr("KR"), ptr("005490"), ptr("Steel")).
			AddRow(int64(2), ptr("Hyundai Steel"), ptr(int64(10)), ptr("KR"), ptr("004020"), ptr("Steel")).
			AddRow(int64(3), ptr("Toyota"), ptr(int64(20)), ptr("JP"), ptr("7203"), ptr("Automobiles")))

	mock.ExpectQuery(sqlPattern("FROM company_i18n")).
		WillReturnRows(pgxmock.NewRows([]string{"company_id", "locale", "name"}).
			AddRow(int64(1), ptr("ko"), ptr("포스코")))

	mock.ExpectQuery(sqlPattern("FROM score_run sr")).
		WillReturnRows(pgxmock.NewRows([]string{
			"score_run_id", "company_id", "eval_year",
			"ri_score", "tag_score", "mms_score", "pcrc_score",
			"ri_max", "tag_max", "mms_max",
		}).
			AddRow(int64(100), int64(1), 2024, ptr(25.0), ptr(20.0), ptr(15.0), ptr(60.0), nil, nil, nil).
			AddRow(int64(101), int64(1), 2023, ptr(22.0), ptr(18.0), ptr(15.0), ptr(55.0), nil, nil, nil).
			AddRow(int64(200), int64(2), 2024, ptr(30.0), ptr(25.0), ptr(25.0), ptr(80.0), ptr(40.0), ptr(30.0), ptr(30.0)).
			AddRow(int64(300), int64(3), 2024, nil, nil, nil, ptr(50.0), nil, nil, nil))

	mock.ExpectQuery(sqlPattern("assurance_org")).
		WillReturnRows(pgxmock.NewRows([]string{"report_id", "company_id", "report_year", "report_date", "assurance_org"}).
			AddRow(int64(1000), int64(1), 2024, ptr(time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)), ptr("KPMG")).
			AddRow(int64(1001), int64(1), 2023, nil, nil))

	mock.ExpectQuery(sqlPattern("FROM report_framework")).
		WillReturnRows(pgxmock.NewRows([]string{"report_id", "framework"}).
			AddRow(int64(1000), ptr("GRI")).
			AddRow(int64(1000), ptr("TCFD")))

	emissions := mock.ExpectQuery(sqlPattern("emissions_value"))
	if emissionsErr != nil {
		emissions.WillReturnError(emissionsErr)
	} else {
		emissions.WillReturnRows(pgxmock.NewRows([]string{
			"company_id", "emission_year", "scope", "emissions_value", "unit",
			"data_level", "evidence_page", "evidence_note",
		}).
			AddRow(ptr(int64(1)), ptr(2024), "S1S2", ptr(1_000_000.0), ptr("kt"), ptr(1), ptr(12), nil).
			AddRow(ptr(int64(2)), ptr(2024), "S1", ptr(500.0), ptr("tCO2e"), nil, nil, nil))
	}

	mock.ExpectQuery(sqlPattern("denom_value")).
		WillReturnRows(pgxmock.NewRows([]string{
			"company_id", "denom_year", "denom_type", "denom_value",
			"data_level", "evidence_page", "evidence_note",
		}).
			AddRow(ptr(int64(1)), ptr(2024), ptr("revenue"), ptr(500_000_000.0), ptr(1), nil, nil).
			AddRow(ptr(int64(2)), ptr(2024), ptr("production"), ptr(10.0), nil, nil, nil))

	mock.ExpectQuery(sqlPattern("target_reduction_pct")).
		WillReturnRows(pgxmock.NewRows([]string{
			"company_id", "scope", "baseline_year", "target_year", "target_reduction_pct",
			"evidence_page", "evidence_note",
		}).
			AddRow(ptr(int64(1)), ptr("S1S2"), ptr(2020), ptr(2030), ptr(40.0), nil, nil).
			AddRow(ptr(int64(1)), ptr("S1S2"), ptr(2020), ptr(2050), ptr(100.0), ptr(5), nil))

	mock.ExpectQuery(sqlPattern("FROM scoring_config_alpha")).
		WillReturnRows(pgxmock.NewRows([]string{"industry_id", "alpha"}).
			AddRow(int64(10), ptr(1.1)))

	mock.ExpectQuery(sqlPattern("FROM mms_indicator_def")).
		WillReturnRows(pgxmock.NewRows([]string{"indicator_id", "indicator_name"}).
			AddRow(int64(5), ptr("Board oversight")))

	mock.ExpectQuery(sqlPattern("FROM mms_observation")).
		WillReturnRows(pgxmock.NewRows([]string{
			"score_run_id", "indicator_id", "status", "points_awarded",
			"data_level", "evidence_page", "evidence_note",
		}).
			AddRow(int64(100), int64(5), nil, ptr(3.0), ptr(2), ptr(20), nil))
}

func newTestService(t *testing.T, emissionsErr error) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	mock.MatchExpectationsInOrder(false)

	expectProbe(mock)
	expectDashboard(mock, emissionsErr)

	svc := NewService(mock, schema.NewResolver(mock), config.DashboardConfig{IntensityScale: 1, QueryTimeoutSecs: 5})
	svc.now = func() time.Time { return fixedNow }
	return svc, mock
}

func TestService_LoadFull(t *testing.T) {
	svc, mock := newTestService(t, nil)
	enricher := &fakeEnricher{caps: map[string]float64{"1": 2e13, "2": 3e13}}
	observer := &fakeObserver{}
	svc.WithEnricher(enricher).WithObserver(observer)

	res, err := svc.Load(context.Background(), Query{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	d := res.Data
	require.Len(t, d.Companies, 3)
	assert.Equal(t, []string{"2", "1", "3"}, []string{d.Companies[0].ID, d.Companies[1].ID, d.Companies[2].ID})
	assert.Equal(t, "POSCO(포스코)", d.Companies[1].DisplayName())
	assert.Equal(t, "鉄鋼", d.Companies[1].IndustryNameJP)

	// 1,000,000 kt combined over 500,000,000 revenue.
	posco := d.EmissionsData["1"]
	require.Len(t, posco, 1)
	assert.Equal(t, 1e9, posco[0].S1Emissions)
	assert.Equal(t, 0.0, posco[0].S2Emissions)
	require.NotNil(t, posco[0].TotalEmissions)
	assert.Equal(t, 1e9, *posco[0].TotalEmissions)
	assert.Equal(t, 500_000_000.0, posco[0].DenomValue)
	intensity, ok := posco[0].Intensity(1)
	require.True(t, ok)
	assert.Equal(t, 2.0, intensity)

	steel := d.IndustryData["10"]
	assert.Equal(t, 2, steel.CompanyCount)
	assert.Equal(t, []float64{60, 80}, steel.Scores)
	assert.Equal(t, 70.0, steel.AvgPCRC)
	assert.Equal(t, 2.0, steel.AvgIntensity)
	assert.Equal(t, 1.1, steel.Alpha)
	assert.Equal(t, 1.0, d.IndustryData["20"].Alpha)

	require.Len(t, d.ScoreRuns["1"], 2)
	assert.Equal(t, 2024, d.ScoreRuns["1"][0].EvalYear)
	assert.Equal(t, 40.0, d.ScoreRuns["1"][0].RIMax)

	assert.Equal(t, 2050, d.Targets["1"].TargetYear)
	assert.Equal(t, "2025-06-30", d.Reports["1"].PublicationDate)
	assert.Equal(t, []string{"GRI", "TCFD"}, d.Reports["1"].Frameworks)
	assert.Len(t, d.ReportHistory["1"], 2)

	evidence := d.EvidenceItems["1"]
	require.Len(t, evidence, 3)
	assert.Equal(t, model.EvidenceEmission, evidence[0].Category)
	assert.Equal(t, model.EvidenceTarget, evidence[1].Category)
	assert.Equal(t, model.EvidenceMMS, evidence[2].Category)
	assert.Equal(t, "Board oversight", evidence[2].Indicator)
	assert.Equal(t, model.StatusSelfReported, evidence[2].Status)
	assert.NotNil(t, d.EvidenceItems["3"])

	assert.Equal(t, ScopeFull, res.Meta.Scope)
	assert.Contains(t, res.Meta.Variants, "emission:direct")
	assert.Contains(t, res.Meta.Variants, "report_date:publication_date")
	require.NotNil(t, res.Meta.MarketCap)
	assert.Equal(t, 2, res.Meta.MarketCap.CompaniesWithMarketCap)
	assert.Nil(t, res.Meta.Metrics)
	assert.Equal(t, fixedNow.UTC(), res.Meta.GeneratedAt)

	assert.Equal(t, 1, enricher.calls)
	require.Len(t, observer.seen, 1)
	assert.Equal(t, "full", observer.seen[0].scope)
	assert.NoError(t, observer.seen[0].err)
}

func TestService_LoadMain(t *testing.T) {
	tests := []struct {
		name      string
		companyID string
		want      string
	}{
		{"defaults to largest market cap", "", "2"},
		{"requested company", "1", "1"},
		{"unknown company falls back", "999", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, nil)
			svc.WithEnricher(&fakeEnricher{caps: map[string]float64{"1": 2e13, "2": 3e13}})

			res, err := svc.Load(context.Background(), Query{Scope: ScopeMain, CompanyID: tt.companyID})
			require.NoError(t, err)

			d := res.Data
			require.Len(t, d.Companies, 1)
			assert.Equal(t, tt.want, d.Companies[0].ID)
			assert.Equal(t, tt.want, res.Meta.ResolvedCompanyID)
			assert.Equal(t, tt.companyID, res.Meta.RequestedCompanyID)
			assert.Len(t, d.ScoreRuns, 1)
			assert.Contains(t, d.ScoreRuns, tt.want)
			assert.Equal(t, []string{"10"}, keys(d.IndustryData))
			assert.Equal(t, 2, d.IndustryData["10"].CompanyCount)
			assert.Nil(t, d.EvidenceItems)
			assert.Nil(t, d.ReportHistory)
			require.NotNil(t, res.Meta.Metrics)
			require.NotNil(t, res.Meta.Evidence)
		})
	}
}

func TestService_LoadMainMetrics(t *testing.T) {
	svc, _ := newTestService(t, nil)

	res, err := svc.Load(context.Background(), Query{Scope: ScopeMain, CompanyID: "1"})
	require.NoError(t, err)

	m := res.Meta.Metrics
	require.NotNil(t, m)
	require.NotNil(t, m.IndustryPercentile)
	assert.Equal(t, 0, *m.IndustryPercentile)
	require.NotNil(t, m.YoYChange)
	assert.Equal(t, 5.0, *m.YoYChange)
	assert.Equal(t, DataMix{Verified: 67, SelfReported: 33, Proxy: 0}, m.DataMix)
	assert.Equal(t, 100, m.EvidenceCoverage)

	ev := res.Meta.Evidence
	assert.Equal(t, 3, ev.Total)
	assert.Equal(t, 3, ev.WithPage)
	assert.Equal(t, 1, ev.ByCategory[model.EvidenceMMS])
	assert.Nil(t, res.Meta.MarketCap)
}

func TestService_LoadCountry(t *testing.T) {
	svc, _ := newTestService(t, nil)

	res, err := svc.Load(context.Background(), Query{Country: "jp"})
	require.NoError(t, err)

	require.Len(t, res.Data.Companies, 1)
	assert.Equal(t, "3", res.Data.Companies[0].ID)
	assert.Equal(t, []string{"20"}, keys(res.Data.IndustryData))
	assert.Empty(t, res.Data.EmissionsData)
	assert.Equal(t, model.CountryJP, res.Meta.Country)
}

func TestService_CountryFiltersShareEnrichmentCache(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	mock.MatchExpectationsInOrder(false)

	countries := []string{"KR", "JP", "KR", "JP"}
	expectProbe(mock)
	for range countries {
		expectDashboard(mock, nil)
	}

	var fetches int
	fetcher := marketcap.FetcherFunc(func(_ context.Context, symbols []string) (map[string]float64, error) {
		fetches++
		out := map[string]float64{}
		for _, s := range symbols {
			out[s] = 1e13
		}
		return out, nil
	})
	enricher := marketcap.NewEnricher(config.MarketCapConfig{
		Enabled:         true,
		CompanyCodeCSV:  "/data/codes.csv",
		CacheTTLMs:      int64(24 * time.Hour / time.Millisecond),
		ErrorCooldownMs: int64(5 * time.Minute / time.Millisecond),
	}, fetcher, marketcap.WithFs(afero.NewMemMapFs()))

	svc := NewService(mock, schema.NewResolver(mock), config.DashboardConfig{IntensityScale: 1})
	svc.WithEnricher(enricher)

	for i, country := range countries {
		res, err := svc.Load(context.Background(), Query{Country: country})
		require.NoError(t, err)
		require.NotEmpty(t, res.Data.Companies)
		for _, c := range res.Data.Companies {
			assert.Equal(t, country, c.Country)
			assert.NotNil(t, c.MarketCap, "company %s", c.ID)
		}
		require.NotNil(t, res.Meta.MarketCap)
		assert.Equal(t, i > 0, res.Meta.MarketCap.CacheHit, "load %d", i)
	}
	assert.Equal(t, 1, fetches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_QueryFailureFailsLoad(t *testing.T) {
	svc, _ := newTestService(t, errors.New("relation \"emission\" does not exist"))
	observer := &fakeObserver{}
	svc.WithObserver(observer)

	res, err := svc.Load(context.Background(), Query{Scope: ScopeMain})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "dashboard: query emissions")

	require.Len(t, observer.seen, 1)
	assert.Equal(t, "main", observer.seen[0].scope)
	assert.Error(t, observer.seen[0].err)
}

func TestService_InvalidQuery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := NewService(mock, schema.NewResolver(mock), config.DashboardConfig{})

	_, err = svc.Load(context.Background(), Query{Scope: "partial"})
	assert.ErrorIs(t, err, ErrInvalidScope)

	_, err = svc.Load(context.Background(), Query{Country: "DE"})
	assert.ErrorIs(t, err, ErrInvalidCountry)

	// Validation happens before the schema is probed.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ProbeFailureNotCached(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(sqlPattern("FROM information_schema.columns")).
		WithArgs(schema.ProbedTables).
		WillReturnError(errors.New("connection refused"))

	svc := NewService(mock, schema.NewResolver(mock), config.DashboardConfig{IntensityScale: 1})
	_, err = svc.Load(context.Background(), Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dashboard: resolve schema")

	expectProbe(mock)
	expectDashboard(mock, nil)
	res, err := svc.Load(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, res.Data.Companies, 3)
}

func TestNewService_DefaultScale(t *testing.T) {
	svc := NewService(nil, nil, config.DashboardConfig{IntensityScale: -1})
	assert.Equal(t, 1.0, svc.scale)
	assert.Equal(t, time.Duration(0), svc.timeout)
}
