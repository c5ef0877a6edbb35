package dashboard

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/carbon-dashboard/internal/model"
)

const unknownIndustry = "unknown"

// Locales recognized in the i18n side tables.
const (
	localeKO = "ko"
	localeJA = "ja"
	localeEN = "en"
)

// localeOf folds a stored locale ("ko-KR", "KR", "ja_JP", "en") to its
// language.
func localeOf(raw *string) string {
	if raw == nil {
		return ""
	}
	l := strings.ToLower(strings.TrimSpace(*raw))
	if i := strings.IndexAny(l, "-_"); i >= 0 {
		l = l[:i]
	}
	switch l {
	case "ko", "kr", "kor":
		return localeKO
	case "ja", "jp", "jpn":
		return localeJA
	case "en", "eng":
		return localeEN
	default:
		return l
	}
}

// localizedNames indexes side-table names by id and language. The first
// non-empty name per (id, language) is kept.
type localizedNames map[int64]map[string]string

func indexLocalized(rows []localizedRow) localizedNames {
	out := localizedNames{}
	for _, row := range rows {
		if row.Name == nil || strings.TrimSpace(*row.Name) == "" {
			continue
		}
		lang := localeOf(row.Locale)
		if lang == "" {
			continue
		}
		names, ok := out[row.ID]
		if !ok {
			names = map[string]string{}
			out[row.ID] = names
		}
		if _, seen := names[lang]; !seen {
			names[lang] = strings.TrimSpace(*row.Name)
		}
	}
	return out
}

func (n localizedNames) get(id int64, lang string) string {
	return n[id][lang]
}

// reference is the dimension data loaded alongside the fact tables.
type reference struct {
	industryNames  map[int64]string
	industryI18n   localizedNames
	companyI18n    localizedNames
	alpha          map[int64]float64
	indicatorNames map[int64]string
}

func buildReference(raw *rawData) reference {
	ref := reference{
		industryNames:  make(map[int64]string, len(raw.industries)),
		industryI18n:   indexLocalized(raw.industryI18n),
		companyI18n:    indexLocalized(raw.companyI18n),
		alpha:          make(map[int64]float64, len(raw.alphas)),
		indicatorNames: make(map[int64]string, len(raw.indicators)),
	}
	for _, row := range raw.industries {
		if row.Name != nil {
			ref.industryNames[row.ID] = strings.TrimSpace(*row.Name)
		}
	}
	for _, row := range raw.alphas {
		if row.Alpha != nil && finite(*row.Alpha) {
			ref.alpha[row.IndustryID] = *row.Alpha
		}
	}
	for _, row := range raw.indicators {
		if row.Name != nil && strings.TrimSpace(*row.Name) != "" {
			ref.indicatorNames[row.ID] = strings.TrimSpace(*row.Name)
		}
	}
	return ref
}

// alphaFor returns the industry's risk-adjustment coefficient, 1 when
// undefined or the industry id is not numeric.
func (r reference) alphaFor(industryID string) float64 {
	id, err := strconv.ParseInt(industryID, 10, 64)
	if err != nil {
		return 1
	}
	if a, ok := r.alpha[id]; ok {
		return a
	}
	return 1
}

func buildCompanies(rows []companyRow, ref reference) []model.Company {
	companies := make([]model.Company, 0, len(rows))
	for _, row := range rows {
		c := model.Company{
			ID:      strconv.FormatInt(row.ID, 10),
			NameKR:  ref.companyI18n.get(row.ID, localeKO),
			NameJP:  ref.companyI18n.get(row.ID, localeJA),
			Country: model.DefaultCountry,
		}
		if row.Name != nil {
			c.Name = strings.TrimSpace(*row.Name)
		}
		if row.Ticker != nil {
			c.Ticker = strings.TrimSpace(*row.Ticker)
		}
		if row.Country != nil {
			if code, ok := model.NormalizeCountry(*row.Country); ok {
				c.Country = code
			}
		}

		c.IndustryID = unknownIndustry
		c.IndustryName = "Unknown"
		if row.IndustryID != nil {
			id := *row.IndustryID
			c.IndustryID = strconv.FormatInt(id, 10)
			switch {
			case row.IndustryName != nil && strings.TrimSpace(*row.IndustryName) != "":
				c.IndustryName = strings.TrimSpace(*row.IndustryName)
			case ref.industryNames[id] != "":
				c.IndustryName = ref.industryNames[id]
			}
			c.IndustryNameEN = ref.industryI18n.get(id, localeEN)
			c.IndustryNameJP = ref.industryI18n.get(id, localeJA)
		}
		companies = append(companies, c)
	}
	return companies
}

// buildScoreRuns groups score runs per company, newest evaluation year first,
// keeping at most one run per year. It also maps every run id to its company
// for MMS observations.
func buildScoreRuns(rows []scoreRunRow) (map[string][]model.ScoreRun, map[int64]string) {
	runs := map[string][]model.ScoreRun{}
	runCompany := make(map[int64]string, len(rows))
	seen := map[yearKey]bool{}

	for _, row := range rows {
		companyID := strconv.FormatInt(row.CompanyID, 10)
		runCompany[row.ID] = companyID

		key := yearKey{companyID: companyID, year: row.EvalYear}
		if seen[key] {
			continue
		}
		seen[key] = true
		runs[companyID] = append(runs[companyID], model.ScoreRun{
			EvalYear:  row.EvalYear,
			PCRCScore: orDefault(row.PCRCScore, 0),
			RIScore:   orDefault(row.RIScore, 0),
			TAGScore:  orDefault(row.TAGScore, 0),
			MMSScore:  orDefault(row.MMSScore, 0),
			RIMax:     orDefault(row.RIMax, model.DefaultRIMax),
			TAGMax:    orDefault(row.TAGMax, model.DefaultTAGMax),
			MMSMax:    orDefault(row.MMSMax, model.DefaultMMSMax),
		})
	}
	for _, list := range runs {
		sort.SliceStable(list, func(i, j int) bool { return list[i].EvalYear > list[j].EvalYear })
	}
	return runs, runCompany
}

func orDefault(v *float64, def float64) float64 {
	if v == nil || !finite(*v) {
		return def
	}
	return *v
}
