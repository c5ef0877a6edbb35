package marketcap

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/carbon-dashboard/internal/model"
)

// CacheKey fingerprints everything a lookup depends on: the lookup limit, the
// reference and override file versions, and for each looked-up company its
// identity, names, ticker, country and reference row.
func CacheKey(companies []model.Company, refs ReferenceLookup, overrides Overrides, limit int) string {
	h := sha256.New()
	write := func(parts ...string) {
		h.Write([]byte(strings.Join(parts, "|")))
		h.Write([]byte("::"))
	}

	write(strconv.Itoa(limit), refs.Version, overrides.Version)
	for _, c := range scoped(companies, limit) {
		ref := refs.ByCompanyID[c.ID]
		write(c.ID, c.Name, c.NameKR, c.NameJP, c.Ticker, c.Country, ref.Country, ref.Code)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// scoped returns the companies a pass looks up: the first limit of them.
func scoped(companies []model.Company, limit int) []model.Company {
	if limit > 0 && limit < len(companies) {
		return companies[:limit]
	}
	return companies
}

func parsePositive(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return positive(v)
}

func positive(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}
