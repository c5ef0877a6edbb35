package dashboard

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// unitMultipliers converts a normalized unit token to tCO2e.
var unitMultipliers = map[string]float64{
	"g":          1e-6,
	"gram":       1e-6,
	"grams":      1e-6,
	"kg":         1e-3,
	"kilogram":   1e-3,
	"kilograms":  1e-3,
	"t":          1,
	"ton":        1,
	"tons":       1,
	"tonne":      1,
	"tonnes":     1,
	"톤":          1,
	"kt":         1e3,
	"kiloton":    1e3,
	"kilotons":   1e3,
	"kilotonne":  1e3,
	"kilotonnes": 1e3,
	"천톤":         1e3,
	"mt":         1e6,
	"megaton":    1e6,
	"megatons":   1e6,
	"megatonne":  1e6,
	"megatonnes": 1e6,
	"gt":         1e9,
	"gigaton":    1e9,
	"gigatons":   1e9,
	"gigatonne":  1e9,
	"gigatonnes": 1e9,
}

// unitSuffixes are stripped from the token once, longest first, so that
// "ktCO2e", "kt CO₂-eq" and "kt" all resolve to "kt".
var unitSuffixes = []string{"co2eq", "co2e", "co2", "eq"}

// UnitToken folds a raw unit into its lookup token: NFKC (subscripts and
// full-width forms become ASCII), lower-cased, punctuation and spaces removed,
// trailing CO2-equivalent markers dropped.
func UnitToken(unit string) string {
	folded := strings.ToLower(norm.NFKC.String(unit))
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	token := b.String()
	for _, suffix := range unitSuffixes {
		if len(token) > len(suffix) && strings.HasSuffix(token, suffix) {
			return strings.TrimSuffix(token, suffix)
		}
	}
	return token
}

// UnitMultiplier returns the factor converting unit to tCO2e. Unrecognized or
// empty units report false and a factor of 1.
func UnitMultiplier(unit string) (float64, bool) {
	m, ok := unitMultipliers[UnitToken(unit)]
	if !ok {
		return 1, false
	}
	return m, true
}

// NormalizeEmission converts value to tCO2e. Values in unrecognized units pass
// through unchanged.
func NormalizeEmission(value float64, unit string) float64 {
	m, _ := UnitMultiplier(unit)
	return value * m
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
