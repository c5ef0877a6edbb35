package marketcap

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/sells-group/carbon-dashboard/internal/model"
)

// Exchange suffixes. KOSPI and KOSDAQ share one numeric code space.
const (
	suffixKOSPI  = ".KS"
	suffixKOSDAQ = ".KQ"
	suffixTokyo  = ".T"
)

var decimalZeroRe = regexp.MustCompile(`^\d+(\.0+)?$`)

// NormalizeTicker upper-cases a ticker and removes all whitespace.
func NormalizeTicker(raw string) string {
	return strings.Join(strings.Fields(strings.ToUpper(raw)), "")
}

// NormalizeCode cleans an exchange code exported from a spreadsheet. Korean
// codes are left-padded to six digits, with spurious ".0" suffixes removed
// ("6840.0" becomes "006840"). Japanese five-digit codes ending in 0 lose the
// trailing zero ("72030" becomes "7203"). It returns "" when nothing usable
// remains.
func NormalizeCode(raw, country string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return ""
	}
	if decimalZeroRe.MatchString(code) {
		if dot := strings.IndexByte(code, '.'); dot >= 0 {
			code = code[:dot]
		}
	}
	code = strings.Join(strings.Fields(code), "")

	switch country {
	case model.CountryKR:
		digits := keepDigits(code)
		if digits == "" {
			return ""
		}
		if len(digits) >= 6 {
			return digits[len(digits)-6:]
		}
		return strings.Repeat("0", 6-len(digits)) + digits
	case model.CountryJP:
		code = keepAlnum(code)
		if len(code) == 5 && strings.HasSuffix(code, "0") {
			code = code[:4]
		}
		return code
	default:
		return keepAlnum(code)
	}
}

// InferSymbol turns a ticker or exchange code into a tradable symbol. A ticker
// that already carries a suffix is returned as is.
func InferSymbol(ticker, country string) string {
	t := NormalizeTicker(ticker)
	if t == "" {
		return ""
	}
	if strings.Contains(t, ".") {
		return t
	}
	switch country {
	case model.CountryKR:
		digits := keepDigits(t)
		if digits == "" {
			return ""
		}
		if len(digits) < 6 {
			digits = strings.Repeat("0", 6-len(digits)) + digits
		}
		return digits + suffixKOSPI
	case model.CountryJP:
		if digits := keepDigits(t); len(digits) == 4 {
			return digits + suffixTokyo
		}
	}
	return t
}

// AlternateSymbol returns the same Korean code on the other exchange, or ""
// when symbol is not a Korean listing.
func AlternateSymbol(symbol string) string {
	switch {
	case strings.HasSuffix(symbol, suffixKOSPI):
		return strings.TrimSuffix(symbol, suffixKOSPI) + suffixKOSDAQ
	case strings.HasSuffix(symbol, suffixKOSDAQ):
		return strings.TrimSuffix(symbol, suffixKOSDAQ) + suffixKOSPI
	default:
		return ""
	}
}

func keepDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func keepAlnum(s string) string {
	return strings.Map(func(r rune) rune {
		if r <= unicode.MaxASCII && (unicode.IsDigit(r) || unicode.IsUpper(r)) {
			return r
		}
		return -1
	}, s)
}
