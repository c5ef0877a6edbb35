package marketcap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/carbon-dashboard/internal/model"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		raw, country, want string
	}{
		{"6840.0", model.CountryKR, "006840"},
		{"78930.0", model.CountryKR, "078930"},
		{"005930", model.CountryKR, "005930"},
		{"A005930", model.CountryKR, "005930"},
		{"1234567", model.CountryKR, "234567"},
		{"ABC", model.CountryKR, ""},
		{"72030", model.CountryJP, "7203"},
		{"7203", model.CountryJP, "7203"},
		{"7203.0", model.CountryJP, "7203"},
		{"67580", model.CountryJP, "6758"},
		{"12345", model.CountryJP, "12345"},
		{" 13 0A ", model.CountryJP, "130A"},
		{"aapl", "", "AAPL"},
		{"", model.CountryKR, ""},
		{"   ", model.CountryJP, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCode(tt.raw, tt.country), "%q/%s", tt.raw, tt.country)
	}
}

func TestNormalizeCode_Idempotent(t *testing.T) {
	for _, c := range []struct{ raw, country string }{
		{"6840.0", model.CountryKR},
		{"72030", model.CountryJP},
		{"7203", model.CountryJP},
	} {
		once := NormalizeCode(c.raw, c.country)
		assert.Equal(t, once, NormalizeCode(once, c.country))
	}
}

func TestInferSymbol(t *testing.T) {
	tests := []struct {
		ticker, country, want string
	}{
		{"5930", model.CountryKR, "005930.KS"},
		{"005930", model.CountryKR, "005930.KS"},
		{"005930.KQ", model.CountryKR, "005930.KQ"},
		{" 7203 ", model.CountryJP, "7203.T"},
		{"7203.t", model.CountryJP, "7203.T"},
		{"67580", model.CountryJP, "67580"},
		{"POSCO", model.CountryKR, ""},
		{"sony", "", "SONY"},
		{"", model.CountryKR, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferSymbol(tt.ticker, tt.country), "%q/%s", tt.ticker, tt.country)
	}
}

func TestAlternateSymbol(t *testing.T) {
	assert.Equal(t, "005930.KQ", AlternateSymbol("005930.KS"))
	assert.Equal(t, "086520.KS", AlternateSymbol("086520.KQ"))
	assert.Equal(t, "", AlternateSymbol("7203.T"))
}

func TestNormalizeTicker(t *testing.T) {
	assert.Equal(t, "005930.KS", NormalizeTicker(" 005930 .ks "))
	assert.Equal(t, "", NormalizeTicker("   "))
}
