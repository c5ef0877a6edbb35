package model

import (
	"sort"
	"strings"
)

// Country codes supported by the dashboard.
const (
	CountryKR = "KR"
	CountryJP = "JP"

	// DefaultCountry is assigned when a company has no usable country.
	DefaultCountry = CountryKR
)

var countryAliases = map[string]string{
	"KR":          CountryKR,
	"KOR":         CountryKR,
	"KOREA":       CountryKR,
	"SOUTH KOREA": CountryKR,
	"JP":          CountryJP,
	"JPN":         CountryJP,
	"JAPAN":       CountryJP,
}

// NormalizeCountry maps a raw country value onto a supported code. The second
// return value is false when the raw value was empty or unknown.
func NormalizeCountry(raw string) (string, bool) {
	code, ok := countryAliases[strings.ToUpper(strings.TrimSpace(raw))]
	return code, ok
}

// Company is a scored company as presented by the dashboard.
type Company struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	NameKR         string   `json:"nameKr,omitempty"`
	NameJP         string   `json:"nameJp,omitempty"`
	Ticker         string   `json:"ticker,omitempty"`
	IndustryID     string   `json:"industryId"`
	IndustryName   string   `json:"industryName"`
	IndustryNameEN string   `json:"industryNameEn,omitempty"`
	IndustryNameJP string   `json:"industryNameJp,omitempty"`
	Country        string   `json:"country"`
	MarketCap      *float64 `json:"marketCap,omitempty"` // attached by enrichment, never persisted
}

// DisplayName renders the English name with the local-market name appended,
// e.g. "Samsung Electronics(삼성전자)".
func (c Company) DisplayName() string {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = "Unknown"
	}
	var local string
	switch strings.ToUpper(c.Country) {
	case CountryKR:
		local = strings.TrimSpace(c.NameKR)
	case CountryJP:
		local = strings.TrimSpace(c.NameJP)
	}
	if local == "" {
		return name
	}
	return name + "(" + local + ")"
}

// CompareByMarketCapDesc orders companies by market cap descending. Companies
// with a market cap sort ahead of those without; remaining ties sort by name.
func CompareByMarketCapDesc(a, b Company) int {
	switch {
	case a.MarketCap != nil && b.MarketCap != nil:
		if *a.MarketCap > *b.MarketCap {
			return -1
		}
		if *a.MarketCap < *b.MarketCap {
			return 1
		}
	case a.MarketCap != nil:
		return -1
	case b.MarketCap != nil:
		return 1
	}
	return strings.Compare(a.Name, b.Name)
}

// SortByMarketCapDesc sorts companies in place with CompareByMarketCapDesc.
func SortByMarketCapDesc(companies []Company) {
	sort.SliceStable(companies, func(i, j int) bool {
		return CompareByMarketCapDesc(companies[i], companies[j]) < 0
	})
}
