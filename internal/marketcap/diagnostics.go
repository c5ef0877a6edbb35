// Package marketcap attaches approximate market capitalizations to dashboard
// companies. Symbols come from a reference CSV plus inference rules, values
// come from an out-of-process worker, and results are cached with a TTL. A
// hard worker failure disables enrichment for a cooldown window.
package marketcap

import "time"

// Status classifies the outcome of one enrichment pass.
type Status string

// Enrichment statuses.
const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Source names the upstream data provider reported in diagnostics.
const Source = "yfinance"

// Skip and failure reasons that are not produced by the worker itself.
const (
	ReasonNotRunYet         = "not-run-yet"
	ReasonNoCompanies       = "no-companies"
	ReasonDisabled          = "disabled-by-config"
	ReasonNoEligibleSymbols = "no-eligible-symbols"
	ReasonProviderMissing   = "provider-not-installed"
	ReasonCallerCancelled   = "caller-cancelled"
	reasonCooldownPrefix    = "cooldown-after-error:"
)

// Diagnostics describes the latest enrichment pass.
type Diagnostics struct {
	Source                   string    `json:"source"`
	Status                   Status    `json:"status"`
	Reason                   string    `json:"reason,omitempty"`
	CacheHit                 bool      `json:"cacheHit"`
	LookedUpCompanies        int       `json:"lookedUpCompanies"`
	EligibleCompanies        int       `json:"eligibleCompanies"`
	SymbolsRequested         int       `json:"symbolsRequested"`
	SymbolsResolved          int       `json:"symbolsResolved"`
	CompaniesWithMarketCap   int       `json:"companiesWithMarketCap"`
	DuplicateResolvedSymbols int       `json:"duplicateResolvedSymbols"`
	OverrideCompanies        int       `json:"overrideCompanies"`
	CSVRows                  int       `json:"csvRows"`
	CSVMissingCodeRows       int       `json:"csvMissingCodeRows"`
	CSVInvalidCodeRows       int       `json:"csvInvalidCodeRows"`
	MissingProvider          bool      `json:"missingYfinance"`
	WorkerCommand            string    `json:"workerCommand"`
	WorkerScript             string    `json:"workerScript"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
