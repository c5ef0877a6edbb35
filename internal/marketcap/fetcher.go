package marketcap

import (
	"context"
	"errors"
)

// Fetcher resolves market caps for a batch of symbols. Returned keys are
// normalized symbols; symbols without a value are absent.
type Fetcher interface {
	Fetch(ctx context.Context, symbols []string) (map[string]float64, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, symbols []string) (map[string]float64, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, symbols []string) (map[string]float64, error) {
	return f(ctx, symbols)
}

// FetchError is a hard lookup failure. Reason is the machine-readable string
// reported in diagnostics and used as the cooldown reason.
type FetchError struct {
	Reason          string
	MissingProvider bool
	Err             error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return "marketcap: " + e.Reason + ": " + e.Err.Error()
	}
	return "marketcap: " + e.Reason
}

func (e *FetchError) Unwrap() error { return e.Err }

// failureReason extracts the diagnostics reason and provider flag from err.
func failureReason(err error) (string, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason, fe.MissingProvider
	}
	return err.Error(), false
}
