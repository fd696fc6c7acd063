// Package interfaces defines service contracts for Kabufolio
package interfaces

import (
	"context"
	"time"
)

// MarketDataClient provides access to the external price/FX API.
//
// All four methods may return nil without error when the upstream has no
// data for the request. Callers must never treat nil as a failure — the
// valuation core degrades per its own rules. Retry and backoff against the
// rate-limited upstream live inside the implementation, not in callers.
type MarketDataClient interface {
	// GetCurrentPrice retrieves the latest price for a ticker, or nil if
	// unavailable.
	GetCurrentPrice(ctx context.Context, ticker string) (*float64, error)

	// GetHistoricalPrices retrieves close prices since a date, keyed by
	// canonical YYYY-MM-DD. May be nil or sparse.
	GetHistoricalPrices(ctx context.Context, ticker string, since time.Time) (map[string]float64, error)

	// GetCurrentFXRate retrieves the latest rate for a pair like "USDJPY",
	// or nil if unavailable.
	GetCurrentFXRate(ctx context.Context, pair string) (*float64, error)

	// GetHistoricalFXRate retrieves the rate for a pair on a specific
	// date, or nil if unavailable.
	GetHistoricalFXRate(ctx context.Context, pair string, date time.Time) (*float64, error)
}
