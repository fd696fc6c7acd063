// Package interfaces defines service contracts for Kabufolio
package interfaces

import (
	"context"
	"time"

	"github.com/knakatani/kabufolio/internal/models"
)

// MarketService is the cache-backed market data provider consumed by the
// portfolio service. Same nil-on-missing contract as MarketDataClient.
type MarketService interface {
	GetCurrentPrice(ctx context.Context, ticker string, forceRefresh bool) (*float64, error)
	GetCurrentPrices(ctx context.Context, tickers []string) (map[string]*float64, error)
	GetHistoricalPrices(ctx context.Context, ticker string, since time.Time) (map[string]float64, error)
	GetCurrentFXRate(ctx context.Context, pair string) (*float64, error)
	GetHistoricalFXRate(ctx context.Context, pair string, date time.Time) (*float64, error)
}

// PortfolioService produces valuations, reconstructions and return metrics
// over the raw position ledger.
type PortfolioService interface {
	// Aggregate valuates all raw positions into a point-in-time summary.
	// With forceRefresh, all unique tickers are fetched in one batch up
	// front; otherwise prices are memoized per ticker within the call.
	Aggregate(ctx context.Context, raws []models.RawPosition, forceRefresh bool) (*models.PortfolioSummary, error)

	// Reconstruct computes what the portfolio's cost and value would have
	// been on each target date. Output order tracks targetDates.
	Reconstruct(ctx context.Context, positions []models.Position, targetDates []string, includeDetails bool) ([]models.HistoricalSnapshot, error)

	// Performance derives the portfolio-level return metrics from a summary.
	Performance(summary *models.PortfolioSummary) *models.PerformanceReport
}
