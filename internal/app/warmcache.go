package app

import (
	"context"
	"os"
	"time"
)

// WarmCache pre-fetches current prices for every ticker in the ledger so
// the first portfolio query after startup is served from cache.
func (a *App) WarmCache(ctx context.Context) {
	if os.Getenv("KABUFOLIO_WARM_CACHE") == "off" {
		a.Logger.Info().Msg("Warm cache: disabled via KABUFOLIO_WARM_CACHE=off")
		return
	}

	start := time.Now()

	raws, err := a.Positions.ListPositions(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Warm cache: ledger unavailable, skipping")
		return
	}
	if len(raws) == 0 {
		a.Logger.Info().Msg("Warm cache: ledger is empty, skipping")
		return
	}

	seen := make(map[string]bool, len(raws))
	tickers := make([]string, 0, len(raws))
	for _, r := range raws {
		if !seen[r.Ticker] {
			seen[r.Ticker] = true
			tickers = append(tickers, r.Ticker)
		}
	}

	// Incremental — the market service only hits the provider for tickers
	// whose cached price has gone stale.
	for _, ticker := range tickers {
		if _, err := a.MarketService.GetCurrentPrice(ctx, ticker, false); err != nil {
			a.Logger.Warn().Str("ticker", ticker).Err(err).Msg("Warm cache: price prefetch failed")
		}
	}

	a.Logger.Info().
		Int("tickers", len(tickers)).
		Dur("elapsed", time.Since(start)).
		Msg("Warm cache: complete")
}
