// Package market provides the cache-backed market data service
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/knakatani/kabufolio/internal/common"
	"github.com/knakatani/kabufolio/internal/interfaces"
	"github.com/knakatani/kabufolio/internal/models"
)

// Service resolves prices and FX rates cache-first, falling back to the
// API client. Upstream failures degrade to nil values — the valuation
// core never sees a missing quote as an error.
type Service struct {
	client interfaces.MarketDataClient
	cache  interfaces.Cache
	clock  interfaces.Clock
	logger *common.Logger
}

// NewService creates a new market data service
func NewService(client interfaces.MarketDataClient, cache interfaces.Cache, clock interfaces.Clock, logger *common.Logger) *Service {
	return &Service{
		client: client,
		cache:  cache,
		clock:  clock,
		logger: logger,
	}
}

func priceKey(ticker string) string      { return "price_" + ticker }
func seriesKey(ticker string) string     { return "eod_" + ticker }
func fxKey(pair string) string           { return "fx_" + pair }
func fxHistKey(pair, date string) string { return fmt.Sprintf("fxhist_%s_%s", pair, date) }

// GetCurrentPrice returns the latest price for a ticker, or nil when no
// source can supply one. forceRefresh bypasses the cache freshness check.
func (s *Service) GetCurrentPrice(ctx context.Context, ticker string, forceRefresh bool) (*float64, error) {
	now := s.clock.Now()

	if !forceRefresh {
		var cached models.CachedPrice
		if err := s.cache.Get(priceKey(ticker), &cached); err == nil {
			if common.IsFresh(cached.FetchedAt, common.FreshnessCurrentPrice, now) {
				return &cached.Price, nil
			}
		}
	}

	price, err := s.client.GetCurrentPrice(ctx, ticker)
	if err != nil {
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Current price fetch failed")
		return s.stalePrice(ticker), nil
	}
	if price == nil {
		return s.stalePrice(ticker), nil
	}

	entry := models.CachedPrice{Ticker: ticker, Price: *price, FetchedAt: now}
	if err := s.cache.Put(priceKey(ticker), entry); err != nil {
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Failed to cache price")
	}
	return price, nil
}

// stalePrice returns an expired cached price if one exists. A stale quote
// beats no quote for valuation purposes.
func (s *Service) stalePrice(ticker string) *float64 {
	var cached models.CachedPrice
	if err := s.cache.Get(priceKey(ticker), &cached); err != nil {
		return nil
	}
	if cached.Price <= 0 {
		return nil
	}
	s.logger.Debug().Str("ticker", ticker).Time("fetched_at", cached.FetchedAt).Msg("Using stale cached price")
	return &cached.Price
}

// GetCurrentPrices fetches all unique tickers up front (the force-refresh
// batch path). The result map has an entry for every requested ticker;
// unavailable prices are nil.
func (s *Service) GetCurrentPrices(ctx context.Context, tickers []string) (map[string]*float64, error) {
	prices := make(map[string]*float64, len(tickers))
	for _, ticker := range tickers {
		if _, ok := prices[ticker]; ok {
			continue
		}
		price, err := s.GetCurrentPrice(ctx, ticker, true)
		if err != nil {
			return nil, err
		}
		prices[ticker] = price
	}
	return prices, nil
}

// GetHistoricalPrices returns an instrument's close-price series since a
// date, keyed by canonical date. The cached series is reused within its
// freshness window; gaps in the upstream data map straight through.
func (s *Service) GetHistoricalPrices(ctx context.Context, ticker string, since time.Time) (map[string]float64, error) {
	now := s.clock.Now()

	var cached models.PriceSeries
	if err := s.cache.Get(seriesKey(ticker), &cached); err == nil {
		if common.IsFresh(cached.FetchedAt, common.FreshnessPriceSeries, now) && len(cached.Prices) > 0 {
			return cached.Prices, nil
		}
	}

	prices, err := s.client.GetHistoricalPrices(ctx, ticker, since)
	if err != nil {
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Historical price fetch failed")
		if len(cached.Prices) > 0 {
			return cached.Prices, nil
		}
		return nil, nil
	}
	if len(prices) == 0 {
		if len(cached.Prices) > 0 {
			return cached.Prices, nil
		}
		return nil, nil
	}

	entry := models.PriceSeries{Ticker: ticker, Prices: prices, FetchedAt: now}
	if err := s.cache.Put(seriesKey(ticker), entry); err != nil {
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Failed to cache price series")
	}
	return prices, nil
}

// GetCurrentFXRate returns the latest rate for a pair, or nil.
func (s *Service) GetCurrentFXRate(ctx context.Context, pair string) (*float64, error) {
	now := s.clock.Now()

	var cached models.CachedFXRate
	if err := s.cache.Get(fxKey(pair), &cached); err == nil {
		if common.IsFresh(cached.FetchedAt, common.FreshnessCurrentFX, now) {
			return &cached.Rate, nil
		}
	}

	r, err := s.client.GetCurrentFXRate(ctx, pair)
	if err != nil {
		s.logger.Warn().Str("pair", pair).Err(err).Msg("Current FX fetch failed")
		if cached.Rate > 0 {
			return &cached.Rate, nil
		}
		return nil, nil
	}
	if r == nil {
		if cached.Rate > 0 {
			return &cached.Rate, nil
		}
		return nil, nil
	}

	entry := models.CachedFXRate{Pair: pair, Rate: *r, FetchedAt: now}
	if err := s.cache.Put(fxKey(pair), entry); err != nil {
		s.logger.Warn().Str("pair", pair).Err(err).Msg("Failed to cache FX rate")
	}
	return r, nil
}

// GetHistoricalFXRate returns the rate for a pair on a date, or nil.
// A past date's rate never changes, so the cache window is a year; an
// expired entry still beats a failed refetch.
func (s *Service) GetHistoricalFXRate(ctx context.Context, pair string, date time.Time) (*float64, error) {
	now := s.clock.Now()
	dateStr := date.Format(models.DateLayout)

	var cached models.CachedFXRate
	if err := s.cache.Get(fxHistKey(pair, dateStr), &cached); err == nil && cached.Rate > 0 {
		if common.IsFresh(cached.FetchedAt, common.FreshnessHistoricalFX, now) {
			return &cached.Rate, nil
		}
	}

	r, err := s.client.GetHistoricalFXRate(ctx, pair, date)
	if err != nil {
		s.logger.Warn().Str("pair", pair).Str("date", dateStr).Err(err).Msg("Historical FX fetch failed")
		if cached.Rate > 0 {
			return &cached.Rate, nil
		}
		return nil, nil
	}
	if r == nil {
		if cached.Rate > 0 {
			return &cached.Rate, nil
		}
		return nil, nil
	}

	entry := models.CachedFXRate{Pair: pair, Rate: *r, FetchedAt: now}
	if err := s.cache.Put(fxHistKey(pair, dateStr), entry); err != nil {
		s.logger.Warn().Str("pair", pair).Err(err).Msg("Failed to cache historical FX rate")
	}
	return r, nil
}
