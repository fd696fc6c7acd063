package models

import (
	"time"
)

// PriceSeries is an instrument's historical close prices keyed by
// canonical YYYY-MM-DD date. The provider may return gaps — consumers
// tolerate missing dates and resolve to the nearest available one.
type PriceSeries struct {
	Ticker    string             `json:"ticker"`
	Prices    map[string]float64 `json:"prices"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// CachedPrice is a current price captured with its fetch time, stored in
// the market cache so freshness can be judged.
type CachedPrice struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CachedFXRate is a current FX rate captured with its fetch time.
type CachedFXRate struct {
	Pair      string    `json:"pair"` // e.g. "USDJPY"
	Rate      float64   `json:"rate"`
	FetchedAt time.Time `json:"fetched_at"`
}
