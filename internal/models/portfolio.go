package models

import (
	"time"
)

// RawPosition is one recorded buy transaction (a lot). Immutable once
// recorded — corrections are modeled as delete + re-add, never mutation.
// Multiple lots may share a ticker.
type RawPosition struct {
	ID              string  `json:"id"`
	TransactionDate string  `json:"transaction_date"` // canonical YYYY-MM-DD
	Ticker          string  `json:"ticker"`
	FullName        string  `json:"full_name"`
	Broker          string  `json:"broker,omitempty"`
	Account         string  `json:"account,omitempty"`
	Quantity        float64 `json:"quantity"`
	CostPerUnit     float64 `json:"cost_per_unit"` // denominated in TransactionCcy
	TransactionCcy  string  `json:"transaction_ccy"`
	StockCcy        string  `json:"stock_ccy"` // native trading currency, may differ from TransactionCcy
}

// ParseDate parses a canonical YYYY-MM-DD date string.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Position is a RawPosition enriched with valuation. Derived, recomputed
// on every valuation request — a view over RawPosition + market data,
// never persisted as authoritative.
type Position struct {
	RawPosition

	CurrentPrice      *float64 `json:"current_price"` // nil = price unavailable, valuation pending
	CostJPY           float64  `json:"cost_jpy"`      // converted at the FX rate of the transaction date
	CurrentValueJPY   float64  `json:"current_value_jpy"`
	PnlJPY            float64  `json:"pnl_jpy"`
	PnlPercentage     float64  `json:"pnl_percentage"`
	TransactionFXRate float64  `json:"transaction_fx_rate"` // historical rate actually used
	CurrentFXRate     float64  `json:"current_fx_rate"`     // current rate actually used
}

// PriceKnown reports whether a current price was available at valuation time.
func (p *Position) PriceKnown() bool {
	return p.CurrentPrice != nil
}

// PortfolioSummary aggregates a set of enriched positions.
// Recomputed fresh on every request, not cached as an entity.
//
// TotalPnlPercentage is NaN when TotalCostJPY is 0 with positions present.
// This is the documented contract — do not coerce to 0.
type PortfolioSummary struct {
	TotalCostJPY       float64    `json:"total_cost_jpy"`
	TotalValueJPY      float64    `json:"total_value_jpy"`
	TotalPnlJPY        float64    `json:"total_pnl_jpy"`
	TotalPnlPercentage float64    `json:"total_pnl_percentage"`
	Positions          []Position `json:"positions"`
	GeneratedAt        time.Time  `json:"generated_at"`
}

// HistoricalSnapshot is one point in a reconstructed portfolio time
// series. Generated on demand for a requested date list, not persisted.
type HistoricalSnapshot struct {
	Date           string          `json:"date"`
	TotalValueJPY  float64         `json:"total_value_jpy"`
	TotalCostJPY   float64         `json:"total_cost_jpy"`
	PnlJPY         float64         `json:"pnl_jpy"`
	PnlPercentage  float64         `json:"pnl_percentage"`
	PositionsCount int             `json:"positions_count"`
	Details        []HoldingDetail `json:"details,omitempty"` // per-instrument breakdown for drill-down
}

// HoldingDetail is the per-instrument breakdown within a snapshot. Lots of
// the same ticker are merged into one synthetic holding.
type HoldingDetail struct {
	Ticker      string  `json:"ticker"`
	FullName    string  `json:"full_name,omitempty"`
	Quantity    float64 `json:"quantity"`
	CostPerUnit float64 `json:"cost_per_unit"` // weighted average across merged lots
	CostJPY     float64 `json:"cost_jpy"`      // additively combined from underlying lots
	ValueJPY    float64 `json:"value_jpy"`
	PriceDate   string  `json:"price_date,omitempty"` // actual series date used (may differ from snapshot date)
	Estimated   bool    `json:"estimated,omitempty"`  // true when value was pro-rated from current value
}

// InceptionReturn pairs a portfolio-level annualized return with the
// earliest transaction date it was measured from.
type InceptionReturn struct {
	ReturnPct    float64 `json:"return_pct"`
	EarliestDate string  `json:"earliest_date"`
}

// PerformanceReport bundles the portfolio-level return metrics.
type PerformanceReport struct {
	Cagr          *InceptionReturn `json:"cagr,omitempty"`
	MoneyWeighted *InceptionReturn `json:"money_weighted,omitempty"`
	GeneratedAt   time.Time        `json:"generated_at"`
}
