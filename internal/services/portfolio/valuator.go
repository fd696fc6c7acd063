// Package portfolio provides portfolio valuation and performance services
package portfolio

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/knakatani/kabufolio/internal/common"
	"github.com/knakatani/kabufolio/internal/interfaces"
	"github.com/knakatani/kabufolio/internal/models"
)

// Valuator converts one raw transaction lot into a fully valued position.
//
// Cost basis converts at the FX rate of the transaction date; current
// value converts at the current rate of the stock's native trading
// currency (a EUR-denominated purchase of a USD-traded stock costs in EUR
// terms but is valued in USD terms). When no rate is resolvable from any
// source the rate falls back to 1 — degraded, logged, never an error.
type Valuator struct {
	market interfaces.MarketService
	logger *common.Logger
}

// NewValuator creates a new position valuator
func NewValuator(market interfaces.MarketService, logger *common.Logger) *Valuator {
	return &Valuator{market: market, logger: logger}
}

// validateRaw is the one fail-fast boundary: malformed input signals an
// upstream data-integrity problem, not a transient market-data gap.
func validateRaw(raw *models.RawPosition) error {
	if strings.TrimSpace(raw.Ticker) == "" {
		return fmt.Errorf("position %s: empty ticker", raw.ID)
	}
	if raw.Quantity <= 0 || math.IsNaN(raw.Quantity) || math.IsInf(raw.Quantity, 0) {
		return fmt.Errorf("position %s (%s): invalid quantity %v", raw.ID, raw.Ticker, raw.Quantity)
	}
	if raw.CostPerUnit <= 0 || math.IsNaN(raw.CostPerUnit) || math.IsInf(raw.CostPerUnit, 0) {
		return fmt.Errorf("position %s (%s): invalid cost per unit %v", raw.ID, raw.Ticker, raw.CostPerUnit)
	}
	return nil
}

// Valuate enriches a raw position with valuation in the reporting
// currency. currentPrice is nil when no price is available; the position
// is then marked valuation-pending: value 0, P&L = -cost, percentage 0.
// The current FX rate is still resolved and recorded in that state so it
// can be displayed alongside the pending valuation.
func (v *Valuator) Valuate(ctx context.Context, raw models.RawPosition, currentPrice *float64) (*models.Position, error) {
	if err := validateRaw(&raw); err != nil {
		return nil, err
	}

	date, err := models.NormalizeDate(raw.TransactionDate)
	if err != nil {
		return nil, fmt.Errorf("position %s (%s): %w", raw.ID, raw.Ticker, err)
	}
	raw.TransactionDate = date

	txCcy := strings.ToUpper(raw.TransactionCcy)
	if txCcy == "" {
		txCcy = models.ReportingCurrency
	}
	stockCcy := strings.ToUpper(raw.StockCcy)
	if stockCcy == "" {
		stockCcy = txCcy
	}
	raw.TransactionCcy = txCcy
	raw.StockCcy = stockCcy

	txRate := v.historicalRate(ctx, txCcy, raw.TransactionDate)
	curRate := v.currentRate(ctx, stockCcy)

	pos := &models.Position{
		RawPosition:       raw,
		CurrentPrice:      currentPrice,
		TransactionFXRate: txRate,
		CurrentFXRate:     curRate,
	}

	pos.CostJPY = raw.Quantity * raw.CostPerUnit * txRate

	if currentPrice != nil {
		pos.CurrentValueJPY = raw.Quantity * *currentPrice * curRate
		pos.PnlJPY = pos.CurrentValueJPY - pos.CostJPY
		if pos.CostJPY > 0 {
			pos.PnlPercentage = pos.PnlJPY / pos.CostJPY * 100
		}
	} else {
		// Valuation pending: not a meaningful gain/loss, just the shape
		// the consumer expects while the price is missing.
		pos.CurrentValueJPY = 0
		pos.PnlJPY = -pos.CostJPY
		pos.PnlPercentage = 0
	}

	return pos, nil
}

// historicalRate resolves the FX rate (ccy → JPY) at the transaction
// date. Same-currency positions take rate 1 with no lookup.
func (v *Valuator) historicalRate(ctx context.Context, ccy, date string) float64 {
	if ccy == models.ReportingCurrency {
		return 1
	}

	day, err := models.ParseDate(date)
	if err != nil {
		return 1
	}

	pair := models.FXPair(ccy, models.ReportingCurrency)
	rate, err := v.market.GetHistoricalFXRate(ctx, pair, day)
	if err != nil || rate == nil || *rate <= 0 {
		v.logger.Warn().Str("pair", pair).Str("date", date).Msg("No historical FX rate, falling back to 1")
		return 1
	}
	return *rate
}

// currentRate resolves the current FX rate (ccy → JPY).
func (v *Valuator) currentRate(ctx context.Context, ccy string) float64 {
	if ccy == models.ReportingCurrency {
		return 1
	}

	pair := models.FXPair(ccy, models.ReportingCurrency)
	rate, err := v.market.GetCurrentFXRate(ctx, pair)
	if err != nil || rate == nil || *rate <= 0 {
		v.logger.Warn().Str("pair", pair).Msg("No current FX rate, falling back to 1")
		return 1
	}
	return *rate
}
