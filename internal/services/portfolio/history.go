package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/knakatani/kabufolio/internal/models"
)

// mergedLot accumulates every lot of one ticker held as of a target date.
// Quantities sum; cost per unit is the weighted average; CostJPY combines
// additively from the underlying lots so each lot's historical FX
// conversion is preserved rather than recomputed from the averaged cost.
type mergedLot struct {
	ticker   string
	fullName string
	quantity float64
	costSum  float64 // Σ(quantity × costPerUnit), for the weighted average
	costJPY  float64
	lots     []*models.Position
}

// resolveSeriesPrice finds the best price in a series for a target date:
// exact match first, otherwise the date with minimum absolute distance,
// preferring on-or-before dates over later ones when distances tie.
func resolveSeriesPrice(series map[string]float64, sortedDates []string, target string) (price float64, priceDate string, ok bool) {
	if len(series) == 0 {
		return 0, "", false
	}
	if p, exists := series[target]; exists {
		return p, target, true
	}

	targetDay, err := models.ParseDate(target)
	if err != nil {
		return 0, "", false
	}

	bestDist := math.MaxFloat64
	for _, d := range sortedDates {
		day, err := models.ParseDate(d)
		if err != nil {
			continue
		}
		dist := math.Abs(targetDay.Sub(day).Hours() / 24)
		// Strict less keeps the earlier candidate on ties: sortedDates is
		// ascending, so an on-or-before date is seen before the
		// equidistant later one.
		if dist < bestDist {
			bestDist = dist
			price = series[d]
			priceDate = d
		}
	}
	return price, priceDate, priceDate != ""
}

// Reconstruct computes what the portfolio's cost and value would have
// been on each target date. Snapshots are returned in the same order as
// targetDates even though processing sorts chronologically internally.
//
// Each lot's value uses its recorded transaction-time FX rate for every
// snapshot date rather than re-resolving FX historically — an
// approximation carried over deliberately (data availability), not a bug.
func (s *Service) Reconstruct(ctx context.Context, positions []models.Position, targetDates []string, includeDetails bool) ([]models.HistoricalSnapshot, error) {
	snapshots := make([]models.HistoricalSnapshot, len(targetDates))
	if len(targetDates) == 0 {
		return snapshots, nil
	}

	// Validate and canonicalize targets up front; keep the original index
	// so output order tracks input order.
	type target struct {
		index int
		date  string
	}
	targets := make([]target, len(targetDates))
	for i, d := range targetDates {
		normalized, err := models.NormalizeDate(d)
		if err != nil {
			return nil, fmt.Errorf("target date %d: %w", i, err)
		}
		targets[i] = target{index: i, date: normalized}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].date < targets[j].date })

	// Earliest transaction bounds the series fetch window.
	earliest := time.Time{}
	for _, p := range positions {
		if day, err := models.ParseDate(p.TransactionDate); err == nil {
			if earliest.IsZero() || day.Before(earliest) {
				earliest = day
			}
		}
	}

	// One series fetch per ticker for the whole reconstruction call.
	type tickerSeries struct {
		prices      map[string]float64
		sortedDates []string
	}
	seriesMemo := make(map[string]*tickerSeries)
	currentQty := make(map[string]float64)
	currentValue := make(map[string]float64)

	for _, p := range positions {
		currentQty[p.Ticker] += p.Quantity
		currentValue[p.Ticker] += p.CurrentValueJPY

		if _, ok := seriesMemo[p.Ticker]; ok {
			continue
		}
		prices, err := s.market.GetHistoricalPrices(ctx, p.Ticker, earliest)
		if err != nil {
			return nil, err
		}
		ts := &tickerSeries{prices: prices}
		for d := range prices {
			ts.sortedDates = append(ts.sortedDates, d)
		}
		sort.Strings(ts.sortedDates)
		seriesMemo[p.Ticker] = ts
	}

	for _, t := range targets {
		snap := models.HistoricalSnapshot{Date: t.date}

		// Merge the lots held as of this date, one entry per ticker.
		merged := make(map[string]*mergedLot)
		var order []string
		for i := range positions {
			p := &positions[i]
			if p.TransactionDate > t.date {
				continue
			}
			m, ok := merged[p.Ticker]
			if !ok {
				m = &mergedLot{ticker: p.Ticker, fullName: p.FullName}
				merged[p.Ticker] = m
				order = append(order, p.Ticker)
			}
			m.quantity += p.Quantity
			m.costSum += p.Quantity * p.CostPerUnit
			m.costJPY += p.CostJPY
			m.lots = append(m.lots, p)
		}

		for _, ticker := range order {
			m := merged[ticker]
			ts := seriesMemo[ticker]

			var valueJPY float64
			var priceDate string
			estimated := false

			price, pd, found := resolveSeriesPrice(ts.prices, ts.sortedDates, t.date)
			if found {
				// Value each lot at its own recorded FX rate, then sum.
				for _, lot := range m.lots {
					valueJPY += lot.Quantity * price * lot.TransactionFXRate
				}
				priceDate = pd
			} else if currentQty[ticker] > 0 {
				// No historical price at all: pro-rate the instrument's
				// current value by the held-quantity ratio. A degraded
				// approximation, not a hard failure.
				valueJPY = currentValue[ticker] * (m.quantity / currentQty[ticker])
				estimated = true
			}

			snap.TotalValueJPY += valueJPY
			snap.TotalCostJPY += m.costJPY

			if includeDetails {
				avgCost := 0.0
				if m.quantity > 0 {
					avgCost = m.costSum / m.quantity
				}
				snap.Details = append(snap.Details, models.HoldingDetail{
					Ticker:      ticker,
					FullName:    m.fullName,
					Quantity:    m.quantity,
					CostPerUnit: avgCost,
					CostJPY:     m.costJPY,
					ValueJPY:    valueJPY,
					PriceDate:   priceDate,
					Estimated:   estimated,
				})
			}
		}

		snap.PositionsCount = len(order)
		snap.PnlJPY = snap.TotalValueJPY - snap.TotalCostJPY
		// Unlike the live aggregate, a zero-cost snapshot legitimately
		// means "nothing held yet" — guarded to 0, not NaN.
		if snap.TotalCostJPY > 0 {
			snap.PnlPercentage = snap.PnlJPY / snap.TotalCostJPY * 100
		}

		snapshots[t.index] = snap
	}

	s.logger.Info().
		Int("dates", len(targetDates)).
		Int("tickers", len(seriesMemo)).
		Bool("details", includeDetails).
		Msg("Portfolio history reconstructed")

	return snapshots, nil
}

// MonthEndDates generates canonical month-end target dates from the
// earliest transaction in positions through now, plus today as the final
// point. Used by the history endpoint.
func MonthEndDates(positions []models.Position, now time.Time) []string {
	earliest := time.Time{}
	for _, p := range positions {
		if day, err := models.ParseDate(p.TransactionDate); err == nil {
			if earliest.IsZero() || day.Before(earliest) {
				earliest = day
			}
		}
	}
	if earliest.IsZero() {
		return nil
	}

	var dates []string
	cursor := time.Date(earliest.Year(), earliest.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
	for cursor.Before(now) {
		dates = append(dates, cursor.Format(models.DateLayout))
		cursor = cursor.AddDate(0, 0, 1).AddDate(0, 1, -1)
	}
	today := now.Format(models.DateLayout)
	if len(dates) == 0 || dates[len(dates)-1] != today {
		dates = append(dates, today)
	}
	return dates
}
