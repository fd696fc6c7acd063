package portfolio

import (
	"math"
	"sort"
	"time"

	"github.com/knakatani/kabufolio/internal/models"
)

// cashFlow represents a single cash flow for the money-weighted return.
// Negative values = money out (buys), positive values = money in (the
// current valuation as a terminal inflow).
type cashFlow struct {
	date   time.Time
	amount float64
}

const (
	newtonGuess   = 0.10
	newtonTol     = 1e-8
	newtonMaxIter = 50

	bisectLo      = -0.99
	bisectHi      = 10.0
	bisectMaxIter = 80

	degenerateRate = -0.9999
)

// MoneyWeightedReturn computes the portfolio XIRR: the discount rate that
// zeroes the net present value of the full cash-flow history — one
// outflow per position at its transaction date, the current total value
// as a terminal inflow at now.
//
// Solving is a three-stage chain, each stage a deliberate robustness
// measure for pathological cash-flow shapes: Newton-Raphson, then
// bisection over [-0.99, 10], then a cost-weighted average of the
// per-position annualized returns for positions held at least a year.
// The chain never raises; it returns nil only when no stage applies.
func MoneyWeightedReturn(summary *models.PortfolioSummary, now time.Time) *models.InceptionReturn {
	if len(summary.Positions) == 0 {
		return nil
	}

	earliest := earliestTransactionDate(summary.Positions)

	var flows []cashFlow
	for _, p := range summary.Positions {
		d, err := models.ParseDate(p.TransactionDate)
		if err != nil || p.CostJPY <= 0 {
			continue
		}
		flows = append(flows, cashFlow{date: d, amount: -p.CostJPY})
	}
	if len(flows) == 0 {
		return nil
	}
	if summary.TotalValueJPY > 0 {
		flows = append(flows, cashFlow{date: now, amount: summary.TotalValueJPY})
	}

	sort.Slice(flows, func(i, j int) bool { return flows[i].date.Before(flows[j].date) })

	// Year fractions from the earliest flow.
	base := flows[0].date
	years := make([]float64, len(flows))
	for i, f := range flows {
		years[i] = yearsBetween(base, f.date)
	}

	hasNeg, hasPos := false, false
	for _, f := range flows {
		if f.amount < 0 {
			hasNeg = true
		}
		if f.amount > 0 {
			hasPos = true
		}
	}

	if hasNeg && hasPos {
		if rate, ok := solveNewton(flows, years); ok {
			return &models.InceptionReturn{ReturnPct: rate * 100, EarliestDate: earliest}
		}
		if rate, ok := solveBisection(flows, years); ok {
			return &models.InceptionReturn{ReturnPct: rate * 100, EarliestDate: earliest}
		}
	}

	return weightedAnnualizedFallback(summary, now, earliest)
}

// npvAt evaluates Σ CFᵢ/(1+r)^tᵢ and its analytic derivative.
func npvAt(flows []cashFlow, years []float64, rate float64) (npv, dnpv float64) {
	for i, f := range flows {
		base := 1 + rate
		discount := math.Pow(base, years[i])
		if discount == 0 {
			continue
		}
		npv += f.amount / discount
		if years[i] != 0 {
			dnpv -= years[i] * f.amount / (discount * base)
		}
	}
	return npv, dnpv
}

// solveNewton runs Newton-Raphson from a fixed 10% guess. Returns ok
// false when it fails to converge or lands on a degenerate rate.
func solveNewton(flows []cashFlow, years []float64) (float64, bool) {
	rate := newtonGuess

	for iter := 0; iter < newtonMaxIter; iter++ {
		if 1+rate <= 0 {
			// Negative base with fractional exponents is undefined —
			// hand over to bisection.
			return 0, false
		}

		npv, dnpv := npvAt(flows, years, rate)
		if dnpv == 0 {
			return 0, false
		}

		next := rate - npv/dnpv
		if math.Abs(next-rate) < newtonTol {
			if math.IsNaN(next) || math.IsInf(next, 0) || next <= degenerateRate {
				return 0, false
			}
			return next, true
		}
		rate = next
	}

	return 0, false
}

// solveBisection brackets the root over [-0.99, 10] and bisects. Returns
// ok false when the root is not bracketed in that interval.
func solveBisection(flows []cashFlow, years []float64) (float64, bool) {
	lo, hi := bisectLo, bisectHi
	npvLo, _ := npvAt(flows, years, lo)
	npvHi, _ := npvAt(flows, years, hi)

	if math.IsNaN(npvLo) || math.IsNaN(npvHi) || npvLo*npvHi > 0 {
		return 0, false
	}

	for iter := 0; iter < bisectMaxIter; iter++ {
		mid := (lo + hi) / 2
		npvMid, _ := npvAt(flows, years, mid)
		if math.IsNaN(npvMid) {
			return 0, false
		}
		if npvMid == 0 {
			return mid, true
		}
		if npvMid*npvLo < 0 {
			hi = mid
		} else {
			lo = mid
			npvLo = npvMid
		}
	}

	return (lo + hi) / 2, true
}

// weightedAnnualizedFallback approximates the money-weighted return as a
// cost-weighted average of each position's individually-annualized
// return, restricted to positions held at least one year.
func weightedAnnualizedFallback(summary *models.PortfolioSummary, now time.Time, earliest string) *models.InceptionReturn {
	var weightedSum, costSum float64
	for _, p := range summary.Positions {
		if p.CostJPY <= 0 {
			continue
		}
		annualized := AnnualizedReturn(p.PnlPercentage, p.TransactionDate, now)
		if annualized == nil {
			continue
		}
		weightedSum += *annualized * p.CostJPY
		costSum += p.CostJPY
	}
	if costSum == 0 {
		return nil
	}
	return &models.InceptionReturn{ReturnPct: weightedSum / costSum, EarliestDate: earliest}
}
