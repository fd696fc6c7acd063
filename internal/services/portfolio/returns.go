package portfolio

import (
	"math"
	"time"

	"github.com/knakatani/kabufolio/internal/models"
)

const daysPerYear = 365.25

// yearsBetween returns the elapsed years between two times.
func yearsBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24 / daysPerYear
}

// AnnualizedReturn converts a total return percentage over a holding
// period into an annualized rate. Returns nil when the holding period is
// under one year — "not yet applicable", not an error.
func AnnualizedReturn(totalReturnPct float64, startDate string, now time.Time) *float64 {
	start, err := models.ParseDate(startDate)
	if err != nil {
		return nil
	}

	years := yearsBetween(start, now)
	if years < 1 {
		return nil
	}

	r := (math.Pow(1+totalReturnPct/100, 1/years) - 1) * 100
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil
	}
	return &r
}

// earliestTransactionDate finds the minimum transaction date across
// positions, empty when there are none.
func earliestTransactionDate(positions []models.Position) string {
	earliest := ""
	for _, p := range positions {
		if earliest == "" || p.TransactionDate < earliest {
			earliest = p.TransactionDate
		}
	}
	return earliest
}

// CagrSinceInception computes the compound annual growth rate from the
// earliest transaction date, approximated via the simple total
// cost/value ratio. Returns nil when the period or the totals are
// non-positive.
func CagrSinceInception(summary *models.PortfolioSummary, now time.Time) *models.InceptionReturn {
	earliest := earliestTransactionDate(summary.Positions)
	if earliest == "" {
		return nil
	}

	start, err := models.ParseDate(earliest)
	if err != nil {
		return nil
	}

	years := yearsBetween(start, now)
	if years <= 0 || summary.TotalCostJPY <= 0 || summary.TotalValueJPY <= 0 {
		return nil
	}

	r := (math.Pow(summary.TotalValueJPY/summary.TotalCostJPY, 1/years) - 1) * 100
	return &models.InceptionReturn{ReturnPct: r, EarliestDate: earliest}
}
