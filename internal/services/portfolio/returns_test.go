package portfolio

import (
	"math"
	"testing"
	"time"

	"github.com/knakatani/kabufolio/internal/models"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestAnnualizedReturn_UnderOneYear(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// 364 days — just under the threshold.
	if got := AnnualizedReturn(10, "2023-01-03", now); got != nil {
		t.Fatalf("expected nil for sub-year holding, got %v", *got)
	}
}

func TestAnnualizedReturn_TwoYears(t *testing.T) {
	start := "2022-01-01"
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// 44% total over ~2 years → ~20% p.a.
	got := AnnualizedReturn(44, start, now)
	if got == nil {
		t.Fatal("expected a rate, got nil")
	}
	if !approxEqual(*got, 20.0, 0.1) {
		t.Errorf("annualized = %.4f, want ~20.0", *got)
	}
}

func TestAnnualizedReturn_ExactlyOneYear(t *testing.T) {
	// 366 days spans the 365.25-day year, so the rate applies.
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	got := AnnualizedReturn(10, "2023-01-01", now)
	if got == nil {
		t.Fatal("expected a rate for a full-year holding, got nil")
	}
	if !approxEqual(*got, 10.0, 0.2) {
		t.Errorf("annualized = %.4f, want ~10.0", *got)
	}
}

func TestAnnualizedReturn_BadDate(t *testing.T) {
	if got := AnnualizedReturn(10, "garbage", time.Now()); got != nil {
		t.Fatalf("expected nil for unparseable date, got %v", *got)
	}
}

func TestCagrSinceInception(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	summary := &models.PortfolioSummary{
		TotalCostJPY:  1_000_000,
		TotalValueJPY: 1_210_000,
		Positions: []models.Position{
			valuedJPY("a", "2023-01-01", "7203.T", 10, 100, 121),
		},
	}

	got := CagrSinceInception(summary, now)
	if got == nil {
		t.Fatal("expected a CAGR, got nil")
	}
	if got.EarliestDate != "2023-01-01" {
		t.Errorf("earliest = %q, want 2023-01-01", got.EarliestDate)
	}
	// 21% over ~2 years → ~10% p.a.
	if !approxEqual(got.ReturnPct, 10.0, 0.1) {
		t.Errorf("cagr = %.4f, want ~10.0", got.ReturnPct)
	}
}

func TestCagrSinceInception_NoPositions(t *testing.T) {
	if got := CagrSinceInception(&models.PortfolioSummary{}, time.Now()); got != nil {
		t.Fatalf("expected nil for empty portfolio, got %+v", got)
	}
}

func TestCagrSinceInception_ZeroValue(t *testing.T) {
	summary := &models.PortfolioSummary{
		TotalCostJPY: 1_000_000,
		Positions: []models.Position{
			valuedJPY("a", "2023-01-01", "7203.T", 10, 100, 0),
		},
	}
	if got := CagrSinceInception(summary, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)); got != nil {
		t.Fatalf("expected nil for non-positive value, got %+v", got)
	}
}

func TestEarliestTransactionDate(t *testing.T) {
	positions := []models.Position{
		valuedJPY("a", "2023-06-01", "7203.T", 10, 100, 150),
		valuedJPY("b", "2022-03-15", "9984.T", 1, 8000, 9000),
		valuedJPY("c", "2024-01-01", "7203.T", 5, 120, 150),
	}
	if got := earliestTransactionDate(positions); got != "2022-03-15" {
		t.Errorf("earliest = %q, want 2022-03-15", got)
	}
	if got := earliestTransactionDate(nil); got != "" {
		t.Errorf("earliest of none = %q, want empty", got)
	}
}
