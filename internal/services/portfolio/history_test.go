package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knakatani/kabufolio/internal/models"
)

// valuedJPY builds a fully-valued JPY position the way the valuator would
// produce it, for feeding the reconstructor directly.
func valuedJPY(id, date, ticker string, qty, cost, price float64) models.Position {
	return models.Position{
		RawPosition: models.RawPosition{
			ID:              id,
			TransactionDate: date,
			Ticker:          ticker,
			Quantity:        qty,
			CostPerUnit:     cost,
			TransactionCcy:  "JPY",
			StockCcy:        "JPY",
		},
		CurrentPrice:      f(price),
		CostJPY:           qty * cost,
		CurrentValueJPY:   qty * price,
		TransactionFXRate: 1,
		CurrentFXRate:     1,
	}
}

func TestReconstruct_MergesLots(t *testing.T) {
	market := newMockMarket()
	market.series["7203.T"] = map[string]float64{"2023-03-31": 150}
	svc := newTestService(market)

	positions := []models.Position{
		valuedJPY("a", "2023-01-05", "7203.T", 10, 100, 150),
		valuedJPY("b", "2023-02-10", "7203.T", 5, 200, 150),
	}

	snaps, err := svc.Reconstruct(context.Background(), positions, []string{"2023-03-31"}, true)
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	snap := snaps[0]
	assert.Equal(t, "2023-03-31", snap.Date)
	assert.Equal(t, 1, snap.PositionsCount, "lots of one ticker merge into one holding")
	assert.Equal(t, 2000.0, snap.TotalCostJPY)
	assert.Equal(t, 2250.0, snap.TotalValueJPY) // 15 × 150
	assert.Equal(t, 250.0, snap.PnlJPY)
	assert.InDelta(t, 12.5, snap.PnlPercentage, 0.001)

	require.Len(t, snap.Details, 1)
	d := snap.Details[0]
	assert.Equal(t, 15.0, d.Quantity)
	assert.InDelta(t, 133.33, d.CostPerUnit, 0.01) // weighted average
	assert.Equal(t, 2000.0, d.CostJPY)
	assert.Equal(t, "2023-03-31", d.PriceDate)
	assert.False(t, d.Estimated)
}

func TestReconstruct_PerLotFXRates(t *testing.T) {
	// Two USD lots bought at different FX rates: the snapshot values each
	// lot at its own recorded rate, not a shared or averaged one.
	market := newMockMarket()
	market.series["AAPL"] = map[string]float64{"2024-06-28": 200}
	svc := newTestService(market)

	lotA := valuedJPY("a", "2023-01-05", "AAPL", 10, 150, 200)
	lotA.TransactionCcy, lotA.StockCcy = "USD", "USD"
	lotA.TransactionFXRate = 130
	lotA.CostJPY = 10 * 150 * 130

	lotB := valuedJPY("b", "2024-01-05", "AAPL", 10, 180, 200)
	lotB.TransactionCcy, lotB.StockCcy = "USD", "USD"
	lotB.TransactionFXRate = 145
	lotB.CostJPY = 10 * 180 * 145

	snaps, err := svc.Reconstruct(context.Background(), []models.Position{lotA, lotB}, []string{"2024-06-28"}, false)
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	// 10×200×130 + 10×200×145
	assert.Equal(t, 260_000.0+290_000.0, snaps[0].TotalValueJPY)
}

func TestReconstruct_OutputOrderTracksInput(t *testing.T) {
	market := newMockMarket()
	market.series["7203.T"] = map[string]float64{
		"2023-02-28": 110,
		"2023-04-28": 120,
		"2023-06-30": 130,
	}
	svc := newTestService(market)

	positions := []models.Position{valuedJPY("a", "2023-01-05", "7203.T", 10, 100, 130)}

	// Deliberately unsorted request.
	dates := []string{"2023-06-30", "2023-02-28", "2023-04-28"}
	snaps, err := svc.Reconstruct(context.Background(), positions, dates, false)
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	assert.Equal(t, "2023-06-30", snaps[0].Date)
	assert.Equal(t, "2023-02-28", snaps[1].Date)
	assert.Equal(t, "2023-04-28", snaps[2].Date)
	assert.Equal(t, 1300.0, snaps[0].TotalValueJPY)
	assert.Equal(t, 1100.0, snaps[1].TotalValueJPY)
	assert.Equal(t, 1200.0, snaps[2].TotalValueJPY)
}

func TestReconstruct_NearestDateTiePrefersEarlier(t *testing.T) {
	market := newMockMarket()
	market.series["7203.T"] = map[string]float64{
		"2023-03-13": 111, // two days before target
		"2023-03-17": 999, // two days after
	}
	svc := newTestService(market)

	positions := []models.Position{valuedJPY("a", "2023-01-05", "7203.T", 10, 100, 111)}

	snaps, err := svc.Reconstruct(context.Background(), positions, []string{"2023-03-15"}, true)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Len(t, snaps[0].Details, 1)

	assert.Equal(t, "2023-03-13", snaps[0].Details[0].PriceDate)
	assert.Equal(t, 1110.0, snaps[0].TotalValueJPY)
}

func TestReconstruct_ProRatedFallback(t *testing.T) {
	// No price series at all for the ticker: the held portion of the
	// current value stands in, flagged as estimated.
	market := newMockMarket()
	svc := newTestService(market)

	positions := []models.Position{
		valuedJPY("a", "2023-01-05", "7203.T", 10, 100, 130), // value 1300
		valuedJPY("b", "2023-06-01", "7203.T", 30, 100, 130), // value 3900
	}

	// As of 2023-03-31 only the first lot is held: 10 of 40 total units.
	snaps, err := svc.Reconstruct(context.Background(), positions, []string{"2023-03-31"}, true)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Len(t, snaps[0].Details, 1)

	assert.InDelta(t, 5200*0.25, snaps[0].TotalValueJPY, 0.001)
	assert.True(t, snaps[0].Details[0].Estimated)
	assert.Empty(t, snaps[0].Details[0].PriceDate)
}

func TestReconstruct_OneSeriesFetchPerTicker(t *testing.T) {
	market := newMockMarket()
	market.series["7203.T"] = map[string]float64{"2023-03-31": 150}
	market.series["9984.T"] = map[string]float64{"2023-03-31": 9000}
	svc := newTestService(market)

	positions := []models.Position{
		valuedJPY("a", "2023-01-05", "7203.T", 10, 100, 150),
		valuedJPY("b", "2023-02-10", "7203.T", 5, 200, 150),
		valuedJPY("c", "2023-02-15", "9984.T", 1, 8000, 9000),
	}

	dates := []string{"2023-02-28", "2023-03-31", "2023-04-30"}
	_, err := svc.Reconstruct(context.Background(), positions, dates, false)
	require.NoError(t, err)

	assert.Equal(t, 1, market.seriesCalls["7203.T"])
	assert.Equal(t, 1, market.seriesCalls["9984.T"])
}

func TestReconstruct_DateBeforeInception(t *testing.T) {
	market := newMockMarket()
	market.series["7203.T"] = map[string]float64{"2023-03-31": 150}
	svc := newTestService(market)

	positions := []models.Position{valuedJPY("a", "2023-01-05", "7203.T", 10, 100, 150)}

	snaps, err := svc.Reconstruct(context.Background(), positions, []string{"2022-12-31"}, false)
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	snap := snaps[0]
	assert.Equal(t, 0, snap.PositionsCount)
	assert.Equal(t, 0.0, snap.TotalCostJPY)
	assert.Equal(t, 0.0, snap.TotalValueJPY)
	assert.Equal(t, 0.0, snap.PnlPercentage, "nothing held yet is a zero snapshot, not NaN")
}

func TestReconstruct_MalformedTargetDate(t *testing.T) {
	svc := newTestService(newMockMarket())
	positions := []models.Position{valuedJPY("a", "2023-01-05", "7203.T", 10, 100, 150)}

	_, err := svc.Reconstruct(context.Background(), positions, []string{"31-12-2023"}, false)
	assert.Error(t, err)
}

func TestMonthEndDates(t *testing.T) {
	positions := []models.Position{
		valuedJPY("a", "2023-11-15", "7203.T", 10, 100, 150),
		valuedJPY("b", "2024-01-20", "9984.T", 1, 8000, 9000),
	}
	now := time.Date(2024, 2, 14, 10, 0, 0, 0, time.UTC)

	dates := MonthEndDates(positions, now)
	assert.Equal(t, []string{"2023-11-30", "2023-12-31", "2024-01-31", "2024-02-14"}, dates)
}

func TestMonthEndDates_Empty(t *testing.T) {
	assert.Nil(t, MonthEndDates(nil, time.Now()))
}
