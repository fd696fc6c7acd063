package portfolio

import (
	"context"
	"sync"
	"time"
)

// fixedClock pins "now" for deterministic return math.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// mockMarket implements interfaces.MarketService with canned data and
// per-method call counting. Safe for concurrent use — the aggregator
// valuates positions in parallel.
type mockMarket struct {
	mu sync.Mutex

	prices     map[string]*float64            // ticker → current price
	series     map[string]map[string]float64  // ticker → date → close
	fxCurrent  map[string]*float64            // pair → rate
	fxHistoric map[string]*float64            // pair|date → rate

	priceCalls   map[string]int
	seriesCalls  map[string]int
	fxCalls      map[string]int
	fxHistCalls  map[string]int
	batchCalls   int
}

func newMockMarket() *mockMarket {
	return &mockMarket{
		prices:      map[string]*float64{},
		series:      map[string]map[string]float64{},
		fxCurrent:   map[string]*float64{},
		fxHistoric:  map[string]*float64{},
		priceCalls:  map[string]int{},
		seriesCalls: map[string]int{},
		fxCalls:     map[string]int{},
		fxHistCalls: map[string]int{},
	}
}

func f(v float64) *float64 { return &v }

func (m *mockMarket) setPrice(ticker string, price float64) {
	m.prices[ticker] = f(price)
}

func (m *mockMarket) setFX(pair string, rate float64) {
	m.fxCurrent[pair] = f(rate)
}

func (m *mockMarket) setHistFX(pair, date string, rate float64) {
	m.fxHistoric[pair+"|"+date] = f(rate)
}

func (m *mockMarket) GetCurrentPrice(ctx context.Context, ticker string, forceRefresh bool) (*float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.priceCalls[ticker]++
	return m.prices[ticker], nil
}

func (m *mockMarket) GetCurrentPrices(ctx context.Context, tickers []string) (map[string]*float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	out := make(map[string]*float64, len(tickers))
	for _, t := range tickers {
		out[t] = m.prices[t]
	}
	return out, nil
}

func (m *mockMarket) GetHistoricalPrices(ctx context.Context, ticker string, since time.Time) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seriesCalls[ticker]++
	return m.series[ticker], nil
}

func (m *mockMarket) GetCurrentFXRate(ctx context.Context, pair string) (*float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fxCalls[pair]++
	return m.fxCurrent[pair], nil
}

func (m *mockMarket) GetHistoricalFXRate(ctx context.Context, pair string, date time.Time) (*float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pair + "|" + date.Format("2006-01-02")
	m.fxHistCalls[pair]++
	return m.fxHistoric[key], nil
}

func (m *mockMarket) totalPriceCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.priceCalls {
		total += n
	}
	return total
}
