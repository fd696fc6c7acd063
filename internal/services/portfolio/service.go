package portfolio

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/knakatani/kabufolio/internal/common"
	"github.com/knakatani/kabufolio/internal/interfaces"
	"github.com/knakatani/kabufolio/internal/models"
)

// Service implements PortfolioService
type Service struct {
	market   interfaces.MarketService
	valuator *Valuator
	clock    interfaces.Clock
	logger   *common.Logger
}

// NewService creates a new portfolio service
func NewService(market interfaces.MarketService, clock interfaces.Clock, logger *common.Logger) *Service {
	return &Service{
		market:   market,
		valuator: NewValuator(market, logger),
		clock:    clock,
		logger:   logger,
	}
}

// priceEntry is a write-once memo slot. The first caller for a ticker
// performs the fetch; concurrent callers for the same ticker wait on done
// rather than issuing a second fetch against the rate-limited provider.
type priceEntry struct {
	done  chan struct{}
	price *float64
}

// priceMemo is the per-call ticker→price gate. At most one provider fetch
// per unique ticker per aggregation pass — a correctness invariant, not
// an optimization.
type priceMemo struct {
	mu      sync.Mutex
	entries map[string]*priceEntry
}

func newPriceMemo() *priceMemo {
	return &priceMemo{entries: make(map[string]*priceEntry)}
}

// resolve returns the memoized price for ticker, fetching it via fetch on
// first call. fetch runs outside the lock.
func (m *priceMemo) resolve(ticker string, fetch func() *float64) *float64 {
	m.mu.Lock()
	if e, ok := m.entries[ticker]; ok {
		m.mu.Unlock()
		<-e.done
		return e.price
	}
	e := &priceEntry{done: make(chan struct{})}
	m.entries[ticker] = e
	m.mu.Unlock()

	e.price = fetch()
	close(e.done)
	return e.price
}

// uniqueTickers returns the distinct tickers in input order.
func uniqueTickers(raws []models.RawPosition) []string {
	seen := make(map[string]bool, len(raws))
	out := make([]string, 0, len(raws))
	for _, r := range raws {
		if !seen[r.Ticker] {
			seen[r.Ticker] = true
			out = append(out, r.Ticker)
		}
	}
	return out
}

// summarize folds valued positions into portfolio totals.
//
// Zero total cost with positions present propagates NaN percentage. This
// is the documented contract at the live aggregate — do not coerce to 0.
func summarize(positions []models.Position, generatedAt time.Time) *models.PortfolioSummary {
	summary := &models.PortfolioSummary{
		Positions:   positions,
		GeneratedAt: generatedAt,
	}
	for _, p := range positions {
		summary.TotalCostJPY += p.CostJPY
		summary.TotalValueJPY += p.CurrentValueJPY
	}
	summary.TotalPnlJPY = summary.TotalValueJPY - summary.TotalCostJPY

	if summary.TotalCostJPY == 0 {
		summary.TotalPnlPercentage = math.NaN()
	} else {
		summary.TotalPnlPercentage = summary.TotalPnlJPY / summary.TotalCostJPY * 100
	}
	return summary
}

// Aggregate valuates all raw positions into a point-in-time summary.
//
// Duplicate tickers across lots stay separate positions; the result slice
// order matches the input order regardless of completion order. There is
// no partial-result contract — callers await completion or discard.
func (s *Service) Aggregate(ctx context.Context, raws []models.RawPosition, forceRefresh bool) (*models.PortfolioSummary, error) {
	if len(raws) == 0 {
		// Empty input is the one special case: all-zero totals, not NaN.
		return &models.PortfolioSummary{
			Positions:   []models.Position{},
			GeneratedAt: s.clock.Now(),
		}, nil
	}

	var batch map[string]*float64
	if forceRefresh {
		prices, err := s.market.GetCurrentPrices(ctx, uniqueTickers(raws))
		if err != nil {
			return nil, err
		}
		batch = prices
	}

	memo := newPriceMemo()
	positions := make([]models.Position, len(raws))
	errs := make([]error, len(raws))

	var wg sync.WaitGroup
	for i, raw := range raws {
		wg.Add(1)
		go func(i int, raw models.RawPosition) {
			defer wg.Done()

			var price *float64
			if batch != nil {
				price = batch[raw.Ticker]
			} else {
				price = memo.resolve(raw.Ticker, func() *float64 {
					p, err := s.market.GetCurrentPrice(ctx, raw.Ticker, false)
					if err != nil {
						s.logger.Warn().Str("ticker", raw.Ticker).Err(err).Msg("Price resolution failed")
						return nil
					}
					return p
				})
			}

			pos, err := s.valuator.Valuate(ctx, raw, price)
			if err != nil {
				errs[i] = err
				return
			}
			positions[i] = *pos
		}(i, raw)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	summary := summarize(positions, s.clock.Now())

	s.logger.Info().
		Int("positions", len(positions)).
		Float64("total_value_jpy", summary.TotalValueJPY).
		Bool("force_refresh", forceRefresh).
		Msg("Portfolio aggregated")

	return summary, nil
}

// Performance derives the portfolio-level return metrics from a summary.
func (s *Service) Performance(summary *models.PortfolioSummary) *models.PerformanceReport {
	now := s.clock.Now()
	return &models.PerformanceReport{
		Cagr:          CagrSinceInception(summary, now),
		MoneyWeighted: MoneyWeightedReturn(summary, now),
		GeneratedAt:   now,
	}
}
