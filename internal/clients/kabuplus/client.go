// Package kabuplus provides a client for the Kabu+ market data API
package kabuplus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/knakatani/kabufolio/internal/common"
	"github.com/knakatani/kabufolio/internal/models"
)

const (
	DefaultBaseURL   = "https://api.kabuplus.jp/v1"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second

	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" || s == "-" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

// Client implements the MarketDataClient interface against the Kabu+ API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Kabu+ client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kabuplus API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// retryable reports whether a request should be retried: rate-limit
// signals and transient upstream failures.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// get performs a rate-limited GET with bounded exponential backoff on
// 429/5xx. A 404 is returned as an APIError so callers can map it to a
// nil (no data) result.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := retryBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			c.logger.Debug().Str("path", path).Int("attempt", attempt+1).Msg("Retrying kabuplus request")
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to execute request: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				Message:    string(body),
				Endpoint:   path,
			}
			if retryable(resp.StatusCode) {
				lastErr = apiErr
				continue
			}
			return apiErr
		}

		err = json.NewDecoder(resp.Body).Decode(result)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	return lastErr
}

// isNotFound reports whether err is an APIError for a missing resource.
func isNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// priceResponse represents the API response for a current price
type priceResponse struct {
	Ticker string      `json:"ticker"`
	Price  flexFloat64 `json:"price"`
	Date   string      `json:"date"`
}

// GetCurrentPrice retrieves the latest price for a ticker.
// Returns nil (no error) when the upstream has no data.
func (c *Client) GetCurrentPrice(ctx context.Context, ticker string) (*float64, error) {
	path := fmt.Sprintf("/price/%s", url.PathEscape(ticker))

	var resp priceResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if resp.Price <= 0 {
		return nil, nil
	}

	price := float64(resp.Price)
	c.logger.Debug().Str("ticker", ticker).Float64("price", price).Msg("Fetched current price")
	return &price, nil
}

// eodBarResponse represents one bar in the historical price response
type eodBarResponse struct {
	Date  string      `json:"date"`
	Close flexFloat64 `json:"close"`
}

// GetHistoricalPrices retrieves close prices since a date, keyed by
// canonical YYYY-MM-DD. Sparse upstream data maps straight through.
func (c *Client) GetHistoricalPrices(ctx context.Context, ticker string, since time.Time) (map[string]float64, error) {
	params := url.Values{}
	if !since.IsZero() {
		params.Set("from", since.Format(models.DateLayout))
	}

	path := fmt.Sprintf("/eod/%s", url.PathEscape(ticker))

	var bars []eodBarResponse
	if err := c.get(ctx, path, params, &bars); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	prices := make(map[string]float64, len(bars))
	for _, bar := range bars {
		date, err := models.NormalizeDate(bar.Date)
		if err != nil || bar.Close <= 0 {
			continue
		}
		prices[date] = float64(bar.Close)
	}

	c.logger.Debug().Str("ticker", ticker).Int("bars", len(prices)).Msg("Fetched historical prices")
	return prices, nil
}

// fxResponse represents the API response for an FX rate
type fxResponse struct {
	Pair string      `json:"pair"`
	Rate flexFloat64 `json:"rate"`
	Date string      `json:"date"`
}

// GetCurrentFXRate retrieves the latest rate for a pair like "USDJPY".
func (c *Client) GetCurrentFXRate(ctx context.Context, pair string) (*float64, error) {
	path := fmt.Sprintf("/fx/%s", url.PathEscape(pair))

	var resp fxResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if resp.Rate <= 0 {
		return nil, nil
	}

	r := float64(resp.Rate)
	return &r, nil
}

// GetHistoricalFXRate retrieves the rate for a pair on a specific date.
func (c *Client) GetHistoricalFXRate(ctx context.Context, pair string, date time.Time) (*float64, error) {
	params := url.Values{}
	params.Set("date", date.Format(models.DateLayout))

	path := fmt.Sprintf("/fx/%s/history", url.PathEscape(pair))

	var resp fxResponse
	if err := c.get(ctx, path, params, &resp); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if resp.Rate <= 0 {
		return nil, nil
	}

	r := float64(resp.Rate)
	return &r, nil
}
