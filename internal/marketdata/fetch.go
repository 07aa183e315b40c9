package marketdata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"volcast/internal/volatility"
)

// ClientConfig contains configuration for the daily-series HTTP client.
type ClientConfig struct {
	BaseURL           string        `json:"base_url"`            // Daily CSV endpoint
	Timeout           time.Duration `json:"timeout"`             // Per-request timeout
	RequestsPerSecond float64       `json:"requests_per_second"` // Shared rate limit
	Burst             int           `json:"burst"`               // Rate limiter burst size
	ValueColumn       string        `json:"value_column"`        // CSV column to read
}

// DefaultClientConfig returns settings for the Stooq daily CSV endpoint.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:           "https://stooq.com/q/d/l/",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2,
		Burst:             1,
		ValueColumn:       "close",
	}
}

// Client downloads daily index and price series over HTTPS. All requests
// pass through a shared rate limiter so concurrent fetches stay polite.
type Client struct {
	config  ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a rate-limited series client. Zero config fields fall
// back to DefaultClientConfig values; a nil logger uses slog.Default.
func NewClient(config ClientConfig, logger *slog.Logger) *Client {
	defaults := DefaultClientConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if config.ValueColumn == "" {
		config.ValueColumn = defaults.ValueColumn
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config: config,
		http: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		logger:  logger,
	}
}

// FetchDaily downloads the daily series for one symbol over [from, to].
func (c *Client) FetchDaily(ctx context.Context, symbol string, from, to time.Time) (volatility.Series, error) {
	if symbol == "" {
		return volatility.Series{}, &volatility.ValidationError{
			Field:   "symbol",
			Message: "symbol must not be empty",
		}
	}
	if to.Before(from) {
		return volatility.Series{}, &volatility.ValidationError{
			Field:   "range",
			Message: "end date precedes start date",
			Value:   fmt.Sprintf("%s..%s", from.Format("2006-01-02"), to.Format("2006-01-02")),
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return volatility.Series{}, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return volatility.Series{}, fmt.Errorf("create request for %s: %w", symbol, err)
	}
	query := url.Values{}
	query.Set("s", symbol)
	query.Set("d1", from.Format("20060102"))
	query.Set("d2", to.Format("20060102"))
	query.Set("i", "d")
	req.URL.RawQuery = query.Encode()
	req.Header.Set("User-Agent", "volcast-fetch/1.0")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return volatility.Series{}, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return volatility.Series{}, fmt.Errorf("fetch %s: status %d: %s", symbol, resp.StatusCode, string(body))
	}

	series, err := ReadSeries(resp.Body, c.config.ValueColumn)
	if err != nil {
		return volatility.Series{}, fmt.Errorf("parse %s response: %w", symbol, err)
	}

	c.logger.InfoContext(ctx, "fetched daily series",
		slog.String("symbol", symbol),
		slog.Int("rows", len(series.Dates)),
		slog.Duration("duration", time.Since(start)),
	)
	return series, nil
}

// FetchAll downloads several symbols concurrently under the shared rate
// limiter and returns them keyed by symbol. The first failure cancels the
// remaining fetches.
func (c *Client) FetchAll(ctx context.Context, symbols []string, from, to time.Time) (map[string]volatility.Series, error) {
	if len(symbols) == 0 {
		return nil, &volatility.ValidationError{
			Field:   "symbols",
			Message: "no symbols to fetch",
		}
	}

	var mu sync.Mutex
	out := make(map[string]volatility.Series, len(symbols))

	g, ctx := errgroup.WithContext(ctx)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			series, err := c.FetchDaily(ctx, symbol, from, to)
			if err != nil {
				return err
			}
			mu.Lock()
			out[symbol] = series
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
