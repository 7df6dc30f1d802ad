// Package marketdata implements the HTTP client for the data service that
// serves OHLCV bars and computed indicators.
//
// GetBarData is the composite entry point most callers want: it fetches
// bars and indicators concurrently, tolerates a missing indicator feed, and
// left-joins the two series by timestamp.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stratprobe/internal/logger"
	"stratprobe/internal/market"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	backoffBase       = 500 * time.Millisecond
)

// Config holds client settings. Zero values fall back to package defaults.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	EnableCache bool
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	return c
}

// Client fetches bars and indicators over HTTP with retry and an optional
// in-memory cache. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	cache      *barDataCache
	cacheOn    bool
}

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	final := cfg.withDefaults()
	if final.BaseURL == "" {
		return nil, fmt.Errorf("marketdata: base URL is required")
	}
	return &Client{
		baseURL:    final.BaseURL,
		httpClient: &http.Client{Timeout: final.Timeout},
		maxRetries: final.MaxRetries,
		cache:      newBarDataCache(),
		cacheOn:    final.EnableCache,
	}, nil
}

// SetHTTPClient overrides the HTTP client, for tests.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

type barsResponse struct {
	Symbol    string       `json:"symbol"`
	Timeframe string       `json:"timeframe"`
	Count     int          `json:"count"`
	Bars      []barPayload `json:"bars"`
}

type barPayload struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type indicatorsResponse struct {
	Symbol         string             `json:"symbol"`
	Timeframe      string             `json:"timeframe"`
	Count          int                `json:"count"`
	IndicatorNames []string           `json:"indicator_names"`
	Rows           []indicatorPayload `json:"rows"`
}

type indicatorPayload struct {
	Timestamp  string             `json:"timestamp"`
	Indicators map[string]float64 `json:"indicators"`
}

// GetBars fetches OHLCV bars for the given range. Records whose timestamps
// parse under none of the known formats are dropped with a warning instead
// of failing the fetch.
func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]market.Bar, error) {
	body, err := c.doGet(ctx, "/api/bars", rangeParams(symbol, timeframe, start, end))
	if err != nil {
		return nil, fmt.Errorf("GetBars: %w", err)
	}
	var resp barsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("GetBars: decoding response: %w", err)
	}
	bars := make([]market.Bar, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		ts, err := market.ParseTimestamp(b.Timestamp)
		if err != nil {
			logger.Warnf("[marketdata] dropping bar with unparseable timestamp %q: %v", b.Timestamp, err)
			continue
		}
		bars = append(bars, market.Bar{
			Timestamp: ts,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	logger.Debugf("[marketdata] fetched %d bars for %s %s", len(bars), symbol, timeframe)
	return bars, nil
}

// GetIndicators fetches computed indicator rows keyed by timestamp. NaN and
// infinite values are omitted from a row so consumers can tell missing from
// zero.
func (c *Client) GetIndicators(ctx context.Context, symbol, timeframe string, start, end time.Time) (map[time.Time]market.IndicatorRow, error) {
	body, err := c.doGet(ctx, "/api/indicators", rangeParams(symbol, timeframe, start, end))
	if err != nil {
		return nil, fmt.Errorf("GetIndicators: %w", err)
	}
	var resp indicatorsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("GetIndicators: decoding response: %w", err)
	}
	result := make(map[time.Time]market.IndicatorRow, len(resp.Rows))
	for _, row := range resp.Rows {
		ts, err := market.ParseTimestamp(row.Timestamp)
		if err != nil {
			logger.Warnf("[marketdata] dropping indicator row with unparseable timestamp %q: %v", row.Timestamp, err)
			continue
		}
		indRow := make(market.IndicatorRow, len(row.Indicators))
		for k, v := range row.Indicators {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				indRow[k] = v
			}
		}
		result[ts] = indRow
	}
	logger.Debugf("[marketdata] fetched %d indicator rows for %s %s", len(result), symbol, timeframe)
	return result, nil
}

// GetBarData returns the merged bar+indicator series for the range. Bars and
// indicators are fetched concurrently; a bars failure fails the call and
// cancels the outstanding indicator fetch, while an indicator failure only
// degrades the result to empty rows. Results are cached by exact
// (symbol, timeframe, start, end) when caching is enabled.
func (c *Client) GetBarData(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]market.BarData, error) {
	cacheKey := fmt.Sprintf("%s|%s|%s|%s", symbol, timeframe,
		start.Format(time.RFC3339), end.Format(time.RFC3339))

	if c.cacheOn {
		if data, ok := c.cache.get(cacheKey); ok {
			logger.Debugf("[marketdata] cache hit for %s", cacheKey)
			return data, nil
		}
	}

	var (
		bars       []market.Bar
		indicators map[time.Time]market.IndicatorRow
		indErr     error
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		fetched, err := c.GetBars(groupCtx, symbol, timeframe, start, end)
		if err != nil {
			return fmt.Errorf("bars: %w", err)
		}
		bars = fetched
		return nil
	})
	group.Go(func() error {
		rows, err := c.GetIndicators(groupCtx, symbol, timeframe, start, end)
		if err != nil {
			// Indicators are optional; remember the error but don't fail
			// the group.
			indErr = err
			return nil
		}
		indicators = rows
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("GetBarData: %w", err)
	}
	if indErr != nil {
		logger.Warnf("[marketdata] indicators unavailable for %s %s, proceeding with bars only: %v",
			symbol, timeframe, indErr)
	}

	barData := make([]market.BarData, 0, len(bars))
	for _, bar := range bars {
		row := market.IndicatorRow{}
		if indicators != nil {
			if matched, ok := indicators[bar.Timestamp]; ok {
				row = matched
			}
		}
		barData = append(barData, market.BarData{Bar: bar, Indicators: row})
	}

	if c.cacheOn {
		c.cache.put(cacheKey, barData)
	}
	logger.Infof("[marketdata] merged %d bars for %s %s", len(barData), symbol, timeframe)
	return barData, nil
}

// ClearCache drops every cached entry.
func (c *Client) ClearCache() {
	c.cache.clear()
	logger.Debugf("[marketdata] cache cleared")
}

func rangeParams(symbol, timeframe string, start, end time.Time) url.Values {
	return url.Values{
		"symbol":          {symbol},
		"timeframe":       {timeframe},
		"start_timestamp": {start.Format(time.RFC3339)},
		"end_timestamp":   {end.Format(time.RFC3339)},
	}
}

// doGet issues one GET with retries and exponential backoff. 5xx and
// transport errors are retried; 400/404 and every other status are terminal.
// Backoff waits abort immediately when ctx is cancelled.
func (c *Client) doGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := backoffBase * time.Duration(1<<uint(attempt-1))
			logger.Debugf("[marketdata] retrying in %s (attempt %d) %s", backoff, attempt, u)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			logger.Warnf("[marketdata] request failed (attempt %d): %v", attempt, err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("reading response body: %w", readErr)
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil
		case resp.StatusCode == http.StatusBadRequest:
			if detail := errorDetail(body); detail != "" {
				return nil, fmt.Errorf("bad request: %s", detail)
			}
			return nil, fmt.Errorf("bad request (status %d)", resp.StatusCode)
		case resp.StatusCode == http.StatusNotFound:
			if detail := errorDetail(body); detail != "" {
				return nil, fmt.Errorf("not found: %s", detail)
			}
			return nil, fmt.Errorf("not found (status %d)", resp.StatusCode)
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error (status %d)", resp.StatusCode)
			logger.Warnf("[marketdata] server error %d (attempt %d), will retry", resp.StatusCode, attempt)
			continue
		default:
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
	}

	return nil, fmt.Errorf("all %d retries exhausted: %w", c.maxRetries, lastErr)
}

// errorDetail pulls the `detail` field out of the service's error envelope.
func errorDetail(body []byte) string {
	d := gjson.GetBytes(body, "detail")
	if d.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(d.String())
}
