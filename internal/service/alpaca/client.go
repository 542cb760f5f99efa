package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"StockFrame/internal/domain/models"
	drepo "StockFrame/internal/domain/repository"
	"StockFrame/internal/service/cache"
	"StockFrame/internal/service/ratelimit"
	xhttp "StockFrame/pkg/http"
	applogger "StockFrame/pkg/logger"
)

const (
	HeaderKeyID  = "APCA-API-KEY-ID"
	HeaderSecret = "APCA-API-SECRET-KEY"

	limiterKey = "alpaca"
)

// Config holds the market data endpoint settings.
type Config struct {
	BaseURL      string
	KeyID        string
	SecretKey    string
	Timeframe    string
	PageLimit    int
	RateLimit    float64 // requests per second, shared by all fetches
	Burst        int
	MaxRetries   int
	RetryBackoff time.Duration
	CacheTTL     time.Duration
}

// Option configures Client.
type Option func(*Client)

// Client fetches historical minute bars from the Alpaca data API.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	cache   cache.BytesCache
	metrics drepo.Metrics
	l       *applogger.Logger
}

var _ drepo.BarSource = (*Client)(nil)

// New validates cfg and builds a client. Missing credentials fail with
// models.ErrConfiguration.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("%w: alpaca key id and secret are required", models.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://data.alpaca.markets"
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "1Min"
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(xhttp.WithTimeout(30*time.Second), xhttp.WithUserAgent("stockframe"))
	}
	return c, nil
}

// WithHTTPClient sets the transport client.
func WithHTTPClient(h *xhttp.Client) Option { return func(c *Client) { c.http = h } }

// WithLimiter shares a rate-limit gate between fetches.
func WithLimiter(l *ratelimit.Limiter) Option { return func(c *Client) { c.limiter = l } }

// WithCache enables caching of complete per-ticker results.
func WithCache(bc cache.BytesCache) Option { return func(c *Client) { c.cache = bc } }

// WithMetrics sets the metrics recorder.
func WithMetrics(m drepo.Metrics) Option { return func(c *Client) { c.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) Option { return func(c *Client) { c.l = l } }

// FetchBars returns every bar of ticker in [start, end), following page tokens
// until the provider reports the last page.
func (c *Client) FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]models.Bar, error) {
	key := cache.BarsKey(ticker, start, end, c.cfg.Timeframe)
	if bars, ok := c.cached(key); ok {
		return bars, nil
	}

	var (
		out   []models.Bar
		token string
		pages int
	)
	for {
		p, err := c.fetchPage(ctx, ticker, start, end, token)
		if err != nil {
			return nil, fmt.Errorf("%s page %d: %w", ticker, pages+1, err)
		}
		pages++
		out = append(out, p.bars...)
		if p.last {
			break
		}
		token = p.next
	}

	if c.l != nil {
		c.l.Debug("alpaca bars fetched",
			applogger.String("symbol", ticker),
			applogger.Int("pages", pages),
			applogger.Int("bars", len(out)),
		)
	}
	c.store(key, out)
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, ticker string, start, end time.Time, token string) (*page, error) {
	q := url.Values{}
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))
	q.Set("timeframe", c.cfg.Timeframe)
	if c.cfg.PageLimit > 0 {
		q.Set("limit", strconv.Itoa(c.cfg.PageLimit))
	}
	if token != "" {
		q.Set("page_token", token)
	}
	req := &xhttp.Request{
		URL:    fmt.Sprintf("%s/v2/stocks/%s/bars", c.cfg.BaseURL, url.PathEscape(ticker)),
		Header: http.Header{HeaderKeyID: {c.cfg.KeyID}, HeaderSecret: {c.cfg.SecretKey}},
		Query:  q,
	}

	var body []byte
	for attempt := 0; ; attempt++ {
		if c.limiter != nil && c.cfg.RateLimit > 0 {
			if err := c.limiter.Wait(ctx, limiterKey, float64(c.cfg.Burst), c.cfg.RateLimit); err != nil {
				return nil, err
			}
		}
		var err error
		body, err = c.http.Do(ctx, req)
		if err == nil {
			break
		}
		var se *xhttp.StatusError
		if !errors.As(err, &se) || !se.Retryable() || attempt >= c.cfg.MaxRetries {
			return nil, err
		}
		wait := c.cfg.RetryBackoff << attempt
		if se.RetryAfter > wait {
			wait = se.RetryAfter
		}
		if c.l != nil {
			c.l.Warn("alpaca request retry",
				applogger.String("symbol", ticker),
				applogger.Int("status", se.Status),
				applogger.Int("attempt", attempt+1),
				applogger.Duration("backoff_ms", wait),
			)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	if c.metrics != nil {
		c.metrics.RecordPageFetched(ticker)
	}
	return decodePage(body)
}

func (c *Client) cached(key string) ([]models.Bar, bool) {
	if c.cache == nil || c.cfg.CacheTTL <= 0 {
		return nil, false
	}
	b, ok, err := c.cache.GetBytes(key)
	if err != nil || !ok {
		if err != nil && c.l != nil {
			c.l.Warn("bars cache read failed", applogger.String("key", key), applogger.Error(err))
		}
		return nil, false
	}
	var bars []models.Bar
	if err := json.Unmarshal(b, &bars); err != nil {
		return nil, false
	}
	return bars, true
}

func (c *Client) store(key string, bars []models.Bar) {
	if c.cache == nil || c.cfg.CacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(bars)
	if err != nil {
		return
	}
	if err := c.cache.SetBytes(key, b, c.cfg.CacheTTL); err != nil && c.l != nil {
		c.l.Warn("bars cache write failed", applogger.String("key", key), applogger.Error(err))
	}
}
