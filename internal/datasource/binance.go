package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/seenimoa/cryptoverlay/pkg/models"
	"github.com/seenimoa/cryptoverlay/pkg/utils"
)

// DefaultBinanceURL is the primary-market REST base URL.
const DefaultBinanceURL = "https://api.binance.com"

const (
	binancePricePath  = "/api/v3/ticker/price"
	binanceKlinesPath = "/api/v3/klines"
)

// Binance is the primary-market source: current spot prices and the
// reference (09:00) open used as the daily baseline.
type Binance struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	refs    *Cache[float64] // reference opens keyed by symbol and day
	refMu   sync.Mutex
	refDay  string // last reference day seen; a change triggers cache cleanup
	refHour int
	loc     *time.Location
	now     func() time.Time
}

// BinanceOption configures a Binance source.
type BinanceOption func(*Binance)

// WithRateLimit caps outbound requests per second. Zero or negative disables the cap.
func WithRateLimit(perSecond int) BinanceOption {
	return func(b *Binance) {
		if perSecond <= 0 {
			b.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		b.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
	}
}

// WithReferenceHour sets the local hour whose candle open is the baseline.
func WithReferenceHour(hour int) BinanceOption {
	return func(b *Binance) { b.refHour = hour }
}

// WithLocation sets the timezone the reference hour is evaluated in.
func WithLocation(loc *time.Location) BinanceOption {
	return func(b *Binance) { b.loc = loc }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) BinanceOption {
	return func(b *Binance) { b.now = now }
}

// WithReferenceCacheTTL sets how long fetched reference opens are reused.
// Zero disables the cache.
func WithReferenceCacheTTL(ttl time.Duration) BinanceOption {
	return func(b *Binance) { b.refs = NewCache[float64](ttl) }
}

// NewBinance creates a primary-market source. An empty baseURL selects DefaultBinanceURL.
func NewBinance(baseURL string, client *http.Client, opts ...BinanceOption) *Binance {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	if client == nil {
		client = NewHTTPClient(DefaultTimeout)
	}
	b := &Binance{
		baseURL: baseURL,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(10), 10),
		refs:    NewCache[float64](time.Hour),
		refHour: utils.DefaultReferenceHour,
		loc:     time.Local,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.refs.now = b.now
	return b
}

// Name returns the data source name.
func (b *Binance) Name() string { return "binance" }

// Endpoint returns the spot-price endpoint, for diagnostics.
func (b *Binance) Endpoint() string { return buildURL(b.baseURL, binancePricePath, nil) }

type binanceTicker struct {
	Symbol string    `json:"symbol"`
	Price  flexFloat `json:"price"`
}

// Price returns the current spot price for symbol.
func (b *Binance) Price(ctx context.Context, symbol string) (float64, error) {
	if symbol == "" {
		return 0, ErrEmptySymbol
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	q := url.Values{"symbol": {symbol}}
	var resp binanceTicker
	if err := getJSON(ctx, b.client, buildURL(b.baseURL, binancePricePath, q), &resp); err != nil {
		return 0, fmt.Errorf("binance price %s: %w", symbol, err)
	}
	return float64(resp.Price), nil
}

// ReferenceWindow returns the reference window for the current wall clock.
func (b *Binance) ReferenceWindow() utils.ReferenceWindow {
	return utils.ReferenceWindowAt(b.now(), b.refHour, b.loc)
}

// ReferencePrice returns the open of the one-hour candle starting at the
// reference hour of the reference day. Date is populated even on error.
func (b *Binance) ReferencePrice(ctx context.Context, symbol string) (models.ReferencePrice, error) {
	w := b.ReferenceWindow()
	ref := models.ReferencePrice{Symbol: symbol, Date: w.Start}
	if symbol == "" {
		return ref, ErrEmptySymbol
	}

	day := utils.FormatDate(w.Day)
	b.rollReferenceDay(day)

	cacheKey := symbol + ":" + day
	if p, ok := b.refs.Get(cacheKey); ok {
		ref.Price = p
		return ref, nil
	}

	candles, err := b.Klines(ctx, symbol, models.Interval1Hour, w.Start, w.End, 1)
	if err != nil {
		return ref, fmt.Errorf("reference price %s on %s: %w", symbol, utils.FormatDate(w.Day), err)
	}
	if len(candles) == 0 {
		return ref, fmt.Errorf("reference price %s on %s: %w", symbol, utils.FormatDate(w.Day), ErrNoCandle)
	}

	// The open of the bar starting at the reference hour is the price at that hour.
	ref.Price = candles[0].Open
	b.refs.Set(cacheKey, ref.Price)
	return ref, nil
}

// rollReferenceDay drops expired reference opens once per reference-day change.
func (b *Binance) rollReferenceDay(day string) {
	b.refMu.Lock()
	defer b.refMu.Unlock()
	if b.refDay == day {
		return
	}
	if b.refDay != "" {
		b.refs.Cleanup()
	}
	b.refDay = day
}

// Klines returns candles for symbol in [start, end), at most limit bars.
func (b *Binance) Klines(ctx context.Context, symbol string, interval models.Interval, start, end time.Time, limit int) ([]models.Candle, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{
		"symbol":    {symbol},
		"interval":  {string(interval)},
		"startTime": {strconv.FormatInt(start.UnixMilli(), 10)},
		"endTime":   {strconv.FormatInt(end.UnixMilli(), 10)},
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var raw [][]json.RawMessage
	if err := getJSON(ctx, b.client, buildURL(b.baseURL, binanceKlinesPath, q), &raw); err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", symbol, err)
	}
	return parseKlines(raw)
}

// parseKlines converts Binance kline arrays:
// [openTime, "open", "high", "low", "close", "volume", closeTime, ...]
func parseKlines(raw [][]json.RawMessage) ([]models.Candle, error) {
	candles := make([]models.Candle, 0, len(raw))
	for i, row := range raw {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline %d: expected at least 6 fields, got %d", i, len(row))
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, fmt.Errorf("kline %d open time: %w", i, err)
		}
		var vals [5]flexFloat
		for j := range vals {
			if err := json.Unmarshal(row[j+1], &vals[j]); err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
		}
		candles = append(candles, models.Candle{
			OpenTime: time.UnixMilli(openTime),
			Open:     float64(vals[0]),
			High:     float64(vals[1]),
			Low:      float64(vals[2]),
			Close:    float64(vals[3]),
			Volume:   float64(vals[4]),
		})
	}
	return candles, nil
}
