// Package engine combines the market data sources into one AggregationResult
// per refresh pass. Source failures are logged at the source boundary and
// reduce to an absent field; they never abort the pass.
package engine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/cryptoverlay/internal/metrics"
	"github.com/seenimoa/cryptoverlay/pkg/models"
	"github.com/seenimoa/cryptoverlay/pkg/utils"
)

// Source is the identity shared by every data source.
type Source interface {
	Name() string
	Endpoint() string
}

// RateSource provides the USD to local-currency rate.
type RateSource interface {
	Source
	USDRate(ctx context.Context) (float64, error)
}

// PriceSource provides current primary-market spot prices.
type PriceSource interface {
	Source
	Price(ctx context.Context, symbol string) (float64, error)
}

// ReferenceSource provides the primary-market price at the reference hour.
type ReferenceSource interface {
	Source
	ReferencePrice(ctx context.Context, symbol string) (models.ReferencePrice, error)
}

// TickerSource provides batched secondary-market prices keyed by market code.
type TickerSource interface {
	Source
	Tickers(ctx context.Context, markets []string) (map[string]float64, error)
}

// Engine runs aggregation passes. It holds no per-pass state and is safe for
// concurrent use, though the refresher only ever runs one pass at a time.
type Engine struct {
	fx        RateSource
	primary   PriceSource
	reference ReferenceSource
	secondary TickerSource

	mapper      utils.SymbolMapper
	concurrency int
	log         logrus.FieldLogger
	metrics     metrics.Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithMapper sets the primary to secondary symbol mapper.
func WithMapper(m utils.SymbolMapper) Option {
	return func(e *Engine) { e.mapper = m }
}

// WithConcurrency bounds per-symbol fetches running in parallel.
// Values below 2 keep the fetches sequential.
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.concurrency = n }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

// New creates an engine over the four data sources.
func New(fx RateSource, primary PriceSource, reference ReferenceSource, secondary TickerSource, opts ...Option) *Engine {
	e := &Engine{
		fx:          fx,
		primary:     primary,
		reference:   reference,
		secondary:   secondary,
		mapper:      utils.DefaultSymbolMapper(),
		concurrency: 1,
		log:         logrus.StandardLogger(),
		metrics:     metrics.NewNoOpCollector(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mapper returns the symbol mapper in use.
func (e *Engine) Mapper() utils.SymbolMapper { return e.mapper }

// symbolFetch holds the per-symbol inputs gathered before metrics are computed.
type symbolFetch struct {
	symbol    string
	price     *float64
	reference *float64
	market    string
	mapped    bool
}

// Aggregate runs one pass over symbols. Input is normalised first: each
// symbol is trimmed and upper-cased, and blank and duplicate symbols are
// skipped. The result is keyed by the normalised symbol, so "btcusdt" is
// returned under "BTCUSDT". Every remaining symbol has an entry in the
// result, with absent fields where data could not be obtained.
func (e *Engine) Aggregate(ctx context.Context, symbols []string) models.AggregationResult {
	symbols = utils.NormalizeSymbols(symbols)

	rate := e.usdRate(ctx)

	fetches := make([]symbolFetch, len(symbols))
	for i, sym := range symbols {
		fetches[i].symbol = sym
		fetches[i].market, fetches[i].mapped = e.mapper.ToSecondary(sym)
	}
	e.fetchSymbols(ctx, fetches)

	markets := make([]string, 0, len(fetches))
	for _, f := range fetches {
		if f.mapped {
			markets = append(markets, f.market)
		}
	}
	secondary := e.secondaryPrices(ctx, markets)

	result := make(models.AggregationResult, len(fetches))
	for _, f := range fetches {
		q := models.SymbolQuote{
			Symbol:    f.symbol,
			Price:     f.price,
			ChangePct: ChangePct(f.price, f.reference),
		}
		if f.mapped {
			if s, ok := secondary[f.market]; ok {
				q.PremiumPct = PremiumPct(f.price, rate, &s)
			}
		}
		result[f.symbol] = q
	}
	return result
}

// fetchSymbols fills price and reference for every entry, sequentially or
// over a bounded worker pool. Each worker writes only its own slot.
func (e *Engine) fetchSymbols(ctx context.Context, fetches []symbolFetch) {
	fetchOne := func(f *symbolFetch) {
		f.price = e.primaryPrice(ctx, f.symbol)
		f.reference = e.referencePrice(ctx, f.symbol)
	}

	if e.concurrency < 2 || len(fetches) < 2 {
		for i := range fetches {
			fetchOne(&fetches[i])
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range fetches {
		f := &fetches[i]
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("fetch %s: panic: %v", f.symbol, r)
				}
			}()
			fetchOne(f)
			return nil
		})
	}
	// Worker panics are re-raised on the calling goroutine so the refresher
	// can recover them like any other pass-level fault.
	if err := g.Wait(); err != nil {
		panic(err)
	}
}

// --- Source boundaries: log, count, and reduce failures to absence ---

func (e *Engine) usdRate(ctx context.Context) float64 {
	rate, err := e.fx.USDRate(ctx)
	if err != nil {
		e.sourceFailed(e.fx, err, logrus.Fields{})
		return 0
	}
	return rate
}

func (e *Engine) primaryPrice(ctx context.Context, symbol string) *float64 {
	price, err := e.primary.Price(ctx, symbol)
	if err != nil {
		e.sourceFailed(e.primary, err, logrus.Fields{"symbol": symbol})
		return nil
	}
	return models.Float(price)
}

func (e *Engine) referencePrice(ctx context.Context, symbol string) *float64 {
	ref, err := e.reference.ReferencePrice(ctx, symbol)
	if err != nil {
		e.sourceFailed(e.reference, err, logrus.Fields{
			"symbol":      symbol,
			"target_date": utils.FormatDate(ref.Date),
		})
		return nil
	}
	e.log.WithFields(logrus.Fields{
		"symbol":      symbol,
		"target_date": utils.FormatDate(ref.Date),
		"price":       ref.Price,
	}).Debug("reference price")
	return models.Float(ref.Price)
}

func (e *Engine) secondaryPrices(ctx context.Context, markets []string) map[string]float64 {
	if len(markets) == 0 {
		return map[string]float64{}
	}
	prices, err := e.secondary.Tickers(ctx, markets)
	if err != nil {
		e.sourceFailed(e.secondary, err, logrus.Fields{"markets": len(markets)})
		return map[string]float64{}
	}
	if prices == nil {
		return map[string]float64{}
	}
	return prices
}

func (e *Engine) sourceFailed(src Source, err error, fields logrus.Fields) {
	fields["source"] = src.Name()
	fields["endpoint"] = src.Endpoint()
	e.log.WithFields(fields).WithError(err).Warn("source fetch failed")
	e.metrics.RecordSourceFailure(src.Name())
}
