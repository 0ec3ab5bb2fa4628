package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/cryptoverlay/internal/alerts"
	"github.com/seenimoa/cryptoverlay/internal/config"
	"github.com/seenimoa/cryptoverlay/internal/datasource"
	"github.com/seenimoa/cryptoverlay/internal/display"
	"github.com/seenimoa/cryptoverlay/internal/engine"
	"github.com/seenimoa/cryptoverlay/internal/metrics"
	"github.com/seenimoa/cryptoverlay/internal/store"
	"github.com/seenimoa/cryptoverlay/pkg/utils"
)

// sources holds the concrete data sources built from config.
type sources struct {
	fx      *datasource.FXRate
	binance *datasource.Binance
	upbit   *datasource.Upbit
	mapper  utils.SymbolMapper
}

func buildSources(c *config.Config) (*sources, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(c.HTTP.Timeout) * time.Second
	client := datasource.NewHTTPClient(timeout)

	var fxOpts []datasource.FXOption
	if c.Sources.FX.FallbackURL != "" && c.Sources.FX.FallbackSelector != "" {
		fxOpts = append(fxOpts, datasource.WithFallback(c.Sources.FX.FallbackURL, c.Sources.FX.FallbackSelector))
	}

	return &sources{
		fx: datasource.NewFXRate(c.Sources.FX.URL, c.Sources.FX.Currency, client, fxOpts...),
		binance: datasource.NewBinance(c.Sources.Primary.BaseURL, client,
			datasource.WithRateLimit(c.Sources.Primary.RateLimit),
			datasource.WithReferenceHour(c.Reference.Hour),
			datasource.WithLocation(loc),
			datasource.WithReferenceCacheTTL(time.Duration(c.Reference.CacheTTL)*time.Second),
		),
		upbit:  datasource.NewUpbit(c.Sources.Secondary.BaseURL, client),
		mapper: utils.SymbolMapper{Suffix: c.Sources.Secondary.Suffix, Quote: c.Sources.Secondary.Quote},
	}, nil
}

// buildEngine validates c and wires the aggregation engine over live sources.
func buildEngine(c *config.Config, log logrus.FieldLogger, rec metrics.Recorder) (*engine.Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	src, err := buildSources(c)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"reference_hour": c.Reference.Hour,
		"timezone":       c.Reference.Timezone,
		"http_timeout":   c.HTTP.Timeout,
	}).Debug("sources configured")

	return engine.New(src.fx, src.binance, src.binance, src.upbit,
		engine.WithMapper(src.mapper),
		engine.WithConcurrency(c.Engine.ConcurrentFetches),
		engine.WithLogger(log),
		engine.WithMetrics(rec),
	), nil
}

// alertRules converts the configured rule map to evaluator rules.
func alertRules(c *config.Config) []alerts.Rule {
	rules := make([]alerts.Rule, 0, len(c.Alerts.Rules))
	for sym, r := range c.Alerts.Rules {
		rules = append(rules, alerts.Rule{Symbol: sym, Above: r.Above, Below: r.Below})
	}
	return rules
}

// sinkSet holds the opened sinks. The Postgres and Redis stores are nil
// unless enabled; they double as the history and snapshot readers.
type sinkSet struct {
	all      *store.Multi
	postgres *store.Postgres
	redis    *store.Redis
}

// openSinks connects the enabled storage sinks.
func openSinks(ctx context.Context, c *config.Config, log logrus.FieldLogger) (*sinkSet, error) {
	var (
		sinks []store.Sink
		set   sinkSet
		errs  []error
	)

	if c.Redis.Enabled {
		r, err := store.NewRedis(ctx, c.Redis)
		if err != nil {
			errs = append(errs, err)
		} else {
			set.redis = r
			sinks = append(sinks, r)
			log.WithField("addr", c.Redis.Addr).Info("redis sink enabled")
		}
	}

	if c.Postgres.Enabled {
		p, err := openPostgres(ctx, c)
		if err != nil {
			errs = append(errs, err)
		} else {
			set.postgres = p
			sinks = append(sinks, p)
			log.Info("postgres sink enabled")
		}
	}

	set.all = store.NewMulti(sinks...)
	if err := errors.Join(errs...); err != nil {
		_ = set.all.Close()
		return nil, err
	}
	return &set, nil
}

func openPostgres(ctx context.Context, c *config.Config) (*store.Postgres, error) {
	p, err := store.NewPostgres(ctx, c.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	if err := p.InitSchema(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// toggler cycles the display mode.
type toggler interface {
	Toggle() display.Mode
}

// watchToggles advances t once per value received on sig until ctx is done.
func watchToggles(ctx context.Context, sig <-chan os.Signal, t toggler, log logrus.FieldLogger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			log.WithField("mode", t.Toggle()).Info("display mode changed")
		}
	}
}
