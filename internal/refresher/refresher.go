// Package refresher runs aggregation passes off the caller's goroutine and
// guarantees at most one pass in flight. A request made while a pass is
// running is dropped, not queued.
package refresher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/cryptoverlay/internal/metrics"
	"github.com/seenimoa/cryptoverlay/pkg/models"
	"github.com/seenimoa/cryptoverlay/pkg/utils"
)

// Aggregator runs one aggregation pass.
type Aggregator interface {
	Aggregate(ctx context.Context, symbols []string) models.AggregationResult
}

// Outcome is the result of one pass: an Update on success, or a
// human-readable message in Err on failure.
type Outcome struct {
	Update models.Update
	Err    string
}

// Failed reports whether the pass failed.
func (o Outcome) Failed() bool { return o.Err != "" }

// Refresher is the background execution wrapper around an Aggregator.
type Refresher struct {
	agg      Aggregator
	inFlight atomic.Bool
	wg       sync.WaitGroup
	last     atomic.Pointer[models.Update]

	outcomes chan Outcome

	log     logrus.FieldLogger
	metrics metrics.Recorder
	now     func() time.Time
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Refresher) {
		if log != nil {
			r.log = log
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(r *Refresher) {
		if m != nil {
			r.metrics = m
		}
	}
}

// New creates a refresher over agg.
func New(agg Aggregator, opts ...Option) *Refresher {
	r := &Refresher{
		agg:      agg,
		outcomes: make(chan Outcome, 1),
		log:      logrus.StandardLogger(),
		metrics:  metrics.NewNoOpCollector(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Outcomes delivers one Outcome per pass, in the order the passes ran.
func (r *Refresher) Outcomes() <-chan Outcome { return r.outcomes }

// InFlight reports whether a pass is running.
func (r *Refresher) InFlight() bool { return r.inFlight.Load() }

// Last returns the most recent successful update.
func (r *Refresher) Last() (models.Update, bool) {
	u := r.last.Load()
	if u == nil {
		return models.Update{}, false
	}
	return *u, true
}

// Wait blocks until the in-flight pass, if any, has finished.
func (r *Refresher) Wait() { r.wg.Wait() }

// RequestRefresh starts a pass over symbols unless one is already running.
// It reports whether a pass was started. ctx bounds the pass and the
// delivery of its outcome; once it is done an undelivered outcome is dropped.
func (r *Refresher) RequestRefresh(ctx context.Context, symbols []string) bool {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.log.Debug("refresh already in flight, request dropped")
		r.metrics.RecordRefreshDropped()
		return false
	}

	syms := utils.NormalizeSymbols(symbols)
	r.wg.Add(1)
	go r.run(ctx, syms)
	return true
}

func (r *Refresher) run(ctx context.Context, symbols []string) {
	defer r.wg.Done()
	// Cleared last, after the outcome is on the channel. Both outcome kinds
	// share one FIFO channel, so pass N is received before pass N+1.
	defer r.inFlight.Store(false)

	passID := uuid.NewString()
	started := r.now()
	log := r.log.WithFields(logrus.Fields{"pass_id": passID, "symbols": len(symbols)})

	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", rec).Error("aggregation pass failed")
			r.metrics.RecordPass(metrics.StatusError, r.now().Sub(started))
			r.deliver(ctx, log, Outcome{Err: fmt.Sprintf("price update failed: %v", rec)})
		}
	}()

	result := r.agg.Aggregate(ctx, symbols)

	u := models.Update{
		PassID:      passID,
		Symbols:     symbols,
		Result:      result,
		StartedAt:   started,
		CompletedAt: r.now(),
	}
	r.last.Store(&u)
	r.metrics.RecordPass(metrics.StatusSuccess, u.CompletedAt.Sub(started))
	log.WithField("duration", u.CompletedAt.Sub(started)).Debug("aggregation pass complete")

	r.deliver(ctx, log, Outcome{Update: u})
}

func (r *Refresher) deliver(ctx context.Context, log logrus.FieldLogger, o Outcome) {
	select {
	case r.outcomes <- o:
	case <-ctx.Done():
		log.WithField("failed", o.Failed()).Debug("shutdown before delivery, outcome dropped")
	}
}
