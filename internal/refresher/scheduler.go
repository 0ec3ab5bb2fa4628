package refresher

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/cryptoverlay/pkg/models"
)

// Requester starts refresh passes.
type Requester interface {
	RequestRefresh(ctx context.Context, symbols []string) bool
}

// Scheduler requests a refresh immediately and then on every tick.
type Scheduler struct {
	requester Requester
	interval  time.Duration
	symbols   func() []string
	log       logrus.FieldLogger
}

// NewScheduler creates a scheduler. symbols is called on every tick so the
// list can change between passes.
func NewScheduler(req Requester, interval time.Duration, symbols func() []string, log logrus.FieldLogger) *Scheduler {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{requester: req, interval: interval, symbols: symbols, log: log}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.interval).Info("scheduler started")
	s.requester.RequestRefresh(ctx, s.symbols())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.requester.RequestRefresh(ctx, s.symbols())
		}
	}
}

// Consumer receives the outcomes of refresh passes.
type Consumer interface {
	OnUpdate(u models.Update)
	OnError(msg string)
}

// Consume forwards every outcome of r to each consumer in order until ctx is done.
func Consume(ctx context.Context, r *Refresher, consumers ...Consumer) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-r.Outcomes():
			for _, c := range consumers {
				if o.Failed() {
					c.OnError(o.Err)
				} else {
					c.OnUpdate(o.Update)
				}
			}
		}
	}
}
