// Package store persists aggregation updates: the latest snapshot to Redis
// and per-symbol history to PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/cryptoverlay/pkg/models"
)

// ErrNotFound is returned when no snapshot has been stored yet.
var ErrNotFound = errors.New("store: not found")

// Sink receives every successful update.
type Sink interface {
	Name() string
	Save(ctx context.Context, u models.Update) error
	Close() error
}

// Multi fans an update out to several sinks concurrently.
type Multi struct {
	sinks []Sink
}

// NewMulti wraps sinks. Nil entries are ignored.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Name implements Sink.
func (m *Multi) Name() string { return "multi" }

// Len returns the number of wrapped sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Save writes u to every sink and joins their errors. One failing sink
// does not stop the others.
func (m *Multi) Save(ctx context.Context, u models.Update) error {
	errs := make([]error, len(m.sinks))
	var g errgroup.Group
	for i, s := range m.sinks {
		g.Go(func() error {
			if err := s.Save(ctx, u); err != nil {
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Consumer adapts a Sink to the refresher's consumer callbacks.
type Consumer struct {
	sink    Sink
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewConsumer returns a consumer that saves each update within timeout.
func NewConsumer(sink Sink, timeout time.Duration, log logrus.FieldLogger) *Consumer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Consumer{sink: sink, timeout: timeout, log: log}
}

// OnUpdate saves u. Failures are logged, never propagated.
func (c *Consumer) OnUpdate(u models.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.sink.Save(ctx, u); err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"sink":    c.sink.Name(),
			"pass_id": u.PassID,
		}).Warn("failed to persist update")
	}
}

// OnError is a no-op; failed passes have nothing to persist.
func (c *Consumer) OnError(string) {}
