// Package alerts evaluates per-symbol price thresholds against each refresh.
//
// Alerts are edge-triggered: a rule fires once when the price enters its
// band and re-arms only after the price leaves it. Absent prices never fire
// and leave the rule state untouched.
package alerts

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/cryptoverlay/internal/metrics"
	"github.com/seenimoa/cryptoverlay/pkg/models"
	"github.com/seenimoa/cryptoverlay/pkg/utils"
)

// Direction is the side of the threshold a price crossed to.
type Direction string

const (
	Above Direction = "above"
	Below Direction = "below"
)

// Rule holds the thresholds for one symbol. A zero threshold is disabled.
type Rule struct {
	Symbol string  `json:"symbol"`
	Above  float64 `json:"above,omitempty"`
	Below  float64 `json:"below,omitempty"`
}

// Alert is a fired rule.
type Alert struct {
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Threshold float64   `json:"threshold"`
	Price     float64   `json:"price"`
	PassID    string    `json:"pass_id"`
	At        time.Time `json:"at"`
}

// Message returns a one-line description of the alert.
func (a Alert) Message() string {
	verb := "rose above"
	if a.Direction == Below {
		verb = "fell below"
	}
	return fmt.Sprintf("%s %s %s (now %s)",
		a.Symbol, verb, utils.FormatPrice(a.Threshold), utils.FormatPrice(a.Price))
}

type ruleKey struct {
	symbol    string
	direction Direction
}

// Evaluator tracks rule state across refreshes.
type Evaluator struct {
	mu     sync.Mutex
	rules  map[string]Rule
	fired  map[ruleKey]bool
	notify []func(Alert)

	log     logrus.FieldLogger
	metrics metrics.Recorder
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithNotify registers a callback invoked for every fired alert.
func WithNotify(fn func(Alert)) Option {
	return func(e *Evaluator) { e.notify = append(e.notify, fn) }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Evaluator) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(e *Evaluator) {
		if m != nil {
			e.metrics = m
		}
	}
}

// NewEvaluator creates an evaluator. Rules are keyed by normalized symbol;
// rules with no enabled threshold are ignored.
func NewEvaluator(rules []Rule, opts ...Option) *Evaluator {
	e := &Evaluator{
		rules:   make(map[string]Rule, len(rules)),
		fired:   make(map[ruleKey]bool),
		log:     logrus.StandardLogger(),
		metrics: metrics.NewNoOpCollector(),
	}
	for _, r := range rules {
		r.Symbol = utils.NormalizeSymbol(r.Symbol)
		if r.Symbol == "" || (r.Above <= 0 && r.Below <= 0) {
			continue
		}
		e.rules[r.Symbol] = r
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the active rules sorted by symbol.
func (e *Evaluator) Rules() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Evaluate checks every rule against u and returns the alerts that fired.
func (e *Evaluator) Evaluate(u models.Update) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	var fired []Alert
	for _, sym := range sortedKeys(e.rules) {
		rule := e.rules[sym]
		q, ok := u.Result[sym]
		if !ok || !q.HasPrice() {
			continue
		}
		price := *q.Price

		if rule.Above > 0 {
			if e.edge(ruleKey{sym, Above}, price >= rule.Above) {
				fired = append(fired, Alert{Symbol: sym, Direction: Above, Threshold: rule.Above, Price: price, PassID: u.PassID, At: u.CompletedAt})
			}
		}
		if rule.Below > 0 {
			if e.edge(ruleKey{sym, Below}, price <= rule.Below) {
				fired = append(fired, Alert{Symbol: sym, Direction: Below, Threshold: rule.Below, Price: price, PassID: u.PassID, At: u.CompletedAt})
			}
		}
	}

	for _, a := range fired {
		e.log.WithFields(logrus.Fields{
			"symbol":    a.Symbol,
			"direction": a.Direction,
			"threshold": a.Threshold,
			"price":     a.Price,
		}).Info("price alert")
		e.metrics.RecordAlert(a.Symbol, string(a.Direction))
	}
	return fired
}

// edge records the condition for key and reports whether it just became true.
func (e *Evaluator) edge(key ruleKey, cond bool) bool {
	was := e.fired[key]
	e.fired[key] = cond
	return cond && !was
}

// OnUpdate evaluates u and notifies the registered callbacks.
func (e *Evaluator) OnUpdate(u models.Update) {
	for _, a := range e.Evaluate(u) {
		for _, fn := range e.notify {
			fn(a)
		}
	}
}

// OnError ignores failed passes; rule state carries over to the next update.
func (e *Evaluator) OnError(string) {}

func sortedKeys(m map[string]Rule) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
