// Package metrics provides Prometheus telemetry for refresh passes, source
// failures, dropped refresh requests, fired alerts and the local HTTP API.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "cryptoverlay"

// Pass statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Recorder is the metrics surface used by the engine, refresher and alerts.
type Recorder interface {
	RecordPass(status string, duration time.Duration)
	RecordSourceFailure(source string)
	RecordRefreshDropped()
	RecordAlert(symbol, direction string)
}

// Collector records metrics into its own registry.
type Collector struct {
	registry *prometheus.Registry

	passes         *prometheus.CounterVec
	passDuration   prometheus.Histogram
	sourceFailures *prometheus.CounterVec
	refreshDropped prometheus.Counter
	alertsFired    *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector creates a collector. An empty namespace selects DefaultNamespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.passes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "passes_total",
			Help:      "Total number of aggregation passes by outcome.",
		},
		[]string{"status"},
	)

	c.passDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "pass_duration_seconds",
			Help:      "Duration of aggregation passes.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)

	c.sourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "failures_total",
			Help:      "Total number of data source fetch failures.",
		},
		[]string{"source"},
	)

	c.refreshDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "dropped_total",
			Help:      "Refresh requests dropped because a pass was in flight.",
		},
	)

	c.alertsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "fired_total",
			Help:      "Total number of price alerts fired.",
		},
		[]string{"symbol", "direction"},
	)

	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	c.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"method", "path"},
	)

	c.registry.MustRegister(
		c.passes,
		c.passDuration,
		c.sourceFailures,
		c.refreshDropped,
		c.alertsFired,
		c.httpRequests,
		c.httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)

	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordPass records one completed aggregation pass.
func (c *Collector) RecordPass(status string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	c.passes.WithLabelValues(status).Inc()
	c.passDuration.Observe(duration.Seconds())
}

// RecordSourceFailure records a failed fetch from the named source.
func (c *Collector) RecordSourceFailure(source string) {
	if source == "" {
		source = "unknown"
	}
	c.sourceFailures.WithLabelValues(source).Inc()
}

// RecordRefreshDropped records a refresh request that was dropped.
func (c *Collector) RecordRefreshDropped() {
	c.refreshDropped.Inc()
}

// RecordAlert records a fired price alert.
func (c *Collector) RecordAlert(symbol, direction string) {
	c.alertsFired.WithLabelValues(symbol, direction).Inc()
}

// InstrumentHandler wraps next with HTTP request metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		c.httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		c.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// canonicalPath collapses per-symbol routes so label cardinality stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "api" || len(parts) < 3 {
		return "/" + parts[0]
	}
	path := "/api/" + parts[1] + "/" + parts[2]
	if len(parts) > 3 && (parts[2] == "prices" || parts[2] == "history") {
		path += "/:symbol"
	}
	return path
}

// NoOpCollector discards all metrics.
type NoOpCollector struct{}

// NewNoOpCollector returns a Recorder that records nothing.
func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (*NoOpCollector) RecordPass(status string, d time.Duration) {}
func (*NoOpCollector) RecordSourceFailure(source string)         {}
func (*NoOpCollector) RecordRefreshDropped()                     {}
func (*NoOpCollector) RecordAlert(symbol, direction string)      {}
