package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carefinder"

// Query outcomes
const (
	OutcomeSuccess    = "success"
	OutcomeFallback   = "fallback"
	OutcomeStoreError = "store_error"
)

// Metrics holds the service's Prometheus collectors on a private registry.
// All record methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queriesTotal       *prometheus.CounterVec
	fallbacksTotal     *prometheus.CounterVec
	queryDuration      prometheus.Histogram
	completionRequests *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	results            *prometheus.HistogramVec
}

// New creates and registers all collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		requestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "in_flight_requests",
				Help:      "Number of in-flight HTTP requests.",
			},
		),
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "nlq",
				Name:      "queries_total",
				Help:      "Natural-language queries by outcome.",
			},
			[]string{"outcome"},
		),
		fallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "nlq",
				Name:      "fallbacks_total",
				Help:      "Queries answered with the fallback intent, by failure kind.",
			},
			[]string{"kind"},
		),
		queryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "nlq",
				Name:      "query_duration_seconds",
				Help:      "End-to-end query duration in seconds.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		completionRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "completion",
				Name:      "requests_total",
				Help:      "Completion service calls by provider and status.",
			},
			[]string{"provider", "status"},
		),
		completionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "completion",
				Name:      "request_duration_seconds",
				Help:      "Completion service call duration in seconds.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
			},
			[]string{"provider"},
		),
		results: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "nlq",
				Name:      "results",
				Help:      "Result count per domain per query.",
				Buckets:   []float64{0, 1, 3, 5, 10, 20, 50, 100, 500, 1000},
			},
			[]string{"domain"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.queriesTotal,
		m.fallbacksTotal,
		m.queryDuration,
		m.completionRequests,
		m.completionDuration,
		m.results,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count, latency and in-flight gauge.
// Paths are labeled by route template to keep cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordQuery records one finished query
func (m *Metrics) RecordQuery(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(duration.Seconds())
}

// RecordFallback counts a query answered with the fallback intent
func (m *Metrics) RecordFallback(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.fallbacksTotal.WithLabelValues(kind).Inc()
}

// RecordCompletion records one completion call
func (m *Metrics) RecordCompletion(provider, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.completionRequests.WithLabelValues(provider, status).Inc()
	m.completionDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordResults records how many results one domain returned
func (m *Metrics) RecordResults(domain string, count int) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(domain).Observe(float64(count))
}
