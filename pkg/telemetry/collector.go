package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the collector.
type Config struct {
	// Enabled gates all recording. A disabled collector still registers
	// its metrics so scrapes see stable zero series.
	Enabled bool

	// Namespace for metric names. Default: "rosetta".
	Namespace string

	// Subsystem for metric names. Default: "fabric".
	Subsystem string

	// DurationBuckets are the request duration histogram buckets in
	// seconds. The defaults cover chat latencies from 50ms to 30s.
	DurationBuckets []float64

	// MaxBackends caps the number of distinct backend label values.
	// Overflow is aggregated under "other". Default: 1000.
	MaxBackends int
}

// DefaultDurationBuckets spans interactive chat latencies.
var DefaultDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// DefaultMaxBackends caps backend label cardinality.
const DefaultMaxBackends = 1000

// Collector owns the fabric's Prometheus metrics. Create one per process
// and attach it to a bridge or router with the Bind methods; the record
// and set methods are also safe to call directly.
type Collector struct {
	// RequestsTotal counts finished requests by backend and terminal
	// status ("success", "cancelled", or the error code).
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes end-to-end request latency per backend.
	RequestDuration *prometheus.HistogramVec

	// StreamChunksTotal counts chunks relayed to callers.
	StreamChunksTotal prometheus.Counter

	// FallbacksTotal counts failovers to another backend.
	FallbacksTotal prometheus.Counter

	// ParallelDispatchesTotal counts parallel dispatches.
	ParallelDispatchesTotal prometheus.Counter

	// BreakerState reports each backend's circuit breaker state:
	// 0 closed, 1 half-open, 2 open.
	BreakerState *prometheus.GaugeVec

	// BackendHealthy reports each backend's health: 1 healthy, 0 not.
	BackendHealthy *prometheus.GaugeVec

	// WarningsTotal counts adaptation warnings by category.
	WarningsTotal *prometheus.CounterVec

	enabled  bool
	registry *prometheus.Registry
	backends *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics. A nil
// registry gets a fresh private one, keeping fabric metrics apart from
// whatever else the process exposes.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "rosetta"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "fabric"
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = DefaultDurationBuckets
	}
	if cfg.MaxBackends <= 0 {
		cfg.MaxBackends = DefaultMaxBackends
	}

	c := &Collector{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Finished chat requests by backend and terminal status.",
			},
			[]string{"backend", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "End-to-end request duration in seconds.",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"backend"},
		),
		StreamChunksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_chunks_total",
				Help:      "Stream chunks relayed to callers.",
			},
		),
		FallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "fallbacks_total",
				Help:      "Failovers to another backend.",
			},
		),
		ParallelDispatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "parallel_dispatches_total",
				Help:      "Parallel dispatches started.",
			},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "breaker_state",
				Help:      "Circuit breaker state per backend: 0 closed, 1 half-open, 2 open.",
			},
			[]string{"backend"},
		),
		BackendHealthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "backend_healthy",
				Help:      "Backend health per the health checker: 1 healthy, 0 not.",
			},
			[]string{"backend"},
		),
		WarningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "warnings_total",
				Help:      "Adaptation warnings by category.",
			},
			[]string{"category"},
		),
		enabled:  cfg.Enabled,
		registry: registry,
		backends: NewCardinalityLimiter(cfg.MaxBackends),
	}

	registry.MustRegister(
		c.RequestsTotal,
		c.RequestDuration,
		c.StreamChunksTotal,
		c.FallbacksTotal,
		c.ParallelDispatchesTotal,
		c.BreakerState,
		c.BackendHealthy,
		c.WarningsTotal,
	)
	return c
}

// RecordRequest accounts one finished request. Status is "success",
// "cancelled", or the error code. A zero duration skips the histogram,
// which keeps failure paths that never reached a backend out of the
// latency distribution.
func (c *Collector) RecordRequest(backend, status string, duration time.Duration) {
	if !c.enabled {
		return
	}
	backend = c.backendLabel(backend)
	c.RequestsTotal.WithLabelValues(backend, status).Inc()
	if duration > 0 {
		c.RequestDuration.WithLabelValues(backend).Observe(duration.Seconds())
	}
}

// RecordStreamChunk accounts one relayed chunk.
func (c *Collector) RecordStreamChunk() {
	if !c.enabled {
		return
	}
	c.StreamChunksTotal.Inc()
}

// RecordFallback accounts one failover.
func (c *Collector) RecordFallback() {
	if !c.enabled {
		return
	}
	c.FallbacksTotal.Inc()
}

// RecordParallelDispatch accounts one parallel dispatch.
func (c *Collector) RecordParallelDispatch() {
	if !c.enabled {
		return
	}
	c.ParallelDispatchesTotal.Inc()
}

// SetBreakerState records a breaker transition. State is one of
// "closed", "half-open", "open".
func (c *Collector) SetBreakerState(backend, state string) {
	if !c.enabled {
		return
	}
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	c.BreakerState.WithLabelValues(c.backendLabel(backend)).Set(v)
}

// SetBackendHealth records a health transition.
func (c *Collector) SetBackendHealth(backend string, healthy bool) {
	if !c.enabled {
		return
	}
	v := 0.0
	if healthy {
		v = 1
	}
	c.BackendHealthy.WithLabelValues(c.backendLabel(backend)).Set(v)
}

// RecordWarning accounts one adaptation warning.
func (c *Collector) RecordWarning(category string) {
	if !c.enabled {
		return
	}
	if category == "" {
		category = "unknown"
	}
	c.WarningsTotal.WithLabelValues(category).Inc()
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the scrape handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// backendLabel bounds the backend label space. Unnamed backends show up
// as "none" rather than an empty label.
func (c *Collector) backendLabel(name string) string {
	if name == "" {
		return "none"
	}
	if !c.backends.Allow(name) {
		return "other"
	}
	return name
}
