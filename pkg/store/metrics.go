package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the store's Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "kodbox").
	Namespace string

	// Subsystem is the metrics subsystem (default: "store").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for mirror write duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the store's Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "kodbox",
		Subsystem: "store",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for one or more stores.
// A nil *Metrics records nothing.
type Metrics struct {
	broadcasts     prometheus.Counter
	persistWrites  *prometheus.CounterVec
	persistLatency prometheus.Histogram
	recoveries     *prometheus.CounterVec
	lockViolations *prometheus.CounterVec
	notBoundTotal  prometheus.Counter
	subscribers    prometheus.Gauge
}

// NewMetrics creates and registers the store metrics.
//
// Metrics collected:
//   - kodbox_store_broadcasts_total: Counter of broadcasts
//   - kodbox_store_persist_writes_total: Counter of mirror writes by result
//   - kodbox_store_persist_duration_seconds: Histogram of mirror write duration
//   - kodbox_store_recoveries_total: Counter of mirror reads on a miss by result
//   - kodbox_store_lock_violations_total: Counter of rejected writes by op
//   - kodbox_store_not_bound_total: Counter of lookups of unbound callables
//   - kodbox_store_subscribers: Gauge of active subscriptions
//
// Registering twice on the same registry panics, as with promauto.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		broadcasts: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "broadcasts_total",
			Help:        "Total number of state broadcasts",
			ConstLabels: config.ConstLabels,
		}),

		persistWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "persist_writes_total",
			Help:        "Total number of snapshot writes to the mirror",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		persistLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "persist_duration_seconds",
			Help:        "Mirror write duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		recoveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "recoveries_total",
			Help:        "Total number of mirror reads, after an in-memory miss or a hydrate",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		lockViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "lock_violations_total",
			Help:        "Total number of rejected writes and removals of locked entries",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		notBoundTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "not_bound_total",
			Help:        "Total number of lookups of unbound callables",
			ConstLabels: config.ConstLabels,
		}),

		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "subscribers",
			Help:        "Number of active state subscriptions",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *Metrics) broadcast() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}

func (m *Metrics) persisted(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.persistWrites.WithLabelValues(result).Inc()
	if d > 0 {
		m.persistLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) recovery(result string) {
	if m == nil {
		return
	}
	m.recoveries.WithLabelValues(result).Inc()
}

func (m *Metrics) lockViolation(op string) {
	if m == nil {
		return
	}
	m.lockViolations.WithLabelValues(op).Inc()
}

func (m *Metrics) notBound() {
	if m == nil {
		return
	}
	m.notBoundTotal.Inc()
}

func (m *Metrics) subscribed(delta float64) {
	if m == nil {
		return
	}
	m.subscribers.Add(delta)
}
