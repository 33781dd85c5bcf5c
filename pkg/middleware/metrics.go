package middleware

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domerrors "github.com/vango-dev/domafic/internal/errors"
	"github.com/vango-dev/domafic/pkg/app"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "domafic").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for cycle duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
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

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "domafic",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics collects Prometheus metrics about program cycles. It is an
// app.Middleware and is safe to share between programs.
type Metrics struct {
	cyclesTotal    *prometheus.CounterVec
	cycleDuration  *prometheus.HistogramVec
	cycleErrors    *prometheus.CounterVec
	hostMutations  *prometheus.CounterVec
	eventsDropped  prometheus.Counter
	queueDepth     prometheus.Gauge
	activePrograms prometheus.Gauge
	wsErrors       *prometheus.CounterVec
}

// metricsKey determines the names collectors are registered under.
type metricsKey struct {
	registry  prometheus.Registerer
	namespace string
	subsystem string
}

// Collectors are registered once per registry and name prefix; later calls
// with the same key share them.
var (
	registeredMu sync.Mutex
	registered   = map[metricsKey]*Metrics{}
)

func newMetrics(config MetricsConfig) *Metrics {
	factory := promauto.With(config.Registry)

	return &Metrics{
		cyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cycles_total",
			Help:        "Total number of message cycles processed",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "status"}),

		cycleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cycle_duration_seconds",
			Help:        "Cycle duration (update, render and reconcile) in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		cycleErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cycle_errors_total",
			Help:        "Total number of fatal cycle errors by error code",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),

		hostMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "host_mutations_total",
			Help:        "Total number of host document changes by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		eventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_dropped_total",
			Help:        "Total number of host events for listeners that no longer exist",
			ConstLabels: config.ConstLabels,
		}),

		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "queue_depth",
			Help:        "Messages queued behind the most recent cycle",
			ConstLabels: config.ConstLabels,
		}),

		activePrograms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_programs",
			Help:        "Number of running programs",
			ConstLabels: config.ConstLabels,
		}),

		wsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_errors_total",
			Help:        "Total WebSocket errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),
	}
}

// Prometheus returns middleware that collects Prometheus metrics for every
// cycle of the programs it is installed in.
//
// Calls with the same registry, namespace and subsystem return the same
// *Metrics; the buckets and constant labels of the first such call apply.
//
// Metrics collected:
//   - domafic_cycles_total: Counter of cycles by kind and status
//   - domafic_cycle_duration_seconds: Histogram of cycle duration
//   - domafic_cycle_errors_total: Counter of fatal errors by error code
//   - domafic_host_mutations_total: Counter of host changes by op
//   - domafic_events_dropped_total: Counter of events for stale listeners
//   - domafic_queue_depth: Gauge of messages waiting behind the last cycle
//   - domafic_active_programs: Gauge maintained by ProgramStarted/ProgramStopped
//   - domafic_websocket_errors_total: Counter maintained by WebSocketError
//
// Example:
//
//	metrics := middleware.Prometheus(middleware.WithNamespace("todo"))
//	p := app.New(doc, update, render, initial, app.WithMiddleware(metrics))
//
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	registeredMu.Lock()
	defer registeredMu.Unlock()
	key := metricsKey{registry: config.Registry, namespace: config.Namespace, subsystem: config.Subsystem}
	if m, ok := registered[key]; ok {
		return m
	}
	m := newMetrics(config)
	registered[key] = m
	return m
}

// Handle implements app.Middleware.
func (m *Metrics) Handle(c *app.Cycle, next func() error) error {
	start := time.Now()
	err := next()

	kind := c.Kind.String()
	m.cycleDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	m.cyclesTotal.WithLabelValues(kind, c.Status.String()).Inc()
	m.queueDepth.Set(float64(c.Pending))

	if c.Status == app.StatusDropped {
		m.eventsDropped.Inc()
	}
	if err != nil {
		code := domerrors.CodeOf(err)
		if code == "" {
			code = "unknown"
		}
		m.cycleErrors.WithLabelValues(code).Inc()
	}

	s := c.Stats
	m.addMutations("created", s.Created)
	m.addMutations("moved", s.Moved)
	m.addMutations("removed", s.Removed)
	m.addMutations("attrs_set", s.AttrsSet)
	m.addMutations("attrs_removed", s.AttrsRemoved)
	m.addMutations("listeners_attached", s.ListenersAttached)
	m.addMutations("listeners_detached", s.ListenersDetached)

	return err
}

func (m *Metrics) addMutations(op string, n int) {
	if n > 0 {
		m.hostMutations.WithLabelValues(op).Add(float64(n))
	}
}

// ProgramStarted records a program starting.
func (m *Metrics) ProgramStarted() {
	m.activePrograms.Inc()
}

// ProgramStopped records a program stopping.
func (m *Metrics) ProgramStopped() {
	m.activePrograms.Dec()
}

// WebSocketError records a WebSocket error of the given type.
func (m *Metrics) WebSocketError(errorType string) {
	m.wsErrors.WithLabelValues(errorType).Inc()
}
