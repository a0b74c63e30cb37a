package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus metrics of a Client.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "wirecall").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for call duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
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
		Namespace: "wirecall",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors of a Client. A nil *Metrics
// records nothing.
//
// Metrics collected:
//   - wirecall_calls_total: Counter of calls by transport and status
//   - wirecall_call_duration_seconds: Histogram of call duration by transport
//   - wirecall_connections_active: Gauge of open WebSocket connections
//   - wirecall_connections_total: Counter of WebSocket connections opened
//   - wirecall_events_total: Counter of pushed events by resource
//   - wirecall_transport_errors_total: Counter of transport failures by operation
//   - wirecall_bytes_total: Counter of message bytes by direction
type Metrics struct {
	callsTotal        *prometheus.CounterVec
	callDuration      *prometheus.HistogramVec
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	eventsTotal       *prometheus.CounterVec
	transportErrors   *prometheus.CounterVec
	bytesTotal        *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
//
// Example:
//
//	m := client.NewMetrics(client.WithRegistry(reg))
//	c, err := client.New(client.WithHTTPBase(base), client.WithMetrics(m))
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "calls_total",
			Help:        "Total number of calls by transport and status",
			ConstLabels: config.ConstLabels,
		}, []string{"transport", "status"}),

		callDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "call_duration_seconds",
			Help:        "Call duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"transport"}),

		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_active",
			Help:        "Number of open WebSocket connections",
			ConstLabels: config.ConstLabels,
		}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_total",
			Help:        "Total number of WebSocket connections opened",
			ConstLabels: config.ConstLabels,
		}),

		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_total",
			Help:        "Total number of pushed events by resource",
			ConstLabels: config.ConstLabels,
		}, []string{"resource"}),

		transportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "transport_errors_total",
			Help:        "Total transport failures by operation",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		bytesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bytes_total",
			Help:        "Total message bytes by direction",
			ConstLabels: config.ConstLabels,
		}, []string{"direction"}),
	}
}

func (m *Metrics) observeCall(mode Mode, resp *Response, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case resp.Delivery == NotSent:
		status = "not_sent"
	}
	m.callsTotal.WithLabelValues(mode.String(), status).Inc()
	m.callDuration.WithLabelValues(mode.String()).Observe(d.Seconds())
}

// ConnectionOpened implements conn.Metrics.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsActive.Inc()
	m.connectionsTotal.Inc()
}

// ConnectionClosed implements conn.Metrics.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

// TransportError implements conn.Metrics.
func (m *Metrics) TransportError(op string) {
	if m == nil {
		return
	}
	m.transportErrors.WithLabelValues(op).Inc()
}

// BytesSent implements conn.Metrics.
func (m *Metrics) BytesSent(n int) {
	if m == nil {
		return
	}
	m.bytesTotal.WithLabelValues("sent").Add(float64(n))
}

// BytesReceived implements conn.Metrics.
func (m *Metrics) BytesReceived(n int) {
	if m == nil {
		return
	}
	m.bytesTotal.WithLabelValues("received").Add(float64(n))
}

// EventReceived implements conn.Metrics.
func (m *Metrics) EventReceived(resource string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(resource).Inc()
}
