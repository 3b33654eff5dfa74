package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "mesh"

// Collectors holds Prometheus metrics for mesh client calls.
type Collectors struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	registerer       prometheus.Registerer
}

// NewCollectors creates a new Collectors instance.
// Metrics are registered with prometheus.DefaultRegisterer so they are
// automatically exposed on the default /metrics endpoint.
func NewCollectors(namespace string) *Collectors {
	return NewCollectorsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewCollectorsWithRegisterer creates a new Collectors instance with a
// custom registerer. This is useful for testing where a private
// registry is preferred.
func NewCollectorsWithRegisterer(namespace string, registerer prometheus.Registerer) *Collectors {
	if namespace == "" {
		namespace = defaultNamespace
	}

	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	c := &Collectors{
		registerer: registerer,
	}

	c.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total number of mesh client requests",
		},
		[]string{"service", "method", "code"},
	)

	c.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Mesh client request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method"},
	)

	c.requestsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "requests_in_flight",
			Help:      "Current number of in-flight mesh client requests",
		},
		[]string{"service"},
	)

	// Register all metrics with the provided registerer, ignoring duplicates.
	// This is safe because the metric descriptors are identical when re-registered.
	collectors := []prometheus.Collector{
		c.requestsTotal,
		c.requestDuration,
		c.requestsInFlight,
	}
	for _, collector := range collectors {
		_ = c.registerer.Register(collector)
	}

	return c
}

// Init pre-initializes the per-service gauges with zero values so they
// appear in /metrics output immediately after startup. Prometheus *Vec
// types only emit metric lines after WithLabelValues() is called at
// least once. This method is idempotent and safe to call multiple times.
func (c *Collectors) Init(services ...string) {
	for _, service := range services {
		c.requestsInFlight.WithLabelValues(service)
	}
}

// RecordRequest records one completed mesh call.
func (c *Collectors) RecordRequest(service, method, code string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(service, method, code).Inc()
	c.requestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// IncInFlight marks a call against service as started.
func (c *Collectors) IncInFlight(service string) {
	c.requestsInFlight.WithLabelValues(service).Inc()
}

// DecInFlight marks a call against service as finished.
func (c *Collectors) DecInFlight(service string) {
	c.requestsInFlight.WithLabelValues(service).Dec()
}
