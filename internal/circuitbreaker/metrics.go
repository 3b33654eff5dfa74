package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mesh_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service"},
	)

	breakerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesh_circuit_breaker_requests_total",
			Help: "Calls checked against circuit breakers",
		},
		[]string{"service", "result"},
	)

	breakerOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesh_circuit_breaker_outcomes_total",
			Help: "Call outcomes recorded by circuit breakers",
		},
		[]string{"service", "outcome"},
	)

	breakerStateChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesh_circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"service", "from", "to"},
	)
)

func recordRequest(service string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	breakerRequestsTotal.WithLabelValues(service, result).Inc()
}

func recordSuccess(service string) {
	breakerOutcomesTotal.WithLabelValues(service, "success").Inc()
}

func recordFailure(service string) {
	breakerOutcomesTotal.WithLabelValues(service, "failure").Inc()
}

func recordStateChange(service string, from, to gobreaker.State) {
	breakerStateChangesTotal.WithLabelValues(service, from.String(), to.String()).Inc()
	breakerState.WithLabelValues(service).Set(float64(to))
}
