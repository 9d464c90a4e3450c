package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CircuitBreakerMetrics holds Prometheus metrics for one named breaker
// instance (e.g. "session_store", "service_hub_weather").
type CircuitBreakerMetrics struct {
	State            prometheus.Gauge
	Failures         prometheus.Counter
	Successes        prometheus.Counter
	StateChanges     *prometheus.CounterVec
	RequestsBlocked  prometheus.Counter
	HalfOpenRequests prometheus.Counter
	SlowCalls        prometheus.Counter
	CallDuration     *prometheus.HistogramVec
}

// NewCircuitBreakerMetrics registers metrics for one breaker under
// tourism_core_<subsystem>. Pass a nil reg to disable metrics (tests).
func NewCircuitBreakerMetrics(reg prometheus.Registerer, subsystem string) *CircuitBreakerMetrics {
	if reg == nil {
		return nil
	}

	m := &CircuitBreakerMetrics{
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tourism_core",
			Subsystem: subsystem,
			Name:      "circuit_state",
			Help:      "Current breaker state (0=closed, 1=open, 2=half_open).",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tourism_core",
			Subsystem: subsystem,
			Name:      "circuit_failures_total",
			Help:      "Total failed calls observed by the breaker.",
		}),
		Successes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tourism_core",
			Subsystem: subsystem,
			Name:      "circuit_successes_total",
			Help:      "Total successful calls observed by the breaker.",
		}),
		StateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tourism_core",
			Subsystem: subsystem,
			Name:      "circuit_state_changes_total",
			Help:      "Breaker state transitions by from/to label.",
		}, []string{"from", "to"}),
		RequestsBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tourism_core",
			Subsystem: subsystem,
			Name:      "circuit_requests_blocked_total",
			Help:      "Calls rejected while the breaker was open.",
		}),
		HalfOpenRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tourism_core",
			Subsystem: subsystem,
			Name:      "circuit_half_open_requests_total",
			Help:      "Probe calls allowed while half-open.",
		}),
		SlowCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tourism_core",
			Subsystem: subsystem,
			Name:      "circuit_slow_calls_total",
			Help:      "Calls that exceeded the slow-call threshold.",
		}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tourism_core",
			Subsystem: subsystem,
			Name:      "circuit_call_duration_seconds",
			Help:      "Duration of calls observed by the breaker.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 4.0, 8.0},
		}, []string{"result"}),
	}

	reg.MustRegister(m.State, m.Failures, m.Successes, m.StateChanges, m.RequestsBlocked, m.HalfOpenRequests, m.SlowCalls, m.CallDuration)

	return m
}

// RecordStateChange records a state transition.
func (m *CircuitBreakerMetrics) RecordStateChange(from, to CircuitBreakerState) {
	if m == nil {
		return
	}
	m.StateChanges.WithLabelValues(from.String(), to.String()).Inc()
	m.State.Set(float64(to))
}

// RecordSuccess records a successful call.
func (m *CircuitBreakerMetrics) RecordSuccess(durationSeconds float64) {
	if m == nil {
		return
	}
	m.Successes.Inc()
	m.CallDuration.WithLabelValues("success").Observe(durationSeconds)
}

// RecordFailure records a failed call.
func (m *CircuitBreakerMetrics) RecordFailure(durationSeconds float64, slow bool) {
	if m == nil {
		return
	}
	m.Failures.Inc()
	if slow {
		m.SlowCalls.Inc()
	}
	m.CallDuration.WithLabelValues("failure").Observe(durationSeconds)
}
