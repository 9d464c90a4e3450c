package resilience

import "github.com/prometheus/client_golang/prometheus"

// RetryMetrics records retry/backoff outcomes for a single operation family
// (e.g. "llm_dispatch", "db_query", "session_read"). All fields are
// nil-safe call sites via the Record* methods so metrics stay optional.
type RetryMetrics struct {
	attempts prometheus.CounterVec
	backoff  prometheus.Histogram
	final    prometheus.CounterVec
}

// NewRetryMetrics registers retry counters/histograms against reg. Pass a
// nil reg to get a RetryMetrics whose Record* calls are no-ops (used in
// tests and in components where metrics are disabled).
func NewRetryMetrics(reg prometheus.Registerer, subsystem string) *RetryMetrics {
	if reg == nil {
		return nil
	}

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tourism_core",
		Subsystem: subsystem,
		Name:      "retry_attempts_total",
		Help:      "Count of retry attempts by operation, outcome, and error type.",
	}, []string{"operation", "outcome", "error_type"})

	final := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tourism_core",
		Subsystem: subsystem,
		Name:      "retry_final_total",
		Help:      "Count of terminal retry-loop outcomes by operation and outcome.",
	}, []string{"operation", "outcome"})

	backoff := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tourism_core",
		Subsystem: subsystem,
		Name:      "retry_backoff_seconds",
		Help:      "Backoff delay before each retry attempt.",
		Buckets:   prometheus.DefBuckets,
	})

	reg.MustRegister(attempts, final, backoff)

	return &RetryMetrics{attempts: *attempts, backoff: backoff, final: *final}
}

// RecordAttempt records a single attempt's outcome and duration (unused for
// duration currently, kept for parity with histogram-based latency tracking
// callers may add later).
func (m *RetryMetrics) RecordAttempt(operation, outcome, errorType string, _ float64) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(operation, outcome, errorType).Inc()
}

// RecordFinalAttempt records the terminal outcome of a retry loop.
func (m *RetryMetrics) RecordFinalAttempt(operation, outcome string, _ int) {
	if m == nil {
		return
	}
	m.final.WithLabelValues(operation, outcome).Inc()
}

// RecordBackoff records a backoff delay in seconds.
func (m *RetryMetrics) RecordBackoff(_ string, delaySeconds float64) {
	if m == nil {
		return
	}
	m.backoff.Observe(delaySeconds)
}
