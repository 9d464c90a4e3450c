// Package servicehub implements the Service Hub (§4.9): a registry of
// named, pluggable providers (weather, translation, LLM synthesis) behind
// a single dispatch contract, protected by the same circuit breaker and
// retry machinery the Session Store uses for its primary backend.
package servicehub

import (
	"context"
	"errors"
	"fmt"
)

// Provider executes one named method against a concrete backend (an HTTP
// API, an SDK client, ...). method and params are service-specific; the
// Hub itself is agnostic to their shape.
type Provider interface {
	Execute(ctx context.Context, method string, params map[string]any) (any, error)
}

// ProviderError is how a Provider reports whether a failure is worth
// retrying. 4xx-class failures (bad request, not found, unauthorized) are
// not retriable; 5xx-class and timeouts are (§4.9 Failure semantics).
type ProviderError struct {
	StatusCode int
	Retriable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("servicehub: provider error (status=%d retriable=%t): %v", e.StatusCode, e.Retriable, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// providerErrorChecker implements resilience.RetryableErrorChecker,
// letting the Hub compose ProviderError classification with the shared
// resilience.WithRetry loop.
type providerErrorChecker struct{}

func (providerErrorChecker) IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retriable
	}
	// Anything that is not a classified ProviderError (a timeout, a
	// transport error) is assumed retriable, matching the teacher's
	// session-store default of "all non-nil errors are retryable" unless
	// a more specific checker says otherwise.
	return true
}

// ErrUnknownService is returned when Execute targets a service name that
// was never registered.
var ErrUnknownService = errors.New("servicehub: unknown service")

// ErrServiceUnavailable is returned when a service's retry budget is
// exhausted or its circuit breaker is open (§4.9).
var ErrServiceUnavailable = errors.New("servicehub: service unavailable")
