package servicehub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Omarrvv/final-bot-sub005/internal/resilience"
)

// defaultTimeout is the per-call timeout applied when a ServiceConfig
// leaves Timeout unset (§4.9: default 5s).
const defaultTimeout = 5 * time.Second

// ServiceConfig controls how the Hub dispatches calls to one registered
// service.
type ServiceConfig struct {
	// Timeout bounds a single call attempt (not the whole retry budget).
	Timeout time.Duration

	// MaxRetries is the retry budget for idempotent lookups. LLM
	// registrations use 0 per §4.9 ("retries: 0 for LLM, 2 for idempotent
	// lookups").
	MaxRetries int

	// MaxConcurrent bounds in-flight calls to this provider; a caller
	// waiting for a slot releases it the instant ctx is cancelled (§4.9
	// "a cancelled request must release its provider slot promptly").
	MaxConcurrent int
}

// DefaultServiceConfig returns the idempotent-lookup default: 5s timeout,
// 2 retries, 10 concurrent calls.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{Timeout: defaultTimeout, MaxRetries: 2, MaxConcurrent: 10}
}

// LLMServiceConfig returns the LLM-dispatch default: 5s timeout, no
// retries (an LLM call is not idempotent and retrying is expensive).
func LLMServiceConfig() ServiceConfig {
	return ServiceConfig{Timeout: defaultTimeout, MaxRetries: 0, MaxConcurrent: 10}
}

type registeredService struct {
	name     string
	provider Provider
	cfg      ServiceConfig
	breaker  *resilience.CircuitBreaker
	slots    chan struct{}
}

// Hub dispatches named service calls to their registered Provider,
// applying a per-service timeout, retry policy, and circuit breaker.
// Registration is static, done once at startup (§4.9).
type Hub struct {
	mu       sync.RWMutex
	services map[string]*registeredService
	logger   *slog.Logger
}

// New constructs an empty Hub.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{services: make(map[string]*registeredService), logger: logger}
}

// Register binds a Provider to a service name with the given config.
// Call during startup composition, before any Execute call.
func (h *Hub) Register(name string, provider Provider, cfg ServiceConfig) error {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}

	breaker, err := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig(), h.logger, nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.services[name] = &registeredService{
		name:     name,
		provider: provider,
		cfg:      cfg,
		breaker:  breaker,
		slots:    make(chan struct{}, cfg.MaxConcurrent),
	}
	return nil
}

// Execute dispatches method/params to the named service, applying its
// timeout, circuit breaker, and retry policy. A cancelled ctx is observed
// both while waiting for a provider slot and during the call itself.
func (h *Hub) Execute(ctx context.Context, service, method string, params map[string]any) (any, error) {
	h.mu.RLock()
	svc, ok := h.services[service]
	h.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownService
	}

	select {
	case svc.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-svc.slots }()

	if svc.breaker.GetState() == resilience.StateOpen {
		return nil, ErrServiceUnavailable
	}

	retry := &resilience.RetryPolicy{
		MaxRetries:    svc.cfg.MaxRetries,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		Multiplier:    2.0,
		Jitter:        true,
		ErrorChecker:  providerErrorChecker{},
		Logger:        h.logger,
		OperationName: service + "." + method,
	}

	var result any
	err := svc.breaker.Call(ctx, func(attemptCtx context.Context) error {
		res, attemptErr := resilience.WithRetryFunc(attemptCtx, retry, func() (any, error) {
			callCtx, cancel := context.WithTimeout(attemptCtx, svc.cfg.Timeout)
			defer cancel()
			return svc.provider.Execute(callCtx, method, params)
		})
		result = res
		return attemptErr
	})

	if err != nil {
		if errors.Is(err, resilience.ErrCircuitBreakerOpen) {
			return nil, ErrServiceUnavailable
		}
		h.logger.Warn("service call failed", "service", service, "method", method, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return result, nil
}

// BreakerState exposes a service's circuit breaker state for health checks.
func (h *Hub) BreakerState(service string) (resilience.CircuitBreakerState, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	svc, ok := h.services[service]
	if !ok {
		return resilience.StateClosed, false
	}
	return svc.breaker.GetState(), true
}
