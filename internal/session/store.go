package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Omarrvv/final-bot-sub005/internal/coreerr"
	"github.com/Omarrvv/final-bot-sub005/internal/resilience"
)

// keyPrefix matches the wire format in SPEC_FULL §6: "session:<id>".
const keyPrefix = "session:"

// PrimaryBackend is the networked key-value backend session.Store mirrors
// writes into. Satisfied by a thin adapter over *redis.Client.
type PrimaryBackend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// ErrPrimaryMiss is returned by a PrimaryBackend when the key is absent.
var ErrPrimaryMiss = errors.New("session: key not found in primary backend")

// Config configures a Store.
type Config struct {
	SessionTTL       time.Duration
	RememberMeTTL    time.Duration
	FallbackCapacity int
	MaxRetries       int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	Breaker          resilience.CircuitBreakerConfig
}

// DefaultConfig matches SPEC_FULL §4.1's defaults: 24h/30d TTLs, 3 consecutive
// failures to open, 15s reset, 2 retries 100ms→500ms.
func DefaultConfig() Config {
	return Config{
		SessionTTL:       24 * time.Hour,
		RememberMeTTL:    30 * 24 * time.Hour,
		FallbackCapacity: 10_000,
		MaxRetries:       2,
		RetryBaseDelay:   100 * time.Millisecond,
		RetryMaxDelay:    500 * time.Millisecond,
		Breaker: resilience.CircuitBreakerConfig{
			MaxFailures:      3,
			ResetTimeout:     15 * time.Second,
			FailureThreshold: 1.0, // consecutive-failure rule drives opening; window ratio kept permissive
			TimeWindow:       60 * time.Second,
			SlowCallDuration: 2 * time.Second,
			HalfOpenMaxCalls: 1,
		},
	}
}

// ValidateResult is returned by Store.Validate.
type ValidateResult struct {
	Valid        bool
	CreatedAt    time.Time
	LastAccessed time.Time
}

// Store implements the Session Store (§4.1): Create/Get/Save/Delete/Validate/
// Refresh over a primary backend mirrored into an in-process fallback, with
// a circuit breaker protecting every primary call.
type Store struct {
	primary  PrimaryBackend
	fallback *fallbackStore
	breaker  *resilience.CircuitBreaker
	retry    *resilience.RetryPolicy
	cfg      Config
	logger   *slog.Logger
}

// New constructs a Store. metrics may be nil to disable Prometheus export.
func New(primary PrimaryBackend, cfg Config, logger *slog.Logger, metrics *resilience.CircuitBreakerMetrics) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	breaker, err := resilience.NewCircuitBreaker(cfg.Breaker, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("session: building circuit breaker: %w", err)
	}

	retry := &resilience.RetryPolicy{
		MaxRetries:    cfg.MaxRetries,
		BaseDelay:     cfg.RetryBaseDelay,
		MaxDelay:      cfg.RetryMaxDelay,
		Multiplier:    5.0, // 100ms -> 500ms in one hop, per §4.1
		Jitter:        true,
		Logger:        logger,
		OperationName: "session_primary",
	}

	return &Store{
		primary:  primary,
		fallback: newFallbackStore(cfg.FallbackCapacity, logger),
		breaker:  breaker,
		retry:    retry,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

func sessionKey(id string) string { return keyPrefix + id }

func (s *Store) ttlFor(rememberMe bool) time.Duration {
	if rememberMe {
		return s.cfg.RememberMeTTL
	}
	return s.cfg.SessionTTL
}

// Create allocates a new session id and persists an initial Context.
func (s *Store) Create(ctx context.Context, metadata map[string]any, language string, rememberMe bool) (string, error) {
	id := uuid.NewString()
	now := time.Now()
	sc := NewContext(id, language, metadata, now)

	if err := s.Save(ctx, id, sc, rememberMe); err != nil {
		return "", err
	}
	return id, nil
}

// Get loads a session's Context. A miss on both backends returns (nil, nil):
// per §4.1, "Get returning no entry is not an error".
func (s *Store) Get(ctx context.Context, id string) (*Context, error) {
	now := time.Now()

	if s.breaker.GetState() == resilience.StateOpen {
		if sc, ok := s.fallback.get(id, now); ok {
			return sc, nil
		}
		return nil, nil
	}

	var raw []byte
	err := s.breaker.Call(ctx, func(callCtx context.Context) error {
		return resilience.WithRetry(callCtx, s.retry, func() error {
			data, getErr := s.primary.Get(callCtx, sessionKey(id))
			if getErr != nil {
				return getErr
			}
			raw = data
			return nil
		})
	})

	switch {
	case errors.Is(err, resilience.ErrCircuitBreakerOpen):
		if sc, ok := s.fallback.get(id, now); ok {
			return sc, nil
		}
		return nil, nil
	case errors.Is(err, ErrPrimaryMiss):
		if sc, ok := s.fallback.get(id, now); ok {
			return sc, nil
		}
		return nil, nil
	case err != nil:
		s.logger.Warn("session primary get failed, consulting fallback", "session_id", id, "error", err)
		if sc, ok := s.fallback.get(id, now); ok {
			return sc, nil
		}
		return nil, nil
	}

	var sc Context
	if unmarshalErr := json.Unmarshal(raw, &sc); unmarshalErr != nil {
		return nil, coreerr.Wrap(coreerr.KindInternal, "decode session context", unmarshalErr)
	}
	s.fallback.put(id, &sc, s.cfg.SessionTTL, now)
	return &sc, nil
}

// Save persists ctx to the primary (mirrored into the fallback on success,
// or used directly when the primary is unavailable). Last-writer-wins; a
// concurrent overwrite is neither rejected nor detected.
func (s *Store) Save(ctx context.Context, id string, sc *Context, rememberMe bool) error {
	sc.bumpRevision()
	ttl := s.ttlFor(rememberMe)
	now := time.Now()

	data, err := json.Marshal(sc)
	if err != nil {
		return coreerr.Wrap(coreerr.KindInternal, "encode session context", err)
	}

	primaryErr := s.breaker.Call(ctx, func(callCtx context.Context) error {
		return resilience.WithRetry(callCtx, s.retry, func() error {
			return s.primary.Set(callCtx, sessionKey(id), data, ttl)
		})
	})

	s.fallback.put(id, sc, ttl, now)

	if primaryErr != nil {
		s.logger.Warn("session primary save failed, served from fallback", "session_id", id, "error", primaryErr)
	}

	return nil
}

// Delete removes a session from both backends.
func (s *Store) Delete(ctx context.Context, id string) error {
	_ = s.breaker.Call(ctx, func(callCtx context.Context) error {
		return s.primary.Delete(callCtx, sessionKey(id))
	})
	s.fallback.delete(id)
	return nil
}

// Validate reports whether a session exists and its timestamps, without
// decoding the full context into caller-visible state.
func (s *Store) Validate(ctx context.Context, id string) (ValidateResult, error) {
	sc, err := s.Get(ctx, id)
	if err != nil {
		return ValidateResult{}, err
	}
	if sc == nil {
		return ValidateResult{Valid: false}, nil
	}
	return ValidateResult{Valid: true, CreatedAt: sc.CreatedAt, LastAccessed: sc.LastAccessed}, nil
}

// Refresh extends a session's TTL without altering its content, returning
// the new expiry instant.
func (s *Store) Refresh(ctx context.Context, id string, rememberMe bool) (time.Time, error) {
	ttl := s.ttlFor(rememberMe)
	now := time.Now()

	err := s.breaker.Call(ctx, func(callCtx context.Context) error {
		return s.primary.Expire(callCtx, sessionKey(id), ttl)
	})
	if err != nil {
		s.logger.Debug("session primary refresh failed, refreshing fallback only", "session_id", id, "error", err)
	}
	s.fallback.refresh(id, ttl, now)

	return now.Add(ttl), nil
}

// BreakerState exposes the primary circuit breaker's state for health checks.
func (s *Store) BreakerState() resilience.CircuitBreakerState {
	return s.breaker.GetState()
}

// FallbackSize reports the number of entries held in the fallback map,
// for diagnostics.
func (s *Store) FallbackSize() int {
	return s.fallback.size()
}
