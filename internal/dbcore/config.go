package dbcore

import (
	"fmt"
	"time"
)

// PoolConfig configures the connection pool. URI is a full postgres:// DSN
// (the composition root derives it from config.DatabaseConfig.URI).
type PoolConfig struct {
	URI               string
	MinConns          int32
	MaxConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	ConnectTimeout    time.Duration
	HealthCheckPeriod time.Duration

	// AcquireTimeout bounds how long Acquire blocks before failing (§4.2: 5s).
	AcquireTimeout time.Duration

	// SlowAcquireThreshold logs a warning when Acquire exceeds it (§4.2: 100ms).
	SlowAcquireThreshold time.Duration
}

// DefaultPoolConfig returns §4.2's stated defaults (2/20 conns, 5s acquire).
func DefaultPoolConfig(uri string) PoolConfig {
	return PoolConfig{
		URI:                  uri,
		MinConns:             2,
		MaxConns:             20,
		MaxConnLifetime:      1 * time.Hour,
		MaxConnIdleTime:      5 * time.Minute,
		ConnectTimeout:       30 * time.Second,
		HealthCheckPeriod:    30 * time.Second,
		AcquireTimeout:       5 * time.Second,
		SlowAcquireThreshold: 100 * time.Millisecond,
	}
}

// Validate checks configuration invariants.
func (c PoolConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("%w: uri is required", ErrInvalidConfig)
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("%w: max_conns must be positive", ErrInvalidConfig)
	}
	if c.MinConns < 0 {
		return fmt.Errorf("%w: min_conns cannot be negative", ErrInvalidConfig)
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("%w: min_conns cannot exceed max_conns", ErrInvalidConfig)
	}
	if c.AcquireTimeout <= 0 {
		return fmt.Errorf("%w: acquire_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
