package cache

import (
	"context"
	"time"
)

// entry is the L2-stored value: a JSON object holding the payload and its
// embedded expiry, per §6's persisted-state layout.
type entry struct {
	Value    []byte    `json:"value"`
	ExpireAt time.Time `json:"expire_at"`
}

// L2Backend is the networked key-value store fronted by the L1 LRU.
// Satisfied by a thin adapter over *redis.Client.
type L2Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// ErrL2Miss is returned by an L2Backend when the key is absent or expired.
var ErrL2Miss = errMiss{}

type errMiss struct{}

func (errMiss) Error() string { return "cache: key not found in L2 backend" }
