package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// Config configures a TieredCache.
type Config struct {
	L1Capacity     int
	DefaultL2TTL   time.Duration
	L2MissDeadline time.Duration
}

// DefaultConfig matches SPEC_FULL §4.3/§6 defaults.
func DefaultConfig() Config {
	return Config{
		L1Capacity:     1000,
		DefaultL2TTL:   30 * time.Minute,
		L2MissDeadline: 50 * time.Millisecond,
	}
}

// TieredCache implements the Tiered Cache (§4.3): L1 in-process LRU over an
// L2 networked backend, write-through, read-through, namespace/prefix
// invalidation. Cache errors never surface to callers; they log and
// degrade to miss behavior.
type TieredCache struct {
	l1     *l1
	l2     L2Backend
	cfg    Config
	logger *slog.Logger
}

// New constructs a TieredCache. l2 may be nil to run L1-only (degraded mode).
func New(l2 L2Backend, cfg Config, logger *slog.Logger) *TieredCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &TieredCache{
		l1:     newL1(cfg.L1Capacity),
		l2:     l2,
		cfg:    cfg,
		logger: logger,
	}
}

// Get looks up namespace/params, trying L1 then L2, populating L1 on an L2
// hit. Returns false on a clean miss; never returns an error.
func (c *TieredCache) Get(ctx context.Context, namespace string, params map[string]string, dest any) bool {
	return c.GetByKey(ctx, Key(namespace, params), dest)
}

// GetByKey is Get against an already-derived key, for callers (e.g. vector
// search) that compose the key themselves via VectorKey.
func (c *TieredCache) GetByKey(ctx context.Context, key string, dest any) bool {
	now := time.Now()

	if raw, ok := c.l1.get(key, now); ok {
		if err := json.Unmarshal(raw, dest); err != nil {
			c.logger.Warn("cache L1 decode failed, treating as miss", "key", key, "error", err)
			return false
		}
		return true
	}

	if c.l2 == nil {
		return false
	}

	l2ctx, cancel := context.WithTimeout(ctx, c.cfg.L2MissDeadline)
	defer cancel()

	raw, err := c.l2.Get(l2ctx, key)
	if err != nil {
		if !errors.Is(err, ErrL2Miss) {
			c.logger.Debug("cache L2 get failed, degrading to miss", "key", key, "error", err)
		}
		return false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("cache L2 decode failed, treating as miss", "key", key, "error", err)
		return false
	}
	if now.After(e.ExpireAt) {
		return false
	}

	if err := json.Unmarshal(e.Value, dest); err != nil {
		c.logger.Warn("cache value decode failed, treating as miss", "key", key, "error", err)
		return false
	}

	c.l1.set(key, e.Value, time.Until(e.ExpireAt), now)
	return true
}

// Set writes value write-through: L1 first, then L2 (§4.3 Consistency).
func (c *TieredCache) Set(ctx context.Context, namespace string, params map[string]string, value any, ttl time.Duration) {
	c.SetByKey(ctx, Key(namespace, params), value, ttl)
}

// SetByKey is Set against an already-derived key, for callers (e.g. vector
// search) that compose the key themselves via VectorKey.
func (c *TieredCache) SetByKey(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultL2TTL
	}
	now := time.Now()

	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache value encode failed, skipping write", "key", key, "error", err)
		return
	}

	c.l1.set(key, raw, ttl, now)

	if c.l2 == nil {
		return
	}

	e := entry{Value: raw, ExpireAt: now.Add(ttl)}
	encoded, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.l2.Set(ctx, key, encoded, ttl); err != nil {
		c.logger.Debug("cache L2 set failed", "key", key, "error", err)
	}
}

// InvalidateNamespace removes every entry under namespace from both levels.
func (c *TieredCache) InvalidateNamespace(ctx context.Context, namespace string) {
	c.InvalidatePrefix(ctx, namespace+":")
}

// InvalidatePrefix removes every key starting with prefix from both levels.
func (c *TieredCache) InvalidatePrefix(ctx context.Context, prefix string) {
	removed := c.l1.deleteByPrefix(prefix)
	c.logger.Debug("cache L1 prefix invalidated", "prefix", prefix, "removed", removed)

	if c.l2 == nil {
		return
	}

	keys, err := c.l2.Keys(ctx, prefix+"*")
	if err != nil {
		c.logger.Debug("cache L2 key scan failed during invalidation", "prefix", prefix, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.l2.Delete(ctx, keys...); err != nil {
		c.logger.Debug("cache L2 invalidation failed", "prefix", prefix, "error", err)
	}
}

// Len reports the current L1 entry count, for diagnostics.
func (c *TieredCache) Len() int {
	return c.l1.len()
}
