package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// l1Entry pairs a raw value with its expiry for in-process TTL enforcement
// (the LRU itself only evicts by recency, not by age).
type l1Entry struct {
	value    []byte
	expireAt time.Time
}

// l1 wraps a bounded LRU with TTL-aware Get and namespace/prefix scanning,
// since hashicorp/golang-lru has no native TTL or prefix support.
type l1 struct {
	mu    sync.Mutex
	cache *lru.Cache[string, l1Entry]
}

func newL1(capacity int) *l1 {
	if capacity <= 0 {
		capacity = 1000
	}
	c, _ := lru.New[string, l1Entry](capacity)
	return &l1{cache: c}
}

func (l *l1) get(key string, now time.Time) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.cache.Get(key)
	if !ok {
		return nil, false
	}
	if now.After(e.expireAt) {
		l.cache.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (l *l1) set(key string, value []byte, ttl time.Duration, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Add(key, l1Entry{value: value, expireAt: now.Add(ttl)})
}

func (l *l1) delete(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Remove(key)
}

// deleteByPrefix removes every key starting with prefix, returning the count removed.
func (l *l1) deleteByPrefix(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for _, key := range l.cache.Keys() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			l.cache.Remove(key)
			removed++
		}
	}
	return removed
}

func (l *l1) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.Len()
}
