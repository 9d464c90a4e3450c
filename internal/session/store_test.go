package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory PrimaryBackend test double that can be forced
// to fail, simulating the networked primary's unavailability.
type fakeBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	failing bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[string][]byte)}
}

func (f *fakeBackend) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *fakeBackend) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("primary unavailable")
	}
	v, ok := f.data[key]
	if !ok {
		return nil, ErrPrimaryMiss
	}
	return v, nil
}

func (f *fakeBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("primary unavailable")
	}
	f.data[key] = value
	return nil
}

func (f *fakeBackend) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeBackend) Expire(ctx context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("primary unavailable")
	}
	if _, ok := f.data[key]; !ok {
		return ErrPrimaryMiss
	}
	return nil
}

func (f *fakeBackend) Ping(ctx context.Context) error { return nil }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = 0
	cfg.Breaker.ResetTimeout = 50 * time.Millisecond
	cfg.Breaker.SlowCallDuration = time.Second
	return cfg
}

func TestStore_CreateAndGet(t *testing.T) {
	backend := newFakeBackend()
	store, err := New(backend, testConfig(), nil, nil)
	require.NoError(t, err)

	id, err := store.Create(context.Background(), map[string]any{"channel": "web"}, "en", false)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	sc, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Equal(t, "en", sc.Language)
	assert.Equal(t, id, sc.SessionID)
}

func TestStore_Get_MissReturnsNilNotError(t *testing.T) {
	backend := newFakeBackend()
	store, err := New(backend, testConfig(), nil, nil)
	require.NoError(t, err)

	sc, err := store.Get(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, sc)
}

func TestStore_FallbackServesOnPrimaryFailure(t *testing.T) {
	backend := newFakeBackend()
	store, err := New(backend, testConfig(), nil, nil)
	require.NoError(t, err)

	id, err := store.Create(context.Background(), nil, "en", false)
	require.NoError(t, err)

	backend.setFailing(true)

	sc, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, sc, "fallback should serve the session while primary is down")
	assert.Equal(t, id, sc.SessionID)
}

func TestStore_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfig()
	cfg.Breaker.MaxFailures = 3
	store, err := New(backend, cfg, nil, nil)
	require.NoError(t, err)

	backend.setFailing(true)

	for i := 0; i < 3; i++ {
		_, _ = store.Get(context.Background(), "missing-during-outage")
	}

	assert.Equal(t, "open", store.BreakerState().String())
}

func TestStore_RememberMeExtendsTTL(t *testing.T) {
	backend := newFakeBackend()
	store, err := New(backend, testConfig(), nil, nil)
	require.NoError(t, err)

	id, err := store.Create(context.Background(), nil, "en", true)
	require.NoError(t, err)

	expiry, err := store.Refresh(context.Background(), id, true)
	require.NoError(t, err)
	assert.True(t, expiry.After(time.Now().Add(20*24*time.Hour)))
}

func TestStore_Delete(t *testing.T) {
	backend := newFakeBackend()
	store, err := New(backend, testConfig(), nil, nil)
	require.NoError(t, err)

	id, err := store.Create(context.Background(), nil, "en", false)
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), id))

	sc, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, sc)
}

func TestStore_Validate(t *testing.T) {
	backend := newFakeBackend()
	store, err := New(backend, testConfig(), nil, nil)
	require.NoError(t, err)

	id, err := store.Create(context.Background(), nil, "en", false)
	require.NoError(t, err)

	result, err := store.Validate(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.False(t, result.CreatedAt.IsZero())

	missing, err := store.Validate(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, missing.Valid)
}
