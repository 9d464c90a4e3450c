package nlu

import (
	"fmt"
	"log/slog"
	"sync"
)

// Loader produces a model artifact on first use.
type Loader func() (any, error)

// ModelHandle lazily loads an artifact on first Acquire and tracks how
// many callers currently hold it, mirroring dbcore.Pool's
// acquire/release discipline (§4.6 Lazy loading).
type ModelHandle struct {
	name   string
	loader Loader

	mu       sync.Mutex
	artifact any
	refCount int
}

// Acquire loads the artifact if not already loaded and increments the
// reference count.
func (h *ModelHandle) Acquire() (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.artifact == nil {
		artifact, err := h.loader()
		if err != nil {
			return nil, fmt.Errorf("nlu: loading model %q: %w", h.name, err)
		}
		h.artifact = artifact
	}
	h.refCount++
	return h.artifact, nil
}

// Release decrements the reference count. The artifact is retained until
// Registry.Shutdown, not unloaded at zero refcount — model load is
// expensive and requests arrive continuously.
func (h *ModelHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refCount > 0 {
		h.refCount--
	}
}

func (h *ModelHandle) unload() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.artifact = nil
	h.refCount = 0
}

// Registry is the process-wide tracker of loaded models (§4.6 Lazy loading).
type Registry struct {
	mu      sync.Mutex
	handles map[string]*ModelHandle
	logger  *slog.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{handles: make(map[string]*ModelHandle), logger: logger}
}

// Register installs a loader under name. Calling Register again for the
// same name replaces the handle, dropping any artifact already loaded.
func (r *Registry) Register(name string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[name] = &ModelHandle{name: name, loader: loader}
}

// Acquire loads (if needed) and borrows the named model, returning a
// release function the caller must invoke exactly once.
func (r *Registry) Acquire(name string) (any, func(), error) {
	r.mu.Lock()
	h, ok := r.handles[name]
	r.mu.Unlock()

	if !ok {
		return nil, nil, fmt.Errorf("nlu: model %q is not registered", name)
	}

	artifact, err := h.Acquire()
	if err != nil {
		return nil, nil, err
	}
	return artifact, h.Release, nil
}

// Shutdown releases every loaded model, logging each one.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, h := range r.handles {
		h.unload()
		r.logger.Debug("nlu model unloaded", "model", name)
	}
}
