package service

import (
	"strings"
	"sync"

	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// Registry resolves named strategy implementations. All strategies are
// registered explicitly at startup; resolution is case-insensitive and also
// accepts the `<name>Strategy` naming convention.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]T)}
}

// Register adds a named implementation, replacing any previous registration
// under the same name.
func (r *Registry[T]) Register(name string, impl T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[strings.ToLower(name)] = impl
}

// Resolve returns the implementation registered under name. A miss under
// both the exact name and the `<name>Strategy` convention is a
// configuration error.
func (r *Registry[T]) Resolve(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(name)
	if impl, ok := r.entries[key]; ok {
		return impl, nil
	}
	if impl, ok := r.entries[key+"strategy"]; ok {
		return impl, nil
	}
	if impl, ok := r.entries[strings.TrimSuffix(key, "strategy")]; ok {
		return impl, nil
	}
	var zero T
	return zero, apperrors.NewConfigurationError("strategy not registered", map[string]any{"strategy": name})
}

// ExecuteStrategy resolves name and applies fn to the implementation.
func ExecuteStrategy[T, R any](r *Registry[T], name string, fn func(T) (R, error)) (R, error) {
	impl, err := r.Resolve(name)
	if err != nil {
		var zero R
		return zero, err
	}
	return fn(impl)
}
