// Package resulttype maps result type names, as a workflow spells them in
// the resultClass parameter, to factories producing decode targets.
package resulttype

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Factory returns a fresh pointer to decode a response body into.
type Factory func() any

// ErrUnknownType is returned by New for names that were never registered.
var ErrUnknownType = errors.New("unknown result type")

// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds name to a factory. Registering the same name twice is an
// error.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("result type name is required")
	}
	if f == nil {
		return fmt.Errorf("result type %q: nil factory", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("result type %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// RegisterType registers name with a factory returning a new *T.
func RegisterType[T any](r *Registry, name string) error {
	return r.Register(name, func() any { return new(T) })
}

// New returns a fresh decode target for name.
func (r *Registry) New(name string) (any, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return f(), nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns a registry preloaded with the generic map type and the
// Tower job payloads.
func Default() *Registry {
	r := NewRegistry()
	_ = RegisterType[map[string]any](r, "map")
	_ = RegisterType[JobLaunch](r, "tower.JobLaunch")
	_ = RegisterType[Job](r, "tower.Job")
	_ = RegisterType[JobTemplate](r, "tower.JobTemplate")
	return r
}
