package convention

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// Registry maps software type names to implementations.
//
// Thread-safety: safe for concurrent use. Implementations are read-only once
// registered.
type Registry struct {
	mu    sync.RWMutex
	impls map[string]*Implementation
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{impls: make(map[string]*Implementation)}
}

// Register adds an implementation. Names must be unique and non-empty.
func (r *Registry) Register(impl *Implementation) error {
	if impl == nil || impl.Name == "" {
		return fmt.Errorf("register software type: name is required")
	}
	if impl.ModelPublicType.IsZero() {
		return fmt.Errorf("register software type %q: model type is required", impl.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.impls[impl.Name]; exists {
		return fmt.Errorf("register software type %q: already registered", impl.Name)
	}
	r.impls[impl.Name] = impl

	slog.Debug("software type registered",
		"name", impl.Name,
		"model", impl.ModelPublicType.DisplayName(),
		"conventions", len(impl.Conventions))
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(impls ...*Implementation) *Registry {
	for _, impl := range impls {
		if err := r.Register(impl); err != nil {
			panic(err)
		}
	}
	return r
}

// ImplementationsByName returns a copy of the name to implementation mapping.
func (r *Registry) ImplementationsByName() map[string]*Implementation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.impls)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.impls))
}
