package auth

import (
	"sync"

	"github.com/marmos91/labgate/internal/logger"
)

// Factory builds a strategy for an institution namespace.
type Factory func(namespace string) (Strategy, error)

// Registry maps strategy types to factories. Institution overrides are
// consulted before the generic factory of the same type.
type Registry struct {
	mu          sync.RWMutex
	generic     map[Type]Factory
	institution map[string]map[Type]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		generic:     make(map[Type]Factory),
		institution: make(map[string]map[Type]Factory),
	}
}

// Register sets the generic factory for t.
func (r *Registry) Register(t Type, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generic[t] = f
}

// RegisterInstitution sets the factory used for t in namespace only.
func (r *Registry) RegisterInstitution(namespace string, t Type, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.institution[namespace]
	if !ok {
		m = make(map[Type]Factory)
		r.institution[namespace] = m
	}
	m[t] = f
}

// Lookup returns the factory for t in namespace.
func (r *Registry) Lookup(namespace string, t Type) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.institution[namespace][t]; ok {
		return f, true
	}
	f, ok := r.generic[t]
	return f, ok
}

// Build instantiates the configured chain for namespace.
//
// An empty list, a name that is not a strategy type, or a type without a
// registered factory is a configuration error. A factory that fails is
// logged and skipped; if nothing remains the result is a configuration
// error.
func (r *Registry) Build(namespace string, names []string) ([]Strategy, error) {
	if len(names) == 0 {
		return nil, Configuration("no authentication strategies configured for %q", namespace)
	}

	types := make([]Type, 0, len(names))
	for _, name := range names {
		t, err := ParseType(name)
		if err != nil {
			return nil, err
		}
		if _, ok := r.Lookup(namespace, t); !ok {
			return nil, Configuration("authentication type %q is not available", t)
		}
		types = append(types, t)
	}

	strategies := make([]Strategy, 0, len(types))
	for _, t := range types {
		f, _ := r.Lookup(namespace, t)
		s, err := f(namespace)
		if err != nil {
			logger.Error("Skipping authentication strategy",
				logger.Namespace(namespace),
				logger.Strategy(t.String()),
				logger.Err(err))
			continue
		}
		strategies = append(strategies, s)
	}
	if len(strategies) == 0 {
		return nil, Configuration("no authentication strategy could be constructed for %q", namespace)
	}
	return strategies, nil
}
