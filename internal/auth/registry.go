package auth

import (
	"fmt"
	"sort"
)

// Registry holds the set of available authentication providers, keyed by
// name. It is built once at startup and never mutated afterwards, so
// concurrent lookups require no locking.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from the given providers. Duplicate names
// are a wiring defect and fail construction.
func NewRegistry(providers ...Provider) (*Registry, error) {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		name := p.Name()
		if name == "" {
			return nil, fmt.Errorf("provider with empty name")
		}
		if _, exists := m[name]; exists {
			return nil, fmt.Errorf("duplicate provider name: %s", name)
		}
		m[name] = p
	}
	return &Registry{providers: m}, nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the sorted set of registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
