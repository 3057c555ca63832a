package provider

import (
	"fmt"
	"sort"

	"github.com/triggerline/triggerline/internal/domain"
)

// Registry is the provider-id lookup table. Adapters register once at
// startup; lookups are read-only afterwards, so no locking is needed.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates a registry from the given adapters, keyed by Name()
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

// Get returns the adapter for a provider id
func (r *Registry) Get(provider string) (Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, provider)
	}
	return a, nil
}

// Names returns the registered provider ids in stable order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
