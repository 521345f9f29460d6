package connector

import "fmt"

// Registry maps provider_type to a connector factory. It is populated at
// startup and read-only afterwards, so no locking.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(providerType string, factory Factory) {
	r.factories[providerType] = factory
}

func (r *Registry) New(providerType string, opts Options) (Connector, error) {
	factory, ok := r.factories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
	return factory(opts)
}

func (r *Registry) Has(providerType string) bool {
	_, ok := r.factories[providerType]
	return ok
}

func (r *Registry) Known() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	return out
}
