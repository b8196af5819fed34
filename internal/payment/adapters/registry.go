// Package adapters routes webhook deliveries to the gateway adapter
// that can verify and parse them.
package adapters

import (
	"strings"

	"github.com/cadenzalabs/cadenza/internal/payment/domain"
)

type Registry struct {
	adapters map[string]domain.Adapter
}

func NewRegistry(adapters ...domain.Adapter) *Registry {
	registry := &Registry{adapters: map[string]domain.Adapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		gateway := strings.ToLower(strings.TrimSpace(string(adapter.Gateway())))
		if gateway == "" {
			continue
		}
		registry.adapters[gateway] = adapter
	}
	return registry
}

func (r *Registry) Get(gateway string) (domain.Adapter, bool) {
	if r == nil {
		return nil, false
	}
	adapter, ok := r.adapters[strings.ToLower(strings.TrimSpace(gateway))]
	return adapter, ok
}
