package provider

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/delivery-router/internal/domain"
)

// Adapter is the outbound delivery port for one messaging backend.
// The recipient is always canonical (+countrycode form) by the time an
// adapter sees it.
type Adapter interface {
	Send(ctx context.Context, cfg domain.TenantConfig, to string, req domain.DeliveryRequest) (*Response, error)
}

// Response stores provider call metadata for audit and persistence.
type Response struct {
	StatusCode int
	Body       string
	MessageID  string
	Link       string // populated only by the direct-link adapter
}

// Registry maps provider kinds to adapters. New backends register here
// without touching the router.
type Registry struct {
	adapters map[domain.ProviderKind]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[domain.ProviderKind]Adapter)}
}

func (r *Registry) Register(kind domain.ProviderKind, adapter Adapter) error {
	if r == nil || r.adapters == nil {
		return fmt.Errorf("registry is not initialized")
	}
	if !kind.IsValid() {
		return fmt.Errorf("%w: invalid provider %q", domain.ErrValidation, kind)
	}
	if adapter == nil {
		return fmt.Errorf("adapter is required for provider %q", kind)
	}
	if _, exists := r.adapters[kind]; exists {
		return fmt.Errorf("provider %q already registered", kind)
	}
	r.adapters[kind] = adapter
	return nil
}

func (r *Registry) Lookup(kind domain.ProviderKind) (Adapter, bool) {
	if r == nil {
		return nil, false
	}
	adapter, ok := r.adapters[kind]
	return adapter, ok
}
