// ABOUTME: Provider interface, instance-based registry and ModelHandle facade
// ABOUTME: Registries are constructed and injected; no process-global state

package ai

import (
	"context"
	"fmt"
	"sync"
)

// Provider is the interface all vendor adapters implement. Stream returns a
// finite EventStream of unified events; every invocation ends with exactly
// one terminal event even on transport failure or cancellation.
type Provider interface {
	// Vendor returns the adapter's vendor identifier.
	Vendor() Vendor

	// Stream initiates a streaming model call. The context controls
	// cancellation of the underlying HTTP request.
	Stream(ctx context.Context, model *Model, req *Request) *EventStream
}

// Registry maps vendors to configured Provider instances. Each Registry is
// independent; two runtimes with different credentials never share one
// unless the caller passes the same instance to both.
type Registry struct {
	mu        sync.RWMutex
	providers map[Vendor]Provider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[Vendor]Provider)}
}

// Register adds a provider. Registering the same vendor twice is a
// configuration mistake and fails fast.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := p.Vendor()
	if _, exists := r.providers[v]; exists {
		return fmt.Errorf("register %s: provider already registered", v)
	}
	r.providers[v] = p
	return nil
}

// Provider returns the provider registered for v.
func (r *Registry) Provider(v Vendor) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[v]
	if !ok {
		return nil, fmt.Errorf("%w for vendor %s", ErrNoProvider, v)
	}
	return p, nil
}

// Handle resolves id through the model catalog and binds it to the matching
// registered provider.
func (r *Registry) Handle(id string) (*ModelHandle, error) {
	model, err := Resolve(id)
	if err != nil {
		return nil, err
	}
	p, err := r.Provider(model.Vendor)
	if err != nil {
		return nil, err
	}
	return &ModelHandle{Model: model, Provider: p}, nil
}

// ModelHandle binds one model to one configured provider: the thin per-model
// facade the runtime drives. Capability checks are static lookups; only
// Stream performs I/O.
type ModelHandle struct {
	Model    *Model
	Provider Provider
}

// NewHandle builds a handle from an explicit provider and model, bypassing
// the registry. Useful for custom OpenAI-compatible endpoints.
func NewHandle(p Provider, m *Model) *ModelHandle {
	return &ModelHandle{Model: m, Provider: p}
}

// Stream invokes the model once.
func (h *ModelHandle) Stream(ctx context.Context, req *Request) *EventStream {
	return h.Provider.Stream(ctx, h.Model, req)
}

// Capabilities returns the model's static capability table.
func (h *ModelHandle) Capabilities() Capabilities {
	return h.Model.Capabilities()
}
