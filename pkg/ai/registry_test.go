// ABOUTME: Tests for the provider registry: registration, lookup, handles
// ABOUTME: Validates instance isolation and duplicate-vendor rejection

package ai

import (
	"context"
	"errors"
	"testing"
)

// stubProvider is a minimal Provider for testing.
type stubProvider struct {
	vendor Vendor
}

func (s *stubProvider) Vendor() Vendor { return s.vendor }

func (s *stubProvider) Stream(_ context.Context, _ *Model, _ *Request) *EventStream {
	es := NewEventStream(1)
	es.Finish(nil)
	return es
}

func TestRegisterAndLookupProvider(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.Register(&stubProvider{vendor: VendorAnthropic}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	p, err := reg.Provider(VendorAnthropic)
	if err != nil {
		t.Fatalf("Provider: %v", err)
	}
	if p.Vendor() != VendorAnthropic {
		t.Errorf("got Vendor %q, want %q", p.Vendor(), VendorAnthropic)
	}
}

func TestRegisterDuplicateVendorFails(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.Register(&stubProvider{vendor: VendorOpenAI}); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := reg.Register(&stubProvider{vendor: VendorOpenAI}); err == nil {
		t.Fatal("second Register succeeded; expected error")
	}
}

func TestUnregisteredProviderError(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	_, err := reg.Provider(VendorGoogle)
	if !errors.Is(err, ErrNoProvider) {
		t.Errorf("got %v, want ErrNoProvider", err)
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	t.Parallel()

	a := NewRegistry()
	b := NewRegistry()
	if err := a.Register(&stubProvider{vendor: VendorXAI}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := b.Provider(VendorXAI); !errors.Is(err, ErrNoProvider) {
		t.Error("registration leaked across registry instances")
	}
}

func TestHandleResolvesAliasAndBindsProvider(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.Register(&stubProvider{vendor: VendorAnthropic}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	h, err := reg.Handle("sonnet")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if h.Model.ID != ModelClaudeSonnet.ID {
		t.Errorf("got model %q, want %q", h.Model.ID, ModelClaudeSonnet.ID)
	}
	if !h.Capabilities().SupportsTools {
		t.Error("expected tool support in capabilities")
	}
}

func TestHandleUnknownModel(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	_, err := reg.Handle("no-such-model-at-all")
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("got %v, want ErrUnknownModel", err)
	}
}

func TestHandleVendorWithoutProvider(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	_, err := reg.Handle(ModelGrok3.ID)
	if !errors.Is(err, ErrNoProvider) {
		t.Errorf("got %v, want ErrNoProvider", err)
	}
}
