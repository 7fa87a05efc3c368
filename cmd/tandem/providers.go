// ABOUTME: Vendor registration and model reference resolution
// ABOUTME: A vendor joins the registry only when its credentials resolve

package main

import (
	"fmt"
	"strings"

	"github.com/mauromedda/tandem/internal/config"
	"github.com/mauromedda/tandem/pkg/ai"
	"github.com/mauromedda/tandem/pkg/ai/provider/anthropic"
	"github.com/mauromedda/tandem/pkg/ai/provider/azure"
	"github.com/mauromedda/tandem/pkg/ai/provider/google"
	"github.com/mauromedda/tandem/pkg/ai/provider/ollama"
	"github.com/mauromedda/tandem/pkg/ai/provider/openai"
	"github.com/mauromedda/tandem/pkg/ai/provider/openrouter"
	"github.com/mauromedda/tandem/pkg/ai/provider/xai"
)

// buildRegistry registers every vendor with usable credentials. Ollama
// needs none and is always available for local tags. The returned names
// are for startup logging.
func buildRegistry(cfg *config.Config) (*ai.Registry, []string, error) {
	reg := ai.NewRegistry()
	var names []string
	add := func(name string, p ai.Provider) error {
		if err := reg.Register(p); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
		names = append(names, name)
		return nil
	}

	if v := cfg.Vendor("anthropic"); v.APIKey != "" {
		if err := add("anthropic", anthropic.New(anthropic.Options{APIKey: v.APIKey, BaseURL: v.BaseURL})); err != nil {
			return nil, nil, err
		}
	}
	if v := cfg.Vendor("openai"); v.APIKey != "" {
		if err := add("openai", openai.New(openai.Options{APIKey: v.APIKey, BaseURL: v.BaseURL})); err != nil {
			return nil, nil, err
		}
	}
	if v := cfg.Vendor("google"); v.APIKey != "" {
		if err := add("google", google.New(google.Options{APIKey: v.APIKey, BaseURL: v.BaseURL})); err != nil {
			return nil, nil, err
		}
	}
	if v := cfg.Vendor("xai"); v.APIKey != "" {
		if err := add("xai", xai.New(xai.Options{APIKey: v.APIKey, BaseURL: v.BaseURL})); err != nil {
			return nil, nil, err
		}
	}
	if v := cfg.Vendor("openrouter"); v.APIKey != "" {
		if err := add("openrouter", openrouter.New(openrouter.Options{APIKey: v.APIKey, BaseURL: v.BaseURL})); err != nil {
			return nil, nil, err
		}
	}
	// Azure routes by deployment inside the endpoint, so a key alone is
	// not enough to build requests.
	if v := cfg.Vendor("azure"); v.APIKey != "" && v.BaseURL != "" {
		if err := add("azure", azure.New(azure.Options{APIKey: v.APIKey, Endpoint: v.BaseURL, APIVersion: v.APIVersion})); err != nil {
			return nil, nil, err
		}
	}

	v := cfg.Vendor("ollama")
	if err := add("ollama", ollama.New(ollama.Options{BaseURL: v.BaseURL})); err != nil {
		return nil, nil, err
	}
	return reg, names, nil
}

// resolveHandle turns a model reference into a bound handle. Three forms:
// catalog ids and aliases, ollama:tag for local models, and vendor/model
// which routes through OpenRouter.
func resolveHandle(reg *ai.Registry, id string) (*ai.ModelHandle, error) {
	if tag, ok := strings.CutPrefix(id, "ollama:"); ok {
		p, err := reg.Provider(ai.VendorOllama)
		if err != nil {
			return nil, err
		}
		return ai.NewHandle(p, ai.OllamaModel(tag)), nil
	}
	if strings.Contains(id, "/") {
		p, err := reg.Provider(ai.VendorOpenRouter)
		if err != nil {
			return nil, fmt.Errorf("model %s routes through openrouter, which has no key configured", id)
		}
		return ai.NewHandle(p, ai.OpenRouterModel(id)), nil
	}
	return reg.Handle(id)
}
