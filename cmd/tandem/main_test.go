// ABOUTME: Tests for flag parsing, registry building and mode wiring
// ABOUTME: No network; providers are constructed but never stream

package main

import (
	"strings"
	"testing"

	"github.com/mauromedda/tandem/internal/config"
	"github.com/mauromedda/tandem/pkg/ai"
	"github.com/mauromedda/tandem/pkg/client/consent"
	"github.com/mauromedda/tandem/pkg/runtime"
)

// clearVendorEnv blanks every credential variable so host configuration
// cannot leak into registry tests.
func clearVendorEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "AZURE_OPENAI_API_KEY",
		"OPENROUTER_API_KEY", "XAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
	} {
		t.Setenv(name, "")
	}
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	c, err := parseFlags([]string{"-model", "opus", "-yolo", "-p", "what time is it", "extra", "words"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if c.model != "opus" {
		t.Errorf("model = %q, want opus", c.model)
	}
	if !c.yolo {
		t.Error("yolo flag not set")
	}
	if c.prompt != "what time is it" {
		t.Errorf("prompt = %q", c.prompt)
	}
	if len(c.rest) != 2 || c.rest[0] != "extra" {
		t.Errorf("rest = %v, want the positional arguments", c.rest)
	}
}

func TestParseFlagsRejectsUnknown(t *testing.T) {
	t.Parallel()

	if _, err := parseFlags([]string{"-definitely-not-a-flag"}); err == nil {
		t.Fatal("unknown flag accepted")
	}
}

func TestBuildRegistryOnlyConfiguredVendors(t *testing.T) {
	clearVendorEnv(t)

	cfg := &config.Config{
		Vendors: map[string]config.VendorConfig{
			"anthropic": {APIKey: "sk-ant-test"},
		},
	}
	reg, names, err := buildRegistry(cfg)
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}

	joined := strings.Join(names, ",")
	if !strings.Contains(joined, "anthropic") {
		t.Errorf("names = %v, want anthropic registered", names)
	}
	if !strings.Contains(joined, "ollama") {
		t.Errorf("names = %v, want ollama always registered", names)
	}
	if strings.Contains(joined, "openai") {
		t.Errorf("names = %v, openai has no key and must not register", names)
	}

	if _, err := reg.Provider(ai.VendorAnthropic); err != nil {
		t.Errorf("anthropic provider missing: %v", err)
	}
	if _, err := reg.Provider(ai.VendorOpenAI); err == nil {
		t.Error("openai provider registered without a key")
	}
}

func TestBuildRegistryAzureNeedsEndpoint(t *testing.T) {
	clearVendorEnv(t)

	cfg := &config.Config{
		Vendors: map[string]config.VendorConfig{
			"azure": {APIKey: "azkey"},
		},
	}
	_, names, err := buildRegistry(cfg)
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}
	if strings.Contains(strings.Join(names, ","), "azure") {
		t.Error("azure registered without an endpoint")
	}
}

func TestResolveHandleForms(t *testing.T) {
	clearVendorEnv(t)

	cfg := &config.Config{
		Vendors: map[string]config.VendorConfig{
			"anthropic": {APIKey: "sk-ant-test"},
		},
	}
	reg, _, err := buildRegistry(cfg)
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}

	t.Run("catalog alias", func(t *testing.T) {
		h, err := resolveHandle(reg, "sonnet")
		if err != nil {
			t.Fatalf("resolveHandle: %v", err)
		}
		if h.Model.ID != "claude-sonnet-4-6" {
			t.Errorf("model = %s, want claude-sonnet-4-6", h.Model.ID)
		}
	})

	t.Run("ollama tag", func(t *testing.T) {
		h, err := resolveHandle(reg, "ollama:llama3.2")
		if err != nil {
			t.Fatalf("resolveHandle: %v", err)
		}
		if h.Model.Vendor != ai.VendorOllama || h.Model.ID != "llama3.2" {
			t.Errorf("model = %+v, want the local tag", h.Model)
		}
	})

	t.Run("openrouter form without key", func(t *testing.T) {
		if _, err := resolveHandle(reg, "mistralai/mistral-large"); err == nil {
			t.Fatal("slash model resolved without an openrouter key")
		}
	})

	t.Run("unregistered vendor", func(t *testing.T) {
		if _, err := resolveHandle(reg, "gpt-4o"); err == nil {
			t.Fatal("gpt-4o resolved without an openai key")
		}
	})
}

func TestRuntimeOptionsPrecedence(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		System:        "from config",
		MaxIterations: 5,
		MaxTokens:     1000,
		Thinking:      true,
	}
	flags := &cliArgs{system: "from flag", maxTokens: 2000}

	opts := runtimeOptions(cfg, flags)
	if opts.System != "from flag" {
		t.Errorf("System = %q, want the flag override", opts.System)
	}
	if opts.MaxIterations != 5 {
		t.Errorf("MaxIterations = %d, want the config value", opts.MaxIterations)
	}
	if opts.Request.MaxTokens != 2000 {
		t.Errorf("MaxTokens = %d, want the flag override", opts.Request.MaxTokens)
	}
	if !opts.Request.Thinking {
		t.Error("Thinking from config lost")
	}
}

func TestServerToolsGateShell(t *testing.T) {
	t.Parallel()

	plain := serverTools(false)
	if len(plain) != 1 || plain[0].Name != "webfetch" {
		t.Errorf("tools = %v, want webfetch only", toolNames(plain))
	}

	yolo := serverTools(true)
	names := toolNames(yolo)
	if len(yolo) != 2 || !strings.Contains(strings.Join(names, ","), "shell") {
		t.Errorf("tools = %v, want shell included under yolo", names)
	}
}

func toolNames(tools []*runtime.ToolDefinition) []string {
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	return names
}

func TestOpenConsentStoreBackends(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		store, label, err := openConsentStore(&config.Config{}, &cliArgs{consentStore: "memory"})
		if err != nil {
			t.Fatalf("openConsentStore: %v", err)
		}
		if label != "memory" {
			t.Errorf("label = %q", label)
		}
		if _, ok := store.(*consent.Memory); !ok {
			t.Errorf("store = %T, want the in-memory store", store)
		}
	})

	t.Run("explicit file path", func(t *testing.T) {
		path := t.TempDir() + "/consent.yaml"
		cfg := &config.Config{Consent: config.ConsentConfig{Store: "file", Path: path}}
		store, label, err := openConsentStore(cfg, &cliArgs{})
		if err != nil {
			t.Fatalf("openConsentStore: %v", err)
		}
		if label != "file" {
			t.Errorf("label = %q", label)
		}
		if _, ok := store.(*consent.File); !ok {
			t.Errorf("store = %T, want the file store", store)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		if _, _, err := openConsentStore(&config.Config{}, &cliArgs{consentStore: "redis"}); err == nil {
			t.Fatal("unknown backend accepted")
		}
	})
}

func TestFirstNonEmpty(t *testing.T) {
	t.Parallel()

	if got := firstNonEmpty("", "", "c"); got != "c" {
		t.Errorf("got %q, want c", got)
	}
	if got := firstNonEmpty("a", "b"); got != "a" {
		t.Errorf("got %q, want a", got)
	}
	if got := firstNonEmpty(); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
