// ABOUTME: Vendor identifiers, model catalog and id/alias resolution
// ABOUTME: Capability lookups are static; Resolve suggests near-misses

package ai

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Vendor identifies a provider family.
type Vendor string

const (
	VendorAnthropic  Vendor = "anthropic"
	VendorOpenAI     Vendor = "openai"
	VendorAzure      Vendor = "azure"
	VendorOpenRouter Vendor = "openrouter"
	VendorXAI        Vendor = "xai"
	VendorGoogle     Vendor = "google"
	VendorOllama     Vendor = "ollama"
)

// Model describes one model: identity, vendor and static capabilities.
type Model struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Vendor           Vendor   `json:"vendor"`
	ContextWindow    int      `json:"context_window"`
	MaxOutputTokens  int      `json:"max_output_tokens"`
	SupportsTools    bool     `json:"supports_tools"`
	SupportsVision   bool     `json:"supports_vision"`
	SupportsThinking bool     `json:"supports_thinking"`
	Aliases          []string `json:"aliases,omitempty"`
	BaseURL          string   `json:"base_url,omitempty"`
}

// Capabilities is the static capability table for a model. Pure data, no
// network calls.
type Capabilities struct {
	SupportsTools    bool `json:"supports_tools"`
	SupportsVision   bool `json:"supports_vision"`
	SupportsThinking bool `json:"supports_thinking"`
	ContextWindow    int  `json:"context_window"`
	MaxOutputTokens  int  `json:"max_output_tokens"`
}

// Capabilities returns the model's capability table.
func (m *Model) Capabilities() Capabilities {
	return Capabilities{
		SupportsTools:    m.SupportsTools,
		SupportsVision:   m.SupportsVision,
		SupportsThinking: m.SupportsThinking,
		ContextWindow:    m.ContextWindow,
		MaxOutputTokens:  m.MaxOutputTokens,
	}
}

// Built-in model definitions.
var (
	ModelClaudeOpus = Model{
		ID:               "claude-opus-4-6",
		Name:             "Claude Opus 4.6",
		Vendor:           VendorAnthropic,
		ContextWindow:    200000,
		MaxOutputTokens:  16384,
		SupportsTools:    true,
		SupportsVision:   true,
		SupportsThinking: true,
		Aliases:          []string{"opus"},
	}

	ModelClaudeSonnet = Model{
		ID:               "claude-sonnet-4-6",
		Name:             "Claude Sonnet 4.6",
		Vendor:           VendorAnthropic,
		ContextWindow:    200000,
		MaxOutputTokens:  16384,
		SupportsTools:    true,
		SupportsVision:   true,
		SupportsThinking: true,
		Aliases:          []string{"sonnet"},
	}

	ModelClaudeHaiku = Model{
		ID:              "claude-haiku-4-5-20251001",
		Name:            "Claude Haiku 4.5",
		Vendor:          VendorAnthropic,
		ContextWindow:   200000,
		MaxOutputTokens: 8192,
		SupportsTools:   true,
		SupportsVision:  true,
		Aliases:         []string{"haiku"},
	}

	ModelGPT4o = Model{
		ID:              "gpt-4o",
		Name:            "GPT-4o",
		Vendor:          VendorOpenAI,
		ContextWindow:   128000,
		MaxOutputTokens: 16384,
		SupportsTools:   true,
		SupportsVision:  true,
		Aliases:         []string{"4o"},
	}

	ModelGPT4oMini = Model{
		ID:              "gpt-4o-mini",
		Name:            "GPT-4o Mini",
		Vendor:          VendorOpenAI,
		ContextWindow:   128000,
		MaxOutputTokens: 16384,
		SupportsTools:   true,
		SupportsVision:  true,
		Aliases:         []string{"4o-mini"},
	}

	ModelO4Mini = Model{
		ID:               "o4-mini",
		Name:             "o4-mini",
		Vendor:           VendorOpenAI,
		ContextWindow:    200000,
		MaxOutputTokens:  100000,
		SupportsTools:    true,
		SupportsVision:   true,
		SupportsThinking: true,
	}

	ModelGemini25Pro = Model{
		ID:               "gemini-2.5-pro",
		Name:             "Gemini 2.5 Pro",
		Vendor:           VendorGoogle,
		ContextWindow:    1000000,
		MaxOutputTokens:  65536,
		SupportsTools:    true,
		SupportsVision:   true,
		SupportsThinking: true,
		Aliases:          []string{"gemini"},
	}

	ModelGemini25Flash = Model{
		ID:              "gemini-2.5-flash",
		Name:            "Gemini 2.5 Flash",
		Vendor:          VendorGoogle,
		ContextWindow:   1000000,
		MaxOutputTokens: 65536,
		SupportsTools:   true,
		SupportsVision:  true,
		Aliases:         []string{"flash"},
	}

	ModelGrok3 = Model{
		ID:              "grok-3",
		Name:            "Grok 3",
		Vendor:          VendorXAI,
		ContextWindow:   131072,
		MaxOutputTokens: 16384,
		SupportsTools:   true,
		Aliases:         []string{"grok"},
	}

	ModelGrok3Mini = Model{
		ID:               "grok-3-mini",
		Name:             "Grok 3 Mini",
		Vendor:           VendorXAI,
		ContextWindow:    131072,
		MaxOutputTokens:  16384,
		SupportsTools:    true,
		SupportsThinking: true,
	}
)

// Catalog returns all built-in model definitions.
func Catalog() []Model {
	return []Model{
		ModelClaudeOpus,
		ModelClaudeSonnet,
		ModelClaudeHaiku,
		ModelGPT4o,
		ModelGPT4oMini,
		ModelO4Mini,
		ModelGemini25Pro,
		ModelGemini25Flash,
		ModelGrok3,
		ModelGrok3Mini,
	}
}

// OllamaModel builds a Model for a local Ollama tag. Local tags are not
// enumerable ahead of time, so capabilities default to tool-capable text.
func OllamaModel(tag string) *Model {
	return &Model{
		ID:              tag,
		Name:            tag,
		Vendor:          VendorOllama,
		ContextWindow:   32768,
		MaxOutputTokens: 8192,
		SupportsTools:   true,
	}
}

// OpenRouterModel builds a Model for an OpenRouter id such as
// "anthropic/claude-sonnet-4-6". Capabilities are the conservative defaults
// for routed models.
func OpenRouterModel(id string) *Model {
	return &Model{
		ID:              id,
		Name:            id,
		Vendor:          VendorOpenRouter,
		ContextWindow:   128000,
		MaxOutputTokens: 16384,
		SupportsTools:   true,
	}
}

// AzureModel builds a Model for an Azure OpenAI deployment. The deployment
// name doubles as the model id; capabilities follow the deployed family.
func AzureModel(deployment string, caps Capabilities) *Model {
	return &Model{
		ID:               deployment,
		Name:             deployment,
		Vendor:           VendorAzure,
		ContextWindow:    caps.ContextWindow,
		MaxOutputTokens:  caps.MaxOutputTokens,
		SupportsTools:    caps.SupportsTools,
		SupportsVision:   caps.SupportsVision,
		SupportsThinking: caps.SupportsThinking,
	}
}

// modelIndex maps lowercase ids and aliases to catalog entries.
var modelIndex = func() map[string]*Model {
	models := Catalog()
	idx := make(map[string]*Model, len(models)*2)
	for i := range models {
		idx[strings.ToLower(models[i].ID)] = &models[i]
		for _, alias := range models[i].Aliases {
			idx[strings.ToLower(alias)] = &models[i]
		}
	}
	return idx
}()

// Lookup returns the catalog entry for an exact id or alias, or nil.
func Lookup(id string) *Model {
	return modelIndex[strings.ToLower(id)]
}

// Resolve returns the model for id, accepting aliases. Unknown ids produce
// an error that names the closest catalog matches.
func Resolve(id string) (*Model, error) {
	if m := Lookup(id); m != nil {
		return m, nil
	}
	if s := Suggest(id, 3); len(s) > 0 {
		return nil, fmt.Errorf("%w %q (did you mean %s?)", ErrUnknownModel, id, strings.Join(s, ", "))
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownModel, id)
}

// Suggest returns up to max catalog ids fuzzy-matching input, best first.
func Suggest(input string, max int) []string {
	ids := make([]string, 0, len(modelIndex))
	seen := make(map[string]bool)
	for _, m := range Catalog() {
		if !seen[m.ID] {
			ids = append(ids, m.ID)
			seen[m.ID] = true
		}
	}
	matches := fuzzy.Find(input, ids)
	out := make([]string, 0, max)
	for _, match := range matches {
		out = append(out, match.Str)
		if len(out) == max {
			break
		}
	}
	return out
}
