// ABOUTME: YAML configuration for the tandem CLI with global + project merge
// ABOUTME: Vendor credentials, default model, loop settings, consent store

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// VendorConfig holds per-vendor connection settings. Names match the
// provider registry: anthropic, openai, azure, openrouter, xai, google,
// ollama.
type VendorConfig struct {
	APIKey     string `yaml:"api_key,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	APIVersion string `yaml:"api_version,omitempty"`
}

// ConsentConfig selects where standing tool approvals persist.
type ConsentConfig struct {
	// Store is "file", "sqlite" or "memory". Empty means file.
	Store string `yaml:"store,omitempty"`
	// Path overrides the default store location.
	Path string `yaml:"path,omitempty"`
}

// Config is the merged CLI configuration.
type Config struct {
	Model         string                  `yaml:"model,omitempty"`
	System        string                  `yaml:"system,omitempty"`
	MaxIterations int                     `yaml:"max_iterations,omitempty"`
	MaxTokens     int                     `yaml:"max_tokens,omitempty"`
	Thinking      bool                    `yaml:"thinking,omitempty"`
	Listen        string                  `yaml:"listen,omitempty"`
	Vendors       map[string]VendorConfig `yaml:"vendors,omitempty"`
	Consent       ConsentConfig           `yaml:"consent,omitempty"`
}

// Load reads and merges global and project-local configuration. Project
// values override global ones. Missing files are not errors.
func Load(projectRoot string) (*Config, error) {
	global, err := loadFile(GlobalConfigFile())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading global config: %w", err)
	}

	project, err := loadFile(ProjectConfigFile(projectRoot))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	merged := merge(global, project)
	resolveEnvVars(merged)
	return merged, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Config{}, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &c, nil
}

// merge overlays project onto global. Non-zero project values win; vendor
// maps merge per field so a project file can override just one base URL.
func merge(global, project *Config) *Config {
	if global == nil {
		global = &Config{}
	}
	if project == nil {
		return global
	}

	result := *global

	if project.Model != "" {
		result.Model = project.Model
	}
	if project.System != "" {
		result.System = project.System
	}
	if project.MaxIterations != 0 {
		result.MaxIterations = project.MaxIterations
	}
	if project.MaxTokens != 0 {
		result.MaxTokens = project.MaxTokens
	}
	if project.Thinking {
		result.Thinking = true
	}
	if project.Listen != "" {
		result.Listen = project.Listen
	}
	if project.Consent.Store != "" {
		result.Consent.Store = project.Consent.Store
	}
	if project.Consent.Path != "" {
		result.Consent.Path = project.Consent.Path
	}

	if len(project.Vendors) > 0 {
		merged := make(map[string]VendorConfig, len(global.Vendors)+len(project.Vendors))
		for name, v := range global.Vendors {
			merged[name] = v
		}
		for name, v := range project.Vendors {
			base := merged[name]
			if v.APIKey != "" {
				base.APIKey = v.APIKey
			}
			if v.BaseURL != "" {
				base.BaseURL = v.BaseURL
			}
			if v.APIVersion != "" {
				base.APIVersion = v.APIVersion
			}
			merged[name] = base
		}
		result.Vendors = merged
	}

	return &result
}

// Vendor returns the settings for a vendor, falling back to the standard
// environment variables for a missing api key. Providers themselves never
// read the environment; that stays a CLI concern.
func (c *Config) Vendor(name string) VendorConfig {
	var v VendorConfig
	if c != nil && c.Vendors != nil {
		v = c.Vendors[name]
	}
	if v.APIKey == "" {
		for _, env := range keyEnvVars[name] {
			if key := os.Getenv(env); key != "" {
				v.APIKey = key
				break
			}
		}
	}
	return v
}

var keyEnvVars = map[string][]string{
	"anthropic":  {"ANTHROPIC_API_KEY"},
	"openai":     {"OPENAI_API_KEY"},
	"azure":      {"AZURE_OPENAI_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY"},
	"xai":        {"XAI_API_KEY"},
	"google":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}
