// ABOUTME: OpenRouter provider: Chat Completions engine with attribution headers
// ABOUTME: Model ids use the vendor/model form, e.g. anthropic/claude-sonnet-4-6

package openrouter

import (
	"github.com/mauromedda/tandem/pkg/ai"
	"github.com/mauromedda/tandem/pkg/ai/provider/openai"
)

const defaultBaseURL = "https://openrouter.ai/api"

// Options configures the provider. AppName and AppURL feed OpenRouter's
// attribution headers and default to the module identity. Credentials are
// always passed explicitly; the adapter never consults the environment.
type Options struct {
	APIKey  string
	BaseURL string
	AppName string
	AppURL  string
}

// New creates an OpenRouter provider.
func New(opts Options) *openai.Provider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	appName := opts.AppName
	if appName == "" {
		appName = "tandem"
	}
	appURL := opts.AppURL
	if appURL == "" {
		appURL = "https://github.com/mauromedda/tandem"
	}

	return openai.NewCompat(openai.Config{
		Vendor:  ai.VendorOpenRouter,
		BaseURL: baseURL,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + opts.APIKey,
			"HTTP-Referer":  appURL,
			"X-Title":       appName,
		},
	})
}
