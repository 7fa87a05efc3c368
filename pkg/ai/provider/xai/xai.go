// ABOUTME: xAI provider: the Chat Completions engine pointed at api.x.ai
// ABOUTME: Grok models stream reasoning under the reasoning_content key

package xai

import (
	"github.com/mauromedda/tandem/pkg/ai"
	"github.com/mauromedda/tandem/pkg/ai/provider/openai"
)

const defaultBaseURL = "https://api.x.ai"

// Options configures the provider. Credentials are always passed explicitly;
// the adapter never consults the environment.
type Options struct {
	APIKey  string
	BaseURL string
}

// New creates an xAI provider.
func New(opts Options) *openai.Provider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return openai.NewCompat(openai.Config{
		Vendor:  ai.VendorXAI,
		BaseURL: baseURL,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + opts.APIKey,
		},
	})
}
