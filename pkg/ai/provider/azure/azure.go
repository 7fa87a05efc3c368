// ABOUTME: Azure OpenAI provider: the Chat Completions engine behind deployment URLs
// ABOUTME: Model id doubles as the deployment name; auth uses the api-key header

package azure

import (
	"fmt"
	"net/url"

	"github.com/mauromedda/tandem/pkg/ai"
	"github.com/mauromedda/tandem/pkg/ai/provider/openai"
)

const defaultAPIVersion = "2024-10-21"

// Options configures the provider. Endpoint is the resource endpoint, e.g.
// https://myresource.openai.azure.com. Credentials are always passed
// explicitly; the adapter never consults the environment.
type Options struct {
	APIKey     string
	Endpoint   string
	APIVersion string
}

// New creates an Azure OpenAI provider. Azure routes by deployment path and
// ignores a model field in the body, so the wire model is omitted.
func New(opts Options) *openai.Provider {
	version := opts.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}

	return openai.NewCompat(openai.Config{
		Vendor:  ai.VendorAzure,
		BaseURL: opts.Endpoint,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"api-key":      opts.APIKey,
		},
		EndpointPath: func(m *ai.Model) string {
			return fmt.Sprintf("/openai/deployments/%s/chat/completions?api-version=%s",
				url.PathEscape(m.ID), url.QueryEscape(version))
		},
		WireModel: func(*ai.Model) string { return "" },
	})
}
