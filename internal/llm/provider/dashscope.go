package provider

import (
	"fmt"
	"os"
)

// DashScope exposes the Qwen commercial models through an OpenAI-compatible
// surface.
const dashscopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

func init() {
	RegisterFactory(TagDashScope, func(opts Options) (Provider, error) {
		apiKey := opts.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("DASHSCOPE_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("DASHSCOPE_API_KEY not set")
		}

		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = dashscopeBaseURL
		}

		return NewDashScopeProvider(apiKey, baseURL, opts), nil
	})
}

// NewDashScopeProvider creates a provider for the DashScope Qwen endpoint.
func NewDashScopeProvider(apiKey, baseURL string, opts Options) Provider {
	return newOpenAICompat(TagDashScope, apiKey, baseURL, opts.HTTPClient)
}
