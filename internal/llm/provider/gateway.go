package provider

import (
	"fmt"
	"os"
)

// gatewayBaseURL is the default OpenAI-compatible multi-model gateway
// endpoint. The gateway serves hub-hosted models under platform-qualified
// names such as "Qwen/Qwen2.5-72B-Instruct".
const gatewayBaseURL = "https://api.siliconflow.cn/v1"

func init() {
	RegisterFactory(TagGateway, func(opts Options) (Provider, error) {
		apiKey := opts.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("GATEWAY_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("GATEWAY_API_KEY not set")
		}

		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = gatewayBaseURL
		}

		return NewGatewayProvider(apiKey, baseURL, opts), nil
	})
}

// NewGatewayProvider creates a provider for the multi-model gateway.
func NewGatewayProvider(apiKey, baseURL string, opts Options) Provider {
	return newOpenAICompat(TagGateway, apiKey, baseURL, opts.HTTPClient)
}
