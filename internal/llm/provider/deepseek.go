package provider

import (
	"fmt"
	"os"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

func init() {
	RegisterFactory(TagDeepSeek, func(opts Options) (Provider, error) {
		apiKey := opts.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("DEEPSEEK_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("DEEPSEEK_API_KEY not set")
		}

		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = deepseekBaseURL
		}

		return NewDeepSeekProvider(apiKey, baseURL, opts), nil
	})
}

// NewDeepSeekProvider creates a provider for the dedicated DeepSeek endpoint.
func NewDeepSeekProvider(apiKey, baseURL string, opts Options) Provider {
	return newOpenAICompat(TagDeepSeek, apiKey, baseURL, opts.HTTPClient)
}
