package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	openai "github.com/sashabaranov/go-openai"
)

// openaiCompat implements Provider for any endpoint speaking the OpenAI
// chat-completions wire format. The gateway, DeepSeek and DashScope
// providers are all thin instantiations of it.
type openaiCompat struct {
	name   string
	client *openai.Client
}

func newOpenAICompat(name, apiKey, baseURL string, httpClient *http.Client) *openaiCompat {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &openaiCompat{
		name:   name,
		client: openai.NewClientWithConfig(cfg),
	}
}

// Name returns the provider name
func (p *openaiCompat) Name() string {
	return p.name
}

// CreateCompletion creates a completion
func (p *openaiCompat) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, p.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewProviderError(p.name, ErrorCodeUnknown, "no choices in response", nil)
	}

	choice := resp.Choices[0]
	return &CompletionResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// wrapError converts go-openai errors into the shared ProviderError taxonomy.
func (p *openaiCompat) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ErrorCodeUnknown
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			code = ErrorCodeAuthentication
		case http.StatusTooManyRequests:
			code = ErrorCodeRateLimit
		case http.StatusBadRequest:
			code = ErrorCodeInvalidRequest
		case http.StatusNotFound:
			code = ErrorCodeModelNotFound
		default:
			if apiErr.HTTPStatusCode >= 500 {
				code = ErrorCodeServerError
			}
		}
		pe := NewProviderError(p.name, code, apiErr.Message, err)
		pe.StatusCode = apiErr.HTTPStatusCode
		return pe
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		code := ErrorCodeUnknown
		if reqErr.HTTPStatusCode >= 500 {
			code = ErrorCodeServerError
		}
		pe := NewProviderError(p.name, code, reqErr.Error(), err)
		pe.StatusCode = reqErr.HTTPStatusCode
		return pe
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return NewProviderError(p.name, ErrorCodeTimeout, urlErr.Error(), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(p.name, ErrorCodeTimeout, err.Error(), err)
	}

	return NewProviderError(p.name, ErrorCodeUnknown, err.Error(), err)
}
