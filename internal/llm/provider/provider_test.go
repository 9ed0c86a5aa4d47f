package provider

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderError_Retryable(t *testing.T) {
	tests := []struct {
		code      string
		retryable bool
	}{
		{ErrorCodeRateLimit, true},
		{ErrorCodeServerError, true},
		{ErrorCodeTimeout, true},
		{ErrorCodeAuthentication, false},
		{ErrorCodeInvalidRequest, false},
		{ErrorCodeModelNotFound, false},
		{ErrorCodeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := NewProviderError("gateway", tt.code, "boom", nil)
			assert.Equal(t, tt.retryable, err.IsRetryable)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestProviderError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := NewProviderError("deepseek", ErrorCodeServerError, "upstream 503", cause)

	assert.ErrorContains(t, err, "deepseek error")
	assert.Equal(t, cause, err.Unwrap())
}

func TestIsRetryable_WrappedError(t *testing.T) {
	pe := NewProviderError("gateway", ErrorCodeTimeout, "read timeout", nil)
	wrapped := fmt.Errorf("invoke news_analyst: %w", pe)

	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))
}

func TestMockProvider_SequencedResponses(t *testing.T) {
	m := NewMockProvider("mock")
	m.CompletionResponses = []*CompletionResponse{
		{Content: "first", FinishReason: "stop"},
	}
	m.Errors = []error{nil, NewProviderError("mock", ErrorCodeServerError, "boom", nil)}

	resp, err := m.CreateCompletion(context.Background(), CompletionRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Content)

	_, err = m.CreateCompletion(context.Background(), CompletionRequest{Model: "m"})
	require.Error(t, err)

	assert.Equal(t, 2, m.CallCount())
}
