package invoker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-ai/finsight/internal/gate"
	"github.com/finsight-ai/finsight/internal/llm/provider"
)

func newTestInvoker(t *testing.T, mock *provider.MockProvider) *Invoker {
	t.Helper()

	inv := New(gate.New(2), Config{
		DefaultModel:      "deepseek-chat",
		RetryBackoff:      time.Millisecond,
		RequestsPerSecond: 1000,
		Burst:             1000,
	})
	inv.SetProviderFactory(func(tag string, opts provider.Options) (provider.Provider, error) {
		require.NotNil(t, opts.HTTPClient, "each call must carry its own client")
		return mock, nil
	})
	return inv
}

func TestInvokeSuccess(t *testing.T) {
	mock := provider.NewMockProvider("deepseek")
	mock.CompletionResponses = []*provider.CompletionResponse{
		{
			Content:      "Bullish on fundamentals.",
			FinishReason: "stop",
			Usage:        provider.Usage{TotalTokens: 42},
		},
	}
	inv := newTestInvoker(t, mock)

	res := inv.Invoke(context.Background(), TaskDescriptor{
		AgentID: "market_analyst",
		Role:    "a market technician",
		Prompt:  "Assess the recent price action.",
	}, "600519", nil, "")

	assert.True(t, res.Success)
	assert.Equal(t, "market_analyst", res.AgentID)
	assert.Equal(t, "Bullish on fundamentals.", res.Output)
	assert.Equal(t, 42, res.Tokens)
	assert.Equal(t, provider.TagDeepSeek, res.Provider)
	assert.Empty(t, res.Error)
	assert.Equal(t, 1, mock.CallCount())
}

func TestInvokeRetriesRetryableErrors(t *testing.T) {
	mock := provider.NewMockProvider("deepseek")
	mock.Errors = []error{
		&provider.ProviderError{Provider: "deepseek", Code: provider.ErrorCodeRateLimit, Message: "slow down", IsRetryable: true},
		&provider.ProviderError{Provider: "deepseek", Code: provider.ErrorCodeServerError, Message: "upstream 502", IsRetryable: true},
		nil,
	}
	mock.CompletionResponses = []*provider.CompletionResponse{
		nil, nil,
		{Content: "recovered", FinishReason: "stop"},
	}
	inv := newTestInvoker(t, mock)

	res := inv.Invoke(context.Background(), TaskDescriptor{AgentID: "news_analyst"}, "600519", nil, "")

	assert.True(t, res.Success)
	assert.Equal(t, "recovered", res.Output)
	assert.Equal(t, 3, mock.CallCount())
}

func TestInvokeGivesUpAfterMaxRetries(t *testing.T) {
	transient := &provider.ProviderError{Provider: "deepseek", Code: provider.ErrorCodeTimeout, Message: "read timeout", IsRetryable: true}
	mock := provider.NewMockProvider("deepseek")
	mock.Errors = []error{transient, transient, transient, transient}
	inv := newTestInvoker(t, mock)

	res := inv.Invoke(context.Background(), TaskDescriptor{AgentID: "news_analyst"}, "600519", nil, "")

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "read timeout")
	// 1 initial attempt plus 2 retries.
	assert.Equal(t, 3, mock.CallCount())
}

func TestInvokeDoesNotRetryNonRetryableErrors(t *testing.T) {
	mock := provider.NewMockProvider("deepseek")
	mock.Errors = []error{
		&provider.ProviderError{Provider: "deepseek", Code: provider.ErrorCodeAuthentication, Message: "bad key"},
	}
	inv := newTestInvoker(t, mock)

	res := inv.Invoke(context.Background(), TaskDescriptor{AgentID: "trader"}, "600519", nil, "")

	assert.False(t, res.Success)
	assert.Equal(t, 1, mock.CallCount())
}

func TestInvokeReleasesGateOnEveryPath(t *testing.T) {
	g := gate.New(1)
	mock := provider.NewMockProvider("deepseek")
	mock.Errors = []error{
		&provider.ProviderError{Provider: "deepseek", Code: provider.ErrorCodeInvalidRequest, Message: "bad request"},
	}

	inv := New(g, Config{RetryBackoff: time.Millisecond, RequestsPerSecond: 1000, Burst: 1000})
	inv.SetProviderFactory(func(tag string, opts provider.Options) (provider.Provider, error) {
		return mock, nil
	})

	// First call fails upstream, second succeeds. With capacity 1, the
	// second call can only proceed if the first released its slot.
	_ = inv.Invoke(context.Background(), TaskDescriptor{AgentID: "a"}, "AAPL", nil, "")
	res := inv.Invoke(context.Background(), TaskDescriptor{AgentID: "b"}, "AAPL", nil, "")

	assert.True(t, res.Success)
	assert.Equal(t, 0, g.InFlight())
}

func TestInvokeProviderSetupFailure(t *testing.T) {
	inv := New(gate.New(1), Config{RequestsPerSecond: 1000, Burst: 1000})
	inv.SetProviderFactory(func(tag string, opts provider.Options) (provider.Provider, error) {
		return nil, &provider.ProviderError{Provider: tag, Code: provider.ErrorCodeAuthentication, Message: "no API key configured"}
	})

	res := inv.Invoke(context.Background(), TaskDescriptor{AgentID: "trader"}, "AAPL", nil, "")

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no API key configured")
	assert.Equal(t, 0, inv.gate.InFlight())
}

func TestComposeUserEmbedsOnlyAvailableDependencies(t *testing.T) {
	task := TaskDescriptor{
		AgentID:      "bull_researcher",
		Prompt:       "Build the bull case.",
		Dependencies: []string{"market_analyst", "news_analyst", "sentiment_analyst"},
	}
	prior := map[string]string{
		"market_analyst": "Uptrend intact.",
		"news_analyst":   "Earnings beat expectations.",
		// sentiment_analyst failed upstream, no entry.
	}

	got := composeUser(task, "600519", prior, "focus on the next quarter")

	assert.Contains(t, got, "Subject: 600519")
	assert.Contains(t, got, "[market_analyst]")
	assert.Contains(t, got, "[news_analyst]")
	assert.NotContains(t, got, "sentiment_analyst")
	assert.Contains(t, got, "focus on the next quarter")
}

func TestComposeUserTruncatesLongOutputs(t *testing.T) {
	task := TaskDescriptor{
		AgentID:      "research_manager",
		Dependencies: []string{"bull_researcher"},
	}
	long := strings.Repeat("看涨", 600)
	prior := map[string]string{"bull_researcher": long}

	got := composeUser(task, "600519", prior, "")

	assert.NotContains(t, got, long)
	assert.Contains(t, got, string([]rune(long)[:excerptLimit])+"...")
}

func TestComposeSystemUsesRole(t *testing.T) {
	got := composeSystem(TaskDescriptor{Role: "a conservative risk analyst"})
	assert.Contains(t, got, "a conservative risk analyst")

	fallback := composeSystem(TaskDescriptor{})
	assert.Contains(t, fallback, "financial analysis agent")
}
