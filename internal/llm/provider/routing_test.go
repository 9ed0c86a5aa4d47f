package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_PlatformQualified(t *testing.T) {
	assert.Equal(t, TagGateway, Resolve("Qwen/Qwen2.5-7B-Instruct"))
	assert.Equal(t, TagGateway, Resolve("deepseek-ai/DeepSeek-V3"))
	assert.Equal(t, TagGateway, Resolve("meta-llama/Llama-3.3-70B-Instruct"))
}

func TestResolve_DedicatedProviders(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"deepseek-chat", TagDeepSeek},
		{"deepseek-reasoner", TagDeepSeek},
		{"gemini-2.0-flash-exp", TagGemini},
		{"gemini-1.5-pro", TagGemini},
		{"qwen-turbo", TagDashScope},
		{"qwen-max", TagDashScope},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.model))
		})
	}
}

func TestResolve_DefaultsToGateway(t *testing.T) {
	assert.Equal(t, TagGateway, Resolve("unknown-model-xyz"))
	assert.Equal(t, TagGateway, Resolve(""))
	assert.Equal(t, TagGateway, Resolve("gpt-4o"))
}

// Platform qualification wins over any dedicated-list resemblance.
func TestResolve_QualifiedNameBeatsList(t *testing.T) {
	assert.Equal(t, TagGateway, Resolve("google/gemini-2.0-flash-exp"))
}

func TestRegistry_AllTagsRegistered(t *testing.T) {
	tags := Tags()
	assert.Contains(t, tags, TagGateway)
	assert.Contains(t, tags, TagDeepSeek)
	assert.Contains(t, tags, TagGemini)
	assert.Contains(t, tags, TagDashScope)
}

func TestRegistry_MissingCredential(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")

	_, err := New(TagDeepSeek, Options{})
	assert.Error(t, err)
}
