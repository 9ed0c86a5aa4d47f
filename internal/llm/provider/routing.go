package provider

import "strings"

// Provider tags returned by Resolve. The gateway is an OpenAI-compatible
// multi-model aggregator; the others are dedicated vendor endpoints.
const (
	TagGateway   = "gateway"
	TagDeepSeek  = "deepseek"
	TagGemini    = "gemini"
	TagDashScope = "dashscope"
)

// deepseekModels are the model names served by the dedicated DeepSeek endpoint.
var deepseekModels = map[string]struct{}{
	"deepseek-chat":     {},
	"deepseek-reasoner": {},
	"deepseek-coder":    {},
}

// geminiModels are the model names served by the Gemini API directly.
var geminiModels = map[string]struct{}{
	"gemini-1.5-pro":       {},
	"gemini-1.5-flash":     {},
	"gemini-2.0-flash":     {},
	"gemini-2.0-flash-exp": {},
	"gemini-2.5-pro":       {},
	"gemini-2.5-flash":     {},
}

// dashscopeModels are the Qwen model names served by DashScope.
var dashscopeModels = map[string]struct{}{
	"qwen-turbo": {},
	"qwen-plus":  {},
	"qwen-max":   {},
	"qwen-long":  {},
}

// Resolve classifies a model name into a provider tag. It is a pure function
// of the name string and performs no I/O.
//
// Classification order:
//  1. Platform-qualified names ("org/model") route to the gateway, which
//     serves hub-hosted models under their fully qualified names.
//  2. Names on a dedicated provider's fixed list route to that provider.
//  3. Everything else falls back to the gateway.
func Resolve(model string) string {
	if strings.Contains(model, "/") {
		return TagGateway
	}
	if _, ok := deepseekModels[model]; ok {
		return TagDeepSeek
	}
	if _, ok := geminiModels[model]; ok {
		return TagGemini
	}
	if _, ok := dashscopeModels[model]; ok {
		return TagDashScope
	}
	return TagGateway
}
