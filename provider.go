package relay

import (
	"context"
	"net/http"
)

// ProviderID names a chat-completion back end. It selects the wire dialect
// used to decode the stream.
type ProviderID string

// Known provider IDs. Unknown IDs are treated as OpenAI-compatible.
const (
	ProviderAnthropic  ProviderID = "anthropic"
	ProviderOpenAI     ProviderID = "openai"
	ProviderDeepSeek   ProviderID = "deepseek"
	ProviderGemini     ProviderID = "gemini" // OpenAI-compatible endpoint
	ProviderGoogle     ProviderID = "google" // native streamGenerateContent
	ProviderOpenRouter ProviderID = "openrouter"
	ProviderQwen       ProviderID = "qwen"
	ProviderDashScope  ProviderID = "dashscope"
)

// ProviderConfig is the immutable description of where and how a session
// sends its request. It is passed once at session start.
type ProviderConfig struct {
	Provider       ProviderID
	Model          string
	BaseURL        string // empty = dialect default
	APIKey         string
	SystemPrompt   string
	MaxTokens      int  // 0 = dialect default
	ThinkingBudget int  // reasoning token budget; 0 disables extended thinking
	EnableSearch   bool // ask search-augmented providers to attach citations
}

// Adapter decodes one frame payload of a provider dialect into Events.
// Payloads that are not valid structured data yield no events.
type Adapter interface {
	Parse(payload string) []Event
}

// RequestBuilder turns a provider config and the conversation history
// (including the current turn) into a streaming HTTP request.
type RequestBuilder interface {
	BuildRequest(ctx context.Context, cfg ProviderConfig, history []Message) (*http.Request, error)
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(payload string) []Event

// Parse calls f(payload).
func (f AdapterFunc) Parse(payload string) []Event { return f(payload) }
