// Package anthropic implements the reasoning-capable stream dialect of the
// Anthropic Messages API.
//
// Frames carry a "type" discriminator. Content deltas are split into thinking
// and text by the nested delta discriminator; lifecycle events
// (message_start, content_block_start/stop, message_delta, message_stop,
// ping) carry nothing the engine accumulates. The stream usually ends with
// transport EOF after message_stop rather than a [DONE] sentinel.
package anthropic

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultMaxTokens = 8192
	apiVersion       = "2023-06-01"
	messagesPath     = "/v1/messages"
)

// apiRequest is the JSON body sent to the Anthropic Messages API.
type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Stream    bool         `json:"stream"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
	Thinking  *apiThinking `json:"thinking,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// apiThinking enables extended thinking with a token budget.
type apiThinking struct {
	Type         string `json:"type"` // always "enabled"
	BudgetTokens int    `json:"budget_tokens"`
}

// SSE frame types. Only the fields the adapter reads are declared.

type sseFrame struct {
	Type  string          `json:"type"`
	Delta *sseDelta       `json:"delta,omitempty"`
	Error *sseErrorDetail `json:"error,omitempty"`
}

type sseDelta struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
}

// sseErrorDetail is the payload of an in-stream error event. Code is a
// string on some gateways and a number on others.
type sseErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}
