package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strings"

	"github.com/fwojciec/relay"
	goopenai "github.com/sashabaranov/go-openai"
)

// Interface compliance check.
var _ relay.RequestBuilder = (*Builder)(nil)

// Builder builds streaming chat completion requests.
type Builder struct {
	baseURL string
	extra   func(relay.ProviderConfig) map[string]any
}

// Option configures a [Builder].
type Option func(*Builder)

// WithBaseURL sets the default API base URL, including any version prefix
// (e.g. "https://api.deepseek.com/v1"). A non-empty ProviderConfig.BaseURL
// still takes precedence.
func WithBaseURL(url string) Option {
	return func(b *Builder) { b.baseURL = url }
}

// WithExtraFields adds provider-specific top-level body fields. The engine
// treats them as opaque.
func WithExtraFields(fn func(relay.ProviderConfig) map[string]any) Option {
	return func(b *Builder) { b.extra = fn }
}

// NewBuilder creates a [Builder] with the given options.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{baseURL: defaultBaseURL}
	for _, o := range opts {
		o(b)
	}
	return b
}

// BuildRequest implements [relay.RequestBuilder].
func (b *Builder) BuildRequest(ctx context.Context, cfg relay.ProviderConfig, history []relay.Message) (*http.Request, error) {
	body, err := b.buildBody(cfg, history)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	base := b.baseURL
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(base, "/")+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return req, nil
}

func (b *Builder) buildBody(cfg relay.ProviderConfig, history []relay.Message) ([]byte, error) {
	req := goopenai.ChatCompletionRequest{
		Model:     cfg.Model,
		Messages:  convertMessages(cfg.SystemPrompt, history),
		MaxTokens: cfg.MaxTokens,
		Stream:    true,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if b.extra == nil {
		return data, nil
	}
	fields := b.extra(cfg)
	if len(fields) == 0 {
		return data, nil
	}

	var merged map[string]any
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	maps.Copy(merged, fields)
	return json.Marshal(merged)
}

func convertMessages(systemPrompt string, history []relay.Message) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(history)+1)
	if systemPrompt != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		var role string
		switch m.Role {
		case relay.RoleSystem:
			role = goopenai.ChatMessageRoleSystem
		case relay.RoleUser:
			role = goopenai.ChatMessageRoleUser
		case relay.RoleAssistant:
			role = goopenai.ChatMessageRoleAssistant
		default:
			continue
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return msgs
}
