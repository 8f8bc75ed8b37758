package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.RequestBuilder = (*Builder)(nil)

// Builder builds streaming requests for the Anthropic Messages API.
type Builder struct {
	baseURL string
}

// Option configures a [Builder].
type Option func(*Builder)

// WithBaseURL sets the default API base URL. A non-empty
// ProviderConfig.BaseURL still takes precedence.
func WithBaseURL(url string) Option {
	return func(b *Builder) { b.baseURL = url }
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
	body, err := json.Marshal(buildBody(cfg, history))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	base := b.baseURL
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(base, "/")+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("X-Api-Key", cfg.APIKey)
	req.Header.Set("Anthropic-Version", apiVersion)
	return req, nil
}

func buildBody(cfg relay.ProviderConfig, history []relay.Message) apiRequest {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	req := apiRequest{
		Model:     cfg.Model,
		MaxTokens: maxTokens,
		Stream:    true,
	}

	// The Messages API takes the system prompt out of band.
	var system []string
	if cfg.SystemPrompt != "" {
		system = append(system, cfg.SystemPrompt)
	}
	for _, m := range history {
		switch m.Role {
		case relay.RoleSystem:
			system = append(system, m.Content)
		case relay.RoleUser, relay.RoleAssistant:
			req.Messages = append(req.Messages, apiMessage{Role: string(m.Role), Content: m.Content})
		}
	}
	req.System = strings.Join(system, "\n\n")

	if cfg.ThinkingBudget > 0 {
		req.Thinking = &apiThinking{Type: "enabled", BudgetTokens: cfg.ThinkingBudget}
		// max_tokens must exceed the thinking budget.
		if req.MaxTokens <= cfg.ThinkingBudget {
			req.MaxTokens = cfg.ThinkingBudget + defaultMaxTokens
		}
	}
	return req
}
