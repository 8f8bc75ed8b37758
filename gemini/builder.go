package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/fwojciec/relay"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ relay.RequestBuilder = (*Builder)(nil)

// Builder builds streamGenerateContent requests.
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

type apiRequest struct {
	Contents          []*genai.Content  `json:"contents"`
	SystemInstruction *genai.Content    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	Tools             []*genai.Tool     `json:"tools,omitempty"`
}

type generationConfig struct {
	MaxOutputTokens int32                 `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *genai.ThinkingConfig `json:"thinkingConfig,omitempty"`
}

// BuildRequest implements [relay.RequestBuilder].
func (b *Builder) BuildRequest(ctx context.Context, cfg relay.ProviderConfig, history []relay.Message) (*http.Request, error) {
	body, err := json.Marshal(buildBody(cfg, history))
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	base := b.baseURL
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	endpoint := strings.TrimSuffix(base, "/") + "/models/" + url.PathEscape(cfg.Model) + ":streamGenerateContent?alt=sse"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("X-Goog-Api-Key", cfg.APIKey)
	return req, nil
}

func buildBody(cfg relay.ProviderConfig, history []relay.Message) apiRequest {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	req := apiRequest{
		GenerationConfig: &generationConfig{
			MaxOutputTokens: int32(maxTokens),
			ThinkingConfig:  &genai.ThinkingConfig{IncludeThoughts: true},
		},
	}
	if cfg.ThinkingBudget > 0 {
		budget := int32(cfg.ThinkingBudget)
		req.GenerationConfig.ThinkingConfig.ThinkingBudget = &budget
	}

	var system []string
	if cfg.SystemPrompt != "" {
		system = append(system, cfg.SystemPrompt)
	}
	for _, m := range history {
		switch m.Role {
		case relay.RoleSystem:
			system = append(system, m.Content)
		case relay.RoleUser:
			req.Contents = append(req.Contents, textContent("user", m.Content))
		case relay.RoleAssistant:
			req.Contents = append(req.Contents, textContent("model", m.Content))
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
	}
	if cfg.EnableSearch {
		req.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return req
}

func textContent(role, text string) *genai.Content {
	return &genai.Content{Role: role, Parts: []*genai.Part{{Text: text}}}
}
