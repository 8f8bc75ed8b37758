// Package qwen implements the search-augmented stream dialect used by the
// DashScope compatible-mode API.
//
// Chunks are OpenAI-compatible; when web search is enabled, chunks may also
// carry a search_info.search_results array, alone or next to a content delta.
package qwen

import (
	"encoding/json"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/openai"
)

const defaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// Interface compliance checks.
var (
	_ relay.Adapter        = Adapter{}
	_ relay.RequestBuilder = (*openai.Builder)(nil)
)

type searchFrame struct {
	SearchInfo *struct {
		SearchResults []json.RawMessage `json:"search_results"`
	} `json:"search_info"`
}

type searchResult struct {
	Index *int    `json:"index"`
	Title *string `json:"title"`
	URL   *string `json:"url"`
}

// Adapter decodes DashScope chunks: content deltas as in the OpenAI dialect,
// plus one EventReference per well-formed search result.
type Adapter struct {
	openai.Adapter
}

// Parse implements [relay.Adapter]. A malformed search result is skipped
// without affecting the rest of the frame.
func (a Adapter) Parse(payload string) []relay.Event {
	events := a.Adapter.Parse(payload)

	var f searchFrame
	if err := json.Unmarshal([]byte(payload), &f); err != nil || f.SearchInfo == nil {
		return events
	}
	for _, raw := range f.SearchInfo.SearchResults {
		var r searchResult
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		if r.Index == nil || r.Title == nil || r.URL == nil {
			continue
		}
		events = append(events, relay.EventReference{Reference: relay.Reference{
			Index: *r.Index,
			Title: *r.Title,
			URL:   *r.URL,
		}})
	}
	return events
}

// NewBuilder returns an OpenAI-compatible builder pointed at DashScope that
// asks for web search with sources when ProviderConfig.EnableSearch is set.
func NewBuilder(opts ...openai.Option) *openai.Builder {
	base := []openai.Option{
		openai.WithBaseURL(defaultBaseURL),
		openai.WithExtraFields(searchFields),
	}
	return openai.NewBuilder(append(base, opts...)...)
}

func searchFields(cfg relay.ProviderConfig) map[string]any {
	if !cfg.EnableSearch {
		return nil
	}
	return map[string]any{
		"enable_search": true,
		"search_options": map[string]any{
			"enable_source": true,
		},
	}
}
