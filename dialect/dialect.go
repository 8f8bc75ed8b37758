// Package dialect maps provider IDs to the wire dialect used to build their
// requests and decode their streams.
//
// The table is static and closed. Unknown provider IDs fall back to the
// OpenAI-compatible dialect instead of failing the session.
package dialect

import (
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/anthropic"
	"github.com/fwojciec/relay/gemini"
	"github.com/fwojciec/relay/openai"
	"github.com/fwojciec/relay/qwen"
)

// Name identifies a wire dialect.
type Name string

const (
	Reasoning        Name = "reasoning"         // Anthropic Messages API
	OpenAICompatible Name = "openai-compatible" // choices[0].delta.content
	SearchAugmented  Name = "search-augmented"  // OpenAI-compatible plus search_info
	Gemini           Name = "gemini"            // native streamGenerateContent
)

// Dialect bundles the adapter and request builder of one provider.
type Dialect struct {
	Name    Name
	Adapter relay.Adapter
	Builder relay.RequestBuilder
}

var table = map[relay.ProviderID]Dialect{
	relay.ProviderAnthropic: {
		Name:    Reasoning,
		Adapter: anthropic.Adapter{},
		Builder: anthropic.NewBuilder(),
	},
	relay.ProviderOpenAI: {
		Name:    OpenAICompatible,
		Adapter: openai.Adapter{},
		Builder: openai.NewBuilder(),
	},
	relay.ProviderDeepSeek: {
		Name:    OpenAICompatible,
		Adapter: openai.Adapter{},
		Builder: openai.NewBuilder(openai.WithBaseURL("https://api.deepseek.com/v1")),
	},
	relay.ProviderGemini: {
		Name:    OpenAICompatible,
		Adapter: openai.Adapter{},
		Builder: openai.NewBuilder(openai.WithBaseURL("https://generativelanguage.googleapis.com/v1beta/openai")),
	},
	relay.ProviderGoogle: {
		Name:    Gemini,
		Adapter: gemini.Adapter{},
		Builder: gemini.NewBuilder(),
	},
	relay.ProviderOpenRouter: {
		Name:    OpenAICompatible,
		Adapter: openai.Adapter{},
		Builder: openai.NewBuilder(openai.WithBaseURL("https://openrouter.ai/api/v1")),
	},
	relay.ProviderQwen: {
		Name:    SearchAugmented,
		Adapter: qwen.Adapter{},
		Builder: qwen.NewBuilder(),
	},
	relay.ProviderDashScope: {
		Name:    SearchAugmented,
		Adapter: qwen.Adapter{},
		Builder: qwen.NewBuilder(),
	},
}

// fallback serves provider IDs not in the table. It has no default base URL
// of its own, so the ProviderConfig should carry one.
var fallback = Dialect{
	Name:    OpenAICompatible,
	Adapter: openai.Adapter{},
	Builder: openai.NewBuilder(),
}

// Lookup returns the dialect for id and whether id is known.
// Unknown IDs get the OpenAI-compatible dialect.
func Lookup(id relay.ProviderID) (Dialect, bool) {
	d, ok := table[id]
	if !ok {
		return fallback, false
	}
	return d, true
}

// Select returns the stream adapter for id.
func Select(id relay.ProviderID) relay.Adapter {
	d, _ := Lookup(id)
	return d.Adapter
}

// Builder returns the request builder for id.
func Builder(id relay.ProviderID) relay.RequestBuilder {
	d, _ := Lookup(id)
	return d.Builder
}

// Known returns the provider IDs in the table.
func Known() []relay.ProviderID {
	ids := make([]relay.ProviderID, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	return ids
}
