// Package openai implements the OpenAI-compatible chat completions stream
// dialect. It is the fallback dialect for providers the engine does not know.
//
// Request bodies use the github.com/sashabaranov/go-openai wire types. Stream
// chunks are decoded into a narrow local shape: compatible gateways disagree
// on the types of fields the adapter never reads, and a full decode would
// drop the frame's text over them.
package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fwojciec/relay"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	completionsPath = "/chat/completions"
)

// Interface compliance check.
var _ relay.Adapter = Adapter{}

// Adapter decodes OpenAI-compatible stream chunks.
type Adapter struct{}

// streamChunk holds the only path read from a chunk.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
}

// errorEnvelope is an in-stream error some compatible gateways send in place
// of a chunk.
type errorEnvelope struct {
	Error *errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// Parse maps choices[0].delta to events. Chunks without that path (role-only
// or heartbeat frames) yield nothing, as do malformed payloads.
func (Adapter) Parse(payload string) []relay.Event {
	data := []byte(payload)

	var events []relay.Event
	var chunk streamChunk
	if err := json.Unmarshal(data, &chunk); err == nil && len(chunk.Choices) > 0 {
		delta := chunk.Choices[0].Delta
		if delta.ReasoningContent != "" {
			events = append(events, relay.EventThinkingDelta{Delta: delta.ReasoningContent})
		}
		if delta.Content != "" {
			events = append(events, relay.EventTextDelta{Delta: delta.Content})
		}
	}

	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Error != nil {
		events = append(events, parseError(env.Error))
	}
	return events
}

// parseError prefers the error's message, else joins type and code. Code is
// the provider code when present, else the type.
func parseError(d *errorDetail) relay.EventError {
	var code string
	if d.Code != nil {
		code = fmt.Sprint(d.Code)
	}
	msg := d.Message
	if msg == "" {
		var details []string
		if d.Type != "" {
			details = append(details, d.Type)
		}
		if code != "" {
			details = append(details, code)
		}
		if len(details) > 0 {
			msg = "[" + strings.Join(details, ", ") + "]"
		} else {
			msg = "unknown error"
		}
	}
	if code == "" {
		code = d.Type
	}
	return relay.EventError{Message: msg, Code: code}
}
