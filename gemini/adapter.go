package gemini

import (
	"encoding/json"
	"strconv"

	"github.com/fwojciec/relay"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ relay.Adapter = Adapter{}

// Adapter decodes streamGenerateContent chunks. Thought parts become
// reasoning, other text parts become visible text, and web grounding chunks
// become references numbered from 1 in the order Gemini lists them.
type Adapter struct{}

// errorEnvelope is the Google API error object, sent in-stream when a
// request fails after the response has started.
type errorEnvelope struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Parse implements [relay.Adapter].
func (Adapter) Parse(payload string) []relay.Event {
	data := []byte(payload)

	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Error != nil {
		evt := relay.EventError{Message: env.Error.Message, Code: env.Error.Status}
		if evt.Code == "" && env.Error.Code != 0 {
			evt.Code = strconv.Itoa(env.Error.Code)
		}
		if evt.Message == "" {
			evt.Message = "unknown error"
		}
		return []relay.Event{evt}
	}

	var resp genai.GenerateContentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	cand := resp.Candidates[0]

	var events []relay.Event
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p == nil || p.Text == "" {
				continue
			}
			if p.Thought {
				events = append(events, relay.EventThinkingDelta{Delta: p.Text})
			} else {
				events = append(events, relay.EventTextDelta{Delta: p.Text})
			}
		}
	}
	if gm := cand.GroundingMetadata; gm != nil {
		for i, chunk := range gm.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			events = append(events, relay.EventReference{Reference: relay.Reference{
				Index: i + 1,
				Title: chunk.Web.Title,
				URL:   chunk.Web.URI,
			}})
		}
	}
	return events
}
