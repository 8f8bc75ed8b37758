package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.Adapter = Adapter{}

// Adapter decodes Anthropic Messages API frames.
type Adapter struct{}

// Parse maps one frame payload to events. Malformed payloads and lifecycle
// events yield nothing.
func (Adapter) Parse(payload string) []relay.Event {
	var f sseFrame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return nil
	}

	switch f.Type {
	case "content_block_delta":
		return parseDelta(f.Delta)
	case "error":
		return []relay.Event{parseError(f.Error)}
	default:
		// message_start, content_block_start, content_block_stop,
		// message_delta, message_stop, ping and unknown types.
		return nil
	}
}

func parseDelta(d *sseDelta) []relay.Event {
	if d == nil {
		return nil
	}
	switch d.Type {
	case "thinking_delta":
		if d.Thinking == "" {
			return nil
		}
		return []relay.Event{relay.EventThinkingDelta{Delta: d.Thinking}}
	case "text_delta":
		if d.Text == "" {
			return nil
		}
		return []relay.Event{relay.EventTextDelta{Delta: d.Text}}
	default:
		// signature_delta, input_json_delta.
		return nil
	}
}

// parseError joins whichever of message, type and code are present.
func parseError(d *sseErrorDetail) relay.EventError {
	if d == nil {
		return relay.EventError{Message: "unknown error"}
	}
	var code string
	if d.Code != nil {
		code = fmt.Sprint(d.Code)
	}

	var details []string
	if d.Type != "" {
		details = append(details, d.Type)
	}
	if code != "" {
		details = append(details, code)
	}

	msg := d.Message
	if len(details) > 0 {
		if msg != "" {
			msg += " "
		}
		msg += "[" + strings.Join(details, ", ") + "]"
	}
	if msg == "" {
		msg = "unknown error"
	}

	if code == "" {
		code = d.Type
	}
	return relay.EventError{Message: msg, Code: code}
}
