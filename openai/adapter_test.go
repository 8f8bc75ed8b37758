package openai_test

import (
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/openai"
	"github.com/stretchr/testify/assert"
)

func TestAdapter_Parse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    []relay.Event
	}{
		{
			name:    "content delta",
			payload: `{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"hi"},"finish_reason":null}]}`,
			want:    []relay.Event{relay.EventTextDelta{Delta: "hi"}},
		},
		{
			name:    "role-only frame",
			payload: `{"choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
		},
		{
			name:    "empty choices heartbeat",
			payload: `{"choices":[]}`,
		},
		{
			name:    "finish frame",
			payload: `{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		},
		{
			name:    "null content",
			payload: `{"choices":[{"index":0,"delta":{"content":null}}]}`,
		},
		{
			name:    "reasoning content",
			payload: `{"choices":[{"index":0,"delta":{"reasoning_content":"hmm","content":""}}]}`,
			want:    []relay.Event{relay.EventThinkingDelta{Delta: "hmm"}},
		},
		{
			name:    "in-stream error",
			payload: `{"error":{"message":"context length exceeded","type":"invalid_request_error","code":"context_length_exceeded"}}`,
			want:    []relay.Event{relay.EventError{Message: "context length exceeded", Code: "context_length_exceeded"}},
		},
		{
			name:    "in-stream error with numeric code",
			payload: `{"error":{"message":"busy","type":"server_error","code":503}}`,
			want:    []relay.Event{relay.EventError{Message: "busy", Code: "503"}},
		},
		{
			name:    "in-stream error without message",
			payload: `{"error":{"type":"server_error","code":"overloaded"}}`,
			want:    []relay.Event{relay.EventError{Message: "[server_error, overloaded]", Code: "overloaded"}},
		},
		{
			name:    "in-stream error with type only",
			payload: `{"error":{"type":"rate_limit_error"}}`,
			want:    []relay.Event{relay.EventError{Message: "[rate_limit_error]", Code: "rate_limit_error"}},
		},
		{
			name:    "empty in-stream error object",
			payload: `{"error":{}}`,
			want:    []relay.Event{relay.EventError{Message: "unknown error"}},
		},
		{
			name:    "null error is ignored",
			payload: `{"error":null,"choices":[{"delta":{"content":"hi"}}]}`,
			want:    []relay.Event{relay.EventTextDelta{Delta: "hi"}},
		},
		{
			name:    "string created timestamp",
			payload: `{"id":"c1","created":"1700000000","choices":[{"index":0,"delta":{"content":"hi"}}]}`,
			want:    []relay.Event{relay.EventTextDelta{Delta: "hi"}},
		},
		{
			name:    "string choice index",
			payload: `{"choices":[{"index":"0","delta":{"content":"hi"}}]}`,
			want:    []relay.Event{relay.EventTextDelta{Delta: "hi"}},
		},
		{
			name:    "string usage counts",
			payload: `{"choices":[{"index":0,"delta":{"content":"hi"}}],"usage":{"prompt_tokens":"3"}}`,
			want:    []relay.Event{relay.EventTextDelta{Delta: "hi"}},
		},
		{
			name:    "numeric finish reason",
			payload: `{"choices":[{"index":0,"delta":{"content":"hi"},"finish_reason":0}]}`,
			want:    []relay.Event{relay.EventTextDelta{Delta: "hi"}},
		},
		{
			name:    "object tool calls",
			payload: `{"choices":[{"index":0,"delta":{"content":"hi","tool_calls":{}}}]}`,
			want:    []relay.Event{relay.EventTextDelta{Delta: "hi"}},
		},
		{
			name:    "malformed json",
			payload: `{"choices":[{"delta":{"content":"h`,
		},
		{
			name:    "not an object",
			payload: `keep-alive`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, openai.Adapter{}.Parse(tt.payload))
		})
	}
}
