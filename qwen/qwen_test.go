package qwen_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/qwen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_Parse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    []relay.Event
	}{
		{
			name:    "content only",
			payload: `{"choices":[{"delta":{"content":"hi"}}]}`,
			want:    []relay.Event{relay.EventTextDelta{Delta: "hi"}},
		},
		{
			name:    "content next to unexpected field types",
			payload: `{"created":"1700000000","choices":[{"index":"0","delta":{"content":"hi"},"finish_reason":0}],"usage":{"prompt_tokens":"3"}}`,
			want:    []relay.Event{relay.EventTextDelta{Delta: "hi"}},
		},
		{
			name:    "references alone",
			payload: `{"choices":[],"search_info":{"search_results":[{"index":1,"title":"A","url":"u1","site_name":"x"},{"index":2,"title":"B","url":"u2"}]}}`,
			want: []relay.Event{
				relay.EventReference{Reference: relay.Reference{Index: 1, Title: "A", URL: "u1"}},
				relay.EventReference{Reference: relay.Reference{Index: 2, Title: "B", URL: "u2"}},
			},
		},
		{
			name:    "content and references in one frame",
			payload: `{"choices":[{"delta":{"content":"Per [1], "}}],"search_info":{"search_results":[{"index":1,"title":"A","url":"u1"}]}}`,
			want: []relay.Event{
				relay.EventTextDelta{Delta: "Per [1], "},
				relay.EventReference{Reference: relay.Reference{Index: 1, Title: "A", URL: "u1"}},
			},
		},
		{
			name: "malformed elements skipped individually",
			payload: `{"search_info":{"search_results":[` +
				`{"index":"1","title":"bad index","url":"u"},` +
				`{"index":2,"title":"ok","url":"u2"},` +
				`{"index":3,"url":"missing title"},` +
				`{"index":4.5,"title":"float","url":"u"},` +
				`"not an object",` +
				`{"index":5,"title":null,"url":"u5"},` +
				`{"index":6,"title":"six","url":"u6"}]}}`,
			want: []relay.Event{
				relay.EventReference{Reference: relay.Reference{Index: 2, Title: "ok", URL: "u2"}},
				relay.EventReference{Reference: relay.Reference{Index: 6, Title: "six", URL: "u6"}},
			},
		},
		{
			name:    "search_info without results",
			payload: `{"search_info":{}}`,
		},
		{
			name:    "malformed json",
			payload: `{"search_info":{"search_results":[{"index":1`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, qwen.Adapter{}.Parse(tt.payload))
		})
	}
}

func TestNewBuilder_EnableSearch(t *testing.T) {
	t.Parallel()
	history := []relay.Message{{Role: relay.RoleUser, Content: "news?"}}

	t.Run("search enabled", func(t *testing.T) {
		t.Parallel()
		req, err := qwen.NewBuilder().BuildRequest(context.Background(), relay.ProviderConfig{Model: "qwen-plus", EnableSearch: true}, history)
		require.NoError(t, err)
		assert.Equal(t, "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions", req.URL.String())

		data, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(data, &body))
		assert.Equal(t, true, body["enable_search"])
		assert.Equal(t, map[string]any{"enable_source": true}, body["search_options"])
	})

	t.Run("search disabled", func(t *testing.T) {
		t.Parallel()
		req, err := qwen.NewBuilder().BuildRequest(context.Background(), relay.ProviderConfig{Model: "qwen-plus"}, history)
		require.NoError(t, err)

		data, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(data, &body))
		assert.NotContains(t, body, "enable_search")
	})
}
