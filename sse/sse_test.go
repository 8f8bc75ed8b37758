package sse_test

import (
	"testing"

	"github.com/fwojciec/relay/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemuxer_SingleChunk(t *testing.T) {
	t.Parallel()
	var d sse.Demuxer
	frames := d.Push([]byte("data: {\"a\":1}\n\ndata: {\"b\":2}\n"))
	assert.Equal(t, []sse.Frame{{Payload: `{"a":1}`}, {Payload: `{"b":2}`}}, frames)
}

func TestDemuxer_CrossChunkReassembly(t *testing.T) {
	t.Parallel()
	raw := []byte("data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n")
	for split := 0; split <= len(raw); split++ {
		var d sse.Demuxer
		var frames []sse.Frame
		frames = append(frames, d.Push(raw[:split])...)
		frames = append(frames, d.Push(raw[split:])...)
		require.Len(t, frames, 1, "split at %d", split)
		assert.Equal(t, `{"choices":[{"delta":{"content":"hi"}}]}`, frames[0].Payload)
	}
}

func TestDemuxer_ByteAtATime(t *testing.T) {
	t.Parallel()
	raw := "event: message\ndata: one\r\n: keep-alive\n\ndata: two\n"
	var d sse.Demuxer
	var frames []sse.Frame
	for i := 0; i < len(raw); i++ {
		frames = append(frames, d.Push([]byte{raw[i]})...)
	}
	assert.Equal(t, []sse.Frame{{Payload: "one"}, {Payload: "two"}}, frames)
}

func TestDemuxer_SkipsNonDataLines(t *testing.T) {
	t.Parallel()
	var d sse.Demuxer
	frames := d.Push([]byte(": ping\nevent: content_block_delta\nid: 7\nretry: 100\n\n   \ndata:\n"))
	assert.Empty(t, frames)
}

func TestDemuxer_DataWithoutSpace(t *testing.T) {
	t.Parallel()
	var d sse.Demuxer
	frames := d.Push([]byte("data:{\"x\":true}\n"))
	assert.Equal(t, []sse.Frame{{Payload: `{"x":true}`}}, frames)
}

func TestDemuxer_DoneSentinel(t *testing.T) {
	t.Parallel()
	var d sse.Demuxer
	frames := d.Push([]byte("data: a\ndata:  [DONE] \ndata: after\n"))
	assert.Equal(t, []sse.Frame{{Payload: "a"}, {Payload: "[DONE]", Done: true}}, frames)
	assert.True(t, d.Done())
	assert.Nil(t, d.Push([]byte("data: more\n")))
	assert.Nil(t, d.Close())
}

func TestDemuxer_CloseFlushesTail(t *testing.T) {
	t.Parallel()
	var d sse.Demuxer
	assert.Empty(t, d.Push([]byte("data: tail")))
	assert.Equal(t, []sse.Frame{{Payload: "tail"}}, d.Close())
	assert.Nil(t, d.Close())
}

func TestErrorFromBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"nested error message", `{"error":{"message":"invalid key","type":"auth"}}`, "invalid key"},
		{"top-level message", `{"message":"quota exceeded"}`, "quota exceeded"},
		{"nested wins over top-level", `{"error":{"message":"nested"},"message":"top"}`, "nested"},
		{"string error falls through to message", `{"error":"bad","message":"top"}`, "top"},
		{"unknown shape uses raw body", `{"detail":"nope"}`, `{"detail":"nope"}`},
		{"non-json uses raw body", "  Bad Gateway\n", "Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			evt := sse.ErrorFromBody(502, []byte(tt.body))
			assert.Equal(t, tt.want, evt.Message)
			assert.Equal(t, "502", evt.Code)
		})
	}
}
