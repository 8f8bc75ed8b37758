package terminal_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/terminal"
	"github.com/stretchr/testify/assert"
)

type fakeSpinner struct {
	starts, stops int
}

func (s *fakeSpinner) Start() { s.starts++ }
func (s *fakeSpinner) Stop()  { s.stops++ }

func TestObserver_PrintsDeltas(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	sp := &fakeSpinner{}
	obs := terminal.New(&buf, terminal.WithSpinner(sp))

	obs.Observe(relay.Update{MessageID: "m1", Status: relay.StatusLoading})
	assert.Equal(t, 1, sp.starts)
	assert.Empty(t, buf.String())

	obs.Observe(relay.Update{MessageID: "m1", Status: relay.StatusStreaming, Snapshot: relay.Snapshot{Thinking: "Pondering"}})
	obs.Observe(relay.Update{MessageID: "m1", Status: relay.StatusStreaming, Snapshot: relay.Snapshot{Thinking: "Pondering", Text: "Hel"}})
	obs.Observe(relay.Update{MessageID: "m1", Status: relay.StatusStreaming, Snapshot: relay.Snapshot{Thinking: "Pondering", Text: "Hello"}})
	obs.Observe(relay.Update{MessageID: "m1", Status: relay.StatusCompleted, Snapshot: relay.Snapshot{Thinking: "Pondering", Text: "Hello"}})

	assert.Equal(t, 1, sp.stops)
	assert.Equal(t, "Pondering\n\nHello\n", buf.String())
}

func TestObserver_CitationsSortedByIndex(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	obs := terminal.New(&buf)

	obs.Observe(relay.Update{MessageID: "m1", Status: relay.StatusCompleted, Snapshot: relay.Snapshot{
		Text: "Sunny.",
		References: []relay.Reference{
			{Index: 2, Title: "B", URL: "https://b.example"},
			{Index: 1, URL: "https://a.example"},
		},
	}})

	assert.Equal(t, "Sunny.\n\n[1] https://a.example https://a.example\n[2] B https://b.example\n", buf.String())
}

func TestObserver_TerminalStatusLines(t *testing.T) {
	t.Parallel()

	t.Run("cancelled keeps partial text", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		obs := terminal.New(&buf)
		obs.Observe(relay.Update{MessageID: "m1", Status: relay.StatusStreaming, Snapshot: relay.Snapshot{Text: "partial"}})
		obs.Observe(relay.Update{MessageID: "m1", Status: relay.StatusCancelled, Snapshot: relay.Snapshot{Text: "partial"}})
		assert.Contains(t, buf.String(), "partial\n")
		assert.Contains(t, buf.String(), "[cancelled]")
	})

	t.Run("error shows message", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		obs := terminal.New(&buf)
		err := &relay.StreamError{Message: "rate limited", Code: "429"}
		obs.Observe(relay.Update{MessageID: "m1", Status: relay.StatusError, Err: err})
		assert.Contains(t, buf.String(), "error: provider error (429): rate limited")
	})

	t.Run("error without detail", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		obs := terminal.New(&buf)
		obs.Observe(relay.Update{MessageID: "m1", Status: relay.StatusError})
		assert.Contains(t, buf.String(), "error: request failed")
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		obs := terminal.New(&buf)
		obs.Observe(relay.Update{MessageID: "m1", Status: relay.StatusError, Err: errors.New("connection reset")})
		assert.Contains(t, buf.String(), "connection reset")
	})
}

func TestObserver_NewMessageResetsProgress(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	obs := terminal.New(&buf)

	obs.Observe(relay.Update{MessageID: "m1", Status: relay.StatusCompleted, Snapshot: relay.Snapshot{Text: "first"}})
	obs.Observe(relay.Update{MessageID: "m2", Status: relay.StatusStreaming, Snapshot: relay.Snapshot{Text: "second"}})

	assert.Equal(t, "first\nsecond", buf.String())
}

func TestObserver_PrintMessage(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	obs := terminal.New(&buf)

	obs.PrintMessage(relay.Message{Role: relay.RoleUser, Content: "hi"})
	obs.PrintMessage(relay.Message{Role: relay.RoleAssistant, Model: "gpt-4o", Content: "hello", Status: relay.StatusCompleted})
	obs.PrintMessage(relay.Message{Role: relay.RoleAssistant, Status: relay.StatusLoading})

	out := buf.String()
	assert.Contains(t, out, "user\nhi\n\n")
	assert.Contains(t, out, "assistant gpt-4o\nhello\n[completed]\n")
	assert.Contains(t, out, "[interrupted]")
}
