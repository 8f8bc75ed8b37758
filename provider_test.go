package relay_test

import (
	"testing"

	"github.com/fwojciec/relay"
	"github.com/stretchr/testify/assert"
)

func TestProviderConfig_ZeroValue(t *testing.T) {
	t.Parallel()
	var c relay.ProviderConfig
	assert.Empty(t, c.Provider)
	assert.Empty(t, c.BaseURL, "empty BaseURL selects the dialect default")
	assert.Equal(t, 0, c.MaxTokens)
	assert.Equal(t, 0, c.ThinkingBudget)
	assert.False(t, c.EnableSearch)
}

func TestAdapterFunc_Parse(t *testing.T) {
	t.Parallel()
	var got string
	var a relay.Adapter = relay.AdapterFunc(func(payload string) []relay.Event {
		got = payload
		return []relay.Event{relay.EventTextDelta{Delta: payload}}
	})

	events := a.Parse("hi")

	assert.Equal(t, "hi", got)
	assert.Equal(t, []relay.Event{relay.EventTextDelta{Delta: "hi"}}, events)
}
