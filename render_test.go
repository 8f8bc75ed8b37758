package relay_test

import (
	"testing"

	"github.com/fwojciec/relay"
	"github.com/stretchr/testify/assert"
)

func TestRenderContent(t *testing.T) {
	t.Parallel()

	t.Run("no references returns text unchanged", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "answer", relay.RenderContent("answer", nil))
	})

	t.Run("references appended in index order", func(t *testing.T) {
		t.Parallel()
		got := relay.RenderContent("answer", []relay.Reference{
			{Index: 2, Title: "Second", URL: "https://b.example"},
			{Index: 1, Title: "First", URL: "https://a.example"},
		})
		assert.Equal(t, "answer\n\n---\n[1] [First](https://a.example)\n[2] [Second](https://b.example)", got)
	})

	t.Run("empty title falls back to url", func(t *testing.T) {
		t.Parallel()
		got := relay.RenderContent("", []relay.Reference{{Index: 1, URL: "https://a.example"}})
		assert.Equal(t, "\n\n---\n[1] [https://a.example](https://a.example)", got)
	})

	t.Run("input order is not modified", func(t *testing.T) {
		t.Parallel()
		refs := []relay.Reference{{Index: 2}, {Index: 1}}
		relay.RenderContent("x", refs)
		assert.Equal(t, 2, refs[0].Index)
	})
}
