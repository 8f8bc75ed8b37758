package relay

import (
	"fmt"
	"slices"
	"strings"
)

// ReferenceSeparator separates the reply text from the citation block.
const ReferenceSeparator = "\n\n---\n"

// RenderContent produces the final persisted content of a reply: the visible
// text followed, when refs is non-empty, by a citation block ordered by
// ascending index.
func RenderContent(text string, refs []Reference) string {
	if len(refs) == 0 {
		return text
	}
	sorted := slices.Clone(refs)
	slices.SortStableFunc(sorted, func(a, b Reference) int { return a.Index - b.Index })

	var b strings.Builder
	b.WriteString(text)
	b.WriteString(ReferenceSeparator)
	for i, r := range sorted {
		if i > 0 {
			b.WriteByte('\n')
		}
		title := r.Title
		if title == "" {
			title = r.URL
		}
		fmt.Fprintf(&b, "[%d] [%s](%s)", r.Index, title, r.URL)
	}
	return b.String()
}
