// Command relay streams chat replies from LLM providers into a local
// conversation store.
//
// Usage:
//
//	ANTHROPIC_API_KEY=sk-... relay chat
//	OPENAI_API_KEY=sk-...    relay ask "What changed in Go 1.24?"
//	relay history --conversation <id>
//
// The provider is taken from --provider, the config file's default_provider,
// or detected from whichever <PROVIDER>_API_KEY variable is set.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(newApp()).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}
