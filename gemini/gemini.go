// Package gemini implements the native Gemini streamGenerateContent dialect.
//
// Wire types come from google.golang.org/genai. Only the types are used; the
// engine owns the HTTP transport and the SSE framing.
package gemini

const (
	defaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultMaxTokens = 65536
)
