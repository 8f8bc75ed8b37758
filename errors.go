package relay

import (
	"errors"
	"strings"
)

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a provider config or message failed validation.
	ErrValidation = errors.New("validation error")

	// ErrNoActiveSession indicates Cancel was called with nothing streaming.
	ErrNoActiveSession = errors.New("no active session")

	// ErrMessageNotFound indicates a repository has no message with the given ID.
	ErrMessageNotFound = errors.New("message not found")

	// ErrMessageExists indicates Insert was called with an ID already stored.
	ErrMessageExists = errors.New("message already exists")
)

// StreamError is a terminal error reported by the provider, either in-stream
// or as a non-2xx HTTP response.
type StreamError struct {
	Message string
	Code    string
}

// Error implements error.
func (e *StreamError) Error() string {
	var b strings.Builder
	b.WriteString("provider error")
	if e.Code != "" {
		b.WriteString(" (")
		b.WriteString(e.Code)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}
