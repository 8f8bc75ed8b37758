package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fwojciec/relay"
)

// State is the lifecycle state of a streaming session.
type State int32

const (
	StateIdle       State = iota // No session.
	StateRequesting              // Request sent, waiting for response headers.
	StateStreaming               // Headers received, consuming the body.
	StateFinalizing              // Stream ended, committing the message.
	StateTerminated              // Committed; the message is immutable.
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Result is the outcome of a terminated session.
//
// Err is set for provider-reported errors (as *relay.StreamError) and
// transport failures. It is nil for completed and cancelled sessions.
// PersistErr is set when the final commit failed; Message still holds the
// assembled reply.
type Result struct {
	Message    relay.Message
	Status     relay.Status
	Err        error
	PersistErr error
}

// Session is one in-flight request and the message it is assembling.
type Session struct {
	MessageID      string
	ConversationID string
	Provider       relay.ProviderID
	Model          string
	StartedAt      time.Time

	state     atomic.Int32
	cancelled atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	acc       *relay.Accumulator
	result    Result
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Cancel stops the stream. The partial reply is still flushed and committed.
// Cancel is safe to call more than once and after termination.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
	s.cancel()
}

// Cancelled reports whether Cancel was called.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// Done is closed once the session reaches StateTerminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session terminates and returns its result.
func (s *Session) Wait() Result {
	<-s.done
	return s.result
}

// Snapshot returns the in-progress message state.
func (s *Session) Snapshot() relay.Snapshot {
	return s.acc.Snapshot()
}
