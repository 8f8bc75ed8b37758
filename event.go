package relay

// Event is a sealed interface representing one semantic unit decoded from a
// provider stream. Adapters turn frame payloads into zero or more Events; the
// Accumulator applies them in arrival order.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventTextDelta represents an incremental chunk of visible reply text.
type EventTextDelta struct {
	Delta string
}

func (EventTextDelta) event() {}

// EventThinkingDelta represents an incremental chunk of reasoning text.
type EventThinkingDelta struct {
	Delta string
}

func (EventThinkingDelta) event() {}

// EventReference carries a citation record. References are identified by
// Reference.Index within a session; later duplicates are ignored.
type EventReference struct {
	Reference Reference
}

func (EventReference) event() {}

// EventError is a terminal, provider-reported error. Only the first one
// applied to a session is kept.
type EventError struct {
	Message string
	Code    string // optional; HTTP status or provider error code
}

func (EventError) event() {}

// EventDone is the explicit end-of-stream sentinel. It is distinct from the
// transport reaching EOF.
type EventDone struct{}

func (EventDone) event() {}

// Interface compliance checks.
var (
	_ Event = EventTextDelta{}
	_ Event = EventThinkingDelta{}
	_ Event = EventReference{}
	_ Event = EventError{}
	_ Event = EventDone{}
)
