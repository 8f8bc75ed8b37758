package relay

import "time"

// Message is a single conversation message as stored by a MessageRepository.
// Assistant messages produced by a stream carry the reasoning text and the
// provider metadata alongside the final content.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	Thinking       string
	Provider       ProviderID
	Model          string
	Status         Status
	Error          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Reference is a citation attached to a reply by search-augmented providers.
type Reference struct {
	Index int
	Title string
	URL   string
}

// Snapshot is a point-in-time copy of an in-progress message.
// References are in insertion order; Err is nil until an EventError is applied.
type Snapshot struct {
	Text       string
	Thinking   string
	References []Reference
	Err        *EventError
}

// Update is an observable change to a message, delivered to Observers.
type Update struct {
	MessageID string
	Provider  ProviderID
	Model     string
	Status    Status
	Snapshot  Snapshot
	Err       error // set only for StatusError
}
