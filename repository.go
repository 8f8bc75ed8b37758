package relay

import "context"

// MessageRepository is the persistence collaborator. Insert and Update stage
// a message; Save durably commits everything staged so far.
type MessageRepository interface {
	Insert(ctx context.Context, msg Message) error
	Update(ctx context.Context, msg Message) error
	Save(ctx context.Context) error
}

// MessageStore is a MessageRepository that can read committed messages back.
// List returns a conversation's messages ordered by creation time.
type MessageStore interface {
	MessageRepository
	Get(ctx context.Context, id string) (Message, error)
	List(ctx context.Context, conversationID string) ([]Message, error)
	Close() error
}

// Observer receives UI-visible side effects of a streaming session.
// Observe is called from the session goroutine and must not block.
type Observer interface {
	Observe(u Update)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(u Update)

// Observe calls f(u).
func (f ObserverFunc) Observe(u Update) { f(u) }

// Observers fans an Update out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var list []Observer
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return ObserverFunc(func(u Update) {
		for _, o := range list {
			o.Observe(u)
		}
	})
}
