package relay

// Status is the observable state of a message as seen by the UI.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"   // Request in flight, no content yet.
	StatusStreaming Status = "streaming" // Content arriving.
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Terminal reports whether s is a final status of a session.
func (s Status) Terminal() bool {
	switch s {
	case StatusError, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}
