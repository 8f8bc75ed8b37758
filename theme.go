package relay

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values, so replies
// match any color scheme. A negative index means no color.
type Theme struct {
	Prompt    int // Input prompt and reply marker
	Thinking  int // Reasoning text
	Reference int // Citation block
	Error     int // Error status
	Warning   int // Cancelled status
	Success   int // Completed status
	Muted     int // Spinner, metadata
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		Prompt:    4,
		Thinking:  8,
		Reference: 5,
		Error:     1,
		Warning:   3,
		Success:   2,
		Muted:     8,
	}
}
