package relay

import "fmt"

// Validate checks universal constraints on ProviderConfig.
// Request builders may apply additional dialect-specific validation.
func (c ProviderConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required: %w", ErrValidation)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required: %w", ErrValidation)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d: %w", c.MaxTokens, ErrValidation)
	}
	if c.ThinkingBudget < 0 {
		return fmt.Errorf("thinking budget must be non-negative, got %d: %w", c.ThinkingBudget, ErrValidation)
	}
	return nil
}

// ValidateHistory checks that a history is non-empty and ends with a user turn.
func ValidateHistory(history []Message) error {
	if len(history) == 0 {
		return fmt.Errorf("history is empty: %w", ErrValidation)
	}
	for i, m := range history {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d: unknown role %q: %w", i, m.Role, ErrValidation)
		}
	}
	if last := history[len(history)-1]; last.Role != RoleUser {
		return fmt.Errorf("last message must be from user, got %q: %w", last.Role, ErrValidation)
	}
	return nil
}
