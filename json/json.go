// Package json stores conversations as one JSON file per conversation.
package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/relay"
)

// envelope is the v1 wire format for a persisted conversation.
type envelope struct {
	Version        int          `json:"version"`
	ConversationID string       `json:"conversation_id"`
	UpdatedAt      time.Time    `json:"updated_at"`
	Messages       []messageDTO `json:"messages"`
}

// messageDTO is the JSON representation of a Message.
type messageDTO struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Thinking  *string   `json:"thinking,omitempty"`
	Provider  *string   `json:"provider,omitempty"`
	Model     *string   `json:"model,omitempty"`
	Status    *string   `json:"status,omitempty"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarshalConversation serializes a conversation's messages in v1 envelope format.
func MarshalConversation(conversationID string, updatedAt time.Time, msgs []relay.Message) ([]byte, error) {
	env := envelope{
		Version:        1,
		ConversationID: conversationID,
		UpdatedAt:      updatedAt,
		Messages:       make([]messageDTO, len(msgs)),
	}
	for i, m := range msgs {
		if m.ID == "" {
			return nil, fmt.Errorf("message %d: empty id", i)
		}
		env.Messages[i] = marshalMessage(m)
	}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalConversation deserializes a conversation from v1 envelope format.
func UnmarshalConversation(data []byte) (string, []relay.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 {
		return "", nil, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	msgs := make([]relay.Message, len(env.Messages))
	for i, dto := range env.Messages {
		msg, err := unmarshalMessage(env.ConversationID, dto)
		if err != nil {
			return "", nil, fmt.Errorf("message %d: %w", i, err)
		}
		msgs[i] = msg
	}
	return env.ConversationID, msgs, nil
}

// writeFile writes data atomically, creating parent directories as needed.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func marshalMessage(m relay.Message) messageDTO {
	return messageDTO{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		Thinking:  optional(m.Thinking),
		Provider:  optional(string(m.Provider)),
		Model:     optional(m.Model),
		Status:    optional(string(m.Status)),
		Error:     optional(m.Error),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func unmarshalMessage(conversationID string, dto messageDTO) (relay.Message, error) {
	role := relay.Role(dto.Role)
	switch role {
	case relay.RoleSystem, relay.RoleUser, relay.RoleAssistant:
	default:
		return relay.Message{}, fmt.Errorf("unknown role: %q", dto.Role)
	}
	return relay.Message{
		ID:             dto.ID,
		ConversationID: conversationID,
		Role:           role,
		Content:        dto.Content,
		Thinking:       deref(dto.Thinking),
		Provider:       relay.ProviderID(deref(dto.Provider)),
		Model:          deref(dto.Model),
		Status:         relay.Status(deref(dto.Status)),
		Error:          deref(dto.Error),
		CreatedAt:      dto.CreatedAt,
		UpdatedAt:      dto.UpdatedAt,
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
