// File: internal/domain/message.go
package domain

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem only appears in inference payloads; it is never stored.
	RoleSystem Role = "system"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message represents a single message within a chat.
type Message struct {
	ID        uint      `json:"-" gorm:"primarykey"`
	ChatID    string    `json:"chat_id,omitempty" gorm:"index;not null;size:36"` // The ID of the chat this message belongs to
	Role      Role      `json:"role" gorm:"not null;size:16"`
	Content   string    `json:"content" gorm:"not null"`
	CreatedAt time.Time `json:"timestamp"`
}

// Validate checks the rules every persisted message must satisfy.
func (m *Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid message role %q", m.Role)
	}
	if m.Content == "" {
		return fmt.Errorf("message content cannot be empty")
	}
	return nil
}
