// File: internal/domain/chat.go
package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// PlaceholderTitle is shown until the first user message names the chat.
	PlaceholderTitle = "New Chat"
	// MaxTitleLength counts runes, not bytes.
	MaxTitleLength = 30
	titleEllipsis  = "..."
)

// Chat represents a single conversation thread.
type Chat struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	OwnerID   string    `json:"owner_id" gorm:"index;not null;size:64"` // The identity that owns the chat
	Title     string    `json:"title" gorm:"not null;size:200"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`
	Messages  []Message `json:"messages" gorm:"foreignKey:ChatID"`
}

// BeforeCreate assigns an opaque identifier when the caller did not.
func (c *Chat) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Title == "" {
		c.Title = PlaceholderTitle
	}
	return nil
}

// IsProvisional reports whether the chat has no messages yet.
func (c *Chat) IsProvisional() bool {
	return len(c.Messages) == 0
}

// DeriveTitle builds a chat title from the first user message.
func DeriveTitle(text string) string {
	if utf8.RuneCountInString(text) <= MaxTitleLength {
		return text
	}
	var b strings.Builder
	count := 0
	for _, r := range text {
		if count >= MaxTitleLength {
			break
		}
		b.WriteRune(r)
		count++
	}
	b.WriteString(titleEllipsis)
	return b.String()
}
