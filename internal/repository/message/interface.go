// File: internal/repository/message/interface.go
package message

import (
	"context"

	"github.com/iyunix/go-bluebox/internal/domain"
)

// MessageRepository stores messages. There is no update: messages are immutable once written.
type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) (*domain.Message, error)
	FindByChatID(ctx context.Context, chatID string) ([]domain.Message, error)
	CountByChatID(ctx context.Context, chatID string) (int64, error)
	DeleteByChatID(ctx context.Context, chatID string) (int64, error)
}
