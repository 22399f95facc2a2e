package chat

import (
	"context"
	"time"

	"github.com/iyunix/go-bluebox/internal/domain"
)

// ChatRepository handles chat data operations.
type ChatRepository interface {
	Create(ctx context.Context, chat *domain.Chat) (*domain.Chat, error)
	FindByID(ctx context.Context, chatID string) (*domain.Chat, error)
	FindByOwnerID(ctx context.Context, ownerID string) ([]domain.Chat, error)
	UpdateMetadata(ctx context.Context, chatID string, updatedAt time.Time, title string) error
	Delete(ctx context.Context, chatID string) error
}
