// File: internal/repository/message/message_repository.go
package message

import (
	"context"
	"fmt"

	"github.com/iyunix/go-bluebox/internal/domain"
	"gorm.io/gorm"
)

type gormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) Create(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	if message.ChatID == "" {
		return nil, fmt.Errorf("validation failed: chat ID is required")
	}
	if err := message.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, fmt.Errorf("database error creating message: %w", err)
	}
	return message, nil
}

// FindByChatID returns messages in insertion order. The autoincrement key is
// used instead of created_at so two writes in the same clock tick keep their order.
func (r *gormMessageRepository) FindByChatID(ctx context.Context, chatID string) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("database error fetching messages: %w", err)
	}
	return messages, nil
}

func (r *gormMessageRepository) CountByChatID(ctx context.Context, chatID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Message{}).Where("chat_id = ?", chatID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("database error counting messages: %w", err)
	}
	return count, nil
}

func (r *gormMessageRepository) DeleteByChatID(ctx context.Context, chatID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&domain.Message{})
	if result.Error != nil {
		return 0, fmt.Errorf("database error deleting messages: %w", result.Error)
	}
	return result.RowsAffected, nil
}
