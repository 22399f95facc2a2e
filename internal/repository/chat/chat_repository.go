// File: internal/repository/chat/chat_repository.go
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iyunix/go-bluebox/internal/domain"
	"gorm.io/gorm"
)

var ErrChatNotFound = errors.New("chat not found")

type gormChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &gormChatRepository{db: db}
}

// Create inserts an empty chat. CreatedAt and UpdatedAt are taken from the
// chat when set so that both start out equal.
func (r *gormChatRepository) Create(ctx context.Context, chat *domain.Chat) (*domain.Chat, error) {
	if err := r.validateChatInput(chat); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := r.db.WithContext(ctx).Omit("Messages").Create(chat).Error; err != nil {
		return nil, fmt.Errorf("database error creating chat: %w", err)
	}
	return chat, nil
}

// FindByID loads the chat with its messages in insertion order.
func (r *gormChatRepository) FindByID(ctx context.Context, chatID string) (*domain.Chat, error) {
	if chatID == "" {
		return nil, ErrChatNotFound
	}

	var chat domain.Chat
	err := r.db.WithContext(ctx).
		Preload("Messages", orderMessages).
		Where("id = ?", chatID).
		First(&chat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("database error finding chat: %w", err)
	}
	return &chat, nil
}

// FindByOwnerID returns every chat of the owner, most recently updated first.
func (r *gormChatRepository) FindByOwnerID(ctx context.Context, ownerID string) ([]domain.Chat, error) {
	if ownerID == "" {
		return nil, errors.New("invalid owner ID")
	}

	var chats []domain.Chat
	err := r.db.WithContext(ctx).
		Preload("Messages", orderMessages).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC, created_at DESC").
		Find(&chats).Error
	if err != nil {
		return nil, fmt.Errorf("database error fetching chats: %w", err)
	}
	return chats, nil
}

// UpdateMetadata bumps updated_at and, when title is non-empty, replaces the title.
func (r *gormChatRepository) UpdateMetadata(ctx context.Context, chatID string, updatedAt time.Time, title string) error {
	updates := map[string]interface{}{"updated_at": updatedAt}
	if title != "" {
		if err := r.validateChatTitle(title); err != nil {
			return fmt.Errorf("title validation: %w", err)
		}
		updates["title"] = title
	}

	result := r.db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ?", chatID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("database error updating chat metadata: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrChatNotFound
	}
	return nil
}

// Delete removes the chat row. Deleting a missing chat is not an error.
func (r *gormChatRepository) Delete(ctx context.Context, chatID string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", chatID).Delete(&domain.Chat{}).Error; err != nil {
		return fmt.Errorf("database error deleting chat: %w", err)
	}
	return nil
}

func orderMessages(db *gorm.DB) *gorm.DB {
	return db.Order("messages.id ASC")
}

func (r *gormChatRepository) validateChatInput(chat *domain.Chat) error {
	if chat == nil {
		return errors.New("chat cannot be nil")
	}
	if chat.OwnerID == "" {
		return errors.New("owner ID is required")
	}
	return r.validateChatTitle(chat.Title)
}

func (r *gormChatRepository) validateChatTitle(title string) error {
	if len(title) > 200 {
		return errors.New("title must be 200 characters or less")
	}
	if strings.Contains(title, "\x00") {
		return errors.New("invalid characters detected in title")
	}
	return nil
}
