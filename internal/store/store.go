// File: internal/store/store.go
package store

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/logger"
	"github.com/iyunix/go-bluebox/internal/metrics"
	"github.com/iyunix/go-bluebox/internal/repository/chat"
	"github.com/iyunix/go-bluebox/internal/repository/message"
)

// ConversationStore is the durable record of chats and their messages.
type ConversationStore interface {
	CreateChat(ctx context.Context, ownerID string) (string, error)
	ListChats(ctx context.Context, ownerID string) []domain.Chat
	GetChat(ctx context.Context, chatID string) (*domain.Chat, error)
	AppendMessage(ctx context.Context, chatID string, msg domain.Message) (*domain.Message, error)
	DeleteChat(ctx context.Context, chatID string) error
	CleanupEmptyChats(ctx context.Context, ownerID string, keep ...string) (int, error)
}

const defaultCleanupConcurrency = 4

// Store implements ConversationStore on top of the gorm repositories.
type Store struct {
	db     *gorm.DB
	chats  chat.ChatRepository
	logger logger.Logger
	now    func() time.Time

	cleanupConcurrency int
}

type Option func(*Store)

// WithClock replaces the write-time clock. Timestamps always come from the
// store, never from the caller.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithCleanupConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.cleanupConcurrency = n
		}
	}
}

func New(db *gorm.DB, log logger.Logger, opts ...Option) *Store {
	s := &Store{
		db:                 db,
		chats:              chat.NewChatRepository(db),
		logger:             log.With("component", "conversation_store"),
		now:                func() time.Time { return time.Now().UTC() },
		cleanupConcurrency: defaultCleanupConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateChat creates an empty chat with the placeholder title.
func (s *Store) CreateChat(ctx context.Context, ownerID string) (string, error) {
	if ownerID == "" {
		return "", invalid("create_chat", errors.New("owner ID is required"))
	}

	now := s.now()
	created, err := s.chats.Create(ctx, &domain.Chat{
		OwnerID:   ownerID,
		Title:     domain.PlaceholderTitle,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		s.record("create_chat", err)
		s.logger.Error("failed to create chat", "owner_id", ownerID, "error", err)
		return "", unavailable("create_chat", err)
	}

	s.record("create_chat", nil)
	s.logger.Info("chat created", "chat_id", created.ID, "owner_id", ownerID)
	return created.ID, nil
}

// ListChats never fails: chat history is a convenience, so errors yield an empty list.
func (s *Store) ListChats(ctx context.Context, ownerID string) []domain.Chat {
	chats, err := s.chats.FindByOwnerID(ctx, ownerID)
	if err != nil {
		s.record("list_chats", err)
		s.logger.Warn("listing chats failed, returning empty history", "owner_id", ownerID, "error", err)
		return []domain.Chat{}
	}

	s.record("list_chats", nil)
	now := s.now()
	for i := range chats {
		normalize(&chats[i], now)
	}
	return chats
}

// GetChat hydrates a chat with all its messages. A missing chat yields ErrNotFound.
func (s *Store) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	c, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			metrics.StoreOperationsTotal.WithLabelValues("get_chat", "not_found").Inc()
			return nil, notFound("get_chat")
		}
		s.record("get_chat", err)
		s.logger.Error("failed to load chat", "chat_id", chatID, "error", err)
		return nil, unavailable("get_chat", err)
	}

	s.record("get_chat", nil)
	normalize(c, s.now())
	return c, nil
}

// AppendMessage appends one message, bumps updated_at and derives the title
// when the chat's first message is a non-empty user message. It is not
// idempotent: callers append each logical message once.
func (s *Store) AppendMessage(ctx context.Context, chatID string, msg domain.Message) (*domain.Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, invalid("append_message", err)
	}

	now := s.now()
	stored := domain.Message{
		ChatID:    chatID,
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chats := chat.NewChatRepository(tx)
		messages := message.NewMessageRepository(tx)

		count, err := messages.CountByChatID(ctx, chatID)
		if err != nil {
			return err
		}

		title := ""
		if count == 0 && stored.Role == domain.RoleUser && stored.Content != "" {
			title = domain.DeriveTitle(stored.Content)
		}
		if err := chats.UpdateMetadata(ctx, chatID, now, title); err != nil {
			return err
		}

		_, err = messages.Create(ctx, &stored)
		return err
	})
	if err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			metrics.StoreOperationsTotal.WithLabelValues("append_message", "not_found").Inc()
			return nil, notFound("append_message")
		}
		s.record("append_message", err)
		s.logger.Error("failed to append message", "chat_id", chatID, "role", string(stored.Role), "error", err)
		return nil, unavailable("append_message", err)
	}

	s.record("append_message", nil)
	s.logger.Debug("message appended", "chat_id", chatID, "role", string(stored.Role), "length", len(stored.Content))
	return &stored, nil
}

// DeleteChat removes the chat and its messages. Deleting an absent chat succeeds.
func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := message.NewMessageRepository(tx).DeleteByChatID(ctx, chatID); err != nil {
			return err
		}
		return chat.NewChatRepository(tx).Delete(ctx, chatID)
	})
	if err != nil {
		s.record("delete_chat", err)
		s.logger.Error("failed to delete chat", "chat_id", chatID, "error", err)
		return unavailable("delete_chat", err)
	}

	s.record("delete_chat", nil)
	s.logger.Info("chat deleted", "chat_id", chatID)
	return nil
}

// CleanupEmptyChats deletes the owner's chats that have no messages, except
// those named in keep. Individual delete failures are logged and skipped; only
// a failure to list the chats is returned.
func (s *Store) CleanupEmptyChats(ctx context.Context, ownerID string, keep ...string) (int, error) {
	chats, err := s.chats.FindByOwnerID(ctx, ownerID)
	if err != nil {
		s.record("cleanup_empty_chats", err)
		return 0, unavailable("cleanup_empty_chats", err)
	}

	exempt := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		if id != "" {
			exempt[id] = struct{}{}
		}
	}

	var deleted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cleanupConcurrency)
	for i := range chats {
		c := chats[i]
		if !c.IsProvisional() {
			continue
		}
		if _, ok := exempt[c.ID]; ok {
			continue
		}
		g.Go(func() error {
			if err := s.DeleteChat(gctx, c.ID); err != nil {
				s.logger.Warn("cleanup could not delete empty chat", "chat_id", c.ID, "error", err)
				return nil
			}
			deleted.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	n := int(deleted.Load())
	metrics.ChatsCleanedTotal.Add(float64(n))
	s.logger.Info("cleaned up empty chats", "owner_id", ownerID, "deleted", n)
	return n, nil
}

func (s *Store) record(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.StoreOperationsTotal.WithLabelValues(op, result).Inc()
}

// normalize fills timestamps a row may lack so rendering never sees zero times.
func normalize(c *domain.Chat, now time.Time) {
	if c.Messages == nil {
		c.Messages = []domain.Message{}
	}
	for i := range c.Messages {
		if c.Messages[i].CreatedAt.IsZero() {
			c.Messages[i].CreatedAt = now
		}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.Before(c.CreatedAt) {
		c.UpdatedAt = c.CreatedAt
	}
}
