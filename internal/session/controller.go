// Package session holds the controller that owns one browser session's chat:
// its transcript, pending input, streaming buffer and active chat.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iyunix/go-bluebox/internal/bus"
	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/gateway"
	"github.com/iyunix/go-bluebox/internal/logger"
	"github.com/iyunix/go-bluebox/internal/store"
)

const (
	defaultStreamTimeout = 2 * time.Minute
	storeWriteTimeout    = 5 * time.Second
)

type Config struct {
	SystemPrompt  string
	StreamTimeout time.Duration
}

// Snapshot is a copy of the session state, safe to hand to a renderer.
type Snapshot struct {
	State         State            `json:"state"`
	Messages      []domain.Message `json:"messages"`
	Input         string           `json:"input"`
	Partial       string           `json:"partial"`
	ActiveChatID  string           `json:"active_chat_id,omitempty"`
	Authenticated bool             `json:"authenticated"`
}

// Controller is the only writer of its session state. The mutex guards state
// and is never held across store or gateway calls.
type Controller struct {
	mu         sync.Mutex
	state      State
	transcript []domain.Message
	input      string
	partial    string
	activeChat string
	identity   *domain.Identity

	store   store.ConversationStore
	gateway gateway.Gateway
	events  bus.Publisher
	config  Config
	logger  logger.Logger
}

// New builds a controller. A nil identity makes it a guest session that never
// touches the store.
func New(
	identity *domain.Identity,
	conversations store.ConversationStore,
	gw gateway.Gateway,
	events bus.Publisher,
	config Config,
	log logger.Logger,
) *Controller {
	if config.StreamTimeout <= 0 {
		config.StreamTimeout = defaultStreamTimeout
	}
	if identity != nil {
		id := *identity
		identity = &id
		log = log.With("user_id", id.UserID)
	}
	return &Controller{
		identity: identity,
		store:    conversations,
		gateway:  gw,
		events:   events,
		config:   config,
		logger:   log.With("component", "session_controller"),
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]domain.Message, len(c.transcript))
	copy(msgs, c.transcript)
	return Snapshot{
		State:         c.state,
		Messages:      msgs,
		Input:         c.input,
		Partial:       c.partial,
		ActiveChatID:  c.activeChat,
		Authenticated: c.identity != nil,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) ActiveChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeChat
}

// Identity returns a copy of the session's identity, or nil for guests.
func (c *Controller) Identity() *domain.Identity {
	if c.identity == nil {
		return nil
	}
	id := *c.identity
	return &id
}

// SetInput replaces the pending input text.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
}

// Submit sends the pending input.
func (c *Controller) Submit(ctx context.Context, onDelta func(string)) error {
	c.mu.Lock()
	text := c.input
	c.mu.Unlock()
	return c.SendMessage(ctx, text, onDelta)
}

// LoadChat replaces the transcript with a stored chat. The current transcript
// is cleared first; if the chat cannot be loaded the session is left as a
// fresh provisional one and the error is returned.
func (c *Controller) LoadChat(ctx context.Context, chatID string) error {
	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return ErrNoIdentity
	}
	if c.state != Idle {
		c.mu.Unlock()
		return ErrBusy
	}
	owner := c.identity.UserID
	c.state = LoadingChat
	c.transcript = nil
	c.partial = ""
	c.activeChat = ""
	c.mu.Unlock()

	c.publish(bus.MessageCount(0))
	c.publish(bus.CurrentChat(""))

	chat, err := c.store.GetChat(ctx, chatID)
	if err == nil && chat.OwnerID != owner {
		c.logger.Warn("refusing to load chat owned by another identity", "chat_id", chatID)
		chat, err = nil, fmt.Errorf("load chat %s: %w", chatID, store.ErrNotFound)
	}

	c.mu.Lock()
	c.state = Idle
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, store.ErrNotFound) {
			c.logger.Info("chat not found, starting a new session", "chat_id", chatID)
		} else {
			c.logger.Error("failed to load chat, starting a new session", "chat_id", chatID, "error", err)
		}
		return err
	}
	c.transcript = append([]domain.Message(nil), chat.Messages...)
	c.activeChat = chat.ID
	count := len(c.transcript)
	c.mu.Unlock()

	c.logger.Info("chat loaded", "chat_id", chat.ID, "messages", count)
	c.publish(bus.MessageCount(count))
	c.publish(bus.CurrentChat(chat.ID))
	return nil
}

// CreateNewChat starts a fresh conversation. Guests just reset; signed-in
// users get a new stored chat that becomes active.
func (c *Controller) CreateNewChat(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.identity == nil {
		c.mu.Unlock()
		c.reset("")
		return nil
	}
	c.state = CreatingChat
	c.mu.Unlock()

	err := c.newChat(ctx)
	c.setState(Idle)
	return err
}

// DeleteChat removes a stored chat owned by the session's identity. A chat
// owned by someone else is reported as not found; one that is already gone
// counts as deleted. Deleting the active chat moves the session to a new chat
// so it never points at a deleted id.
func (c *Controller) DeleteChat(ctx context.Context, chatID string) error {
	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return ErrNoIdentity
	}
	if c.state != Idle {
		c.mu.Unlock()
		return ErrBusy
	}
	owner := c.identity.UserID
	c.state = Deleting
	c.mu.Unlock()
	defer c.setState(Idle)

	chat, err := c.store.GetChat(ctx, chatID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.logger.Info("chat already deleted", "chat_id", chatID)
	case err != nil:
		c.logger.Error("failed to look up chat for deletion", "chat_id", chatID, "error", err)
		return err
	case chat.OwnerID != owner:
		c.logger.Warn("refusing to delete chat owned by another identity", "chat_id", chatID)
		return fmt.Errorf("delete chat %s: %w", chatID, store.ErrNotFound)
	default:
		if err := c.store.DeleteChat(ctx, chatID); err != nil {
			c.logger.Error("failed to delete chat", "chat_id", chatID, "error", err)
			return err
		}
	}

	if c.ActiveChatID() == chatID {
		if err := c.newChat(ctx); err != nil {
			// Still never leave the deleted id active.
			c.logger.Warn("could not create replacement chat", "error", err)
			c.reset("")
		}
	}

	c.logger.Info("chat deleted", "chat_id", chatID)
	c.publish(bus.Refresh())
	return nil
}

// newChat creates a stored chat and makes it active. The caller owns the state.
func (c *Controller) newChat(ctx context.Context) error {
	id, err := c.store.CreateChat(ctx, c.identity.UserID)
	if err != nil {
		c.logger.Error("failed to create chat", "error", err)
		return err
	}
	c.reset(id)
	c.publish(bus.Refresh())
	return nil
}

// reset empties the transcript and makes chatID (possibly empty) active.
func (c *Controller) reset(chatID string) {
	c.mu.Lock()
	c.transcript = nil
	c.partial = ""
	c.activeChat = chatID
	c.mu.Unlock()

	c.publish(bus.MessageCount(0))
	c.publish(bus.CurrentChat(chatID))
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) publish(e bus.Event) {
	if c.events != nil {
		c.events.Publish(e)
	}
}
