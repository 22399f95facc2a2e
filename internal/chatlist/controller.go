// Package chatlist keeps the sidebar's cached view of a user's chats in step
// with the session through bus events.
package chatlist

import (
	"context"
	"sync"
	"time"

	"github.com/iyunix/go-bluebox/internal/bus"
	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/logger"
	"github.com/iyunix/go-bluebox/internal/store"
)

// MaxVisible caps the rendered list; the rest is reported as overflow.
const MaxVisible = 15

const refreshTimeout = 10 * time.Second

// SessionActions is the part of the session controller the list drives.
type SessionActions interface {
	LoadChat(ctx context.Context, chatID string) error
	CreateNewChat(ctx context.Context) error
	DeleteChat(ctx context.Context, chatID string) error
}

type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
	Active       bool      `json:"active"`
}

type View struct {
	Chats    []Summary `json:"chats"`
	Overflow int       `json:"overflow"`
}

// Controller owns the cached list. Only its own fetches write to it.
type Controller struct {
	mu           sync.Mutex
	chats        []domain.Chat
	current      string
	messageCount int
	identity     *domain.Identity
	unsubscribe  []func()

	store   store.ConversationStore
	events  bus.Subscriber
	session SessionActions
	logger  logger.Logger
}

func New(conversations store.ConversationStore, events bus.Subscriber, session SessionActions, log logger.Logger) *Controller {
	return &Controller{
		store:   conversations,
		events:  events,
		session: session,
		logger:  log.With("component", "chat_list"),
	}
}

// Activate subscribes to session events and loads the list once: empty chats
// other than currentChatID are cleaned up first, and a failed cleanup still
// falls through to a plain listing. Guests get an empty list.
func (c *Controller) Activate(ctx context.Context, identity *domain.Identity, currentChatID string) {
	c.Deactivate()

	c.mu.Lock()
	c.current = currentChatID
	if identity != nil {
		id := *identity
		c.identity = &id
	}
	c.unsubscribe = []func(){
		c.events.Subscribe(bus.RefreshChatList, c.onRefresh),
		c.events.Subscribe(bus.CurrentChatChanged, c.onCurrentChat),
		c.events.Subscribe(bus.MessageCountChanged, c.onMessageCount),
	}
	c.mu.Unlock()

	if identity == nil {
		return
	}

	removed, err := c.store.CleanupEmptyChats(ctx, identity.UserID, currentChatID)
	if err != nil {
		c.logger.Warn("cleanup of empty chats failed, listing without it", "error", err)
	} else if removed > 0 {
		c.logger.Info("removed empty chats", "count", removed)
	}
	c.Refresh(ctx)
}

// Deactivate drops every subscription and the cached list.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.identity = nil
	c.chats = nil
	c.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
}

// Refresh re-fetches the list. Listing never fails; a broken store yields an empty list.
func (c *Controller) Refresh(ctx context.Context) {
	c.mu.Lock()
	identity := c.identity
	c.mu.Unlock()
	if identity == nil {
		return
	}

	chats := c.store.ListChats(ctx, identity.UserID)

	c.mu.Lock()
	defer c.mu.Unlock()
	// Deactivated or switched identity while fetching.
	if c.identity == nil || c.identity.UserID != identity.UserID {
		return
	}
	c.chats = chats
}

// Visible returns the chats worth showing: those with messages, plus the
// active chat even while it is still empty.
func (c *Controller) Visible() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	shown := make([]Summary, 0, len(c.chats))
	for i := range c.chats {
		ch := &c.chats[i]
		if len(ch.Messages) > 0 || ch.ID == c.current {
			shown = append(shown, c.summarize(ch))
		}
	}

	view := View{Chats: shown}
	if len(shown) > MaxVisible {
		view.Chats = shown[:MaxVisible]
		view.Overflow = len(shown) - MaxVisible
	}
	return view
}

// All returns the full cached list, unfiltered.
func (c *Controller) All() []Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Summary, len(c.chats))
	for i := range c.chats {
		out[i] = c.summarize(&c.chats[i])
	}
	return out
}

func (c *Controller) CurrentChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// MessageCount is the active transcript length last reported by the session.
func (c *Controller) MessageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messageCount
}

func (c *Controller) Select(ctx context.Context, chatID string) error {
	return c.session.LoadChat(ctx, chatID)
}

func (c *Controller) NewChat(ctx context.Context) error {
	return c.session.CreateNewChat(ctx)
}

// Delete asks the session to delete the chat and drops it from the cache.
func (c *Controller) Delete(ctx context.Context, chatID string) error {
	if err := c.session.DeleteChat(ctx, chatID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.chats[:0]
	for _, ch := range c.chats {
		if ch.ID != chatID {
			kept = append(kept, ch)
		}
	}
	c.chats = kept
	return nil
}

func (c *Controller) summarize(ch *domain.Chat) Summary {
	return Summary{
		ID:           ch.ID,
		Title:        ch.Title,
		MessageCount: len(ch.Messages),
		UpdatedAt:    ch.UpdatedAt,
		Active:       ch.ID == c.current,
	}
}

func (c *Controller) onRefresh(bus.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	c.Refresh(ctx)
}

func (c *Controller) onCurrentChat(e bus.Event) {
	c.mu.Lock()
	c.current = e.ChatID
	c.mu.Unlock()
}

func (c *Controller) onMessageCount(e bus.Event) {
	c.mu.Lock()
	c.messageCount = e.Count
	c.mu.Unlock()
}
