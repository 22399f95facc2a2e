// Package bus is the in-process publish/subscribe channel that lets the
// session and chat list controllers talk without holding each other.
package bus

import (
	"runtime/debug"
	"sync"

	"github.com/iyunix/go-bluebox/internal/logger"
)

type Kind string

const (
	RefreshChatList     Kind = "refresh-chat-list"
	MessageCountChanged Kind = "message-count-changed"
	CurrentChatChanged  Kind = "current-chat-changed"
)

// Event is one notification. Count is set for MessageCountChanged and ChatID
// for CurrentChatChanged (empty when no chat is active).
type Event struct {
	Kind   Kind
	Count  int
	ChatID string
}

func Refresh() Event { return Event{Kind: RefreshChatList} }

func MessageCount(n int) Event { return Event{Kind: MessageCountChanged, Count: n} }

func CurrentChat(id string) Event { return Event{Kind: CurrentChatChanged, ChatID: id} }

type Handler func(Event)

// Publisher is the side of the bus the session controller needs.
type Publisher interface {
	Publish(Event)
}

// Subscriber is the side of the bus the chat list controller needs.
type Subscriber interface {
	Subscribe(kind Kind, h Handler) (unsubscribe func())
}

type subscription struct {
	id uint64
	h  Handler
}

// Bus delivers events synchronously, in subscription order, to the handlers
// registered for the event's kind. Handlers must tolerate repeated delivery.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[Kind][]subscription
	logger logger.Logger
}

func New(log logger.Logger) *Bus {
	return &Bus{
		subs:   make(map[Kind][]subscription),
		logger: log.With("component", "notification_bus"),
	}
}

// Subscribe registers h for kind. The returned function removes it and may be
// called any number of times.
func (b *Bus) Subscribe(kind Kind, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(kind, id) })
	}
}

// Publish is fire-and-forget: a panicking handler is logged and skipped.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs[e.Kind]))
	copy(subs, b.subs[e.Kind])
	b.mu.Unlock()

	for _, s := range subs {
		b.deliver(s, e)
	}
}

// Len reports how many handlers are registered for kind.
func (b *Bus) Len(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[kind])
}

func (b *Bus) deliver(s subscription, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("event handler panicked",
				"kind", string(e.Kind),
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.h(e)
}

func (b *Bus) remove(kind Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[kind]
	for i, s := range subs {
		if s.id == id {
			b.subs[kind] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[kind]) == 0 {
		delete(b.subs, kind)
	}
}
