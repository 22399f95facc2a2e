package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/iyunix/go-bluebox/internal/bus"
	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/gateway"
	"github.com/iyunix/go-bluebox/internal/store"
)

// memoryStore is an in-memory ConversationStore with failure injection.
type memoryStore struct {
	mu      sync.Mutex
	chats   map[string]*domain.Chat
	nextID  int
	appends []domain.Message
	creates int
	deletes int

	createErr error
	appendErr func(domain.Message) error
	getErr    error
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{chats: make(map[string]*domain.Chat)}
}

func (s *memoryStore) seed(owner string, msgs ...domain.Message) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("chat-%d", s.nextID)
	s.chats[id] = &domain.Chat{ID: id, OwnerID: owner, Title: domain.PlaceholderTitle, Messages: msgs}
	return id
}

func (s *memoryStore) CreateChat(ctx context.Context, owner string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.createErr != nil {
		return "", s.createErr
	}
	s.nextID++
	id := fmt.Sprintf("chat-%d", s.nextID)
	s.chats[id] = &domain.Chat{ID: id, OwnerID: owner, Title: domain.PlaceholderTitle}
	return id, nil
}

func (s *memoryStore) ListChats(ctx context.Context, owner string) []domain.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Chat{}
	for _, c := range s.chats {
		if c.OwnerID == owner {
			out = append(out, *c)
		}
	}
	return out
}

func (s *memoryStore) GetChat(ctx context.Context, id string) (*domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	c, ok := s.chats[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, store.ErrNotFound)
	}
	cp := *c
	cp.Messages = append([]domain.Message(nil), c.Messages...)
	return &cp, nil
}

func (s *memoryStore) AppendMessage(ctx context.Context, id string, msg domain.Message) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		if err := s.appendErr(msg); err != nil {
			return nil, err
		}
	}
	c, ok := s.chats[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	msg.ChatID = id
	msg.ID = uint(len(s.appends) + 1)
	msg.CreatedAt = time.Date(2024, 3, 1, 9, 0, len(s.appends), 0, time.UTC)
	if len(c.Messages) == 0 && msg.Role == domain.RoleUser {
		c.Title = domain.DeriveTitle(msg.Content)
	}
	c.Messages = append(c.Messages, msg)
	s.appends = append(s.appends, msg)
	return &msg, nil
}

func (s *memoryStore) DeleteChat(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.chats, id)
	return nil
}

func (s *memoryStore) CleanupEmptyChats(ctx context.Context, owner string, keep ...string) (int, error) {
	return 0, nil
}

func (s *memoryStore) appended() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.appends...)
}

func (s *memoryStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chats[id]
	return ok
}

// scriptedGateway replies with fixed fragments and an optional terminal error.
type scriptedGateway struct {
	mu        sync.Mutex
	calls     int
	histories [][]gateway.Turn

	fragments []string
	finalErr  error
	openErr   error

	// started is signalled when a stream opens; release gates the first Recv.
	started chan struct{}
	release chan struct{}
	// hang makes Recv block until the stream context ends once the fragments run out.
	hang bool
}

func (g *scriptedGateway) StreamReply(ctx context.Context, history []gateway.Turn) (gateway.Stream, error) {
	g.mu.Lock()
	g.calls++
	g.histories = append(g.histories, history)
	g.mu.Unlock()

	if g.openErr != nil {
		return nil, g.openErr
	}
	if g.started != nil {
		g.started <- struct{}{}
	}
	return &scriptedStream{ctx: ctx, g: g}, nil
}

func (g *scriptedGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type scriptedStream struct {
	ctx      context.Context
	g        *scriptedGateway
	pos      int
	released bool
}

func (s *scriptedStream) Recv() (string, error) {
	if !s.released && s.g.release != nil {
		<-s.g.release
		s.released = true
	}
	if s.pos < len(s.g.fragments) {
		s.pos++
		return s.g.fragments[s.pos-1], nil
	}
	if s.g.hang {
		<-s.ctx.Done()
		return "", s.ctx.Err()
	}
	if s.g.finalErr != nil {
		return "", s.g.finalErr
	}
	return "", io.EOF
}

func (s *scriptedStream) Close() error { return nil }

// recorder collects bus events.
type recorder struct {
	mu     sync.Mutex
	events []bus.Event
}

func (r *recorder) Publish(e bus.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count(kind bus.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) last(kind bus.Kind) (bus.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return bus.Event{}, false
}

// drop removes a chat behind the controller's back.
func (s *memoryStore) drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, id)
}
