// Package workspace keeps one session bundle (bus, session controller and
// chat list) per browser session.
package workspace

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/iyunix/go-bluebox/internal/bus"
	"github.com/iyunix/go-bluebox/internal/chatlist"
	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/gateway"
	"github.com/iyunix/go-bluebox/internal/logger"
	"github.com/iyunix/go-bluebox/internal/metrics"
	"github.com/iyunix/go-bluebox/internal/session"
	"github.com/iyunix/go-bluebox/internal/store"
)

// Workspace wires a session controller and its chat list through a private bus.
type Workspace struct {
	ID      string
	Bus     *bus.Bus
	Session *session.Controller
	List    *chatlist.Controller
}

func (w *Workspace) ownedBy(identity *domain.Identity) bool {
	current := w.Session.Identity()
	if current == nil || identity == nil {
		return current == nil && identity == nil
	}
	return current.UserID == identity.UserID
}

func (w *Workspace) close() {
	w.List.Deactivate()
}

// Registry is an LRU of workspaces keyed by session ID. Evicted workspaces
// are deactivated; a send already running on one still completes.
type Registry struct {
	mu     sync.Mutex
	cache  *lru.Cache
	store  store.ConversationStore
	gw     gateway.Gateway
	config session.Config
	logger logger.Logger
}

func NewRegistry(size int, conversations store.ConversationStore, gw gateway.Gateway, config session.Config, log logger.Logger) (*Registry, error) {
	r := &Registry{
		store:  conversations,
		gw:     gw,
		config: config,
		logger: log.With("component", "workspace_registry"),
	}
	cache, err := lru.NewWithEvict(size, r.onEvict)
	if err != nil {
		return nil, err
	}
	r.cache = cache
	return r, nil
}

// Acquire returns the workspace for sessionID, building a new one when none
// exists or when the identity changed since it was built.
func (r *Registry) Acquire(ctx context.Context, sessionID string, identity *domain.Identity) *Workspace {
	if ws, ok := r.lookup(sessionID); ok && ws.ownedBy(identity) {
		return ws
	}

	// Built outside the lock: activation lists chats from the store.
	built := r.build(ctx, sessionID, identity)

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache.Get(sessionID); ok {
		existing := v.(*Workspace)
		if existing.ownedBy(identity) {
			built.close()
			return existing
		}
		r.cache.Remove(sessionID)
	}
	r.cache.Add(sessionID, built)
	metrics.ActiveWorkspaces.Inc()
	return built
}

// Get returns the workspace for sessionID without creating one.
func (r *Registry) Get(sessionID string) (*Workspace, bool) {
	return r.lookup(sessionID)
}

// Drop deactivates and forgets the workspace for sessionID.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(sessionID)
}

func (r *Registry) Len() int {
	return r.cache.Len()
}

func (r *Registry) lookup(sessionID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.cache.Get(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*Workspace), true
}

func (r *Registry) build(ctx context.Context, sessionID string, identity *domain.Identity) *Workspace {
	log := r.logger.With("workspace", sessionID)
	b := bus.New(log)
	sess := session.New(identity, r.store, r.gw, b, r.config, log)
	list := chatlist.New(r.store, b, sess, log)
	list.Activate(ctx, identity, sess.ActiveChatID())

	log.Debug("workspace created", "authenticated", identity != nil)
	return &Workspace{ID: sessionID, Bus: b, Session: sess, List: list}
}

func (r *Registry) onEvict(key interface{}, value interface{}) {
	ws := value.(*Workspace)
	ws.close()
	metrics.ActiveWorkspaces.Dec()
	r.logger.Debug("workspace released", "workspace", key)
}
