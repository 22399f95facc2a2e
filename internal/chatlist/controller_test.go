package chatlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/iyunix/go-bluebox/internal/bus"
	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/gateway"
	"github.com/iyunix/go-bluebox/internal/logger"
	"github.com/iyunix/go-bluebox/internal/session"
	"github.com/iyunix/go-bluebox/internal/store"
)

var alice = &domain.Identity{UserID: "user-alice", Username: "alice"}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "bluebox.db"), gormlogger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return store.New(db, logger.Nop())
}

func seedChat(t *testing.T, st store.ConversationStore, owner string, texts ...string) string {
	t.Helper()
	ctx := context.Background()
	id, err := st.CreateChat(ctx, owner)
	require.NoError(t, err)
	for _, text := range texts {
		_, err := st.AppendMessage(ctx, id, domain.Message{Role: domain.RoleUser, Content: text})
		require.NoError(t, err)
	}
	return id
}

type fakeSession struct {
	loaded    []string
	created   int
	deleted   []string
	deleteErr error
	st        store.ConversationStore
}

func (f *fakeSession) LoadChat(ctx context.Context, id string) error {
	f.loaded = append(f.loaded, id)
	return nil
}

func (f *fakeSession) CreateNewChat(ctx context.Context) error {
	f.created++
	return nil
}

func (f *fakeSession) DeleteChat(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return f.st.DeleteChat(ctx, id)
}

type failingCleanup struct {
	store.ConversationStore
}

func (failingCleanup) CleanupEmptyChats(ctx context.Context, owner string, keep ...string) (int, error) {
	return 0, store.ErrStoreUnavailable
}

func ids(chats []Summary) []string {
	out := make([]string, len(chats))
	for i, c := range chats {
		out[i] = c.ID
	}
	return out
}

func TestActivateCleansUpThenLists(t *testing.T) {
	st := newStore(t)
	full := seedChat(t, st, alice.UserID, "hello")
	current := seedChat(t, st, alice.UserID)
	seedChat(t, st, alice.UserID)
	seedChat(t, st, alice.UserID)

	c := New(st, bus.New(logger.Nop()), &fakeSession{st: st}, logger.Nop())
	c.Activate(context.Background(), alice, current)

	assert.ElementsMatch(t, []string{full, current}, ids(c.All()))
	assert.ElementsMatch(t, []string{full, current}, ids(c.Visible().Chats))
}

func TestActivateFallsBackWhenCleanupFails(t *testing.T) {
	st := newStore(t)
	full := seedChat(t, st, alice.UserID, "hello")
	empty := seedChat(t, st, alice.UserID)

	c := New(failingCleanup{st}, bus.New(logger.Nop()), &fakeSession{st: st}, logger.Nop())
	c.Activate(context.Background(), alice, "")

	assert.ElementsMatch(t, []string{full, empty}, ids(c.All()))
	assert.Equal(t, []string{full}, ids(c.Visible().Chats))
}

func TestGuestHasNoChats(t *testing.T) {
	st := newStore(t)
	seedChat(t, st, alice.UserID, "hello")
	events := bus.New(logger.Nop())

	c := New(st, events, &fakeSession{st: st}, logger.Nop())
	c.Activate(context.Background(), nil, "")
	events.Publish(bus.Refresh())

	assert.Empty(t, c.All())
	assert.Empty(t, c.Visible().Chats)
}

func TestVisibleFilterAndCap(t *testing.T) {
	st := newStore(t)
	events := bus.New(logger.Nop())
	c := New(st, events, &fakeSession{st: st}, logger.Nop())
	c.Activate(context.Background(), alice, "")

	for i := 0; i < 20; i++ {
		seedChat(t, st, alice.UserID, fmt.Sprintf("question %d", i))
	}
	current := seedChat(t, st, alice.UserID)
	seedChat(t, st, alice.UserID)

	events.Publish(bus.CurrentChat(current))
	events.Publish(bus.Refresh())

	assert.Len(t, c.All(), 22)

	view := c.Visible()
	assert.Len(t, view.Chats, MaxVisible)
	assert.Equal(t, 6, view.Overflow)
	// Newest first, so the empty active chat leads the list.
	assert.Equal(t, current, view.Chats[0].ID)
	assert.True(t, view.Chats[0].Active)
	for _, s := range view.Chats[1:] {
		assert.Positive(t, s.MessageCount)
		assert.False(t, s.Active)
	}
}

func TestRefreshOnlyWhileActive(t *testing.T) {
	st := newStore(t)
	events := bus.New(logger.Nop())
	c := New(st, events, &fakeSession{st: st}, logger.Nop())
	c.Activate(context.Background(), alice, "")
	assert.Empty(t, c.All())

	first := seedChat(t, st, alice.UserID, "first")
	events.Publish(bus.Refresh())
	assert.Equal(t, []string{first}, ids(c.All()))

	c.Deactivate()
	assert.Zero(t, events.Len(bus.RefreshChatList))
	assert.Zero(t, events.Len(bus.CurrentChatChanged))

	seedChat(t, st, alice.UserID, "second")
	events.Publish(bus.Refresh())
	events.Publish(bus.CurrentChat("ignored"))
	assert.Empty(t, c.All())
	assert.Empty(t, c.CurrentChatID())
}

func TestActivateTwiceDoesNotDoubleSubscribe(t *testing.T) {
	st := newStore(t)
	events := bus.New(logger.Nop())
	c := New(st, events, &fakeSession{st: st}, logger.Nop())

	c.Activate(context.Background(), alice, "")
	c.Activate(context.Background(), alice, "")
	assert.Equal(t, 1, events.Len(bus.RefreshChatList))
}

func TestTracksSessionEvents(t *testing.T) {
	st := newStore(t)
	events := bus.New(logger.Nop())
	c := New(st, events, &fakeSession{st: st}, logger.Nop())
	c.Activate(context.Background(), alice, "")

	events.Publish(bus.CurrentChat("chat-9"))
	events.Publish(bus.MessageCount(3))
	events.Publish(bus.MessageCount(3))

	assert.Equal(t, "chat-9", c.CurrentChatID())
	assert.Equal(t, 3, c.MessageCount())
}

func TestActionsDelegateToSession(t *testing.T) {
	st := newStore(t)
	keep := seedChat(t, st, alice.UserID, "keep")
	drop := seedChat(t, st, alice.UserID, "drop")
	sess := &fakeSession{st: st}

	c := New(st, bus.New(logger.Nop()), sess, logger.Nop())
	c.Activate(context.Background(), alice, "")
	require.Len(t, c.All(), 2)

	require.NoError(t, c.Select(context.Background(), keep))
	require.NoError(t, c.NewChat(context.Background()))
	require.NoError(t, c.Delete(context.Background(), drop))

	assert.Equal(t, []string{keep}, sess.loaded)
	assert.Equal(t, 1, sess.created)
	assert.Equal(t, []string{drop}, sess.deleted)
	assert.Equal(t, []string{keep}, ids(c.All()))
}

func TestDeleteFailureKeepsCache(t *testing.T) {
	st := newStore(t)
	id := seedChat(t, st, alice.UserID, "hello")
	sess := &fakeSession{st: st, deleteErr: errors.New("offline")}

	c := New(st, bus.New(logger.Nop()), sess, logger.Nop())
	c.Activate(context.Background(), alice, "")

	assert.Error(t, c.Delete(context.Background(), id))
	assert.Equal(t, []string{id}, ids(c.All()))
}

type oneShotGateway struct{ reply string }

func (g oneShotGateway) StreamReply(ctx context.Context, history []gateway.Turn) (gateway.Stream, error) {
	return &oneShotStream{reply: g.reply}, nil
}

type oneShotStream struct {
	reply string
	done  bool
}

func (s *oneShotStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	s.done = true
	return s.reply, nil
}

func (s *oneShotStream) Close() error { return nil }

func TestFollowsSessionThroughBus(t *testing.T) {
	st := newStore(t)
	events := bus.New(logger.Nop())
	sess := session.New(alice, st, oneShotGateway{reply: "Rest."}, events, session.Config{}, logger.Nop())
	list := New(st, events, sess, logger.Nop())
	ctx := context.Background()

	list.Activate(ctx, alice, sess.ActiveChatID())
	assert.Empty(t, list.Visible().Chats)

	require.NoError(t, sess.SendMessage(ctx, "I have a headache", nil))

	view := list.Visible()
	require.Len(t, view.Chats, 1)
	assert.Equal(t, "I have a headache", view.Chats[0].Title)
	assert.Equal(t, 2, view.Chats[0].MessageCount)
	assert.True(t, view.Chats[0].Active)
	assert.Equal(t, 2, list.MessageCount())

	// A new empty chat is listed because it is active.
	require.NoError(t, list.NewChat(ctx))
	view = list.Visible()
	require.Len(t, view.Chats, 2)
	assert.Equal(t, sess.ActiveChatID(), view.Chats[0].ID)

	require.NoError(t, list.Delete(ctx, sess.ActiveChatID()))
	assert.Len(t, list.All(), 2)
	assert.NotEmpty(t, sess.ActiveChatID())
}
