package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/gateway"
	"github.com/iyunix/go-bluebox/internal/logger"
	"github.com/iyunix/go-bluebox/internal/middleware"
	"github.com/iyunix/go-bluebox/internal/session"
	"github.com/iyunix/go-bluebox/internal/store"
	"github.com/iyunix/go-bluebox/internal/workspace"
)

const browserID = "browser-1"

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "bluebox.db"), gormlogger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newRegistry(t *testing.T, db *gorm.DB, gw gateway.Gateway) *workspace.Registry {
	t.Helper()
	r, err := workspace.NewRegistry(16, store.New(db, logger.Nop()), gw, session.Config{SystemPrompt: "be kind"}, logger.Nop())
	require.NoError(t, err)
	return r
}

// as runs h with the browser session and identity middleware would attach.
func as(identity *domain.Identity, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.WithSessionID(r.Context(), browserID)
		if identity != nil {
			ctx = middleware.WithIdentity(ctx, identity)
		}
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// fragmentGateway replies with fixed fragments, or fails to connect when err is set.
type fragmentGateway struct {
	fragments []string
	err       error
}

func (g fragmentGateway) StreamReply(ctx context.Context, history []gateway.Turn) (gateway.Stream, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &fragmentStream{fragments: g.fragments}, nil
}

type fragmentStream struct {
	fragments []string
	pos       int
}

func (s *fragmentStream) Recv() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	s.pos++
	return s.fragments[s.pos-1], nil
}

func (s *fragmentStream) Close() error { return nil }

func sessionRouter(h *SessionHandler) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/session").Subrouter()
	api.HandleFunc("", h.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/input", h.SetInput).Methods(http.MethodPut)
	api.HandleFunc("/messages", h.SendMessage).Methods(http.MethodPost)
	api.HandleFunc("/chats", h.ListChats).Methods(http.MethodGet)
	api.HandleFunc("/chats", h.NewChat).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id}/load", h.LoadChat).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id}", h.DeleteChat).Methods(http.MethodDelete)
	return r
}

func newServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}
