package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-bluebox/internal/auth"
	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/logger"
)

type stubResolver struct {
	identity *domain.Identity
	err      error
}

func (s stubResolver) Identify(ctx context.Context, token string) (*domain.Identity, error) {
	return s.identity, s.err
}

func captureIdentity(got **domain.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = IdentityFrom(r.Context())
	})
}

func TestIdentityMiddleware(t *testing.T) {
	alice := &domain.Identity{UserID: "u1", Username: "alice"}

	t.Run("no cookie is a guest", func(t *testing.T) {
		var got *domain.Identity
		h := NewIdentityMiddleware(stubResolver{identity: alice}, false, logger.Nop())(captureIdentity(&got))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Nil(t, got)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("valid token attaches identity", func(t *testing.T) {
		var got *domain.Identity
		h := NewIdentityMiddleware(stubResolver{identity: alice}, false, logger.Nop())(captureIdentity(&got))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "token"})
		h.ServeHTTP(httptest.NewRecorder(), req)
		require.NotNil(t, got)
		assert.Equal(t, "u1", got.UserID)
	})

	t.Run("invalid token clears cookie", func(t *testing.T) {
		var got *domain.Identity
		h := NewIdentityMiddleware(stubResolver{err: auth.ErrInvalidToken}, false, logger.Nop())(captureIdentity(&got))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "stale"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Nil(t, got)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, AuthCookieName, cookies[0].Name)
		assert.Empty(t, cookies[0].Value)
	})

	t.Run("lookup failure keeps cookie", func(t *testing.T) {
		var got *domain.Identity
		h := NewIdentityMiddleware(stubResolver{err: errors.New("db down")}, false, logger.Nop())(captureIdentity(&got))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "token"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Nil(t, got)
		assert.Empty(t, rec.Result().Cookies())
	})
}

func TestSessionCookie(t *testing.T) {
	var seen string
	h := SessionCookie(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Equal(t, cookies[0].Value, seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)

	issued := seen
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, issued, seen)
	assert.Empty(t, rec.Result().Cookies())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not-a-uuid"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "not-a-uuid", seen)
}

func TestLoggingMiddlewareKeepsFlusher(t *testing.T) {
	var flushable bool
	h := LoggingMiddleware(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, flushable)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRecoverPanic(t *testing.T) {
	h := RecoverPanic(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
