// File: internal/middleware/constants.go
package middleware

import (
	"context"

	"github.com/iyunix/go-bluebox/internal/domain"
)

// Context keys for middleware communication
type contextKey string

const (
	identityKey  contextKey = "identity"
	sessionIDKey contextKey = "session_id"
)

const (
	AuthCookieName    = "auth_token"
	SessionCookieName = "bluebox_session"
)

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom returns the request identity, or nil for guests.
func IdentityFrom(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(identityKey).(*domain.Identity)
	return id
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFrom returns the browser session id set by SessionCookie.
func SessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}
