package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/iyunix/go-bluebox/internal/auth"
	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/logger"
)

// IdentityResolver turns an auth token into an identity.
type IdentityResolver interface {
	Identify(ctx context.Context, token string) (*domain.Identity, error)
}

// NewIdentityMiddleware attaches the identity from the auth cookie to the
// request context. Requests without a valid token continue as guests.
func NewIdentityMiddleware(resolver IdentityResolver, secure bool, log logger.Logger) func(http.Handler) http.Handler {
	log = log.With("component", "auth_middleware")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(AuthCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := resolver.Identify(r.Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidToken) {
					log.Debug("invalid auth token, continuing as guest", "path", r.URL.Path)
					ClearAuthCookie(w, secure)
				} else {
					log.Error("failed to resolve identity", "path", r.URL.Path, "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// SetAuthCookie stores a signed token in the auth cookie.
func SetAuthCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Expires:  time.Now().Add(auth.TokenTTL),
		HttpOnly: true,
		Secure:   secure,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearAuthCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
