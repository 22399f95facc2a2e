// File: internal/handlers/auth_handlers.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/logger"
	"github.com/iyunix/go-bluebox/internal/middleware"
	"github.com/iyunix/go-bluebox/internal/services/user_services"
)

// Authenticator is the part of the auth service the handlers use.
type Authenticator interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.User, string, error)
}

// AuthHandler holds the dependencies for authentication handlers.
type AuthHandler struct {
	auth         Authenticator
	workspaces   Workspaces
	secureCookie bool
	logger       logger.Logger
}

func NewAuthHandler(auth Authenticator, workspaces Workspaces, secureCookie bool, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		workspaces:   workspaces,
		secureCookie: secureCookie,
		logger:       log.With("component", "auth_handler"),
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	u, err := h.auth.Register(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, user_services.ErrInvalidInput):
		writeError(w, "Username must be 3-20 characters, alphanumeric or underscore, and password at least 8 characters.", http.StatusBadRequest)
		return
	case errors.Is(err, user_services.ErrUsernameTaken):
		writeError(w, "Username is already taken", http.StatusConflict)
		return
	case err != nil:
		writeError(w, "Registration failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{ID: u.ID, Username: u.Username})
}

// Login validates credentials and sets the auth cookie. The next session
// request rebuilds the workspace for the new identity.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	u, token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, user_services.ErrInvalidCredentials) {
			writeError(w, "Invalid username or password.", http.StatusUnauthorized)
			return
		}
		writeError(w, "Login failed", http.StatusInternalServerError)
		return
	}

	middleware.SetAuthCookie(w, token, h.secureCookie)
	writeJSON(w, http.StatusOK, userResponse{ID: u.ID, Username: u.Username})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearAuthCookie(w, h.secureCookie)
	if id := middleware.SessionIDFrom(r.Context()); id != "" {
		h.workspaces.Drop(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in identity.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	if identity == nil {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: identity.UserID, Username: identity.Username})
}
