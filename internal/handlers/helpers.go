package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iyunix/go-bluebox/internal/gateway"
	"github.com/iyunix/go-bluebox/internal/session"
	"github.com/iyunix/go-bluebox/internal/store"
)

const maxBodyBytes = 1 << 20

// writeJSON is a helper for sending JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError is a helper for sending JSON error responses.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// statusFor maps session engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, gateway.ErrTransport), errors.Is(err, gateway.ErrStreamInterrupted):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	switch statusFor(err) {
	case http.StatusBadRequest:
		return "Message cannot be empty"
	case http.StatusUnauthorized:
		return "Sign in to manage saved chats"
	case http.StatusNotFound:
		return "Chat not found"
	case http.StatusConflict:
		return "A reply is still in progress"
	case http.StatusServiceUnavailable:
		return "Chat history is unavailable right now"
	case http.StatusBadGateway:
		return "The assistant could not be reached"
	default:
		return "Something went wrong"
	}
}
