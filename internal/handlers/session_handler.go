package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/yuin/goldmark"

	"github.com/iyunix/go-bluebox/internal/chatlist"
	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/logger"
	"github.com/iyunix/go-bluebox/internal/middleware"
	"github.com/iyunix/go-bluebox/internal/session"
	"github.com/iyunix/go-bluebox/internal/workspace"
)

// Workspaces hands out the per-browser session bundle.
type Workspaces interface {
	Acquire(ctx context.Context, sessionID string, identity *domain.Identity) *workspace.Workspace
	Drop(sessionID string)
}

type SessionHandler struct {
	workspaces Workspaces
	markdown   goldmark.Markdown
	logger     logger.Logger
}

func NewSessionHandler(workspaces Workspaces, log logger.Logger) *SessionHandler {
	return &SessionHandler{
		workspaces: workspaces,
		markdown:   goldmark.New(),
		logger:     log.With("component", "session_handler"),
	}
}

type messageView struct {
	Role      domain.Role `json:"role"`
	Content   string      `json:"content"`
	HTML      string      `json:"html,omitempty"`
	Timestamp *time.Time  `json:"timestamp,omitempty"`
}

type sessionView struct {
	State         session.State `json:"state"`
	Messages      []messageView `json:"messages"`
	Input         string        `json:"input"`
	Partial       string        `json:"partial,omitempty"`
	ActiveChatID  string        `json:"active_chat_id,omitempty"`
	Authenticated bool          `json:"authenticated"`
	InputLocked   bool          `json:"input_locked"`
	Chats         chatlist.View `json:"chats"`
}

type inputRequest struct {
	Input string `json:"input"`
}

type sendRequest struct {
	Message *string `json:"message"`
}

func (h *SessionHandler) workspace(r *http.Request) *workspace.Workspace {
	ctx := r.Context()
	return h.workspaces.Acquire(ctx, middleware.SessionIDFrom(ctx), middleware.IdentityFrom(ctx))
}

// GetSession returns the current snapshot with assistant replies rendered.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view(h.workspace(r)))
}

func (h *SessionHandler) SetInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.workspace(r).Session.SetInput(req.Input)
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage runs one turn and streams it back as server-sent events:
// "delta" per fragment, then "done" or "error" with the final snapshot.
// Without a message field the pending input is submitted.
func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ws := h.workspace(r)
	sse := &eventWriter{w: w, flusher: flusher}
	onDelta := func(frag string) {
		sse.send("delta", map[string]string{"text": frag})
	}

	var err error
	if req.Message != nil {
		err = ws.Session.SendMessage(r.Context(), *req.Message, onDelta)
	} else {
		err = ws.Session.Submit(r.Context(), onDelta)
	}

	if err != nil && !sse.started && (errors.Is(err, session.ErrValidation) || errors.Is(err, session.ErrBusy)) {
		writeError(w, errorMessage(err), statusFor(err))
		return
	}
	if err != nil {
		h.logger.Warn("turn finished with error", "workspace", ws.ID, "error", err)
		sse.send("error", map[string]interface{}{
			"error":    errorMessage(err),
			"status":   statusFor(err),
			"snapshot": h.view(ws),
		})
		return
	}
	sse.send("done", map[string]interface{}{"snapshot": h.view(ws)})
}

func (h *SessionHandler) NewChat(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	if err := ws.List.NewChat(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(ws))
}

func (h *SessionHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.workspace(r).List.Visible())
}

func (h *SessionHandler) LoadChat(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	if err := ws.List.Select(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(ws))
}

func (h *SessionHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	if err := ws.List.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(ws))
}

func (h *SessionHandler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("session request failed", "error", err)
	}
	writeError(w, errorMessage(err), status)
}

func (h *SessionHandler) view(ws *workspace.Workspace) sessionView {
	snap := ws.Session.Snapshot()
	msgs := make([]messageView, len(snap.Messages))
	for i, m := range snap.Messages {
		msgs[i] = messageView{Role: m.Role, Content: m.Content}
		if !m.CreatedAt.IsZero() {
			ts := m.CreatedAt
			msgs[i].Timestamp = &ts
		}
		if m.Role == domain.RoleAssistant {
			msgs[i].HTML = h.render(m.Content)
		}
	}
	return sessionView{
		State:         snap.State,
		Messages:      msgs,
		Input:         snap.Input,
		Partial:       snap.Partial,
		ActiveChatID:  snap.ActiveChatID,
		Authenticated: snap.Authenticated,
		InputLocked:   snap.State.InputLocked(),
		Chats:         ws.List.Visible(),
	}
}

func (h *SessionHandler) render(content string) string {
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(content), &buf); err != nil {
		h.logger.Warn("markdown render failed", "error", err)
		return ""
	}
	return buf.String()
}

// eventWriter writes server-sent events, sending the stream headers on first use.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (e *eventWriter) send(event string, data interface{}) {
	if !e.started {
		e.started = true
		h := e.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		e.w.WriteHeader(http.StatusOK)
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, payload)
	e.flusher.Flush()
}
