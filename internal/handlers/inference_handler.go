package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/gateway"
	"github.com/iyunix/go-bluebox/internal/logger"
	"github.com/iyunix/go-bluebox/internal/metrics"
	"github.com/iyunix/go-bluebox/internal/services/ai"
)

// InferenceHandler serves POST /api/chat: it streams the provider's reply as
// a raw chunked text body.
type InferenceHandler struct {
	provider     ai.ChatStreamer
	systemPrompt string
	logger       logger.Logger
}

func NewInferenceHandler(provider ai.ChatStreamer, systemPrompt string, log logger.Logger) *InferenceHandler {
	return &InferenceHandler{
		provider:     provider,
		systemPrompt: systemPrompt,
		logger:       log.With("component", "inference_handler"),
	}
}

func (h *InferenceHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req gateway.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		h.count(http.StatusBadRequest)
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	messages := h.buildMessages(req)
	flusher, _ := w.(http.Flusher)
	started := false

	err := h.provider.StreamChat(r.Context(), messages, func(delta string) error {
		if !started {
			started = true
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(http.StatusOK)
		}
		if _, err := w.Write([]byte(delta)); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	switch {
	case err != nil && !started:
		h.logger.Error("inference failed before first byte", "turns", len(messages), "error", err)
		h.count(http.StatusInternalServerError)
		writeError(w, "Failed to process the request", http.StatusInternalServerError)
	case err != nil:
		// Headers are gone; ending the body is all that is left.
		h.logger.Warn("inference stream ended early", "error", err)
		h.count(http.StatusOK)
	default:
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
		}
		h.count(http.StatusOK)
	}
}

// buildMessages returns [system, ...history, user], keeping a system turn the
// caller already supplied.
func (h *InferenceHandler) buildMessages(req gateway.ChatRequest) []gateway.Turn {
	messages := make([]gateway.Turn, 0, len(req.History)+2)
	if len(req.History) == 0 || req.History[0].Role != domain.RoleSystem {
		messages = append(messages, gateway.Turn{Role: domain.RoleSystem, Content: h.systemPrompt})
	}
	for _, t := range req.History {
		if t.Content == "" {
			continue
		}
		messages = append(messages, t)
	}
	return append(messages, gateway.Turn{Role: domain.RoleUser, Content: req.Message})
}

func (h *InferenceHandler) count(status int) {
	metrics.InferenceRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}
