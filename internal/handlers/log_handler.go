package handlers

import (
	"net/http"
	"strings"

	"github.com/iyunix/go-bluebox/internal/logger"
)

// FrontendLogPayload defines the structure for logs coming from the browser.
type FrontendLogPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Context any    `json:"context,omitempty"`
}

type LogHandler struct {
	logger logger.Logger
}

func NewLogHandler(log logger.Logger) *LogHandler {
	return &LogHandler{logger: log.With("component", "client")}
}

// LogFrontendEvent handles incoming log requests from the frontend.
func (h *LogHandler) LogFrontendEvent(w http.ResponseWriter, r *http.Request) {
	var payload FrontendLogPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	switch strings.ToLower(payload.Level) {
	case "error":
		h.logger.Error(payload.Message, "context", payload.Context)
	case "warn", "warning":
		h.logger.Warn(payload.Message, "context", payload.Context)
	case "debug":
		h.logger.Debug(payload.Message, "context", payload.Context)
	default:
		h.logger.Info(payload.Message, "context", payload.Context)
	}

	w.WriteHeader(http.StatusNoContent)
}
