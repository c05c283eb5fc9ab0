package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/nkontos/persona-engine/internal/engine"
)

// Handler exposes the engine over HTTP.
type Handler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func New(eng *engine.Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: eng, logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

// Chat handles POST /chat: one request, one full cascade.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req engine.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	result, err := h.engine.Chat(r.Context(), req)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	status := http.StatusOK
	if result.TimedOut {
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, result)
}

func (h *Handler) writeError(w http.ResponseWriter, req engine.ChatRequest, err error) {
	var verr validation.Errors
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

	case errors.Is(err, engine.ErrOverloaded):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})

	default:
		h.logger.Error("Chat request failed",
			slog.String("key", req.Key),
			slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// Status handles GET /status with live engine state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already out; an encode failure here has nowhere to go.
	_ = json.NewEncoder(w).Encode(body)
}
