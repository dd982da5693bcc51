package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/pensiv/pensiv/internal/reasoning"
)

// maxThoughtBodySize caps the request body for thought submissions (1MB).
const maxThoughtBodySize = 1 << 20

// reasoningHandler serves the reasoning chain endpoints.
type reasoningHandler struct {
	engine *reasoning.Engine
	logger *slog.Logger
}

// thoughtRequest is the POST body for recording a thought.
type thoughtRequest struct {
	Thought    string `json:"thought"`
	Operation  string `json:"operation,omitempty"`
	BranchFrom *int   `json:"branch_from,omitempty"`
}

// thoughtResponse describes the applied operation.
type thoughtResponse struct {
	SessionID      string `json:"session_id"`
	Step           int    `json:"step"`
	Merged         bool   `json:"merged"`
	Thoughts       int    `json:"thoughts"`
	Tokens         int    `json:"tokens"`
	Transcript     string `json:"transcript"`
	FullyPersisted bool   `json:"fully_persisted"`
}

// postThought handles POST /api/v1/reasoning/{session}/thoughts.
func (h *reasoningHandler) postThought(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")

	var req thoughtRequest
	body := http.MaxBytesReader(w, r.Body, maxThoughtBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds 1MB", h.logger)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON", h.logger)
		return
	}
	// Reject trailing garbage after the JSON object.
	if err := json.NewDecoder(body).Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "invalid_json", "request body must be a single JSON object", h.logger)
		return
	}

	op, err := reasoning.ParseOperation(req.Operation)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_operation",
			"operation must be 'append', 'revise', or 'branch'", h.logger)
		return
	}

	result, err := h.engine.Think(r.Context(), reasoning.Request{
		SessionID:  sessionID,
		Text:       req.Thought,
		Operation:  op,
		BranchFrom: req.BranchFrom,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Merged {
		status = http.StatusOK
	}
	WriteJSON(w, status, thoughtResponse{
		SessionID:      sessionID,
		Step:           result.Thought.Step,
		Merged:         result.Merged,
		Thoughts:       result.Chain.Len(),
		Tokens:         result.Chain.TokenCount(),
		Transcript:     result.Transcript,
		FullyPersisted: result.Save.FullyPersisted(),
	})
}

// getChain handles GET /api/v1/reasoning/{session}.
func (h *reasoningHandler) getChain(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")

	transcript := h.engine.Review(r.Context(), sessionID)
	stats := h.engine.Stats(r.Context(), sessionID)

	WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": stats.SessionID,
		"transcript": transcript,
		"stats":      stats,
	})
}

// deleteChain handles DELETE /api/v1/reasoning/{session}.
func (h *reasoningHandler) deleteChain(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")

	if err := h.engine.Clear(r.Context(), sessionID); err != nil {
		h.logger.Error("clearing session failed", "session_id", sessionID, "error", err)
		WriteError(w, http.StatusInternalServerError, "clear_failed", "failed to clear session", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listSessions handles GET /api/v1/reasoning.
func (h *reasoningHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := h.engine.Sessions(r.Context())
	if err != nil {
		h.logger.Error("listing sessions failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list sessions", h.logger)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

// writeEngineError maps engine sentinel errors to HTTP statuses. Budget
// and depth violations are conflicts with the chain's current state, not
// malformed requests.
func (h *reasoningHandler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reasoning.ErrEmptyThought):
		WriteError(w, http.StatusBadRequest, "empty_thought", "thought text must be non-empty", h.logger)
	case errors.Is(err, reasoning.ErrInvalidIndex):
		WriteError(w, http.StatusBadRequest, "invalid_index", "branch_from does not reference an existing thought", h.logger)
	case errors.Is(err, reasoning.ErrUnknownOperation):
		WriteError(w, http.StatusBadRequest, "invalid_operation", "operation must be 'append', 'revise', or 'branch'", h.logger)
	case errors.Is(err, reasoning.ErrDepthExceeded):
		WriteError(w, http.StatusConflict, "depth_exceeded", "chain has reached its maximum depth", h.logger)
	case errors.Is(err, reasoning.ErrTokenBudgetExceeded):
		WriteError(w, http.StatusConflict, "token_budget_exceeded", "chain has exhausted its token budget", h.logger)
	default:
		h.logger.Error("thought submission failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
	}
}
