package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scrivo-ai/scrivo/internal/log"
	"github.com/scrivo-ai/scrivo/internal/session"
)

// History listing bounds.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 20
)

// SessionStore is the session surface the handler needs. The session
// store satisfies it.
type SessionStore interface {
	History(ctx context.Context, sessionID string, limit int) ([]session.Turn, error)
	Clear(ctx context.Context, sessionID string) error
	Delete(ctx context.Context, sessionID string) error
	Sessions(ctx context.Context) ([]session.Info, error)
	SetTopic(ctx context.Context, sessionID string, topicID *int64) error
	ExportSession(ctx context.Context, sessionID string) (*session.Export, error)
	ImportSession(ctx context.Context, doc *session.Export) (string, error)
}

// SessionHandler handles session management endpoints.
type SessionHandler struct {
	store  SessionStore
	logger log.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(store SessionStore, logger log.Logger) *SessionHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &SessionHandler{store: store, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/sessions", h.list)
	mux.HandleFunc("GET /api/v1/sessions/{id}/history", h.history)
	mux.HandleFunc("GET /api/v1/sessions/{id}/export", h.export)
	mux.HandleFunc("POST /api/v1/sessions/import", h.importSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/clear", h.clear)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/topic", h.setTopic)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.delete)
}

// sessionID extracts and validates the path id. Writes the error response
// itself and returns "" when invalid.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	id := r.PathValue("id")
	if !session.ValidID(id) {
		writeError(w, http.StatusBadRequest, "invalid_session", "malformed session id")
		return ""
	}
	return id
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions(r.Context())
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

func (h *SessionHandler) history(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	if id == "" {
		return
	}
	limit := parseIntParam(r, "limit", DefaultHistoryLimit, 1, MaxHistoryLimit)

	turns, err := h.store.History(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("failed to load history", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      turns,
	})
}

func (h *SessionHandler) export(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	if id == "" {
		return
	}
	doc, err := h.store.ExportSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		h.logger.Error("failed to export session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to export session")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *SessionHandler) importSession(w http.ResponseWriter, r *http.Request) {
	var doc session.Export
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	newID, err := h.store.ImportSession(r.Context(), &doc)
	if err != nil {
		if errors.Is(err, session.ErrInvalidExport) {
			writeError(w, http.StatusBadRequest, "invalid_export", err.Error())
			return
		}
		h.logger.Error("failed to import session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to import session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": newID})
}

func (h *SessionHandler) clear(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	if id == "" {
		return
	}
	if err := h.store.Clear(r.Context(), id); err != nil {
		h.logger.Error("failed to clear session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to clear session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "cleared"})
}

// SetTopicRequest is the request body for assigning a topic. A null
// topic_id detaches the session from its topic.
type SetTopicRequest struct {
	TopicID *int64 `json:"topic_id"`
}

func (h *SessionHandler) setTopic(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	if id == "" {
		return
	}
	var req SetTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if err := h.store.SetTopic(r.Context(), id, req.TopicID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		h.logger.Error("failed to set topic", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to set topic")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "topic_id": req.TopicID})
}

func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	if id == "" {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		h.logger.Error("failed to delete session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
