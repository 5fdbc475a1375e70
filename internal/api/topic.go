package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/scrivo-ai/scrivo/internal/log"
	"github.com/scrivo-ai/scrivo/internal/topic"
)

// TopicStore is the topic surface the handler needs. The topic store
// satisfies it.
type TopicStore interface {
	Create(ctx context.Context, name, description, prompt string) (*topic.Topic, error)
	Get(ctx context.Context, id int64) (*topic.Topic, error)
	Update(ctx context.Context, id int64, name, description, prompt string) (*topic.Topic, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]topic.Topic, error)
}

// TopicHandler handles topic CRUD endpoints.
type TopicHandler struct {
	store  TopicStore
	logger log.Logger
}

// NewTopicHandler creates a topic handler.
func NewTopicHandler(store TopicStore, logger log.Logger) *TopicHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &TopicHandler{store: store, logger: logger}
}

// RegisterRoutes registers topic routes on the given mux.
func (h *TopicHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/topics", h.list)
	mux.HandleFunc("POST /api/v1/topics", h.create)
	mux.HandleFunc("GET /api/v1/topics/{id}", h.get)
	mux.HandleFunc("PUT /api/v1/topics/{id}", h.update)
	mux.HandleFunc("DELETE /api/v1/topics/{id}", h.delete)
}

// topicID extracts the numeric path id, writing the error response itself
// when invalid.
func topicID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed topic id")
		return 0, false
	}
	return id, true
}

// TopicRequest is the request body for creating or updating a topic.
type TopicRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

func (h *TopicHandler) list(w http.ResponseWriter, r *http.Request) {
	topics, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list topics", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list topics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics, "total": len(topics)})
}

func (h *TopicHandler) create(w http.ResponseWriter, r *http.Request) {
	var req TopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	created, err := h.store.Create(r.Context(), req.Name, req.Description, req.Prompt)
	if err != nil {
		h.logger.Error("failed to create topic", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create topic")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *TopicHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := topicID(w, r)
	if !ok {
		return
	}
	tp, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, topic.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "topic not found")
			return
		}
		h.logger.Error("failed to get topic", "topic_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get topic")
		return
	}
	writeJSON(w, http.StatusOK, tp)
}

func (h *TopicHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := topicID(w, r)
	if !ok {
		return
	}
	var req TopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	updated, err := h.store.Update(r.Context(), id, req.Name, req.Description, req.Prompt)
	if err != nil {
		if errors.Is(err, topic.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "topic not found")
			return
		}
		h.logger.Error("failed to update topic", "topic_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update topic")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *TopicHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := topicID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, topic.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "topic not found")
			return
		}
		h.logger.Error("failed to delete topic", "topic_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete topic")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
