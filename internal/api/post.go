package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/scrivo-ai/scrivo/internal/content"
	"github.com/scrivo-ai/scrivo/internal/log"
	"github.com/scrivo-ai/scrivo/internal/media"
)

// DefaultRevisionLimit caps how many snapshots a listing returns unless
// the caller asks for fewer.
const (
	DefaultRevisionLimit = 10
	MaxRevisionLimit     = 50
)

// PostReader is the content surface the read-only post endpoints need.
type PostReader interface {
	Get(ctx context.Context, id int64) (*content.Post, error)
	Revisions(ctx context.Context, postID int64, limit int) ([]content.Revision, error)
	Restore(ctx context.Context, postID, revisionID int64) (*content.Post, error)
}

// MediaLister lists the media attached to a post.
type MediaLister interface {
	ForPost(ctx context.Context, postID int64) ([]media.Item, error)
}

// PostHandler exposes posts, their revision history and attached media.
// Mutation goes through the assistant's tools; these endpoints exist so a
// frontend can inspect what the assistant did and roll a post back.
type PostHandler struct {
	posts  PostReader
	media  MediaLister
	logger log.Logger
}

// NewPostHandler creates a post handler.
func NewPostHandler(posts PostReader, media MediaLister, logger log.Logger) *PostHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &PostHandler{posts: posts, media: media, logger: logger}
}

// RegisterRoutes registers post routes on the given mux.
func (h *PostHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/posts/{id}", h.get)
	mux.HandleFunc("GET /api/v1/posts/{id}/revisions", h.revisions)
	mux.HandleFunc("POST /api/v1/posts/{id}/revisions/{rev}/restore", h.restore)
	mux.HandleFunc("GET /api/v1/posts/{id}/media", h.listMedia)
}

// postID extracts the numeric path id, writing the error response itself
// when invalid.
func postID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed "+name)
		return 0, false
	}
	return id, true
}

func (h *PostHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r, "id")
	if !ok {
		return
	}
	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, content.ErrPostNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "post not found")
			return
		}
		h.logger.Error("failed to get post", "post_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) revisions(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r, "id")
	if !ok {
		return
	}
	limit := parseIntParam(r, "limit", DefaultRevisionLimit, 1, MaxRevisionLimit)
	revisions, err := h.posts.Revisions(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("failed to list revisions", "post_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list revisions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revisions": revisions, "total": len(revisions)})
}

func (h *PostHandler) restore(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r, "id")
	if !ok {
		return
	}
	revID, ok := postID(w, r, "rev")
	if !ok {
		return
	}
	post, err := h.posts.Restore(r.Context(), id, revID)
	if err != nil {
		switch {
		case errors.Is(err, content.ErrPostNotFound):
			writeError(w, http.StatusNotFound, "not_found", "post not found")
		case errors.Is(err, content.ErrRevisionNotFound):
			writeError(w, http.StatusNotFound, "not_found", "revision not found")
		default:
			h.logger.Error("failed to restore revision", "post_id", id, "revision_id", revID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to restore revision")
		}
		return
	}
	h.logger.Info("restored revision", "post_id", id, "revision_id", revID)
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) listMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r, "id")
	if !ok {
		return
	}
	items, err := h.media.ForPost(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list media", "post_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list media")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"media": items, "total": len(items)})
}
