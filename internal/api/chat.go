package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/scrivo-ai/scrivo/internal/llm"
	"github.com/scrivo-ai/scrivo/internal/log"
	"github.com/scrivo-ai/scrivo/internal/orchestrator"
	"github.com/scrivo-ai/scrivo/internal/session"
)

// MaxChatMessageLength bounds one user message.
const MaxChatMessageLength = 50_000

// ChatRunner runs one conversational exchange. The orchestrator satisfies it.
type ChatRunner interface {
	Run(ctx context.Context, req orchestrator.RunRequest) (*orchestrator.RunResult, error)
}

// ChatHandler handles the conversation endpoint.
type ChatHandler struct {
	runner ChatRunner
	posts  PostReader
	logger log.Logger
}

// NewChatHandler creates a chat handler. posts resolves a selected object
// id into the selected-post context note; nil disables that resolution.
func NewChatHandler(runner ChatRunner, posts PostReader, logger log.Logger) *ChatHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &ChatHandler{runner: runner, posts: posts, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/chat", h.chat)
}

// ChatRequest is the request body for one user message.
type ChatRequest struct {
	Message         string `json:"message"`
	SessionID       string `json:"session_id,omitempty"`
	Provider        string `json:"provider,omitempty"`
	Context         string `json:"context,omitempty"`
	SelectedContent string `json:"selected_content,omitempty"`

	// SelectedObjectID names the post the user has open in the editor; it
	// is resolved to a context note through the content store.
	SelectedObjectID int64 `json:"selected_object_id,omitempty"`

	// UploadedFiles are textual summaries of uploaded files, passed
	// through as context notes.
	UploadedFiles []string `json:"uploaded_files,omitempty"`

	// ThinkingDegree maps 0..100 onto generation parameters. Explicit
	// settings below win over the degree mapping.
	ThinkingDegree *int `json:"thinking_degree,omitempty"`

	Settings llm.Overrides `json:"settings"`
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	if len(req.Message) > MaxChatMessageLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "message too long")
		return
	}

	overrides := req.Settings
	if req.ThinkingDegree != nil {
		mapped := llm.SettingsFromDegree(*req.ThinkingDegree)
		if overrides.Temperature == nil {
			overrides.Temperature = &mapped.Temperature
		}
		if overrides.TopP == nil {
			overrides.TopP = &mapped.TopP
		}
		if overrides.MaxTokens == nil {
			overrides.MaxTokens = &mapped.MaxTokens
		}
	}

	result, err := h.runner.Run(r.Context(), orchestrator.RunRequest{
		SessionID:       req.SessionID,
		Message:         req.Message,
		Provider:        req.Provider,
		Context:         req.Context,
		SelectedContent: req.SelectedContent,
		SelectedPost:    h.selectedPostNote(r.Context(), req.SelectedObjectID),
		FileSummaries:   req.UploadedFiles,
		Overrides:       overrides,
	})
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// selectedPostNote resolves a selected object id to its context note.
// Lookup failures degrade to no note; the conversation still runs.
func (h *ChatHandler) selectedPostNote(ctx context.Context, id int64) string {
	if id <= 0 || h.posts == nil {
		return ""
	}
	post, err := h.posts.Get(ctx, id)
	if err != nil {
		h.logger.Warn("resolving selected post failed", "post_id", id, "error", err)
		return ""
	}
	return fmt.Sprintf("ID %d, Title: %s, Status: %s", post.ID, post.Title, post.Status)
}

// writeRunError maps orchestrator failures to HTTP statuses. Provider
// errors pass through with their diagnostic kind and diagnostics attached.
func (h *ChatHandler) writeRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrInvalidID) {
		writeError(w, http.StatusBadRequest, "invalid_session", err.Error())
		return
	}
	if errors.Is(err, llm.ErrUnknownProvider) {
		writeError(w, http.StatusBadRequest, "unknown_provider", err.Error())
		return
	}
	if apiErr, ok := llm.AsAPIError(err); ok {
		status := http.StatusBadGateway
		if apiErr.Kind == llm.ErrKindMissingCredentials {
			status = http.StatusUnprocessableEntity
		}
		h.logger.Error("provider call failed", "kind", apiErr.Kind, "error", err)
		writeProviderError(w, status, string(apiErr.Kind), apiErr.Message, apiErr.Diagnostics)
		return
	}
	h.logger.Error("chat run failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "failed to process message")
}
