package api

import (
	"context"
	"net/http"

	"github.com/scrivo-ai/scrivo/internal/audit"
	"github.com/scrivo-ai/scrivo/internal/log"
)

// Audit listing bounds.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 200
)

// AuditReader is the audit surface the handler needs.
type AuditReader interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]audit.Entry, error)
}

// AuditHandler handles the audit log endpoint.
type AuditHandler struct {
	reader AuditReader
	logger log.Logger
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(reader AuditReader, logger log.Logger) *AuditHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &AuditHandler{reader: reader, logger: logger}
}

// RegisterRoutes registers audit routes on the given mux.
func (h *AuditHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/audit", h.list)
}

// list returns recent tool executions, optionally filtered by session.
func (h *AuditHandler) list(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	limit := parseIntParam(r, "limit", DefaultAuditLimit, 1, MaxAuditLimit)

	entries, err := h.reader.Recent(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("failed to read audit log", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read audit log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": len(entries)})
}
