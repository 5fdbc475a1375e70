package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/scrivo-ai/scrivo/internal/llm"
	"github.com/scrivo-ai/scrivo/internal/log"
)

// ProviderService is the dispatcher surface the handler needs.
type ProviderService interface {
	Providers() []string
	TestConnection(ctx context.Context, provider string) error
	LastDiagnostics() llm.Diagnostics
}

// ProviderHandler handles provider inspection endpoints.
type ProviderHandler struct {
	service ProviderService
	logger  log.Logger
}

// NewProviderHandler creates a provider handler.
func NewProviderHandler(service ProviderService, logger log.Logger) *ProviderHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &ProviderHandler{service: service, logger: logger}
}

// RegisterRoutes registers provider routes on the given mux.
func (h *ProviderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/providers", h.list)
	mux.HandleFunc("POST /api/v1/providers/{name}/test", h.test)
	mux.HandleFunc("GET /api/v1/providers/diagnostics", h.diagnostics)
	mux.HandleFunc("GET /api/v1/settings/presets", h.presets)
}

func (h *ProviderHandler) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": h.service.Providers()})
}

// test runs the connectivity self-test against one provider and reports
// the outcome, including the diagnostic kind on failure.
func (h *ProviderHandler) test(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	err := h.service.TestConnection(r.Context(), name)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"provider": name, "ok": true})
		return
	}

	if errors.Is(err, llm.ErrUnknownProvider) {
		writeError(w, http.StatusNotFound, "unknown_provider", err.Error())
		return
	}
	h.logger.Warn("connection test failed", "provider", name, "error", err)
	body := map[string]any{"provider": name, "ok": false, "message": err.Error()}
	if apiErr, ok := llm.AsAPIError(err); ok {
		body["kind"] = string(apiErr.Kind)
	}
	writeJSON(w, http.StatusOK, body)
}

// diagnostics returns the wire details of the most recent provider round
// trip, for a "view details" affordance after a failed call.
func (h *ProviderHandler) diagnostics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.service.LastDiagnostics())
}

func (h *ProviderHandler) presets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"presets": llm.Presets()})
}
