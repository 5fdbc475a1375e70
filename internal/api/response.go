package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/scrivo-ai/scrivo/internal/llm"
)

// writeJSON writes a JSON response. The body is encoded into a buffer
// before any byte reaches the wire, so an encoding failure can still
// produce a clean 500 instead of a half-written response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

// ErrorDetail is the code/message pair inside every error body.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the JSON error body. Diagnostics is attached only on
// provider errors.
type ErrorResponse struct {
	Error       ErrorDetail      `json:"error"`
	Diagnostics *llm.Diagnostics `json:"diagnostics,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// writeProviderError writes an error response carrying the failed
// exchange's wire diagnostics.
func writeProviderError(w http.ResponseWriter, status int, code, message string, diag llm.Diagnostics) {
	writeJSON(w, status, ErrorResponse{
		Error:       ErrorDetail{Code: code, Message: message},
		Diagnostics: &diag,
	})
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, min, max int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
