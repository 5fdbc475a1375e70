package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
)

// Adapter translates between the normalized message model and one provider
// family's wire protocol. Implementations must preserve message order and
// never discard the diagnostic bundle, even on success.
type Adapter interface {
	// Provider returns the stable provider identifier ("openai", "gemini",
	// "custom").
	Provider() string

	// Model returns the configured model identifier, recorded with each
	// persisted turn.
	Model() string

	// Complete performs one blocking completion round trip. The returned
	// Diagnostics is valid regardless of error; on failure the same bundle
	// is also embedded in the *APIError.
	Complete(ctx context.Context, messages []Message, settings Settings, tools []ToolDeclaration) (Result, Diagnostics, error)
}

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 10 << 20 // 10 MB

// bodyExcerptLen bounds the raw-body excerpt included in error messages.
// The full body is still available in Diagnostics.
const bodyExcerptLen = 1000

// postJSON sends payload as a JSON POST and returns the raw response body
// together with wire diagnostics. Transport failures return an *APIError of
// kind transport_error; HTTP error statuses are NOT treated as failures
// here because providers report errors in the body.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, payload any) ([]byte, Diagnostics, error) {
	diag := Diagnostics{RequestURL: redactURL(url)}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, diag, &APIError{Kind: ErrKindTransport, Message: "encoding request body", Diagnostics: diag, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, diag, &APIError{Kind: ErrKindTransport, Message: "building request", Diagnostics: diag, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, diag, &APIError{Kind: ErrKindTransport, Message: "request failed", Diagnostics: diag, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	diag.StatusCode = resp.StatusCode
	diag.Headers = resp.Header.Clone()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, diag, &APIError{Kind: ErrKindTransport, Message: "reading response body", Diagnostics: diag, Err: err}
	}
	diag.RawBody = string(raw)

	return raw, diag, nil
}

// topLevelKeys returns the sorted top-level keys of a decoded JSON object,
// used to describe unrecognized response shapes.
func topLevelKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// excerpt truncates s for inclusion in an error message.
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// providerErrorMessage extracts a human-readable message from a provider
// error payload, which may be a string or an object with a "message" field.
func providerErrorMessage(v any) string {
	switch e := v.(type) {
	case string:
		return e
	case map[string]any:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	}
	return "provider reported an error"
}

// redactURL masks query-string credentials (the Gemini family passes the
// API key as a query parameter) before the URL enters diagnostics or logs.
func redactURL(rawURL string) string {
	const keyParam = "key="
	idx := bytes.Index([]byte(rawURL), []byte(keyParam))
	if idx < 0 {
		return rawURL
	}
	end := idx + len(keyParam)
	for end < len(rawURL) && rawURL[end] != '&' {
		end++
	}
	return fmt.Sprintf("%sREDACTED%s", rawURL[:idx+len(keyParam)], rawURL[end:])
}
