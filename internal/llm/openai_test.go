package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/require"
)

// captureServer records the last request body and headers, replying with the
// given response body.
func captureServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		captured.body = body
		captured.header = r.Header.Clone()
		captured.path = r.URL.Path
		captured.query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

type capturedRequest struct {
	body   []byte
	header http.Header
	path   string
	query  string
}

func newTestOpenAI(t *testing.T, response string) (*OpenAI, *capturedRequest) {
	t.Helper()
	srv, captured := captureServer(t, http.StatusOK, response)
	adapter := NewOpenAI(OpenAIConfig{
		APIKey:   "sk-test",
		Model:    "gpt-4o",
		Endpoint: srv.URL,
	}, nil)
	return adapter, captured
}

func TestOpenAICompleteContent(t *testing.T) {
	adapter, _ := newTestOpenAI(t, `{"choices":[{"message":{"content":"hello there"}}]}`)

	result, diag, err := adapter.Complete(context.Background(), []Message{
		{Role: RoleUser, Content: "hi"},
	}, DefaultSettings(), nil)
	require.NoError(t, err)
	require.Equal(t, ResultContent, result.Type)
	require.Equal(t, "hello there", result.Content)
	require.Equal(t, http.StatusOK, diag.StatusCode)
	require.NotEmpty(t, diag.RawBody)
}

func TestOpenAICompleteFunctionCall(t *testing.T) {
	adapter, _ := newTestOpenAI(t, `{"choices":[{"message":{"function_call":{"name":"create_post","arguments":"{\"title\":\"x\"}"}}}]}`)

	result, _, err := adapter.Complete(context.Background(), []Message{
		{Role: RoleUser, Content: "write a post"},
	}, DefaultSettings(), nil)
	require.NoError(t, err)
	require.Equal(t, ResultFunctionCall, result.Type)
	require.Equal(t, "create_post", result.FunctionCall.Name)
	require.JSONEq(t, `{"title":"x"}`, result.FunctionCall.Arguments)
}

func TestOpenAICompleteRequestShape(t *testing.T) {
	adapter, captured := newTestOpenAI(t, `{"choices":[{"message":{"content":"ok"}}]}`)

	tools := []ToolDeclaration{{
		Name:        "search_posts",
		Description: "Search published posts",
		Parameters: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {Type: "string"},
			},
			Required: []string{"query"},
		},
	}}
	settings := Settings{Temperature: 0.3, TopP: 0.8, MaxTokens: 1500, FrequencyPenalty: 0.1, PresencePenalty: 0.2}

	_, _, err := adapter.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "be helpful"},
		{Role: RoleUser, Content: "find posts"},
	}, settings, tools)
	require.NoError(t, err)

	require.Equal(t, "Bearer sk-test", captured.header.Get("Authorization"))

	var req map[string]any
	require.NoError(t, json.Unmarshal(captured.body, &req))
	require.Equal(t, "gpt-4o", req["model"])
	require.Equal(t, "auto", req["function_call"])
	require.InDelta(t, 0.3, req["temperature"], 1e-9)
	require.InDelta(t, 0.8, req["top_p"], 1e-9)
	require.InDelta(t, 1500, req["max_tokens"], 1e-9)
	require.InDelta(t, 0.1, req["frequency_penalty"], 1e-9)
	require.InDelta(t, 0.2, req["presence_penalty"], 1e-9)

	msgs := req["messages"].([]any)
	require.Len(t, msgs, 2)
	require.Equal(t, "system", msgs[0].(map[string]any)["role"])
	require.Equal(t, "user", msgs[1].(map[string]any)["role"])

	fns := req["functions"].([]any)
	require.Len(t, fns, 1)
	require.Equal(t, "search_posts", fns[0].(map[string]any)["name"])
}

func TestOpenAICompleteAPIError(t *testing.T) {
	adapter, _ := newTestOpenAI(t, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)

	_, _, err := adapter.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultSettings(), nil)
	require.Error(t, err)
	require.True(t, IsKind(err, ErrKindAPI))
	require.Contains(t, err.Error(), "Incorrect API key provided")

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	require.NotEmpty(t, apiErr.Diagnostics.RawBody)
}

func TestOpenAICompleteInvalidJSON(t *testing.T) {
	adapter, _ := newTestOpenAI(t, `<html>502 Bad Gateway</html>`)

	_, _, err := adapter.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultSettings(), nil)
	require.True(t, IsKind(err, ErrKindInvalidJSON))
	require.Contains(t, err.Error(), "502 Bad Gateway")
}

func TestOpenAICompleteInvalidShape(t *testing.T) {
	adapter, _ := newTestOpenAI(t, `{"zeta":1,"alpha":2}`)

	_, _, err := adapter.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultSettings(), nil)
	require.True(t, IsKind(err, ErrKindInvalidShape))
	require.Contains(t, err.Error(), "[alpha, zeta]")
}

func TestOpenAICompleteMissingKey(t *testing.T) {
	adapter := NewOpenAI(OpenAIConfig{Model: "gpt-4o"}, nil)

	_, _, err := adapter.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultSettings(), nil)
	require.True(t, IsKind(err, ErrKindMissingCredentials))
}

func TestOpenAICompleteTransportError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK, `{}`)
	srv.Close()
	adapter := NewOpenAI(OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o", Endpoint: srv.URL}, nil)

	_, _, err := adapter.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultSettings(), nil)
	require.True(t, IsKind(err, ErrKindTransport))
}
