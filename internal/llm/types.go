// Package llm provides the normalized message model and provider adapters.
//
// Every supported backend (OpenAI-style, Gemini-style, custom endpoints)
// exposes an incompatible wire format. Adapters translate the normalized
// message list and tool declarations into a provider request, perform the
// HTTP call, and translate the response back into a Result. The raw request
// and response are always retained in Diagnostics so operators can inspect
// failures; no adapter discards them.
package llm

import (
	"net/http"

	"github.com/google/jsonschema-go/jsonschema"
)

// Role identifies the author of a message.
type Role string

// Message roles. RoleFunction carries a tool execution result back to the
// model; providers without a native function role re-label it at the wire
// boundary.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// FunctionCall is the model's request to invoke a named tool.
// Arguments is the raw JSON-encoded argument object as produced by the
// provider; decoding is deferred to the caller.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one turn in a normalized conversation.
//
// Invariants: a RoleFunction message carries Name and Content (the
// JSON-encoded tool result); an assistant message with a FunctionCall
// carries no final-answer content. Order encodes conversational causality
// and is preserved verbatim by every adapter.
type Message struct {
	Role         Role          `json:"role"`
	Content      string        `json:"content,omitempty"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// ToolDeclaration describes one invocable function in the provider-agnostic
// schema. Parameters uses the JSON Schema subset every supported provider
// can express (string/number/boolean/array/object/enum).
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// ResultType tags a Result.
type ResultType string

// Result variants. Exactly one is active per Result.
const (
	ResultContent      ResultType = "content"
	ResultFunctionCall ResultType = "function_call"
)

// Result is the normalized outcome of one provider call.
type Result struct {
	Type         ResultType
	Content      string
	FunctionCall *FunctionCall
}

// Diagnostics captures the full wire-level context of one provider round
// trip. It is populated even on success and attached to every APIError so
// the UI can offer a "view details" affordance.
type Diagnostics struct {
	RequestURL string      `json:"request_url,omitempty"`
	StatusCode int         `json:"status_code,omitempty"`
	Headers    http.Header `json:"headers,omitempty"`
	RawBody    string      `json:"raw_body,omitempty"`
	ParsedBody any         `json:"parsed_body,omitempty"`
}
