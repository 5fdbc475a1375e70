// Package tools implements the functions the model may call during a
// conversation.
//
// Every tool returns a Result envelope rather than a Go error: failures are
// fed back to the model as data so it can correct itself, and only the
// orchestrator decides when a conversation is beyond saving.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/scrivo-ai/scrivo/internal/llm"
	"github.com/scrivo-ai/scrivo/internal/log"
)

// Machine-readable error codes carried in Result.Error.
const (
	ErrCodeUnknownFunction  = "unknown_function"
	ErrCodeInvalidArguments = "invalid_arguments"
	ErrCodeExecution        = "execution_error"
)

// Result is the envelope every tool execution produces. It is serialized
// verbatim into the function message sent back to the model.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// JSON renders the envelope for the wire. Marshal failures degrade to a
// minimal error object instead of panicking mid-conversation.
func (r Result) JSON() string {
	encoded, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":"execution_error","message":"result encoding failed"}`
	}
	return string(encoded)
}

// failure builds an error envelope.
func failure(code, format string, args ...any) Result {
	return Result{Success: false, Error: code, Message: fmt.Sprintf(format, args...)}
}

// Handler executes one tool call with decoded-by-the-handler arguments.
type Handler func(ctx context.Context, args json.RawMessage) (Result, error)

// Tool pairs a wire declaration with its handler.
type Tool struct {
	Declaration llm.ToolDeclaration
	Run         Handler
}

// Toolset groups related tools for bulk registration.
type Toolset interface {
	Tools() []Tool
}

// Auditor records executions. The audit recorder satisfies it.
type Auditor interface {
	Record(ctx context.Context, sessionID, functionName string, arguments json.RawMessage, success bool, detail string)
}

// Registry holds the tool catalog and dispatches calls by name.
// Registration happens at startup; afterwards the registry is read-only
// and safe for concurrent use.
type Registry struct {
	order   []string
	tools   map[string]Tool
	auditor Auditor
	logger  log.Logger
}

// NewRegistry creates an empty registry. auditor may be nil.
func NewRegistry(auditor Auditor, logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Registry{
		tools:   make(map[string]Tool),
		auditor: auditor,
		logger:  logger,
	}
}

// Register adds a tool. Re-registering a name replaces the handler but
// keeps its position in the declaration order.
func (r *Registry) Register(t Tool) {
	name := t.Declaration.Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// RegisterAll registers every tool of the given toolsets.
func (r *Registry) RegisterAll(sets ...Toolset) {
	for _, set := range sets {
		for _, t := range set.Tools() {
			r.Register(t)
		}
	}
}

// Declarations returns the catalog in registration order, ready to attach
// to a provider request.
func (r *Registry) Declarations() []llm.ToolDeclaration {
	decls := make([]llm.ToolDeclaration, 0, len(r.order))
	for _, name := range r.order {
		decls = append(decls, r.tools[name].Declaration)
	}
	return decls
}

// Names returns the registered tool names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Execute runs one model-requested call. It never returns a Go error:
// unknown names, bad arguments and handler failures all become error
// envelopes for the model to read.
func (r *Registry) Execute(ctx context.Context, sessionID string, call llm.FunctionCall) Result {
	args := json.RawMessage(call.Arguments)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	tool, ok := r.tools[call.Name]
	if !ok {
		result := failure(ErrCodeUnknownFunction, "unknown function: %s", call.Name)
		r.record(ctx, sessionID, call.Name, args, result)
		return result
	}

	// Arguments must at least be a JSON object before the handler sees them.
	var probe map[string]any
	if err := json.Unmarshal(args, &probe); err != nil {
		result := failure(ErrCodeInvalidArguments, "arguments are not a JSON object: %v", err)
		r.record(ctx, sessionID, call.Name, args, result)
		return result
	}

	result, err := tool.Run(ctx, args)
	if err != nil {
		r.logger.Warn("tool execution failed", "function", call.Name, "error", err)
		result = failure(ErrCodeExecution, "%v", err)
	}
	r.record(ctx, sessionID, call.Name, args, result)
	return result
}

func (r *Registry) record(ctx context.Context, sessionID, name string, args json.RawMessage, result Result) {
	if r.auditor == nil {
		return
	}
	detail := result.Message
	if detail == "" && result.Error != "" {
		detail = result.Error
	}
	r.auditor.Record(ctx, sessionID, name, args, result.Success, detail)
}
