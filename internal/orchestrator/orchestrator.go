// Package orchestrator runs the function-calling conversation loop: build
// the provider context, dispatch, execute requested tools, feed results
// back, and persist the finished exchange.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/scrivo-ai/scrivo/internal/llm"
	"github.com/scrivo-ai/scrivo/internal/log"
	"github.com/scrivo-ai/scrivo/internal/session"
	"github.com/scrivo-ai/scrivo/internal/tools"
	"github.com/scrivo-ai/scrivo/internal/topic"
)

// Loop budgets. A run stops at whichever limit it hits first.
const (
	maxIterations = 5
	maxMessages   = 50

	// maxToolResultBytes bounds one tool result as sent back to the model.
	// An oversized result is replaced by a summary object that tells the
	// model a truncation happened.
	maxToolResultBytes = 50_000
	toolSummaryBytes   = 500

	// maxPersistedBytes bounds the stored assistant turn.
	maxPersistedBytes = 100_000

	// historyWindow is how many prior turns are replayed into the context.
	historyWindow = 15

	// maxPersistedCalls is how many call records ride on the stored turn
	// text; the rest collapse into a count.
	maxPersistedCalls = 5
)

// functionCallsMarker separates response text from the persisted call
// summary. History replay strips everything from the marker on.
const functionCallsMarker = "\n\nFunction calls:"

const limitReachedResponse = "Function call limit reached. Some actions may not be completed."

const truncationMarker = "... [truncated]"

// Completer runs one provider completion. The llm dispatcher satisfies it.
type Completer interface {
	Complete(ctx context.Context, provider string, messages []llm.Message, overrides llm.Overrides, tools []llm.ToolDeclaration) (llm.Result, error)

	// ModelSettings reports the model identifier and effective settings a
	// run with the given provider and overrides uses, for the persisted
	// turn record.
	ModelSettings(provider string, overrides llm.Overrides) (string, llm.Settings)
}

// ToolExecutor is the tool catalog surface. The tools registry satisfies it.
type ToolExecutor interface {
	Declarations() []llm.ToolDeclaration
	Execute(ctx context.Context, sessionID string, call llm.FunctionCall) tools.Result
}

// HistoryStore is the session persistence surface. The session store
// satisfies it.
type HistoryStore interface {
	Append(ctx context.Context, sessionID string, turn session.Turn) error
	History(ctx context.Context, sessionID string, limit int) ([]session.Turn, error)
	Topic(ctx context.Context, sessionID string) (*int64, error)
}

// TopicProvider resolves topic context. The topic store satisfies it.
type TopicProvider interface {
	Get(ctx context.Context, id int64) (*topic.Topic, error)
}

// RunRequest is one user message plus its conversational context.
type RunRequest struct {
	SessionID string
	Message   string

	// Provider overrides the configured default backend for this run.
	Provider string

	// Context is free-form situational context supplied by the caller,
	// injected as a system note.
	Context string

	// SelectedContent is the fragment the user has highlighted in the
	// editor, if any.
	SelectedContent string

	// SelectedPost describes the post the user has open, resolved from a
	// selected object id by the API layer.
	SelectedPost string

	// FileSummaries describe uploaded files, one note per file.
	FileSummaries []string

	Overrides llm.Overrides
}

// RunResult is the outcome of one completed run.
type RunResult struct {
	SessionID     string                       `json:"session_id"`
	Response      string                       `json:"response"`
	FunctionCalls []session.FunctionCallRecord `json:"function_calls,omitempty"`
}

// Config wires an Orchestrator.
type Config struct {
	Completer Completer
	Tools     ToolExecutor
	History   HistoryStore
	Topics    TopicProvider

	// Provider is the default backend used when RunRequest.Provider is
	// empty.
	Provider string

	// SystemPrompt opens every conversation context. Optional.
	SystemPrompt string

	// ProviderTimeout bounds one completion round trip; the whole run gets
	// ProviderTimeout times the iteration cap. Zero means 120s.
	ProviderTimeout time.Duration

	Logger log.Logger
}

// Orchestrator drives conversations. Safe for concurrent use.
type Orchestrator struct {
	completer Completer
	tools     ToolExecutor
	history   HistoryStore
	topics    TopicProvider

	provider     string
	systemPrompt string
	timeout      time.Duration
	logger       log.Logger
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Orchestrator{
		completer:    cfg.Completer,
		tools:        cfg.Tools,
		history:      cfg.History,
		topics:       cfg.Topics,
		provider:     cfg.Provider,
		systemPrompt: cfg.SystemPrompt,
		timeout:      timeout,
		logger:       logger,
	}
}

// Run processes one user message to completion. Tool failures are fed back
// to the model and never abort the run; provider failures do, verbatim.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("message is empty")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.NewID()
	} else if !session.ValidID(sessionID) {
		return nil, session.ErrInvalidID
	}

	provider := req.Provider
	if provider == "" {
		provider = o.provider
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout*maxIterations)
	defer cancel()

	messages, err := o.buildContext(ctx, sessionID, req)
	if err != nil {
		return nil, err
	}

	response, records, err := o.loop(ctx, sessionID, provider, messages, req.Overrides)
	if err != nil {
		return nil, err
	}

	if summary := actionsTaken(records); summary != "" {
		response += summary
	}

	if err := o.persist(ctx, sessionID, provider, req.Message, response, records, req.Overrides); err != nil {
		o.logger.Warn("persisting exchange failed", "session_id", sessionID, "error", err)
	}

	return &RunResult{SessionID: sessionID, Response: response, FunctionCalls: records}, nil
}

// buildContext assembles the provider message list: system prompt, topic
// context, caller context, selected content, file notes, bounded history
// oldest first, then the new user message.
func (o *Orchestrator) buildContext(ctx context.Context, sessionID string, req RunRequest) ([]llm.Message, error) {
	var messages []llm.Message

	if o.systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: o.systemPrompt})
	}

	if topicContext := o.topicContext(ctx, sessionID); topicContext != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: "Context: " + topicContext})
	}
	if req.Context != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: "Context: " + req.Context})
	}
	if req.SelectedPost != "" {
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: "Current selected post: " + req.SelectedPost,
		})
	}
	if req.SelectedContent != "" {
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: "The user has selected the following content:\n" + req.SelectedContent,
		})
	}
	for _, summary := range req.FileSummaries {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: "Uploaded file: " + summary})
	}

	history, err := o.history.History(ctx, sessionID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	for _, turn := range history {
		role := llm.RoleUser
		content := turn.Content
		if turn.Role == session.RoleAssistant {
			role = llm.RoleAssistant
			content = stripCallSummary(content)
		}
		messages = append(messages, llm.Message{Role: role, Content: content})
	}

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Message})
	return messages, nil
}

// topicContext resolves the session's topic to its context text. Lookup
// failures degrade to no topic context.
func (o *Orchestrator) topicContext(ctx context.Context, sessionID string) string {
	if o.topics == nil {
		return ""
	}
	topicID, err := o.history.Topic(ctx, sessionID)
	if err != nil || topicID == nil {
		return ""
	}
	tp, err := o.topics.Get(ctx, *topicID)
	if err != nil {
		o.logger.Warn("resolving topic failed", "topic_id", *topicID, "error", err)
		return ""
	}
	if tp.Prompt != "" {
		return tp.Prompt
	}
	return tp.Description
}

// loop is the dispatch/execute cycle. It returns the final response text
// and the records of every executed call.
func (o *Orchestrator) loop(ctx context.Context, sessionID, provider string, messages []llm.Message, overrides llm.Overrides) (string, []session.FunctionCallRecord, error) {
	declarations := o.tools.Declarations()
	var records []session.FunctionCallRecord

	for iteration := 0; iteration < maxIterations; iteration++ {
		result, err := o.completer.Complete(ctx, provider, messages, overrides, declarations)
		if err != nil {
			return "", records, err
		}

		if result.Type == llm.ResultContent {
			return result.Content, records, nil
		}
		if result.FunctionCall == nil {
			return "", records, fmt.Errorf("provider returned a function-call result without a call")
		}

		call := *result.FunctionCall
		if !json.Valid([]byte(call.Arguments)) {
			call.Arguments = "{}"
		}

		toolResult := o.tools.Execute(ctx, sessionID, call)
		records = append(records, recordFor(call.Name, toolResult))

		if len(messages)+2 > maxMessages {
			o.logger.Warn("message budget exhausted", "session_id", sessionID)
			return limitReachedResponse, records, nil
		}
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, FunctionCall: &call},
			llm.Message{Role: llm.RoleFunction, Name: call.Name, Content: capToolResult(toolResult)},
		)
	}

	return limitReachedResponse, records, nil
}

// capToolResult renders a tool result for the function message, replacing
// an oversized payload with a summary object that names the truncation.
func capToolResult(result tools.Result) string {
	encoded := result.JSON()
	if len(encoded) <= maxToolResultBytes {
		return encoded
	}

	summary := truncateUTF8(encoded, toolSummaryBytes)
	replacement, err := json.Marshal(map[string]any{
		"success":   result.Success,
		"message":   "result too large",
		"truncated": true,
		"summary":   summary,
	})
	if err != nil {
		return `{"success":false,"message":"result too large","truncated":true}`
	}
	return string(replacement)
}

// truncateUTF8 cuts s at the largest rune boundary not exceeding n bytes,
// so a truncation never leaves a mangled partial character behind.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// recordFor summarizes one executed call for history and the run result.
func recordFor(name string, result tools.Result) session.FunctionCallRecord {
	record := session.FunctionCallRecord{Name: name, Summary: result.Message}
	if result.Data != nil {
		switch id := result.Data["post_id"].(type) {
		case int64:
			record.PostID = id
		case float64:
			record.PostID = int64(id)
		}
		if link, ok := result.Data["edit_link"].(string); ok {
			record.EditLink = link
		}
	}
	return record
}

// actionsTaken builds the trailing summary of executed calls for the final
// response text. Empty when nothing ran.
func actionsTaken(records []session.FunctionCallRecord) string {
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nActions taken:")
	for _, r := range records {
		b.WriteString("\n- ")
		b.WriteString(r.Name)
		if r.PostID > 0 {
			fmt.Fprintf(&b, " (post %d", r.PostID)
			if r.EditLink != "" {
				b.WriteString(", ")
				b.WriteString(r.EditLink)
			}
			b.WriteString(")")
		}
	}
	return b.String()
}

// persist stores the finished exchange as a user turn and an assistant
// turn. The assistant turn carries a bounded call summary in its text so
// exports remain self-describing, plus the model id and settings snapshot
// that produced the response.
func (o *Orchestrator) persist(ctx context.Context, sessionID, provider, userMessage, response string, records []session.FunctionCallRecord, overrides llm.Overrides) error {
	if err := o.history.Append(ctx, sessionID, session.Turn{
		Role:    session.RoleUser,
		Content: userMessage,
	}); err != nil {
		return err
	}

	model, settings := o.completer.ModelSettings(provider, overrides)
	snapshot, err := json.Marshal(settings)
	if err != nil {
		snapshot = nil
	}

	stored := response + callSummary(records)
	if len(stored) > maxPersistedBytes {
		stored = truncateUTF8(stored, maxPersistedBytes-len(truncationMarker)) + truncationMarker
	}
	return o.history.Append(ctx, sessionID, session.Turn{
		Role:          session.RoleAssistant,
		Content:       stored,
		FunctionCalls: records,
		Model:         model,
		Settings:      snapshot,
	})
}

// callSummary renders the persisted "Function calls:" suffix: the first
// few records as JSON plus a count of the rest.
func callSummary(records []session.FunctionCallRecord) string {
	if len(records) == 0 {
		return ""
	}
	kept := records
	var overflow int
	if len(kept) > maxPersistedCalls {
		overflow = len(kept) - maxPersistedCalls
		kept = kept[:maxPersistedCalls]
	}
	encoded, err := json.Marshal(kept)
	if err != nil {
		return ""
	}
	suffix := functionCallsMarker + " " + string(encoded)
	if overflow > 0 {
		suffix += fmt.Sprintf(" ... and %d more", overflow)
	}
	return suffix
}

// stripCallSummary removes the persisted call suffix before a stored
// response re-enters the model context.
func stripCallSummary(content string) string {
	if idx := strings.LastIndex(content, functionCallsMarker); idx >= 0 {
		return content[:idx]
	}
	return content
}
