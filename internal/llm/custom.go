package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/scrivo-ai/scrivo/internal/log"
)

const customTimeout = 60 * time.Second

// Custom is the adapter for self-hosted OpenAI-compatible endpoints. The
// request side speaks the chat-completions dialect; the response side is
// deliberately tolerant, since local inference servers disagree on shape.
type Custom struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	logger   log.Logger
}

// CustomConfig configures a Custom adapter. Endpoint is required; APIKey is
// optional and sent as a Bearer token when present.
type CustomConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Client   *http.Client
}

// NewCustom creates a Custom adapter.
func NewCustom(cfg CustomConfig, logger log.Logger) *Custom {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: customTimeout}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Custom{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   client,
		logger:   logger,
	}
}

// Provider returns "custom".
func (a *Custom) Provider() string { return "custom" }

func (a *Custom) Model() string { return a.model }

// Complete sends one request to the configured endpoint and normalizes
// whichever of the tolerated response shapes comes back.
func (a *Custom) Complete(ctx context.Context, messages []Message, settings Settings, tools []ToolDeclaration) (Result, Diagnostics, error) {
	if a.endpoint == "" {
		err := &APIError{Kind: ErrKindMissingCredentials, Message: "custom provider endpoint is not configured"}
		return Result{}, Diagnostics{}, err
	}

	req := openAIRequest{
		Model:            a.model,
		Messages:         make([]openAIMessage, 0, len(messages)),
		Temperature:      settings.Temperature,
		MaxTokens:        settings.MaxTokens,
		TopP:             settings.TopP,
		FrequencyPenalty: settings.FrequencyPenalty,
		PresencePenalty:  settings.PresencePenalty,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openAIMessage{
			Role:         string(m.Role),
			Content:      m.Content,
			Name:         m.Name,
			FunctionCall: m.FunctionCall,
		})
	}
	if len(tools) > 0 {
		req.Functions = make([]openAIFunction, 0, len(tools))
		for _, t := range tools {
			req.Functions = append(req.Functions, openAIFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		req.FunctionCall = "auto"
	}

	header := http.Header{}
	if a.apiKey != "" {
		header.Set("Authorization", "Bearer "+a.apiKey)
	}

	raw, diag, err := postJSON(ctx, a.client, a.endpoint, header, req)
	if err != nil {
		return Result{}, diag, err
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		apiErr := &APIError{
			Kind:        ErrKindInvalidJSON,
			Message:     "invalid JSON response: " + excerpt(diag.RawBody, bodyExcerptLen),
			Diagnostics: diag,
			Err:         err,
		}
		return Result{}, diag, apiErr
	}
	diag.ParsedBody = parsed

	// Shape 1: the whole body is a bare JSON string.
	if text, ok := parsed.(string); ok && text != "" {
		return Result{Type: ResultContent, Content: text}, diag, nil
	}

	obj, ok := parsed.(map[string]any)
	if !ok {
		apiErr := &APIError{
			Kind:        ErrKindInvalidShape,
			Message:     "unrecognized response shape: " + excerpt(diag.RawBody, bodyExcerptLen),
			Diagnostics: diag,
		}
		return Result{}, diag, apiErr
	}

	if errVal, ok := obj["error"]; ok && errVal != nil {
		apiErr := &APIError{
			Kind:        ErrKindAPI,
			Message:     providerErrorMessage(errVal),
			Diagnostics: diag,
		}
		return Result{}, diag, apiErr
	}

	// Shape 2: a chat-completions choices array.
	if _, ok := obj["choices"]; ok {
		var resp openAIResponse
		if err := json.Unmarshal(raw, &resp); err == nil && len(resp.Choices) > 0 {
			msg := resp.Choices[0].Message
			if msg.FunctionCall != nil && msg.FunctionCall.Name != "" {
				a.logger.Debug("custom provider function call", "function", msg.FunctionCall.Name)
				return Result{Type: ResultFunctionCall, FunctionCall: msg.FunctionCall}, diag, nil
			}
			if msg.Content != "" {
				return Result{Type: ResultContent, Content: msg.Content}, diag, nil
			}
		}
	}

	// Shape 3: a flat object with a content or text field.
	for _, key := range []string{"content", "text"} {
		if text, ok := obj[key].(string); ok && text != "" {
			return Result{Type: ResultContent, Content: text}, diag, nil
		}
	}

	apiErr := &APIError{
		Kind:        ErrKindInvalidShape,
		Message:     "unrecognized response shape, top-level keys: " + joinKeys(topLevelKeys(obj)),
		Diagnostics: diag,
	}
	return Result{}, diag, apiErr
}
