package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/scrivo-ai/scrivo/internal/log"
)

const (
	openAIDefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	openAITimeout         = 120 * time.Second
)

// OpenAI is the adapter for the OpenAI chat-completions wire format.
// Normalized roles pass through unchanged; tool declarations map 1:1 onto
// the legacy "functions" array with function_call "auto".
type OpenAI struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	logger   log.Logger
}

// OpenAIConfig configures an OpenAI adapter.
type OpenAIConfig struct {
	APIKey string
	Model  string

	// Endpoint overrides the default API endpoint (mirror/proxy support).
	// Empty uses the official endpoint.
	Endpoint string

	// Client overrides the HTTP client. Nil uses a client with the
	// provider-recommended 120s timeout.
	Client *http.Client
}

// NewOpenAI creates an OpenAI adapter.
func NewOpenAI(cfg OpenAIConfig, logger log.Logger) *OpenAI {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = openAIDefaultEndpoint
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: openAITimeout}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &OpenAI{
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		endpoint: endpoint,
		client:   client,
		logger:   logger,
	}
}

// Provider returns "openai".
func (a *OpenAI) Provider() string { return "openai" }

func (a *OpenAI) Model() string { return a.model }

// Wire request/response shapes.

type openAIMessage struct {
	Role         string        `json:"role"`
	Content      string        `json:"content,omitempty"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

type openAIFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

type openAIRequest struct {
	Model            string           `json:"model"`
	Messages         []openAIMessage  `json:"messages"`
	Temperature      float64          `json:"temperature"`
	MaxTokens        int              `json:"max_tokens"`
	TopP             float64          `json:"top_p"`
	FrequencyPenalty float64          `json:"frequency_penalty"`
	PresencePenalty  float64          `json:"presence_penalty"`
	Functions        []openAIFunction `json:"functions,omitempty"`
	FunctionCall     string           `json:"function_call,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content      string        `json:"content"`
			FunctionCall *FunctionCall `json:"function_call"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat-completion request.
func (a *OpenAI) Complete(ctx context.Context, messages []Message, settings Settings, tools []ToolDeclaration) (Result, Diagnostics, error) {
	if a.apiKey == "" {
		err := &APIError{Kind: ErrKindMissingCredentials, Message: "OpenAI API key is not configured"}
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
	header.Set("Authorization", "Bearer "+a.apiKey)

	raw, diag, err := postJSON(ctx, a.client, a.endpoint, header, req)
	if err != nil {
		return Result{}, diag, err
	}

	var parsed map[string]any
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

	if errVal, ok := parsed["error"]; ok && errVal != nil {
		apiErr := &APIError{
			Kind:        ErrKindAPI,
			Message:     providerErrorMessage(errVal),
			Diagnostics: diag,
		}
		return Result{}, diag, apiErr
	}

	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err == nil && len(resp.Choices) > 0 {
		msg := resp.Choices[0].Message
		if msg.FunctionCall != nil && msg.FunctionCall.Name != "" {
			a.logger.Debug("openai function call", "function", msg.FunctionCall.Name)
			return Result{Type: ResultFunctionCall, FunctionCall: msg.FunctionCall}, diag, nil
		}
		if msg.Content != "" {
			return Result{Type: ResultContent, Content: msg.Content}, diag, nil
		}
	}

	apiErr := &APIError{
		Kind:        ErrKindInvalidShape,
		Message:     "unrecognized response shape, top-level keys: " + joinKeys(topLevelKeys(parsed)),
		Diagnostics: diag,
	}
	return Result{}, diag, apiErr
}

// joinKeys formats a key list for error messages.
func joinKeys(keys []string) string {
	out := "["
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += k
	}
	return out + "]"
}
