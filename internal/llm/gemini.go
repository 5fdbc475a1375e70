package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scrivo-ai/scrivo/internal/log"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiTimeout        = 300 * time.Second
)

// geminiObjectSchema is the fallback parameter schema sent when a tool
// declaration lacks an explicit type. Gemini rejects declarations whose
// parameters are not a typed schema object.
var geminiObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// blockedFinishReasons are Gemini finish reasons that indicate the response
// was cut off, rather than completed.
var blockedFinishReasons = map[string]bool{
	"MALFORMED_FUNCTION_CALL": true,
	"SAFETY":                  true,
	"RECITATION":              true,
}

// Gemini is the adapter for the Gemini (generativelanguage) wire format.
//
// Role mapping is the messy part: Gemini has no system or function role.
// System messages are lifted out of the turn list into system_instruction,
// assistant becomes "model", and function results are re-labeled as "user"
// turns carrying a functionResponse part.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  log.Logger
}

// GeminiConfig configures a Gemini adapter.
type GeminiConfig struct {
	APIKey string
	Model  string

	// BaseURL overrides the API base URL (mirror/proxy support). Empty uses
	// the official generativelanguage endpoint.
	BaseURL string

	// Client overrides the HTTP client. Nil uses a client with the
	// provider-recommended 300s timeout.
	Client *http.Client
}

// NewGemini creates a Gemini adapter.
func NewGemini(cfg GeminiConfig, logger log.Logger) *Gemini {
	base := cfg.BaseURL
	if base == "" {
		base = geminiDefaultBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: geminiTimeout}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Gemini{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: base,
		client:  client,
		logger:  logger,
	}
}

// Provider returns "gemini".
func (a *Gemini) Provider() string { return "gemini" }

func (a *Gemini) Model() string { return a.model }

// Wire request/response shapes.

type geminiFunctionCallPart struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFunctionResponsePart struct {
	Name     string `json:"name"`
	Response any    `json:"response"`
}

type geminiPart struct {
	Text             string                      `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCallPart     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponsePart `json:"functionResponse,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiRequest struct {
	Contents          []geminiContent          `json:"contents"`
	GenerationConfig  geminiGenerationConfig   `json:"generationConfig"`
	SystemInstruction *geminiSystemInstruction `json:"system_instruction,omitempty"`
	Tools             []geminiTool             `json:"tools,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text         string                  `json:"text"`
				FunctionCall *geminiFunctionCallPart `json:"functionCall"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason  string `json:"finishReason"`
		FinishMessage string `json:"finishMessage"`
	} `json:"candidates"`
}

// Complete sends one generateContent request.
func (a *Gemini) Complete(ctx context.Context, messages []Message, settings Settings, tools []ToolDeclaration) (Result, Diagnostics, error) {
	if a.apiKey == "" {
		err := &APIError{Kind: ErrKindMissingCredentials, Message: "Gemini API key is not configured"}
		return Result{}, Diagnostics{}, err
	}

	req := geminiRequest{
		GenerationConfig: geminiGenerationConfig{
			Temperature:     settings.Temperature,
			TopP:            settings.TopP,
			MaxOutputTokens: settings.MaxTokens,
		},
	}

	// System messages are lifted out of the turn list. Multiple system
	// messages (caller system text, topic context, selection note) are
	// concatenated in order.
	var systemTexts []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			if m.Content != "" {
				systemTexts = append(systemTexts, m.Content)
			}
			continue
		}
		if content, ok := toGeminiContent(m); ok {
			req.Contents = append(req.Contents, content)
		}
	}
	if len(systemTexts) > 0 {
		req.SystemInstruction = &geminiSystemInstruction{
			Parts: []geminiPart{{Text: strings.Join(systemTexts, "\n\n")}},
		}
	}

	if len(tools) > 0 {
		decls := make([]geminiFunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, geminiFunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  geminiParameters(t),
			})
		}
		req.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}

	endpoint := strings.TrimRight(a.baseURL, "/") + "/models/" + url.PathEscape(a.model) + ":generateContent"
	requestURL := endpoint + "?key=" + url.QueryEscape(strings.TrimSpace(a.apiKey))

	header := http.Header{}
	header.Set("Accept", "application/json")

	raw, diag, err := postJSON(ctx, a.client, requestURL, header, req)
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

	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err == nil && len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]

		if blockedFinishReasons[cand.FinishReason] {
			msg := "generation stopped with finish reason " + cand.FinishReason
			if cand.FinishMessage != "" {
				msg += ": " + cand.FinishMessage
			}
			// Surface any partial function-call attempt for diagnostics.
			for _, part := range cand.Content.Parts {
				if part.FunctionCall != nil {
					attempt, _ := json.Marshal(part.FunctionCall)
					msg += "; attempted function call: " + string(attempt)
				}
			}
			apiErr := &APIError{Kind: ErrKindBlockedFinish, Message: msg, Diagnostics: diag}
			return Result{}, diag, apiErr
		}

		for _, part := range cand.Content.Parts {
			if part.FunctionCall != nil {
				args := part.FunctionCall.Args
				if args == nil {
					args = map[string]any{}
				}
				encoded, err := json.Marshal(args)
				if err != nil {
					encoded = []byte("{}")
				}
				a.logger.Debug("gemini function call", "function", part.FunctionCall.Name)
				return Result{
					Type: ResultFunctionCall,
					FunctionCall: &FunctionCall{
						Name:      part.FunctionCall.Name,
						Arguments: string(encoded),
					},
				}, diag, nil
			}
		}

		var text strings.Builder
		for _, part := range cand.Content.Parts {
			text.WriteString(part.Text)
		}
		if text.Len() > 0 {
			return Result{Type: ResultContent, Content: text.String()}, diag, nil
		}
	}

	apiErr := &APIError{
		Kind:        ErrKindInvalidShape,
		Message:     "unrecognized response shape, top-level keys: " + joinKeys(topLevelKeys(parsed)),
		Diagnostics: diag,
	}
	return Result{}, diag, apiErr
}

// toGeminiContent converts one non-system normalized message into a Gemini
// turn. Returns false when the message produces no parts.
func toGeminiContent(m Message) (geminiContent, bool) {
	if m.Role == RoleFunction {
		if m.Name == "" || m.Content == "" {
			return geminiContent{}, false
		}
		// Gemini has no function role: results ride in a user turn. The
		// response must be a JSON object; plain text is wrapped.
		var response any
		var decoded map[string]any
		if err := json.Unmarshal([]byte(m.Content), &decoded); err == nil {
			response = decoded
		} else {
			response = map[string]any{"result": m.Content}
		}
		return geminiContent{
			Role: "user",
			Parts: []geminiPart{{
				FunctionResponse: &geminiFunctionResponsePart{Name: m.Name, Response: response},
			}},
		}, true
	}

	role := "user"
	if m.Role == RoleAssistant {
		role = "model"
	}

	var parts []geminiPart
	if m.Content != "" {
		parts = append(parts, geminiPart{Text: m.Content})
	}
	if m.FunctionCall != nil {
		args := map[string]any{}
		if m.FunctionCall.Arguments != "" {
			if err := json.Unmarshal([]byte(m.FunctionCall.Arguments), &args); err != nil {
				args = map[string]any{}
			}
		}
		parts = append(parts, geminiPart{
			FunctionCall: &geminiFunctionCallPart{Name: m.FunctionCall.Name, Args: args},
		})
	}
	if len(parts) == 0 {
		return geminiContent{}, false
	}
	return geminiContent{Role: role, Parts: parts}, true
}

// geminiParameters renders a tool's parameter schema for the wire. A nil or
// untyped schema is replaced with an empty object schema, which Gemini
// requires for validation.
func geminiParameters(t ToolDeclaration) json.RawMessage {
	if t.Parameters == nil {
		return geminiObjectSchema
	}
	encoded, err := json.Marshal(t.Parameters)
	if err != nil {
		return geminiObjectSchema
	}
	var m map[string]any
	if err := json.Unmarshal(encoded, &m); err != nil {
		return geminiObjectSchema
	}
	if _, ok := m["type"]; !ok {
		return geminiObjectSchema
	}
	return encoded
}
