package images

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const generatorDefaultEndpoint = "https://api.openai.com/v1/images/generations"

// GeneratedImage is the outcome of one image generation call.
type GeneratedImage struct {
	URL           string `json:"url"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// Generator creates images from prompts via an OpenAI-compatible images
// endpoint.
type Generator struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewGenerator creates a Generator. Empty model defaults to dall-e-3;
// empty endpoint uses the official API.
func NewGenerator(apiKey, model, endpoint string, client *http.Client) *Generator {
	if model == "" {
		model = "dall-e-3"
	}
	if endpoint == "" {
		endpoint = generatorDefaultEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &Generator{apiKey: apiKey, model: model, endpoint: endpoint, client: client}
}

// Generate produces one image for the prompt.
func (g *Generator) Generate(ctx context.Context, prompt, size string) (*GeneratedImage, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("image generation API key is not configured")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("image prompt is required")
	}
	if !validImageSize(size) {
		size = "1024x1024"
	}

	payload, err := json.Marshal(map[string]any{
		"model":  g.model,
		"prompt": prompt,
		"n":      1,
		"size":   size,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generating image: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var parsed struct {
		Data []struct {
			URL           string `json:"url"`
			RevisedPrompt string `json:"revised_prompt"`
		} `json:"data"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("image generation failed: %s", parsed.Error.Message)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].URL == "" {
		return nil, fmt.Errorf("image generation returned no image")
	}

	return &GeneratedImage{
		URL:           parsed.Data[0].URL,
		RevisedPrompt: parsed.Data[0].RevisedPrompt,
	}, nil
}

func validImageSize(size string) bool {
	switch size {
	case "1024x1024", "1792x1024", "1024x1792", "512x512", "256x256":
		return true
	}
	return false
}
