package images

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const pexelsDefaultBaseURL = "https://api.pexels.com/v1"

// Pexels searches the Pexels photo API.
type Pexels struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewPexels creates a Pexels backend. baseURL overrides the API host for
// tests; empty uses the official one.
func NewPexels(apiKey, baseURL string, client *http.Client) *Pexels {
	if baseURL == "" {
		baseURL = pexelsDefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Pexels{apiKey: apiKey, baseURL: baseURL, client: client}
}

// Source returns "pexels".
func (p *Pexels) Source() string { return "pexels" }

// Search queries the search endpoint.
func (p *Pexels) Search(ctx context.Context, query string, count int) ([]Photo, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("pexels API key is not configured")
	}

	endpoint := fmt.Sprintf("%s/search?query=%s&per_page=%d",
		p.baseURL, url.QueryEscape(query), count)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying pexels: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pexels returned status %d: %s", resp.StatusCode, body)
	}

	var parsed struct {
		Photos []struct {
			Alt          string `json:"alt"`
			Photographer string `json:"photographer"`
			URL          string `json:"url"`
			Src          struct {
				Large  string `json:"large"`
				Medium string `json:"medium"`
			} `json:"src"`
		} `json:"photos"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding pexels response: %w", err)
	}

	photos := make([]Photo, 0, len(parsed.Photos))
	for _, r := range parsed.Photos {
		if r.Src.Large == "" {
			continue
		}
		photos = append(photos, Photo{
			URL:       r.Src.Large,
			ThumbURL:  r.Src.Medium,
			Alt:       r.Alt,
			Credit:    r.Photographer,
			CreditURL: r.URL,
			Source:    p.Source(),
		})
	}
	return photos, nil
}
