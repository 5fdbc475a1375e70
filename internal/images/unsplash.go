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

const unsplashDefaultBaseURL = "https://api.unsplash.com"

// Unsplash searches the Unsplash photo API.
type Unsplash struct {
	accessKey string
	baseURL   string
	client    *http.Client
}

// NewUnsplash creates an Unsplash backend. baseURL overrides the API host
// for tests; empty uses the official one.
func NewUnsplash(accessKey, baseURL string, client *http.Client) *Unsplash {
	if baseURL == "" {
		baseURL = unsplashDefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Unsplash{accessKey: accessKey, baseURL: baseURL, client: client}
}

// Source returns "unsplash".
func (u *Unsplash) Source() string { return "unsplash" }

// Search queries the search/photos endpoint.
func (u *Unsplash) Search(ctx context.Context, query string, count int) ([]Photo, error) {
	if u.accessKey == "" {
		return nil, fmt.Errorf("unsplash access key is not configured")
	}

	endpoint := fmt.Sprintf("%s/search/photos?query=%s&per_page=%d",
		u.baseURL, url.QueryEscape(query), count)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+u.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying unsplash: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unsplash returned status %d: %s", resp.StatusCode, body)
	}

	var parsed struct {
		Results []struct {
			URLs struct {
				Regular string `json:"regular"`
				Small   string `json:"small"`
			} `json:"urls"`
			AltDescription string `json:"alt_description"`
			User           struct {
				Name  string `json:"name"`
				Links struct {
					HTML string `json:"html"`
				} `json:"links"`
			} `json:"user"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding unsplash response: %w", err)
	}

	photos := make([]Photo, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URLs.Regular == "" {
			continue
		}
		photos = append(photos, Photo{
			URL:       r.URLs.Regular,
			ThumbURL:  r.URLs.Small,
			Alt:       r.AltDescription,
			Credit:    r.User.Name,
			CreditURL: r.User.Links.HTML,
			Source:    u.Source(),
		})
	}
	return photos, nil
}
