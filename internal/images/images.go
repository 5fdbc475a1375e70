// Package images finds stock photos and generates images for posts.
package images

import (
	"context"
	"errors"
	"fmt"

	"github.com/scrivo-ai/scrivo/internal/log"
)

// ErrNoResults is returned when a search yields nothing usable.
var ErrNoResults = errors.New("no images found")

// Photo is one usable image with attribution.
type Photo struct {
	URL       string `json:"url"`
	ThumbURL  string `json:"thumb_url,omitempty"`
	Alt       string `json:"alt,omitempty"`
	Credit    string `json:"credit,omitempty"`
	CreditURL string `json:"credit_url,omitempty"`
	Source    string `json:"source"`
}

// Searcher is one stock photo backend.
type Searcher interface {
	Source() string
	Search(ctx context.Context, query string, count int) ([]Photo, error)
}

// Finder queries stock photo backends in order and returns the first
// non-empty result set. A backend error is logged and the next backend
// tried; only a full miss is an error.
type Finder struct {
	backends []Searcher
	logger   log.Logger
}

// NewFinder creates a Finder over the given backends.
func NewFinder(logger log.Logger, backends ...Searcher) *Finder {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Finder{backends: backends, logger: logger}
}

// Find searches backends in order.
func (f *Finder) Find(ctx context.Context, query string, count int) ([]Photo, error) {
	if count <= 0 || count > 10 {
		count = 3
	}
	for _, b := range f.backends {
		photos, err := b.Search(ctx, query, count)
		if err != nil {
			f.logger.Warn("image search failed", "source", b.Source(), "error", err)
			continue
		}
		if len(photos) > 0 {
			return photos, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoResults, query)
}
