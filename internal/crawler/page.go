// Package crawler fetches and dissects web pages for the research tools.
//
// All outbound requests pass through an SSRF validator; the model chooses
// the URLs, so nothing it supplies may reach internal infrastructure.
package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/scrivo-ai/scrivo/internal/log"
)

const (
	maxPageBytes = 5 << 20
	fetchTimeout = 30 * time.Second
)

// Heading is one outline entry of a fetched page.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Link is one hyperlink found on a page, resolved to an absolute URL.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
}

// Image is one image reference found on a page.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// Page is the extracted view of one fetched URL.
type Page struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Byline    string    `json:"byline,omitempty"`
	Excerpt   string    `json:"excerpt,omitempty"`
	Text      string    `json:"text"`
	WordCount int       `json:"word_count"`
	Headings  []Heading `json:"headings,omitempty"`
	Links     []Link    `json:"links,omitempty"`
	Images    []Image   `json:"images,omitempty"`
	Structure Structure `json:"structure"`
}

// Validator is the SSRF guard contract the fetcher depends on.
type Validator interface {
	Validate(rawURL string) error
}

// Fetcher retrieves single pages and extracts readable content.
type Fetcher struct {
	validator Validator
	client    *http.Client
	logger    log.Logger
}

// NewFetcher creates a Fetcher. A nil client gets a default with the fetch
// timeout; pass a validator-backed safe client in production.
func NewFetcher(validator Validator, client *http.Client, logger log.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Fetcher{validator: validator, client: client, logger: logger}
}

// FetchPage retrieves one URL and returns its extracted content: readable
// text via readability, structure via the DOM.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	if f.validator != nil {
		if err := f.validator.Validate(rawURL); err != nil {
			return nil, fmt.Errorf("unsafe URL: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "scrivo-crawler/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "xml") {
		return nil, fmt.Errorf("fetching %s: unsupported content type %s", rawURL, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}

	return f.extract(rawURL, body)
}

func (f *Fetcher) extract(rawURL string, body []byte) (*Page, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing URL: %w", err)
	}

	page := &Page{URL: rawURL, Structure: analyzeStructure(body)}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil {
		page.Title = article.Title
		page.Byline = article.Byline
		page.Excerpt = article.Excerpt
		page.Text = strings.TrimSpace(article.TextContent)
	} else {
		f.logger.Debug("readability extraction failed, falling back to raw text", "url", rawURL, "error", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	if page.Title == "" {
		page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if page.Text == "" {
		page.Text = strings.TrimSpace(doc.Find("body").Text())
	}
	page.WordCount = len(strings.Fields(page.Text))

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		level := int(s.Nodes[0].Data[1] - '0')
		page.Headings = append(page.Headings, Heading{Level: level, Text: text})
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := resolveURL(pageURL, href)
		if abs == "" {
			return
		}
		page.Links = append(page.Links, Link{URL: abs, Text: strings.TrimSpace(s.Text())})
	})

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		abs := resolveURL(pageURL, src)
		if abs == "" {
			return
		}
		alt, _ := s.Attr("alt")
		page.Images = append(page.Images, Image{URL: abs, Alt: strings.TrimSpace(alt)})
	})

	return page, nil
}

// resolveURL makes a reference absolute against the page URL. Non-http
// references (mailto, javascript, fragments) resolve to empty.
func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}
