package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gocolly/colly/v2"

	"github.com/scrivo-ai/scrivo/internal/log"
)

// Site crawl bounds. The crawl stays on the start host and never follows
// more than a shallow layer of links.
const (
	defaultMaxPages = 10
	maxCrawlPages   = 25
	maxCrawlDepth   = 2
)

// PageSummary is one page discovered by a site crawl.
type PageSummary struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// SiteCrawler walks a site breadth-first within fixed bounds.
type SiteCrawler struct {
	validator Validator
	logger    log.Logger

	// DefaultMaxPages applies when a crawl does not name its own page
	// count. Zero falls back to the package default.
	DefaultMaxPages int
}

// NewSiteCrawler creates a SiteCrawler.
func NewSiteCrawler(validator Validator, logger log.Logger) *SiteCrawler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &SiteCrawler{validator: validator, logger: logger}
}

// Crawl visits up to maxPages pages reachable from startURL on the same
// host and returns their titles. maxPages <= 0 uses the default; the hard
// cap always applies.
func (c *SiteCrawler) Crawl(ctx context.Context, startURL string, maxPages int) ([]PageSummary, error) {
	if c.validator != nil {
		if err := c.validator.Validate(startURL); err != nil {
			return nil, fmt.Errorf("unsafe URL: %w", err)
		}
	}
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("parsing start URL: %w", err)
	}
	if maxPages <= 0 {
		maxPages = c.DefaultMaxPages
	}
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	if maxPages > maxCrawlPages {
		maxPages = maxCrawlPages
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(start.Hostname()),
		colly.MaxDepth(maxCrawlDepth),
		colly.UserAgent("scrivo-crawler/1.0"),
	)
	collector.SetRequestTimeout(fetchTimeout)

	var (
		mu      sync.Mutex
		pages   []PageSummary
		visited int
	)

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		mu.Lock()
		full := visited >= maxPages
		if !full {
			visited++
		}
		mu.Unlock()
		if full {
			r.Abort()
			return
		}
		if c.validator != nil {
			if err := c.validator.Validate(r.URL.String()); err != nil {
				c.logger.Warn("skipping unsafe crawl target", "url", r.URL.String(), "error", err)
				r.Abort()
			}
		}
	})

	collector.OnHTML("title", func(e *colly.HTMLElement) {
		mu.Lock()
		defer mu.Unlock()
		pages = append(pages, PageSummary{
			URL:   e.Request.URL.String(),
			Title: strings.TrimSpace(e.Text),
		})
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		// Errors here mean the link was filtered (off-domain, depth, dupe).
		_ = e.Request.Visit(link)
	})

	if err := collector.Visit(startURL); err != nil {
		return nil, fmt.Errorf("crawling %s: %w", startURL, err)
	}
	collector.Wait()

	if err := ctx.Err(); err != nil {
		return pages, err
	}
	c.logger.Info("site crawl finished", "start", startURL, "pages", len(pages))
	return pages, nil
}
