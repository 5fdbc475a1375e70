package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/scrivo-ai/scrivo/internal/crawler"
	"github.com/scrivo-ai/scrivo/internal/llm"
	"github.com/scrivo-ai/scrivo/internal/log"
	"github.com/scrivo-ai/scrivo/internal/media"
)

// crawlTextLimit bounds how much extracted page text a tool result carries.
const crawlTextLimit = 20_000

// PageFetcher retrieves and extracts a single page.
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (*crawler.Page, error)
}

// SiteWalker discovers pages across a site up to a page budget.
type SiteWalker interface {
	Crawl(ctx context.Context, startURL string, maxPages int) ([]crawler.PageSummary, error)
}

// Completer runs one provider completion. The llm dispatcher satisfies it.
type Completer interface {
	Complete(ctx context.Context, provider string, messages []llm.Message, overrides llm.Overrides, tools []llm.ToolDeclaration) (llm.Result, error)
}

// MediaRecorder persists media references. The media store satisfies it.
type MediaRecorder interface {
	Add(ctx context.Context, postID *int64, source, sourceURL, altText, credit string) (*media.Item, error)
}

// ResearchToolset provides crawl_url_for_page and image_to_page.
type ResearchToolset struct {
	fetcher   PageFetcher
	walker    SiteWalker
	completer Completer
	posts     PostStore
	media     MediaRecorder
	provider  string
	logger    log.Logger
}

// NewResearchToolset creates the toolset. provider names the model backend
// used when a tool needs a completion of its own.
func NewResearchToolset(fetcher PageFetcher, walker SiteWalker, completer Completer, posts PostStore, recorder MediaRecorder, provider string, logger log.Logger) *ResearchToolset {
	if logger == nil {
		logger = log.NewNop()
	}
	return &ResearchToolset{
		fetcher:   fetcher,
		walker:    walker,
		completer: completer,
		posts:     posts,
		media:     recorder,
		provider:  provider,
		logger:    logger,
	}
}

// Tools returns the toolset's catalog entries.
func (ts *ResearchToolset) Tools() []Tool {
	return []Tool{
		{
			Declaration: llm.ToolDeclaration{
				Name:        "crawl_url_for_page",
				Description: "Fetch a web page and extract its readable content, headings, links and images. With mode=site, discover pages across the whole site instead.",
				Parameters: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"url": {Type: "string", Description: "Absolute http(s) URL to fetch"},
						"mode": {
							Type:        "string",
							Description: "page fetches one URL, site discovers pages across the site",
							Enum:        []any{"page", "site"},
						},
						"max_pages": {Type: "integer", Description: "Page budget for site mode, default 10"},
					},
					Required: []string{"url"},
				},
			},
			Run: ts.crawlURL,
		},
		{
			Declaration: llm.ToolDeclaration{
				Name:        "image_to_page",
				Description: "Draft a new post built around an image. Writes a title and body fitting the image and the given description, creates the post as a draft and attaches the image.",
				Parameters: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"image_url":   {Type: "string", Description: "URL of the image the page is about"},
						"description": {Type: "string", Description: "What the image shows and what the page should cover"},
						"alt_text":    {Type: "string", Description: "Alt text for the image"},
						"credit":      {Type: "string", Description: "Attribution for the image"},
					},
					Required: []string{"image_url", "description"},
				},
			},
			Run: ts.imageToPage,
		},
	}
}

func (ts *ResearchToolset) crawlURL(ctx context.Context, args json.RawMessage) (Result, error) {
	var in struct {
		URL      string `json:"url"`
		Mode     string `json:"mode"`
		MaxPages int    `json:"max_pages"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return failure(ErrCodeInvalidArguments, "decoding arguments: %v", err), nil
	}
	if strings.TrimSpace(in.URL) == "" {
		return failure(ErrCodeInvalidArguments, "url is required"), nil
	}

	switch in.Mode {
	case "", "page":
		return ts.crawlPage(ctx, in.URL)
	case "site":
		return ts.crawlSite(ctx, in.URL, in.MaxPages)
	default:
		return failure(ErrCodeInvalidArguments, "mode must be page or site, got %q", in.Mode), nil
	}
}

func (ts *ResearchToolset) crawlPage(ctx context.Context, rawURL string) (Result, error) {
	page, err := ts.fetcher.FetchPage(ctx, rawURL)
	if err != nil {
		return failure(ErrCodeExecution, "fetching page: %v", err), nil
	}

	text := page.Text
	if len(text) > crawlTextLimit {
		text = text[:crawlTextLimit] + "..."
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("fetched %s (%d words)", page.URL, page.WordCount),
		Data: map[string]any{
			"url":        page.URL,
			"title":      page.Title,
			"byline":     page.Byline,
			"excerpt":    page.Excerpt,
			"text":       text,
			"word_count": page.WordCount,
			"headings":   page.Headings,
			"links":      page.Links,
			"images":     page.Images,
			"structure":  page.Structure,
		},
	}, nil
}

func (ts *ResearchToolset) crawlSite(ctx context.Context, startURL string, maxPages int) (Result, error) {
	pages, err := ts.walker.Crawl(ctx, startURL, maxPages)
	if err != nil {
		return failure(ErrCodeExecution, "crawling site: %v", err), nil
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("discovered %d pages", len(pages)),
		Data:    map[string]any{"pages": pages},
	}, nil
}

func (ts *ResearchToolset) imageToPage(ctx context.Context, args json.RawMessage) (Result, error) {
	var in struct {
		ImageURL    string `json:"image_url"`
		Description string `json:"description"`
		AltText     string `json:"alt_text"`
		Credit      string `json:"credit"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return failure(ErrCodeInvalidArguments, "decoding arguments: %v", err), nil
	}
	if strings.TrimSpace(in.ImageURL) == "" {
		return failure(ErrCodeInvalidArguments, "image_url is required"), nil
	}
	if strings.TrimSpace(in.Description) == "" {
		return failure(ErrCodeInvalidArguments, "description is required"), nil
	}

	prompt := fmt.Sprintf(
		"Write a post built around an image.\n\nImage description: %s\n\n"+
			"Respond with the post title on the first line, then a blank line, then the body as plain text paragraphs. "+
			"Do not mention that the post is based on an image.",
		in.Description,
	)
	result, err := ts.completer.Complete(ctx,
		ts.provider,
		[]llm.Message{
			{Role: llm.RoleSystem, Content: "You are a writing assistant drafting publication-ready posts."},
			{Role: llm.RoleUser, Content: prompt},
		},
		llm.Overrides{},
		nil,
	)
	if err != nil {
		return failure(ErrCodeExecution, "drafting page: %v", err), nil
	}
	if result.Type != llm.ResultContent || strings.TrimSpace(result.Content) == "" {
		return failure(ErrCodeExecution, "model returned no draft text"), nil
	}

	title, body := splitDraft(result.Content)
	post, err := ts.posts.Create(ctx, title, BlocksFromText(body), "", "draft")
	if err != nil {
		return failure(ErrCodeExecution, "creating post: %v", err), nil
	}

	alt := in.AltText
	if alt == "" {
		alt = title
	}
	if _, err := ts.media.Add(ctx, &post.ID, media.SourceUpload, in.ImageURL, alt, in.Credit); err != nil {
		ts.logger.Warn("attaching image failed", "post_id", post.ID, "error", err)
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("created draft post %d from image", post.ID),
		Data: map[string]any{
			"post_id":   post.ID,
			"title":     title,
			"edit_link": post.EditLink(),
			"image_url": in.ImageURL,
		},
	}, nil
}

// splitDraft separates a drafted post into title and body. The first
// non-empty line is the title, a leading markdown heading marker is
// stripped from it.
func splitDraft(text string) (title, body string) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		title = strings.TrimSpace(strings.TrimLeft(line, "# "))
		body = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		return title, body
	}
	return "Untitled", ""
}
