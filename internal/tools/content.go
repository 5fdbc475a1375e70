package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/scrivo-ai/scrivo/internal/content"
	"github.com/scrivo-ai/scrivo/internal/llm"
	"github.com/scrivo-ai/scrivo/internal/log"
)

// PostStore is the content surface the post tools need.
type PostStore interface {
	Create(ctx context.Context, title string, blocks []*content.Block, excerpt, status string) (*content.Post, error)
	Get(ctx context.Context, id int64) (*content.Post, error)
	Update(ctx context.Context, id int64, title string, blocks []*content.Block, excerpt, status, reason string) (*content.Post, error)
	UpdateBlockByID(ctx context.Context, postID int64, blockID, newContent string, attrs map[string]any) (*content.Post, error)
	Search(ctx context.Context, query string, limit int) ([]content.SearchHit, error)
}

// ContentToolset provides the post manipulation tools: create_post,
// edit_post, search_posts and get_post_content.
type ContentToolset struct {
	posts  PostStore
	logger log.Logger
}

// NewContentToolset creates the toolset.
func NewContentToolset(posts PostStore, logger log.Logger) *ContentToolset {
	if logger == nil {
		logger = log.NewNop()
	}
	return &ContentToolset{posts: posts, logger: logger}
}

// Tools returns the toolset's catalog entries.
func (ts *ContentToolset) Tools() []Tool {
	return []Tool{
		{
			Declaration: llm.ToolDeclaration{
				Name:        "create_post",
				Description: "Create a new post. Content is plain text: blank lines separate paragraphs, lines starting with #/##/### become headings, lines starting with - become list items.",
				Parameters: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"title":   {Type: "string", Description: "Post title"},
						"content": {Type: "string", Description: "Post body as plain text"},
						"excerpt": {Type: "string", Description: "Short summary shown in listings"},
						"status": {
							Type:        "string",
							Description: "Post status",
							Enum:        []any{"draft", "pending", "publish", "private"},
						},
					},
					Required: []string{"title", "content"},
				},
			},
			Run: ts.createPost,
		},
		{
			Declaration: llm.ToolDeclaration{
				Name:        "edit_post",
				Description: "Edit an existing post. Provide block_id with block_content to rewrite a single block; otherwise title/content/excerpt/status replace the whole field.",
				Parameters: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"post_id":       {Type: "integer", Description: "Id of the post to edit"},
						"title":         {Type: "string", Description: "New title"},
						"content":       {Type: "string", Description: "New body as plain text, replaces the whole body"},
						"excerpt":       {Type: "string", Description: "New excerpt"},
						"block_id":      {Type: "string", Description: "Id of a single block to rewrite"},
						"block_content": {Type: "string", Description: "New content for the addressed block"},
						"status": {
							Type:        "string",
							Description: "New status",
							Enum:        []any{"draft", "pending", "publish", "private"},
						},
					},
					Required: []string{"post_id"},
				},
			},
			Run: ts.editPost,
		},
		{
			Declaration: llm.ToolDeclaration{
				Name:        "search_posts",
				Description: "Full-text search over existing posts. Returns matching posts with id, title and excerpt.",
				Parameters: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"query": {Type: "string", Description: "Search terms"},
						"limit": {Type: "integer", Description: "Maximum results, default 10"},
					},
					Required: []string{"query"},
				},
			},
			Run: ts.searchPosts,
		},
		{
			Declaration: llm.ToolDeclaration{
				Name:        "get_post_content",
				Description: "Fetch a post's full content including its block structure with block ids, for use before targeted edits.",
				Parameters: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"post_id": {Type: "integer", Description: "Id of the post to fetch"},
					},
					Required: []string{"post_id"},
				},
			},
			Run: ts.getPostContent,
		},
	}
}

func (ts *ContentToolset) createPost(ctx context.Context, args json.RawMessage) (Result, error) {
	var in struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Excerpt string `json:"excerpt"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return failure(ErrCodeInvalidArguments, "decoding arguments: %v", err), nil
	}
	if strings.TrimSpace(in.Title) == "" {
		return failure(ErrCodeInvalidArguments, "title is required"), nil
	}
	if strings.TrimSpace(in.Content) == "" {
		return failure(ErrCodeInvalidArguments, "content is required"), nil
	}

	post, err := ts.posts.Create(ctx, in.Title, BlocksFromText(in.Content), in.Excerpt, in.Status)
	if err != nil {
		return failure(ErrCodeExecution, "creating post: %v", err), nil
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("created post %d (%s)", post.ID, post.Status),
		Data: map[string]any{
			"post_id":   post.ID,
			"edit_link": post.EditLink(),
			"status":    post.Status,
		},
	}, nil
}

func (ts *ContentToolset) editPost(ctx context.Context, args json.RawMessage) (Result, error) {
	var in struct {
		PostID       int64          `json:"post_id"`
		Title        string         `json:"title"`
		Content      string         `json:"content"`
		Excerpt      string         `json:"excerpt"`
		Status       string         `json:"status"`
		BlockID      string         `json:"block_id"`
		BlockContent string         `json:"block_content"`
		BlockAttrs   map[string]any `json:"block_attributes"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return failure(ErrCodeInvalidArguments, "decoding arguments: %v", err), nil
	}
	if in.PostID <= 0 {
		return failure(ErrCodeInvalidArguments, "post_id is required"), nil
	}

	if in.BlockID != "" {
		post, err := ts.posts.UpdateBlockByID(ctx, in.PostID, in.BlockID, in.BlockContent, in.BlockAttrs)
		if err != nil {
			return failure(ErrCodeExecution, "editing block: %v", err), nil
		}
		return Result{
			Success: true,
			Message: fmt.Sprintf("updated block %s of post %d", in.BlockID, post.ID),
			Data: map[string]any{
				"post_id":   post.ID,
				"edit_link": post.EditLink(),
			},
		}, nil
	}

	var blocks []*content.Block
	if strings.TrimSpace(in.Content) != "" {
		blocks = BlocksFromText(in.Content)
	}
	post, err := ts.posts.Update(ctx, in.PostID, in.Title, blocks, in.Excerpt, in.Status, "edited via assistant")
	if err != nil {
		return failure(ErrCodeExecution, "updating post: %v", err), nil
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("updated post %d", post.ID),
		Data: map[string]any{
			"post_id":   post.ID,
			"edit_link": post.EditLink(),
			"status":    post.Status,
		},
	}, nil
}

func (ts *ContentToolset) searchPosts(ctx context.Context, args json.RawMessage) (Result, error) {
	var in struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return failure(ErrCodeInvalidArguments, "decoding arguments: %v", err), nil
	}
	if strings.TrimSpace(in.Query) == "" {
		return failure(ErrCodeInvalidArguments, "query is required"), nil
	}

	hits, err := ts.posts.Search(ctx, in.Query, in.Limit)
	if err != nil {
		return failure(ErrCodeExecution, "searching posts: %v", err), nil
	}
	results := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		results = append(results, map[string]any{
			"post_id": h.ID,
			"title":   h.Title,
			"excerpt": h.Excerpt,
			"status":  h.Status,
		})
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("found %d posts", len(results)),
		Data:    map[string]any{"results": results},
	}, nil
}

func (ts *ContentToolset) getPostContent(ctx context.Context, args json.RawMessage) (Result, error) {
	var in struct {
		PostID int64 `json:"post_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return failure(ErrCodeInvalidArguments, "decoding arguments: %v", err), nil
	}
	if in.PostID <= 0 {
		return failure(ErrCodeInvalidArguments, "post_id is required"), nil
	}

	post, err := ts.posts.Get(ctx, in.PostID)
	if err != nil {
		return failure(ErrCodeExecution, "fetching post: %v", err), nil
	}
	blocks, err := content.ParseBlocks(post.Content)
	if err != nil {
		return failure(ErrCodeExecution, "decoding post body: %v", err), nil
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("post %d: %s", post.ID, post.Title),
		Data: map[string]any{
			"post_id":   post.ID,
			"title":     post.Title,
			"status":    post.Status,
			"excerpt":   post.Excerpt,
			"blocks":    blocks,
			"edit_link": post.EditLink(),
		},
	}, nil
}

// BlocksFromText converts plain text into a block tree: blank-line
// separated paragraphs, #-prefixed headings, --prefixed list items.
func BlocksFromText(text string) []*content.Block {
	var blocks []*content.Block
	var list *content.Block

	flushList := func() {
		if list != nil {
			blocks = append(blocks, list)
			list = nil
		}
	}

	for _, chunk := range strings.Split(text, "\n\n") {
		for _, line := range strings.Split(chunk, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			switch {
			case strings.HasPrefix(line, "### "):
				flushList()
				blocks = append(blocks, headingBlock(3, strings.TrimPrefix(line, "### ")))
			case strings.HasPrefix(line, "## "):
				flushList()
				blocks = append(blocks, headingBlock(2, strings.TrimPrefix(line, "## ")))
			case strings.HasPrefix(line, "# "):
				flushList()
				blocks = append(blocks, headingBlock(1, strings.TrimPrefix(line, "# ")))
			case strings.HasPrefix(line, "- "):
				if list == nil {
					list = &content.Block{Type: content.BlockList}
				}
				list.Children = append(list.Children, &content.Block{
					Type:    content.BlockListItem,
					Content: strings.TrimPrefix(line, "- "),
				})
			default:
				flushList()
				blocks = append(blocks, &content.Block{Type: content.BlockParagraph, Content: line})
			}
		}
		flushList()
	}
	content.EnsureIDs(blocks)
	return blocks
}

func headingBlock(level int, text string) *content.Block {
	return &content.Block{
		Type:       content.BlockHeading,
		Content:    strings.TrimSpace(text),
		Attributes: map[string]any{"level": level},
	}
}
