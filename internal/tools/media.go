package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/scrivo-ai/scrivo/internal/images"
	"github.com/scrivo-ai/scrivo/internal/llm"
	"github.com/scrivo-ai/scrivo/internal/log"
	"github.com/scrivo-ai/scrivo/internal/media"
)

// ImageFinder searches stock photo backends.
type ImageFinder interface {
	Find(ctx context.Context, query string, count int) ([]images.Photo, error)
}

// ImageGenerator creates images from prompts.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, size string) (*images.GeneratedImage, error)
}

// MediaToolset provides get_free_image and generate_image.
type MediaToolset struct {
	finder    ImageFinder
	generator ImageGenerator
	media     MediaRecorder
	logger    log.Logger
}

// NewMediaToolset creates the toolset.
func NewMediaToolset(finder ImageFinder, generator ImageGenerator, recorder MediaRecorder, logger log.Logger) *MediaToolset {
	if logger == nil {
		logger = log.NewNop()
	}
	return &MediaToolset{finder: finder, generator: generator, media: recorder, logger: logger}
}

// Tools returns the toolset's catalog entries.
func (ts *MediaToolset) Tools() []Tool {
	return []Tool{
		{
			Declaration: llm.ToolDeclaration{
				Name:        "get_free_image",
				Description: "Search free stock photo libraries for images matching a query. Optionally attaches the best match to a post.",
				Parameters: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"query":   {Type: "string", Description: "What the image should show"},
						"count":   {Type: "integer", Description: "Number of candidates to return, default 3"},
						"post_id": {Type: "integer", Description: "Post to attach the first match to"},
					},
					Required: []string{"query"},
				},
			},
			Run: ts.getFreeImage,
		},
		{
			Declaration: llm.ToolDeclaration{
				Name:        "generate_image",
				Description: "Generate a new image from a text prompt. Optionally attaches the result to a post.",
				Parameters: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"prompt": {Type: "string", Description: "What to generate"},
						"size": {
							Type:        "string",
							Description: "Image dimensions",
							Enum:        []any{"1024x1024", "1792x1024", "1024x1792"},
						},
						"post_id": {Type: "integer", Description: "Post to attach the image to"},
					},
					Required: []string{"prompt"},
				},
			},
			Run: ts.generateImage,
		},
	}
}

func (ts *MediaToolset) getFreeImage(ctx context.Context, args json.RawMessage) (Result, error) {
	var in struct {
		Query  string `json:"query"`
		Count  int    `json:"count"`
		PostID int64  `json:"post_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return failure(ErrCodeInvalidArguments, "decoding arguments: %v", err), nil
	}
	if strings.TrimSpace(in.Query) == "" {
		return failure(ErrCodeInvalidArguments, "query is required"), nil
	}

	photos, err := ts.finder.Find(ctx, in.Query, in.Count)
	if err != nil {
		return failure(ErrCodeExecution, "searching images: %v", err), nil
	}

	if in.PostID > 0 && len(photos) > 0 {
		best := photos[0]
		if _, err := ts.media.Add(ctx, &in.PostID, best.Source, best.URL, best.Alt, best.Credit); err != nil {
			ts.logger.Warn("attaching image failed", "post_id", in.PostID, "error", err)
		}
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("found %d images for %q", len(photos), in.Query),
		Data:    map[string]any{"images": photos},
	}, nil
}

func (ts *MediaToolset) generateImage(ctx context.Context, args json.RawMessage) (Result, error) {
	var in struct {
		Prompt string `json:"prompt"`
		Size   string `json:"size"`
		PostID int64  `json:"post_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return failure(ErrCodeInvalidArguments, "decoding arguments: %v", err), nil
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return failure(ErrCodeInvalidArguments, "prompt is required"), nil
	}

	img, err := ts.generator.Generate(ctx, in.Prompt, in.Size)
	if err != nil {
		return failure(ErrCodeExecution, "generating image: %v", err), nil
	}

	if in.PostID > 0 {
		if _, err := ts.media.Add(ctx, &in.PostID, media.SourceGenerated, img.URL, in.Prompt, ""); err != nil {
			ts.logger.Warn("attaching image failed", "post_id", in.PostID, "error", err)
		}
	}

	data := map[string]any{"url": img.URL}
	if img.RevisedPrompt != "" {
		data["revised_prompt"] = img.RevisedPrompt
	}
	return Result{
		Success: true,
		Message: "image generated",
		Data:    data,
	}, nil
}
