package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrivo-ai/scrivo/internal/images"
	"github.com/scrivo-ai/scrivo/internal/media"
)

type fakeFinder struct {
	photos   []images.Photo
	err      error
	gotQuery string
	gotCount int
}

func (f *fakeFinder) Find(_ context.Context, query string, count int) ([]images.Photo, error) {
	f.gotQuery = query
	f.gotCount = count
	return f.photos, f.err
}

type fakeGenerator struct {
	image     *images.GeneratedImage
	err       error
	gotPrompt string
	gotSize   string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt, size string) (*images.GeneratedImage, error) {
	f.gotPrompt = prompt
	f.gotSize = size
	return f.image, f.err
}

func TestGetFreeImage(t *testing.T) {
	finder := &fakeFinder{photos: []images.Photo{
		{URL: "https://images.example.com/1.jpg", Alt: "a forest", Credit: "Bo", Source: "unsplash"},
		{URL: "https://images.example.com/2.jpg", Source: "unsplash"},
	}}
	ts := NewMediaToolset(finder, &fakeGenerator{}, &fakeMediaRecorder{}, nil)

	result, err := ts.getFreeImage(context.Background(), json.RawMessage(`{"query":"forest","count":2}`))

	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "forest", finder.gotQuery)
	assert.Equal(t, 2, finder.gotCount)
	assert.Contains(t, result.Message, "2 images")

	photos, ok := result.Data["images"].([]images.Photo)
	require.True(t, ok)
	assert.Equal(t, "https://images.example.com/1.jpg", photos[0].URL)
}

func TestGetFreeImageAttachesToPost(t *testing.T) {
	finder := &fakeFinder{photos: []images.Photo{
		{URL: "https://images.example.com/1.jpg", Alt: "a forest", Credit: "Bo", Source: "pexels"},
	}}
	recorder := &fakeMediaRecorder{}
	ts := NewMediaToolset(finder, &fakeGenerator{}, recorder, nil)

	result, err := ts.getFreeImage(context.Background(), json.RawMessage(`{"query":"forest","post_id":12}`))

	require.NoError(t, err)
	require.True(t, result.Success)

	require.Len(t, recorder.items, 1)
	item := recorder.items[0]
	assert.Equal(t, "pexels", item.Source)
	assert.Equal(t, "https://images.example.com/1.jpg", item.SourceURL)
	assert.Equal(t, "a forest", item.AltText)
	require.NotNil(t, item.PostID)
	assert.Equal(t, int64(12), *item.PostID)
}

func TestGetFreeImageNoResults(t *testing.T) {
	finder := &fakeFinder{err: images.ErrNoResults}
	ts := NewMediaToolset(finder, &fakeGenerator{}, &fakeMediaRecorder{}, nil)

	result, err := ts.getFreeImage(context.Background(), json.RawMessage(`{"query":"zzzzz"}`))

	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Equal(t, ErrCodeExecution, result.Error)
	assert.Contains(t, result.Message, "no images found")
}

func TestGetFreeImageMissingQuery(t *testing.T) {
	ts := NewMediaToolset(&fakeFinder{}, &fakeGenerator{}, &fakeMediaRecorder{}, nil)

	result, err := ts.getFreeImage(context.Background(), json.RawMessage(`{}`))

	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Equal(t, ErrCodeInvalidArguments, result.Error)
}

func TestGenerateImage(t *testing.T) {
	gen := &fakeGenerator{image: &images.GeneratedImage{
		URL:           "https://cdn.example.com/gen.png",
		RevisedPrompt: "a watercolor of a lighthouse at dusk",
	}}
	recorder := &fakeMediaRecorder{}
	ts := NewMediaToolset(&fakeFinder{}, gen, recorder, nil)

	result, err := ts.generateImage(context.Background(), json.RawMessage(
		`{"prompt":"a lighthouse at dusk","size":"1792x1024","post_id":9}`,
	))

	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "a lighthouse at dusk", gen.gotPrompt)
	assert.Equal(t, "1792x1024", gen.gotSize)
	assert.Equal(t, "https://cdn.example.com/gen.png", result.Data["url"])
	assert.Equal(t, "a watercolor of a lighthouse at dusk", result.Data["revised_prompt"])

	require.Len(t, recorder.items, 1)
	assert.Equal(t, media.SourceGenerated, recorder.items[0].Source)
	assert.Equal(t, "a lighthouse at dusk", recorder.items[0].AltText)
}

func TestGenerateImageFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("content policy violation")}
	ts := NewMediaToolset(&fakeFinder{}, gen, &fakeMediaRecorder{}, nil)

	result, err := ts.generateImage(context.Background(), json.RawMessage(`{"prompt":"x"}`))

	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Equal(t, ErrCodeExecution, result.Error)
	assert.Contains(t, result.Message, "content policy violation")
}

func TestToolsetCatalog(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.RegisterAll(
		NewContentToolset(&fakePostStore{}, nil),
		NewResearchToolset(&fakeFetcher{}, &fakeWalker{}, &fakeCompleter{}, &fakePostStore{}, &fakeMediaRecorder{}, "openai", nil),
		NewMediaToolset(&fakeFinder{}, &fakeGenerator{}, &fakeMediaRecorder{}, nil),
	)

	assert.Equal(t, []string{
		"create_post",
		"edit_post",
		"search_posts",
		"get_post_content",
		"crawl_url_for_page",
		"image_to_page",
		"get_free_image",
		"generate_image",
	}, r.Names())

	for _, decl := range r.Declarations() {
		assert.NotEmpty(t, decl.Description, decl.Name)
		require.NotNil(t, decl.Parameters, decl.Name)
		assert.Equal(t, "object", decl.Parameters.Type, decl.Name)
	}
}
