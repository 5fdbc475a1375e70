package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrivo-ai/scrivo/internal/content"
)

type fakePostStore struct {
	created      *content.Post
	gotTitle     string
	gotBlocks    []*content.Block
	gotStatus    string
	gotReason    string
	gotBlockID   string
	gotBlockText string
	searchHits   []content.SearchHit
	gotQuery     string
	gotLimit     int
	err          error
}

func (f *fakePostStore) Create(_ context.Context, title string, blocks []*content.Block, excerpt, status string) (*content.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotTitle = title
	f.gotBlocks = blocks
	f.gotStatus = status
	if status == "" {
		status = content.StatusDraft
	}
	f.created = &content.Post{ID: 7, Title: title, Excerpt: excerpt, Status: status}
	return f.created, nil
}

func (f *fakePostStore) Get(_ context.Context, id int64) (*content.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	blocks := []*content.Block{{ID: "blk_a", Type: content.BlockParagraph, Content: "hello"}}
	rendered, err := content.RenderBlocks(blocks)
	if err != nil {
		return nil, err
	}
	return &content.Post{ID: id, Title: "stored", Status: content.StatusDraft, Content: rendered}, nil
}

func (f *fakePostStore) Update(_ context.Context, id int64, title string, blocks []*content.Block, excerpt, status, reason string) (*content.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotTitle = title
	f.gotBlocks = blocks
	f.gotStatus = status
	f.gotReason = reason
	return &content.Post{ID: id, Title: title, Status: content.StatusDraft}, nil
}

func (f *fakePostStore) UpdateBlockByID(_ context.Context, postID int64, blockID, newContent string, _ map[string]any) (*content.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotBlockID = blockID
	f.gotBlockText = newContent
	return &content.Post{ID: postID, Status: content.StatusDraft}, nil
}

func (f *fakePostStore) Search(_ context.Context, query string, limit int) ([]content.SearchHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotQuery = query
	f.gotLimit = limit
	return f.searchHits, nil
}

func TestCreatePost(t *testing.T) {
	store := &fakePostStore{}
	ts := NewContentToolset(store, nil)

	result, err := ts.createPost(context.Background(), json.RawMessage(
		`{"title":"Garden Notes","content":"# Spring\n\nFirst paragraph.\n\n- one\n- two","status":"draft"}`,
	))

	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, int64(7), result.Data["post_id"])
	assert.Equal(t, "/posts/7/edit", result.Data["edit_link"])

	require.Len(t, store.gotBlocks, 3)
	assert.Equal(t, content.BlockHeading, store.gotBlocks[0].Type)
	assert.Equal(t, "Spring", store.gotBlocks[0].Content)
	assert.Equal(t, content.BlockParagraph, store.gotBlocks[1].Type)
	assert.Equal(t, content.BlockList, store.gotBlocks[2].Type)
	require.Len(t, store.gotBlocks[2].Children, 2)
	assert.Equal(t, "one", store.gotBlocks[2].Children[0].Content)
}

func TestCreatePostMissingTitle(t *testing.T) {
	ts := NewContentToolset(&fakePostStore{}, nil)

	result, err := ts.createPost(context.Background(), json.RawMessage(`{"content":"body"}`))

	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Equal(t, ErrCodeInvalidArguments, result.Error)
	assert.Contains(t, result.Message, "title")
}

func TestEditPostWholeBody(t *testing.T) {
	store := &fakePostStore{}
	ts := NewContentToolset(store, nil)

	result, err := ts.editPost(context.Background(), json.RawMessage(
		`{"post_id":3,"title":"New Title","content":"Rewritten."}`,
	))

	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, int64(3), result.Data["post_id"])
	assert.Equal(t, "New Title", store.gotTitle)
	require.Len(t, store.gotBlocks, 1)
	assert.Equal(t, "Rewritten.", store.gotBlocks[0].Content)
}

func TestEditPostSingleBlock(t *testing.T) {
	store := &fakePostStore{}
	ts := NewContentToolset(store, nil)

	result, err := ts.editPost(context.Background(), json.RawMessage(
		`{"post_id":3,"block_id":"blk_a","block_content":"replacement text"}`,
	))

	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Contains(t, result.Message, "blk_a")
	assert.Equal(t, "blk_a", store.gotBlockID)
	assert.Equal(t, "replacement text", store.gotBlockText)
}

func TestEditPostBlockNotFound(t *testing.T) {
	store := &fakePostStore{err: content.ErrBlockNotFound}
	ts := NewContentToolset(store, nil)

	result, err := ts.editPost(context.Background(), json.RawMessage(
		`{"post_id":3,"block_id":"blk_missing","block_content":"x"}`,
	))

	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Equal(t, ErrCodeExecution, result.Error)
	assert.Contains(t, result.Message, "block not found")
}

func TestEditPostMissingID(t *testing.T) {
	ts := NewContentToolset(&fakePostStore{}, nil)

	result, err := ts.editPost(context.Background(), json.RawMessage(`{"title":"x"}`))

	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Equal(t, ErrCodeInvalidArguments, result.Error)
}

func TestSearchPosts(t *testing.T) {
	store := &fakePostStore{searchHits: []content.SearchHit{
		{ID: 1, Title: "Tomatoes", Excerpt: "growing", Status: "publish"},
		{ID: 2, Title: "Peppers", Status: "draft"},
	}}
	ts := NewContentToolset(store, nil)

	result, err := ts.searchPosts(context.Background(), json.RawMessage(`{"query":"vegetables","limit":5}`))

	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "vegetables", store.gotQuery)
	assert.Equal(t, 5, store.gotLimit)
	assert.Contains(t, result.Message, "2 posts")

	results, ok := result.Data["results"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0]["post_id"])
	assert.Equal(t, "Tomatoes", results[0]["title"])
}

func TestGetPostContent(t *testing.T) {
	ts := NewContentToolset(&fakePostStore{}, nil)

	result, err := ts.getPostContent(context.Background(), json.RawMessage(`{"post_id":42}`))

	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, int64(42), result.Data["post_id"])
	assert.Equal(t, "stored", result.Data["title"])

	blocks, ok := result.Data["blocks"].([]*content.Block)
	require.True(t, ok)
	require.Len(t, blocks, 1)
	assert.Equal(t, "blk_a", blocks[0].ID)
}

func TestBlocksFromText(t *testing.T) {
	blocks := BlocksFromText("# Title\n\nFirst para.\nstill first chunk\n\n- a\n- b\n\n## Sub")

	require.Len(t, blocks, 5)
	assert.Equal(t, content.BlockHeading, blocks[0].Type)
	assert.Equal(t, 1, blocks[0].Attributes["level"])
	assert.Equal(t, content.BlockParagraph, blocks[1].Type)
	assert.Equal(t, "First para.", blocks[1].Content)
	assert.Equal(t, "still first chunk", blocks[2].Content)
	assert.Equal(t, content.BlockList, blocks[3].Type)
	require.Len(t, blocks[3].Children, 2)
	assert.Equal(t, content.BlockHeading, blocks[4].Type)
	assert.Equal(t, 2, blocks[4].Attributes["level"])

	for _, b := range blocks {
		assert.NotEmpty(t, b.ID)
	}
}

func TestBlocksFromTextEmpty(t *testing.T) {
	assert.Empty(t, BlocksFromText(""))
	assert.Empty(t, BlocksFromText("\n\n  \n"))
}
