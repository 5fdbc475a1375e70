package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrivo-ai/scrivo/internal/content"
	"github.com/scrivo-ai/scrivo/internal/media"
)

type fakePostReader struct {
	post      *content.Post
	revisions []content.Revision
	restored  *content.Post

	gotPostID     int64
	gotRevisionID int64
	gotLimit      int

	getErr     error
	restoreErr error
}

func (f *fakePostReader) Get(_ context.Context, id int64) (*content.Post, error) {
	f.gotPostID = id
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.post, nil
}

func (f *fakePostReader) Revisions(_ context.Context, postID int64, limit int) ([]content.Revision, error) {
	f.gotPostID = postID
	f.gotLimit = limit
	return f.revisions, nil
}

func (f *fakePostReader) Restore(_ context.Context, postID, revisionID int64) (*content.Post, error) {
	f.gotPostID = postID
	f.gotRevisionID = revisionID
	if f.restoreErr != nil {
		return nil, f.restoreErr
	}
	return f.restored, nil
}

type fakeMediaLister struct {
	items []media.Item
	err   error
}

func (f *fakeMediaLister) ForPost(context.Context, int64) ([]media.Item, error) {
	return f.items, f.err
}

func postRequest(t *testing.T, h *PostHandler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestGetPost(t *testing.T) {
	reader := &fakePostReader{post: &content.Post{ID: 4, Title: "Garden Notes", Status: content.StatusDraft}}
	h := NewPostHandler(reader, &fakeMediaLister{}, nil)

	rec := postRequest(t, h, http.MethodGet, "/api/v1/posts/4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), reader.gotPostID)

	var got content.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Garden Notes", got.Title)
}

func TestGetPostNotFound(t *testing.T) {
	reader := &fakePostReader{getErr: content.ErrPostNotFound}
	h := NewPostHandler(reader, &fakeMediaLister{}, nil)

	rec := postRequest(t, h, http.MethodGet, "/api/v1/posts/99")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPostMalformedID(t *testing.T) {
	h := NewPostHandler(&fakePostReader{}, &fakeMediaLister{}, nil)

	rec := postRequest(t, h, http.MethodGet, "/api/v1/posts/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRevisions(t *testing.T) {
	reader := &fakePostReader{revisions: []content.Revision{
		{ID: 2, PostID: 4, Title: "Garden Notes", Reason: "edited block blk_a", CreatedAt: time.Now()},
		{ID: 1, PostID: 4, Title: "Garden Notes", Reason: "edited via assistant", CreatedAt: time.Now()},
	}}
	h := NewPostHandler(reader, &fakeMediaLister{}, nil)

	rec := postRequest(t, h, http.MethodGet, "/api/v1/posts/4/revisions?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, reader.gotLimit)

	var body struct {
		Revisions []content.Revision `json:"revisions"`
		Total     int                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, int64(2), body.Revisions[0].ID)
}

func TestListRevisionsDefaultLimit(t *testing.T) {
	reader := &fakePostReader{}
	h := NewPostHandler(reader, &fakeMediaLister{}, nil)

	rec := postRequest(t, h, http.MethodGet, "/api/v1/posts/4/revisions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultRevisionLimit, reader.gotLimit)
}

func TestRestoreRevision(t *testing.T) {
	reader := &fakePostReader{restored: &content.Post{ID: 4, Title: "Garden Notes"}}
	h := NewPostHandler(reader, &fakeMediaLister{}, nil)

	rec := postRequest(t, h, http.MethodPost, "/api/v1/posts/4/revisions/2/restore")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), reader.gotPostID)
	assert.Equal(t, int64(2), reader.gotRevisionID)
}

func TestRestoreRevisionNotFound(t *testing.T) {
	reader := &fakePostReader{restoreErr: content.ErrRevisionNotFound}
	h := NewPostHandler(reader, &fakeMediaLister{}, nil)

	rec := postRequest(t, h, http.MethodPost, "/api/v1/posts/4/revisions/99/restore")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "revision not found", body.Error.Message)
}

func TestListPostMedia(t *testing.T) {
	lister := &fakeMediaLister{items: []media.Item{
		{ID: 1, Source: media.SourceUpload, SourceURL: "https://example.com/a.jpg"},
	}}
	h := NewPostHandler(&fakePostReader{}, lister, nil)

	rec := postRequest(t, h, http.MethodGet, "/api/v1/posts/4/media")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Media []media.Item `json:"media"`
		Total int          `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, media.SourceUpload, body.Media[0].Source)
}
