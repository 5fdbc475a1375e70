package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/scrivo-ai/scrivo/internal/log"
)

// Post statuses.
const (
	StatusDraft   = "draft"
	StatusPending = "pending"
	StatusPublish = "publish"
	StatusPrivate = "private"
)

// ErrPostNotFound is returned when a post id does not exist.
var ErrPostNotFound = errors.New("post not found")

// ErrRevisionNotFound is returned when a revision id does not exist for
// the given post.
var ErrRevisionNotFound = errors.New("revision not found")

// Post is a stored document. Content holds the serialized block tree.
type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Excerpt   string    `json:"excerpt"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EditLink returns the editor path for a post.
func (p *Post) EditLink() string {
	return fmt.Sprintf("/posts/%d/edit", p.ID)
}

// SearchHit is one full-text search result.
type SearchHit struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title"`
	Excerpt string  `json:"excerpt"`
	Status  string  `json:"status"`
	Rank    float32 `json:"rank"`
}

// Revision is a snapshot taken before each update.
type Revision struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// DB is the database surface the store needs. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes posts and revisions. Safe for concurrent use.
type Store struct {
	db     DB
	logger log.Logger
}

// NewStore creates a Store.
func NewStore(db DB, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Create stores a new post. Blocks without ids get them assigned before
// serialization so later partial edits can address every node.
func (s *Store) Create(ctx context.Context, title string, blocks []*Block, excerpt, status string) (*Post, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("post title is required")
	}
	if status == "" {
		status = StatusDraft
	}
	if !validStatus(status) {
		return nil, fmt.Errorf("invalid post status: %s", status)
	}

	EnsureIDs(blocks)
	body, err := RenderBlocks(blocks)
	if err != nil {
		return nil, err
	}

	post := &Post{Title: title, Content: body, Excerpt: excerpt, Status: status}
	err = s.db.QueryRow(ctx, `
		INSERT INTO posts (title, content, excerpt, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		title, body, excerpt, status,
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting post: %w", err)
	}

	s.logger.Info("created post", "post", post.ID, "title", title, "status", status)
	return post, nil
}

// Get retrieves a post by id.
func (s *Store) Get(ctx context.Context, id int64) (*Post, error) {
	post := &Post{ID: id}
	err := s.db.QueryRow(ctx, `
		SELECT title, content, excerpt, status, created_at, updated_at
		FROM posts WHERE id = $1`, id,
	).Scan(&post.Title, &post.Content, &post.Excerpt, &post.Status, &post.CreatedAt, &post.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrPostNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying post: %w", err)
	}
	return post, nil
}

// Update replaces a post's fields after snapshotting the current state as
// a revision. Empty title, nil blocks or empty status keep the stored
// value.
func (s *Store) Update(ctx context.Context, id int64, title string, blocks []*Block, excerpt, status, reason string) (*Post, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.saveRevision(ctx, current, reason); err != nil {
		return nil, err
	}

	if title == "" {
		title = current.Title
	}
	body := current.Content
	if blocks != nil {
		EnsureIDs(blocks)
		if body, err = RenderBlocks(blocks); err != nil {
			return nil, err
		}
	}
	if excerpt == "" {
		excerpt = current.Excerpt
	}
	if status == "" {
		status = current.Status
	}
	if !validStatus(status) {
		return nil, fmt.Errorf("invalid post status: %s", status)
	}

	post := &Post{ID: id, Title: title, Content: body, Excerpt: excerpt, Status: status, CreatedAt: current.CreatedAt}
	err = s.db.QueryRow(ctx, `
		UPDATE posts
		SET title = $2, content = $3, excerpt = $4, status = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		id, title, body, excerpt, status,
	).Scan(&post.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("updating post: %w", err)
	}

	s.logger.Info("updated post", "post", id)
	return post, nil
}

// UpdateBlockByID rewrites a single block inside a post's body, addressed
// by its stable id, and stores the result through the normal revisioned
// update path.
func (s *Store) UpdateBlockByID(ctx context.Context, postID int64, blockID, newContent string, attrs map[string]any) (*Post, error) {
	current, err := s.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	blocks, err := ParseBlocks(current.Content)
	if err != nil {
		return nil, err
	}
	err = UpdateBlock(blocks, blockID, func(b *Block) {
		if newContent != "" {
			b.Content = newContent
		}
		for k, v := range attrs {
			if b.Attributes == nil {
				b.Attributes = make(map[string]any)
			}
			b.Attributes[k] = v
		}
	})
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, postID, "", blocks, "", "", fmt.Sprintf("edited block %s", blockID))
}

func (s *Store) saveRevision(ctx context.Context, post *Post, reason string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO post_revisions (post_id, title, content, reason)
		VALUES ($1, $2, $3, $4)`,
		post.ID, post.Title, post.Content, reason)
	if err != nil {
		return fmt.Errorf("saving revision: %w", err)
	}
	return nil
}

// Revisions lists a post's snapshots, newest first.
func (s *Store) Revisions(ctx context.Context, postID int64, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, post_id, title, content, reason, created_at
		FROM post_revisions WHERE post_id = $1
		ORDER BY id DESC LIMIT $2`, postID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying revisions: %w", err)
	}
	defer rows.Close()

	var revisions []Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.ID, &r.PostID, &r.Title, &r.Content, &r.Reason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning revision: %w", err)
		}
		revisions = append(revisions, r)
	}
	return revisions, rows.Err()
}

// Restore brings back a post's earlier snapshot. The current state is
// itself saved as a revision first, so a restore is always undoable.
func (s *Store) Restore(ctx context.Context, postID, revisionID int64) (*Post, error) {
	var rev Revision
	err := s.db.QueryRow(ctx, `
		SELECT id, post_id, title, content, reason, created_at
		FROM post_revisions WHERE id = $1 AND post_id = $2`,
		revisionID, postID,
	).Scan(&rev.ID, &rev.PostID, &rev.Title, &rev.Content, &rev.Reason, &rev.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRevisionNotFound, revisionID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying revision: %w", err)
	}

	blocks, err := ParseBlocks(rev.Content)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, postID, rev.Title, blocks, "", "", fmt.Sprintf("restored revision %d", revisionID))
}

// Search runs a ranked full-text query over titles and bodies.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, title, excerpt, status,
		       ts_rank(to_tsvector('english', title || ' ' || content),
		               plainto_tsquery('english', $1)) AS rank
		FROM posts
		WHERE to_tsvector('english', title || ' ' || content) @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC, updated_at DESC
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching posts: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.ID, &h.Title, &h.Excerpt, &h.Status, &h.Rank); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func validStatus(status string) bool {
	switch status {
	case StatusDraft, StatusPending, StatusPublish, StatusPrivate:
		return true
	}
	return false
}
