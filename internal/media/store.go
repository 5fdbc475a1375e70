// Package media records images attached to posts.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/scrivo-ai/scrivo/internal/log"
)

// Media sources.
const (
	SourceUnsplash  = "unsplash"
	SourcePexels    = "pexels"
	SourceGenerated = "generated"
	SourceUpload    = "upload"
)

// ErrNotFound is returned when a media id does not exist.
var ErrNotFound = errors.New("media not found")

// Item is one recorded image.
type Item struct {
	ID        int64     `json:"id"`
	PostID    *int64    `json:"post_id,omitempty"`
	Source    string    `json:"source"`
	SourceURL string    `json:"source_url"`
	AltText   string    `json:"alt_text,omitempty"`
	Credit    string    `json:"credit,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DB is the database surface the store needs. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes media records. Safe for concurrent use.
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

// Add records one image, optionally attached to a post.
func (s *Store) Add(ctx context.Context, postID *int64, source, sourceURL, altText, credit string) (*Item, error) {
	if !validSource(source) {
		return nil, fmt.Errorf("invalid media source: %s", source)
	}
	item := &Item{PostID: postID, Source: source, SourceURL: sourceURL, AltText: altText, Credit: credit}
	err := s.db.QueryRow(ctx, `
		INSERT INTO media (post_id, source, source_url, alt_text, credit)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		postID, source, sourceURL, altText, credit,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting media: %w", err)
	}
	s.logger.Debug("recorded media", "media", item.ID, "source", source)
	return item, nil
}

// ForPost lists a post's media, newest first.
func (s *Store) ForPost(ctx context.Context, postID int64) ([]Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, post_id, source, source_url, alt_text, credit, created_at
		FROM media WHERE post_id = $1 ORDER BY id DESC`, postID)
	if err != nil {
		return nil, fmt.Errorf("querying media: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.PostID, &item.Source, &item.SourceURL, &item.AltText, &item.Credit, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning media: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func validSource(source string) bool {
	switch source {
	case SourceUnsplash, SourcePexels, SourceGenerated, SourceUpload:
		return true
	}
	return false
}
