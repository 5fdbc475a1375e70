// Package topic stores writing topics. A topic bundles a name with a
// prompt fragment that steers the assistant when a session is attached to
// it.
package topic

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

// ErrNotFound is returned when a topic id does not exist.
var ErrNotFound = errors.New("topic not found")

// Topic steers the assistant for sessions attached to it.
type Topic struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Prompt      string    `json:"prompt"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DB is the database surface the store needs. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes topics. Safe for concurrent use.
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

// Create stores a new topic.
func (s *Store) Create(ctx context.Context, name, description, prompt string) (*Topic, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("topic name is required")
	}
	topic := &Topic{Name: name, Description: description, Prompt: prompt}
	err := s.db.QueryRow(ctx, `
		INSERT INTO topics (name, description, prompt)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		name, description, prompt,
	).Scan(&topic.ID, &topic.CreatedAt, &topic.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting topic: %w", err)
	}
	s.logger.Info("created topic", "topic", topic.ID, "name", name)
	return topic, nil
}

// Get retrieves a topic by id.
func (s *Store) Get(ctx context.Context, id int64) (*Topic, error) {
	topic := &Topic{ID: id}
	err := s.db.QueryRow(ctx, `
		SELECT name, description, prompt, created_at, updated_at
		FROM topics WHERE id = $1`, id,
	).Scan(&topic.Name, &topic.Description, &topic.Prompt, &topic.CreatedAt, &topic.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying topic: %w", err)
	}
	return topic, nil
}

// Update replaces a topic's fields. Empty strings keep stored values.
func (s *Store) Update(ctx context.Context, id int64, name, description, prompt string) (*Topic, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = current.Name
	}
	if description == "" {
		description = current.Description
	}
	if prompt == "" {
		prompt = current.Prompt
	}

	topic := &Topic{ID: id, Name: name, Description: description, Prompt: prompt, CreatedAt: current.CreatedAt}
	err = s.db.QueryRow(ctx, `
		UPDATE topics SET name = $2, description = $3, prompt = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		id, name, description, prompt,
	).Scan(&topic.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("updating topic: %w", err)
	}
	return topic, nil
}

// Delete removes a topic. Sessions attached to it are detached by the
// schema's ON DELETE SET NULL.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM topics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting topic: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// List returns all topics ordered by name.
func (s *Store) List(ctx context.Context) ([]Topic, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, prompt, created_at, updated_at
		FROM topics ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	defer rows.Close()

	var topics []Topic
	for rows.Next() {
		var topic Topic
		if err := rows.Scan(&topic.ID, &topic.Name, &topic.Description, &topic.Prompt, &topic.CreatedAt, &topic.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}
