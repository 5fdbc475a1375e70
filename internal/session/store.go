// Package session persists conversation history in PostgreSQL.
//
// History is bounded: only the most recent turns of a session are retained,
// so a long-lived session cannot grow without limit.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/scrivo-ai/scrivo/internal/log"
)

// MaxStoredTurns is the hard cap on persisted turns per session. Appending
// beyond the cap evicts the oldest turns.
const MaxStoredTurns = 20

// DB is the database surface the store needs. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes session history. Safe for concurrent use.
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

// Append stores one turn, creating the session row on first use and
// evicting the oldest turns beyond MaxStoredTurns.
func (s *Store) Append(ctx context.Context, sessionID string, turn Turn) error {
	if !ValidID(sessionID) {
		return fmt.Errorf("%w: %s", ErrInvalidID, sessionID)
	}
	if turn.Role != RoleUser && turn.Role != RoleAssistant {
		return fmt.Errorf("unsupported turn role: %s", turn.Role)
	}

	var calls any
	if len(turn.FunctionCalls) > 0 {
		encoded, err := json.Marshal(turn.FunctionCalls)
		if err != nil {
			return fmt.Errorf("encoding function call records: %w", err)
		}
		calls = encoded
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO chat_sessions (id) VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET updated_at = now()`, sessionID)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	var settings any
	if len(turn.Settings) > 0 {
		settings = []byte(turn.Settings)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO chat_turns (session_id, role, content, function_calls, model, settings)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sessionID, turn.Role, turn.Content, calls, turn.Model, settings)
	if err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		DELETE FROM chat_turns
		WHERE session_id = $1 AND id NOT IN (
			SELECT id FROM chat_turns
			WHERE session_id = $1
			ORDER BY id DESC LIMIT $2
		)`, sessionID, MaxStoredTurns)
	if err != nil {
		return fmt.Errorf("trimming history: %w", err)
	}

	s.logger.Debug("appended turn", "session", sessionID, "role", turn.Role)
	return nil
}

// History returns up to limit most recent turns in chronological order.
// limit <= 0 returns everything stored. An unknown session yields an empty
// history, not an error; session existence is checked by Export.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if !ValidID(sessionID) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, sessionID)
	}
	if limit <= 0 || limit > MaxStoredTurns {
		limit = MaxStoredTurns
	}

	rows, err := s.db.Query(ctx, `
		SELECT role, content, function_calls, model, settings, created_at FROM (
			SELECT id, role, content, function_calls, model, settings, created_at
			FROM chat_turns
			WHERE session_id = $1
			ORDER BY id DESC LIMIT $2
		) recent ORDER BY id ASC`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			turn     Turn
			calls    []byte
			settings []byte
		)
		if err := rows.Scan(&turn.Role, &turn.Content, &calls, &turn.Model, &settings, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		if len(calls) > 0 {
			if err := json.Unmarshal(calls, &turn.FunctionCalls); err != nil {
				return nil, fmt.Errorf("decoding function call records: %w", err)
			}
		}
		turn.Settings = settings
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return turns, nil
}

// Clear deletes a session's turns but keeps the session row, so the id
// stays valid for further conversation.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if !ValidID(sessionID) {
		return fmt.Errorf("%w: %s", ErrInvalidID, sessionID)
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM chat_turns WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	_, err := s.db.Exec(ctx, `UPDATE chat_sessions SET updated_at = now() WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return nil
}

// Delete removes the session and its turns entirely.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if !ValidID(sessionID) {
		return fmt.Errorf("%w: %s", ErrInvalidID, sessionID)
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return nil
}

// SetTopic attaches or detaches a topic. A nil topicID detaches.
func (s *Store) SetTopic(ctx context.Context, sessionID string, topicID *int64) error {
	if !ValidID(sessionID) {
		return fmt.Errorf("%w: %s", ErrInvalidID, sessionID)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE chat_sessions SET topic_id = $2, updated_at = now() WHERE id = $1`,
		sessionID, topicID)
	if err != nil {
		return fmt.Errorf("setting topic: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return nil
}

// Topic returns the attached topic id, or nil when none is attached.
func (s *Store) Topic(ctx context.Context, sessionID string) (*int64, error) {
	if !ValidID(sessionID) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, sessionID)
	}
	var topicID *int64
	err := s.db.QueryRow(ctx, `SELECT topic_id FROM chat_sessions WHERE id = $1`, sessionID).Scan(&topicID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying topic: %w", err)
	}
	return topicID, nil
}

// Sessions lists all sessions, most recently updated first.
func (s *Store) Sessions(ctx context.Context) ([]Info, error) {
	rows, err := s.db.Query(ctx, `
		SELECT s.id, s.topic_id, s.created_at, s.updated_at, count(t.id)
		FROM chat_sessions s
		LEFT JOIN chat_turns t ON t.session_id = s.id
		GROUP BY s.id
		ORDER BY s.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.ID, &info.TopicID, &info.CreatedAt, &info.UpdatedAt, &info.TurnCount); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sessions: %w", err)
	}
	return infos, nil
}

// ExportSession packages a session's full stored history for download.
func (s *Store) ExportSession(ctx context.Context, sessionID string) (*Export, error) {
	turns, err := s.History(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		var exists bool
		err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chat_sessions WHERE id = $1)`, sessionID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("checking session: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
	}
	return &Export{
		Version:    ExportVersion,
		SessionID:  sessionID,
		ExportedAt: time.Now().UTC(),
		Messages:   turns,
	}, nil
}

// ImportSession validates an export document and stores its turns under a
// freshly minted session id. The id inside the document is never reused.
func (s *Store) ImportSession(ctx context.Context, doc *Export) (string, error) {
	if err := ValidateExport(doc); err != nil {
		return "", err
	}
	id := NewID()
	for _, turn := range doc.Messages {
		if err := s.Append(ctx, id, turn); err != nil {
			return "", err
		}
	}
	if len(doc.Messages) == 0 {
		if _, err := s.db.Exec(ctx, `INSERT INTO chat_sessions (id) VALUES ($1)`, id); err != nil {
			return "", fmt.Errorf("creating session: %w", err)
		}
	}
	s.logger.Info("imported session", "session", id, "messages", len(doc.Messages))
	return id, nil
}

// ValidateExport checks an export document's version and turn shape.
func ValidateExport(doc *Export) error {
	if doc == nil {
		return fmt.Errorf("%w: empty document", ErrInvalidExport)
	}
	if doc.Version != ExportVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidExport, doc.Version)
	}
	for i, turn := range doc.Messages {
		if turn.Role != RoleUser && turn.Role != RoleAssistant {
			return fmt.Errorf("%w: turn %d has role %q", ErrInvalidExport, i, turn.Role)
		}
	}
	return nil
}
