// Package audit records every tool execution for after-the-fact review.
// Entries capture what was invoked with which arguments and whether it
// succeeded; they are append-only.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/scrivo-ai/scrivo/internal/log"
)

// Entry is one recorded tool execution.
type Entry struct {
	ID           int64           `json:"id"`
	SessionID    string          `json:"session_id,omitempty"`
	FunctionName string          `json:"function_name"`
	Arguments    json.RawMessage `json:"arguments,omitempty"`
	Success      bool            `json:"success"`
	Detail       string          `json:"detail,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DB is the database surface the recorder needs. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Recorder appends audit entries. A write failure is logged, never
// propagated; auditing must not break the conversation.
type Recorder struct {
	db     DB
	logger log.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(db DB, logger log.Logger) *Recorder {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Recorder{db: db, logger: logger}
}

// Record appends one entry.
func (r *Recorder) Record(ctx context.Context, sessionID, functionName string, arguments json.RawMessage, success bool, detail string) {
	var args any
	if len(arguments) > 0 {
		args = []byte(arguments)
	}
	var session any
	if sessionID != "" {
		session = sessionID
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_log (session_id, function_name, arguments, success, detail)
		VALUES ($1, $2, $3, $4, $5)`,
		session, functionName, args, success, detail)
	if err != nil {
		r.logger.Error("writing audit entry", "function", functionName, "error", err)
	}
}

// Recent returns the newest entries, optionally filtered by session.
func (r *Recorder) Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, COALESCE(session_id, ''), function_name, arguments, success, detail, created_at
		FROM audit_log`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = $1 ORDER BY id DESC LIMIT $2`
		args = append(args, sessionID, limit)
	} else {
		query += ` ORDER BY id DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			args []byte
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.FunctionName, &args, &e.Success, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Arguments = args
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
