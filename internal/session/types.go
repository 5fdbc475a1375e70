package session

import (
	"encoding/json"
	"time"
)

// Turn roles stored in history. Tool traffic is never persisted as turns;
// a summary of executed calls rides on the assistant turn instead.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// FunctionCallRecord summarizes one executed tool call for history and
// export. Only metadata is kept; raw tool results are not persisted.
type FunctionCallRecord struct {
	Name     string `json:"name"`
	Summary  string `json:"summary,omitempty"`
	PostID   int64  `json:"post_id,omitempty"`
	EditLink string `json:"edit_link,omitempty"`
}

// Turn is one persisted conversation turn. Model and Settings snapshot
// what produced an assistant turn; user turns leave them empty.
type Turn struct {
	Role          string               `json:"role"`
	Content       string               `json:"content"`
	FunctionCalls []FunctionCallRecord `json:"function_calls,omitempty"`
	Model         string               `json:"model,omitempty"`
	Settings      json.RawMessage      `json:"settings,omitempty"`
	CreatedAt     time.Time            `json:"created_at,omitzero"`
}

// Info is a session summary row for listings.
type Info struct {
	ID        string    `json:"id"`
	TopicID   *int64    `json:"topic_id,omitempty"`
	TurnCount int       `json:"turn_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExportVersion is the current export document version.
const ExportVersion = 1

// Export is the portable representation of one session's history.
type Export struct {
	Version    int       `json:"version"`
	SessionID  string    `json:"session_id"`
	ExportedAt time.Time `json:"exported_at"`
	Messages   []Turn    `json:"messages"`
}
