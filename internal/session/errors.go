package session

import "errors"

var (
	// ErrNotFound is returned when a session id has no stored history.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidID is returned for ids that do not match the minted format.
	ErrInvalidID = errors.New("invalid session id")

	// ErrInvalidExport is returned when an import document fails validation.
	ErrInvalidExport = errors.New("invalid session export")
)
