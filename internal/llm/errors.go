package llm

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable classification of an adapter failure.
type ErrorKind string

// Adapter error kinds. These are stable identifiers surfaced to API
// clients; changing one is a breaking change.
const (
	// ErrKindTransport covers network failures and timeouts before a
	// response body was received.
	ErrKindTransport ErrorKind = "transport_error"

	// ErrKindInvalidJSON means the response body was not valid JSON.
	ErrKindInvalidJSON ErrorKind = "invalid_json_response"

	// ErrKindAPI means the provider reported an error payload.
	ErrKindAPI ErrorKind = "api_error"

	// ErrKindMissingCredentials means the adapter refused to send a request
	// because required credentials or endpoint configuration are absent.
	ErrKindMissingCredentials ErrorKind = "missing_credentials"

	// ErrKindInvalidShape means the body was valid JSON but did not match
	// any response shape the adapter understands.
	ErrKindInvalidShape ErrorKind = "invalid_response_shape"

	// ErrKindBlockedFinish means the provider terminated generation with a
	// blocked, malformed, or recitation finish reason (Gemini family only).
	ErrKindBlockedFinish ErrorKind = "blocked_finish_reason"
)

// APIError is the error type returned by every adapter. It always carries
// the full diagnostic bundle of the failed round trip.
type APIError struct {
	Kind        ErrorKind
	Message     string
	Diagnostics Diagnostics

	// Err is the underlying cause, if any (transport errors, JSON decode
	// errors). May be nil.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is / errors.As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// AsAPIError extracts an *APIError from an error chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsKind reports whether err is an *APIError with the given kind.
func IsKind(err error, kind ErrorKind) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Kind == kind
}
