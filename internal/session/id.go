package session

import (
	"strings"

	"github.com/google/uuid"
)

// idPrefix namespaces minted session ids so they are recognizable in logs
// and cannot collide with ids minted by other systems.
const idPrefix = "scrivo_"

// NewID mints a fresh session id.
func NewID() string {
	return idPrefix + uuid.NewString()
}

// ValidID reports whether id has the minted format: the prefix followed by
// a canonical UUID.
func ValidID(id string) bool {
	rest, ok := strings.CutPrefix(id, idPrefix)
	if !ok {
		return false
	}
	parsed, err := uuid.Parse(rest)
	if err != nil {
		return false
	}
	// uuid.Parse accepts several encodings; require the canonical one.
	return parsed.String() == rest
}
