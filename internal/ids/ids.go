package ids

import (
	"strings"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// New returns a time-sortable identifier for stored objects and queued tasks.
func New() string {
	return ksuid.New().String()
}

// RequestID is used when the client did not send X-Request-ID.
func RequestID() string {
	return uuid.NewString()
}

// ValidUUID reports whether s is a canonical user id.
func ValidUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil && strings.ToLower(s) == s
}
