package live

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidUserID = errors.New("invalid user id")

// UserID identifies a participant across reconnects within one process lifetime.
// It always holds a canonical lowercase version 4 UUID.
type UserID string

func (u UserID) String() string {
	return string(u)
}

// ParseUserID validates s as a version 4 RFC 4122 UUID.
func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidUserID, err)
	}
	if id.Version() != 4 || id.Variant() != uuid.RFC4122 {
		return "", fmt.Errorf("%w: %s is not a version 4 uuid", ErrInvalidUserID, s)
	}
	return UserID(id.String()), nil
}

// UserIDFromQuery extracts the "uuid" parameter from a handshake query string.
// The key is matched case-insensitively; an exact "uuid" key wins, then the
// first matching key in sorted order.
func UserIDFromQuery(query url.Values) (UserID, error) {
	if values := query["uuid"]; len(values) > 0 {
		return ParseUserID(values[0])
	}
	keys := slices.Sorted(maps.Keys(query))
	for _, key := range keys {
		if values := query[key]; strings.EqualFold(key, "uuid") && len(values) > 0 {
			return ParseUserID(values[0])
		}
	}
	return "", fmt.Errorf("%w: missing uuid parameter", ErrInvalidUserID)
}

// NewUserID returns a fresh random identifier.
func NewUserID() UserID {
	return UserID(uuid.New().String())
}
