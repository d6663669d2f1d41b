package chat

import (
	"regexp"
	"strings"
)

// nameRegex is compiled once at package initialization; usernames and room
// names share the same character set so both are safe to embed in filenames.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const (
	// MaxNameLength bounds usernames and room names.
	MaxNameLength = 32

	// DefaultRoom is the room every session occupies immediately after
	// authentication. It always exists.
	DefaultRoom = "lobby"
)

// IsValidUsername checks that a username is non-empty, bounded, and drawn
// from the allowed character set.
func IsValidUsername(name string) bool {
	if len(name) < 1 || len(name) > MaxNameLength {
		return false
	}
	return nameRegex.MatchString(name)
}

// IsValidRoomName checks a room name against the same rules as usernames.
// Callers must validate before handing a room name to the history store,
// which embeds it in a filename.
func IsValidRoomName(name string) bool {
	return IsValidUsername(name)
}

// NormalizeRoom lower-cases a room name; room identity is case-insensitive.
func NormalizeRoom(name string) string {
	return strings.ToLower(name)
}
