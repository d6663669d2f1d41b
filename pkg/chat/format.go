package chat

import (
	"fmt"
	"time"
)

// TimestampLayout is the bracketed timestamp prefix carried by every
// persisted history line. It is part of the on-disk format and must not
// change.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp returns the current time formatted for a history line.
func Timestamp() string {
	return time.Now().Format(TimestampLayout)
}

// FormatMessage renders an ordinary chat line: "[ts] user: text".
func FormatMessage(username, text string) string {
	return fmt.Sprintf("[%s] %s: %s", Timestamp(), username, text)
}

// FormatSystem renders a system-event line (join/leave/disconnect).
// System lines share the room's history file with chat lines and are
// distinguished only by the "*" marker after the timestamp bracket.
func FormatSystem(text string) string {
	return fmt.Sprintf("[%s] * %s", Timestamp(), text)
}

// FormatPM renders a private message. PMs are delivered to the target and
// echoed to the sender; they are never persisted.
func FormatPM(from, to, text string) string {
	return fmt.Sprintf("[%s] (PM) %s -> %s: %s", Timestamp(), from, to, text)
}
