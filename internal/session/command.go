package session

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"parley/pkg/chat"
)

// helpText lists the commands; the /leave line names the configured
// default room, which is not necessarily the built-in one.
func helpText(defaultRoom string) []string {
	return []string{
		"Commands:",
		"  /help                - Show this help",
		"  /users               - Show online users",
		"  /rooms               - List rooms",
		"  /join <room>         - Join or create a room",
		"  /leave               - Leave current room (back to #" + defaultRoom + ")",
		"  /pm <user> <message> - Private message",
		"  /history [n]         - Show last n lines of this room",
		"  /logout              - Log out",
	}
}

// dispatch interprets one command line. The first token is matched
// case-insensitively; the remainder is split into at most two further
// parts, so a /pm message keeps its internal spacing. It returns false when
// the command ends the session.
func (s *Session) dispatch(line string) bool {
	parts := splitArgs(line, 3)
	switch strings.ToLower(parts[0]) {
	case "/help":
		for _, l := range helpText(s.opts.DefaultRoom) {
			s.send(l)
		}

	case "/users":
		names := s.hub.Usernames()
		s.send(fmt.Sprintf("Online users (%d): %s", len(names), strings.Join(names, ", ")))

	case "/rooms":
		s.send("Rooms: " + strings.Join(s.hub.RoomNames(), ", "))

	case "/join":
		if len(parts) < 2 {
			s.send("Usage: /join <room>")
			break
		}
		s.joinRoom(chat.NormalizeRoom(parts[1]))

	case "/leave":
		if s.room == s.opts.DefaultRoom {
			s.send("You are already in #" + s.room)
			break
		}
		s.joinRoom(s.opts.DefaultRoom)

	case "/pm":
		if len(parts) < 3 {
			s.send("Usage: /pm <username> <message>")
			break
		}
		s.privateMessage(parts[1], parts[2])

	case "/history":
		n := s.opts.HistoryLines
		if len(parts) >= 2 {
			// A non-numeric argument silently falls back to the default.
			if v, err := strconv.Atoi(parts[1]); err == nil {
				if v < 1 {
					v = 1
				}
				n = v
			}
		}
		if !s.sendHistory(s.room, n) {
			s.send("No history for #" + s.room)
		}

	case "/logout":
		s.send("Logging out... Bye!")
		return false

	default:
		s.send("Unknown command. Type /help")
	}
	return true
}

// joinRoom moves the session from its current room to target: the old room
// is told about the departure, the new room's recent history is played
// back, and the new room is told about the arrival. Both notices are
// persisted.
func (s *Session) joinRoom(target string) {
	if !chat.IsValidRoomName(target) {
		s.send("Invalid room name. Use letters, digits, - or _ (max 32 characters).")
		return
	}
	if target == s.room {
		s.send("You are already in #" + s.room)
		return
	}

	previous := s.room
	s.room = target
	s.hub.Move(previous, target, s)
	s.hub.Broadcast(previous, chat.FormatSystem(s.username+" left #"+previous), true)
	s.send("Joined room #" + target)
	s.sendHistory(target, s.opts.HistoryLines)
	s.hub.Broadcast(target, chat.FormatSystem(s.username+" joined #"+target), true)
}

// privateMessage delivers a PM to one online user and echoes it to the
// sender; nobody else sees it and nothing is persisted.
func (s *Session) privateMessage(target, text string) {
	formatted := chat.FormatPM(s.username, target, text)
	if !s.hub.SendPrivate(target, formatted) {
		s.send("User '" + target + "' is not online.")
		return
	}
	s.send(formatted)
}

// splitArgs splits a line into at most n whitespace-delimited parts; the
// final part keeps the rest of the line with its internal spacing intact.
func splitArgs(line string, n int) []string {
	var parts []string
	rest := strings.TrimSpace(line)
	for len(parts) < n-1 {
		i := strings.IndexFunc(rest, unicode.IsSpace)
		if i < 0 {
			break
		}
		parts = append(parts, rest[:i])
		rest = strings.TrimLeftFunc(rest[i:], unicode.IsSpace)
	}
	if rest != "" {
		parts = append(parts, rest)
	}
	return parts
}
