// Package hub coordinates message flow: room fan-out, private delivery, and
// history persistence. It is the single point sessions talk to; the
// registries and the history store sit behind it.
package hub

import (
	"github.com/rs/zerolog"

	"parley/internal/history"
	"parley/internal/registry"
	"parley/pkg/chat"
)

// Hub owns the online and room registries and the history store.
type Hub struct {
	online  *registry.Online
	rooms   *registry.Rooms
	history *history.Store
	logger  zerolog.Logger
}

// New creates a hub over the given registries and store.
func New(online *registry.Online, rooms *registry.Rooms, store *history.Store, logger zerolog.Logger) *Hub {
	return &Hub{
		online:  online,
		rooms:   rooms,
		history: store,
		logger:  logger.With().Str("component", "hub").Logger(),
	}
}

// Broadcast delivers a line to every session that is a member of the room
// at call time. Delivery is a non-blocking enqueue on each member's
// outbound queue; a full queue drops the line for that member only, so one
// stalled peer never delays the rest of the room. When persist is set the
// line is then appended to the room's history; a failed append is logged
// and does not undo delivery.
func (h *Hub) Broadcast(room, line string, persist bool) {
	for _, member := range h.rooms.Members(room) {
		if !member.Deliver(line) {
			h.logger.Warn().
				Str("room", room).
				Str("user", member.Username()).
				Str("session", member.ID()).
				Msg("outbound queue full, dropping broadcast line")
		}
	}

	if persist {
		if err := h.history.Append(room, line); err != nil {
			h.logger.Error().Err(err).Str("room", room).Msg("failed to persist history line")
		}
	}
}

// SendPrivate delivers a line to one online user. It reports false if the
// user is not online; a dropped line on a full queue still counts as
// delivered, matching broadcast semantics.
func (h *Hub) SendPrivate(username, line string) bool {
	target, online := h.online.Lookup(username)
	if !online {
		return false
	}
	if !target.Deliver(line) {
		h.logger.Warn().
			Str("user", username).
			Str("session", target.ID()).
			Msg("outbound queue full, dropping private message")
	}
	return true
}

// TryRegister atomically claims a username; see registry.Online.
func (h *Hub) TryRegister(username string, client chat.Client) bool {
	return h.online.TryRegister(username, client)
}

// RemoveOnline releases a username if client still holds it.
func (h *Hub) RemoveOnline(username string, client chat.Client) {
	h.online.Remove(username, client)
}

// Join adds a session to a room, creating it on first join.
func (h *Hub) Join(room string, client chat.Client) {
	h.rooms.Join(room, client)
}

// Leave removes a session from a room.
func (h *Hub) Leave(room string, client chat.Client) {
	h.rooms.Leave(room, client)
}

// Move atomically transfers a session from one room to another.
func (h *Hub) Move(from, to string, client chat.Client) {
	h.rooms.Move(from, to, client)
}

// Usernames returns a sorted snapshot of online usernames.
func (h *Hub) Usernames() []string {
	return h.online.Usernames()
}

// OnlineCount returns the number of online sessions.
func (h *Hub) OnlineCount() int {
	return h.online.Count()
}

// RoomNames returns a sorted snapshot of room names.
func (h *Hub) RoomNames() []string {
	return h.rooms.Names()
}

// Tail returns the last n persisted lines of a room.
func (h *Hub) Tail(room string, n int) ([]string, error) {
	return h.history.Tail(room, n)
}
