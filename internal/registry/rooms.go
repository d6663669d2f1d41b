package registry

import (
	"sort"
	"sync"

	"parley/pkg/chat"
)

// Rooms maps room names to their member sets. Rooms are created implicitly
// on first join and never deleted; an empty room keeps its name (and its
// history file survives independently). The default room always exists.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[chat.Client]struct{}
}

// NewRooms creates the registry with the default room pre-created.
func NewRooms(defaultRoom string) *Rooms {
	return &Rooms{
		members: map[string]map[chat.Client]struct{}{
			defaultRoom: {},
		},
	}
}

// Join adds a session to a room, creating the room if absent. Adding an
// existing member is a no-op.
func (r *Rooms) Join(room string, client chat.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, exists := r.members[room]
	if !exists {
		set = make(map[chat.Client]struct{})
		r.members[room] = set
	}
	set[client] = struct{}{}
}

// Move transfers a session between rooms in one step, under a single lock,
// so observers never see it in zero rooms or in two at once. The target
// room is created if absent.
func (r *Rooms) Move(from, to string, client chat.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, exists := r.members[from]; exists {
		delete(set, client)
	}
	set, exists := r.members[to]
	if !exists {
		set = make(map[chat.Client]struct{})
		r.members[to] = set
	}
	set[client] = struct{}{}
}

// Leave removes a session from a room if present; otherwise it is a no-op.
func (r *Rooms) Leave(room string, client chat.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, exists := r.members[room]; exists {
		delete(set, client)
	}
}

// Members returns a point-in-time snapshot of a room's member set. A
// session joining or leaving concurrently is either fully included or fully
// excluded; iterating the snapshot never faults.
func (r *Rooms) Members(room string) []chat.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, exists := r.members[room]
	if !exists {
		return nil
	}
	members := make([]chat.Client, 0, len(set))
	for client := range set {
		members = append(members, client)
	}
	return members
}

// Names returns a sorted snapshot of all room names.
func (r *Rooms) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.members))
	for name := range r.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
