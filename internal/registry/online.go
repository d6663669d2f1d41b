// Package registry tracks which sessions are online and which room each one
// occupies. Both registries are internally synchronized: callers get atomic
// check-and-set for registration and point-in-time snapshots for iteration,
// and must not rely on anything beyond that contract.
package registry

import (
	"sort"
	"sync"

	"parley/pkg/chat"
)

// Online maps usernames to their single live session. At most one session
// holds a username at any instant.
type Online struct {
	mu       sync.RWMutex
	sessions map[string]chat.Client
}

// NewOnline creates an empty online registry.
func NewOnline() *Online {
	return &Online{
		sessions: make(map[string]chat.Client),
	}
}

// TryRegister atomically claims a username for a session. It returns false
// without side effects if another session already holds the username; of
// two concurrent claims for one username, exactly one wins.
func (o *Online) TryRegister(username string, client chat.Client) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.sessions[username]; exists {
		return false
	}
	o.sessions[username] = client
	return true
}

// Remove releases a username only if client is the current holder, so a
// stale session's cleanup can never evict a newer login.
func (o *Online) Remove(username string, client chat.Client) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if current, exists := o.sessions[username]; exists && current == client {
		delete(o.sessions, username)
	}
}

// Lookup returns the session holding a username, if any.
func (o *Online) Lookup(username string) (chat.Client, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	client, exists := o.sessions[username]
	return client, exists
}

// Usernames returns a sorted snapshot of the online usernames. The snapshot
// may be briefly stale relative to concurrent logins and logouts.
func (o *Online) Usernames() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	names := make([]string, 0, len(o.sessions))
	for name := range o.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of online sessions.
func (o *Online) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sessions)
}
