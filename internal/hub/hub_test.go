package hub

import (
	"testing"

	"github.com/rs/zerolog"

	"parley/internal/history"
	"parley/internal/registry"
)

// queueClient is a chat.Client with a real bounded queue, so full-queue
// behavior can be exercised.
type queueClient struct {
	id    string
	name  string
	queue chan string
}

func newQueueClient(id, name string, capacity int) *queueClient {
	return &queueClient{id: id, name: name, queue: make(chan string, capacity)}
}

func (c *queueClient) ID() string       { return c.id }
func (c *queueClient) Username() string { return c.name }

func (c *queueClient) Deliver(line string) bool {
	select {
	case c.queue <- line:
		return true
	default:
		return false
	}
}

func (c *queueClient) drain() []string {
	var lines []string
	for {
		select {
		case line := <-c.queue:
			lines = append(lines, line)
		default:
			return lines
		}
	}
}

func newTestHub(t *testing.T) (*Hub, *registry.Online, *registry.Rooms, *history.Store) {
	t.Helper()
	store, err := history.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create history store: %v", err)
	}
	online := registry.NewOnline()
	rooms := registry.NewRooms("lobby")
	return New(online, rooms, store, zerolog.Nop()), online, rooms, store
}

func TestBroadcastReachesMembersOnly(t *testing.T) {
	h, _, rooms, _ := newTestHub(t)
	alice := newQueueClient("1", "alice", 10)
	bob := newQueueClient("2", "bob", 10)
	outsider := newQueueClient("3", "carol", 10)

	rooms.Join("lobby", alice)
	rooms.Join("lobby", bob)
	rooms.Join("study", outsider)

	h.Broadcast("lobby", "hello", false)

	for _, member := range []*queueClient{alice, bob} {
		lines := member.drain()
		if len(lines) != 1 || lines[0] != "hello" {
			t.Errorf("%s: expected [hello], got %v", member.name, lines)
		}
	}
	if lines := outsider.drain(); len(lines) != 0 {
		t.Errorf("outsider received broadcast: %v", lines)
	}
}

func TestBroadcastPersists(t *testing.T) {
	h, _, rooms, store := newTestHub(t)
	rooms.Join("lobby", newQueueClient("1", "alice", 10))

	h.Broadcast("lobby", "persisted line", true)
	h.Broadcast("lobby", "transient line", false)

	tail, err := store.Tail("lobby", 10)
	if err != nil {
		t.Fatalf("tail failed: %v", err)
	}
	if len(tail) != 1 || tail[0] != "persisted line" {
		t.Errorf("expected only the persisted line, got %v", tail)
	}
}

func TestBroadcastSkipsFullQueues(t *testing.T) {
	h, _, rooms, _ := newTestHub(t)
	stalled := newQueueClient("1", "stalled", 1)
	healthy := newQueueClient("2", "healthy", 10)
	rooms.Join("lobby", stalled)
	rooms.Join("lobby", healthy)

	// Fill the stalled member's queue.
	stalled.Deliver("backlog")

	h.Broadcast("lobby", "first", false)
	h.Broadcast("lobby", "second", false)

	lines := healthy.drain()
	if len(lines) != 2 || lines[0] != "first" || lines[1] != "second" {
		t.Errorf("healthy member should receive everything, got %v", lines)
	}
	if lines := stalled.drain(); len(lines) != 1 || lines[0] != "backlog" {
		t.Errorf("stalled member should keep only its backlog, got %v", lines)
	}
}

func TestSendPrivate(t *testing.T) {
	h, online, _, _ := newTestHub(t)
	alice := newQueueClient("1", "alice", 10)
	online.TryRegister("alice", alice)

	if !h.SendPrivate("alice", "psst") {
		t.Error("expected delivery to online user")
	}
	if lines := alice.drain(); len(lines) != 1 || lines[0] != "psst" {
		t.Errorf("expected [psst], got %v", lines)
	}
	if h.SendPrivate("bob", "psst") {
		t.Error("expected failure for offline user")
	}
}

func TestSnapshots(t *testing.T) {
	h, online, rooms, _ := newTestHub(t)
	online.TryRegister("bob", newQueueClient("1", "bob", 1))
	online.TryRegister("alice", newQueueClient("2", "alice", 1))
	rooms.Join("study", newQueueClient("3", "carol", 1))

	names := h.Usernames()
	if len(names) != 2 || names[0] != "alice" || names[1] != "bob" {
		t.Errorf("unexpected usernames: %v", names)
	}
	if h.OnlineCount() != 2 {
		t.Errorf("expected 2 online, got %d", h.OnlineCount())
	}
	roomNames := h.RoomNames()
	if len(roomNames) != 2 || roomNames[0] != "lobby" || roomNames[1] != "study" {
		t.Errorf("unexpected rooms: %v", roomNames)
	}
}
