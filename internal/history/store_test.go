package history

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestAppendAndTailOrder(t *testing.T) {
	store := newTestStore(t)

	lines := []string{"one", "two", "three", "four", "five"}
	for _, line := range lines {
		if err := store.Append("lobby", line); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	got, err := store.Tail("lobby", 3)
	if err != nil {
		t.Fatalf("tail failed: %v", err)
	}
	want := []string{"three", "four", "five"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTailMoreThanTotal(t *testing.T) {
	store := newTestStore(t)

	if err := store.Append("lobby", "only"); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	got, err := store.Tail("lobby", 20)
	if err != nil {
		t.Fatalf("tail failed: %v", err)
	}
	if len(got) != 1 || got[0] != "only" {
		t.Errorf("expected [only], got %v", got)
	}
}

func TestTailEmptyRoom(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Tail("never-used", 5)
	if err != nil {
		t.Fatalf("tail failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty tail, got %v", got)
	}
}

func TestTailHugeN(t *testing.T) {
	store := newTestStore(t)

	if err := store.Append("lobby", "only"); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	// Tail must not allocate proportionally to n; a pathological request
	// still returns whatever the room holds.
	for _, n := range []int{1 << 40, math.MaxInt} {
		got, err := store.Tail("lobby", n)
		if err != nil {
			t.Fatalf("tail with n=%d failed: %v", n, err)
		}
		if len(got) != 1 || got[0] != "only" {
			t.Errorf("tail with n=%d: expected [only], got %v", n, got)
		}
	}
}

func TestTailCoercesNonPositiveN(t *testing.T) {
	store := newTestStore(t)

	for _, line := range []string{"a", "b"} {
		if err := store.Append("lobby", line); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	for _, n := range []int{0, -5} {
		got, err := store.Tail("lobby", n)
		if err != nil {
			t.Fatalf("tail failed: %v", err)
		}
		if len(got) != 1 || got[0] != "b" {
			t.Errorf("tail with n=%d: expected [b], got %v", n, got)
		}
	}
}

func TestInvalidRoomName(t *testing.T) {
	store := newTestStore(t)

	if err := store.Append("../escape", "line"); !errors.Is(err, ErrInvalidRoom) {
		t.Errorf("expected ErrInvalidRoom on append, got %v", err)
	}
	if _, err := store.Tail("bad room", 5); !errors.Is(err, ErrInvalidRoom) {
		t.Errorf("expected ErrInvalidRoom on tail, got %v", err)
	}
}

func TestConcurrentAppendsAcrossRooms(t *testing.T) {
	store := newTestStore(t)

	const perRoom = 50
	rooms := []string{"alpha", "beta", "gamma"}
	var wg sync.WaitGroup
	for _, room := range rooms {
		wg.Add(1)
		go func(room string) {
			defer wg.Done()
			for i := 0; i < perRoom; i++ {
				if err := store.Append(room, fmt.Sprintf("%s-%d", room, i)); err != nil {
					t.Errorf("append to %s failed: %v", room, err)
					return
				}
			}
		}(room)
	}
	wg.Wait()

	for _, room := range rooms {
		got, err := store.Tail(room, perRoom)
		if err != nil {
			t.Fatalf("tail %s failed: %v", room, err)
		}
		if len(got) != perRoom {
			t.Errorf("room %s: expected %d lines, got %d", room, perRoom, len(got))
		}
		// Appends within a room are serialized, so order is preserved.
		for i, line := range got {
			want := fmt.Sprintf("%s-%d", room, i)
			if line != want {
				t.Errorf("room %s line %d: expected %q, got %q", room, i, want, line)
				break
			}
		}
	}
}

func TestAppendsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Append("lobby", "persisted"); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	got, err := reopened.Tail("lobby", 10)
	if err != nil {
		t.Fatalf("tail failed: %v", err)
	}
	if len(got) != 1 || got[0] != "persisted" {
		t.Errorf("expected [persisted], got %v", got)
	}
}
