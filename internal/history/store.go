// Package history persists each room's message log as a durable append-only
// file and serves tail reads for the /history command and join playback.
package history

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"parley/pkg/chat"
)

// Store writes one file per room, history_<room>.txt, under its data
// directory. Appends to the same room are serialized by a per-room mutex so
// lines never interleave; different rooms write independently. Files are
// never rewritten or truncated.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates the data directory if needed and returns a store rooted
// there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// roomLock returns the append lock for a room, creating it on first use.
func (s *Store) roomLock(room string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, exists := s.locks[room]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[room] = lock
	}
	return lock
}

// path maps a room to its history file. The room name must already be
// validated; this is the guard against path traversal through a room name.
func (s *Store) path(room string) (string, error) {
	if !chat.IsValidRoomName(room) {
		return "", ErrInvalidRoom
	}
	return filepath.Join(s.dir, "history_"+room+".txt"), nil
}

// Append adds one line to a room's log.
func (s *Store) Append(room, line string) error {
	path, err := s.path(room)
	if err != nil {
		return err
	}

	lock := s.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history file for %s: %w", room, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to append history for %s: %w", room, err)
	}
	return nil
}

// Tail returns the last min(n, total) lines of a room's log in
// chronological order. A room with no history yields an empty slice.
// Non-positive n is coerced to 1.
func (s *Store) Tail(room string, n int) ([]string, error) {
	path, err := s.path(room)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		n = 1
	}

	lock := s.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open history file for %s: %w", room, err)
	}
	defer f.Close()

	// Single pass keeping a ring of the last n lines. n is caller
	// controlled, so capacity grows with the lines actually read rather
	// than being pre-allocated from n.
	capHint := n
	if capHint > 64 {
		capHint = 64
	}
	tail := make([]string, 0, capHint)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(tail) == n {
			tail = append(tail[1:], scanner.Text())
		} else {
			tail = append(tail, scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", room, err)
	}
	return tail, nil
}
