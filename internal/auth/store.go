// Package auth implements the credential store consulted by the
// authentication gate: a file of username,password-hash records with
// atomic check-then-insert registration.
package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"parley/pkg/chat"
)

// Store verifies and registers username/password pairs. Implementations
// must be safe under concurrent calls; concurrent registrations of the same
// username resolve to exactly one winner.
type Store interface {
	Register(username, password string) error
	Verify(username, password string) error
}

// FileStore keeps one record per line, "username,bcrypt-hash", in a single
// file. Usernames are restricted to the chat name character set, so the
// comma separator is unambiguous. A single mutex spans the existence check
// and the append, making check-then-insert atomic.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the file at path. The file is
// created on first registration.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Register adds a new user. It returns ErrUserExists if the username is
// taken and ErrInvalidUsername if the name fails validation.
func (s *FileStore) Register(username, password string) error {
	if !chat.IsValidUsername(username) {
		return ErrInvalidUsername
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return fmt.Errorf("failed to read credential file: %w", err)
	}
	if _, exists := records[username]; exists {
		return ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open credential file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s,%s\n", username, hash); err != nil {
		return fmt.Errorf("failed to append credential record: %w", err)
	}
	return nil
}

// Verify checks a username/password pair, returning ErrInvalidCredentials
// for an unknown user or a wrong password.
func (s *FileStore) Verify(username, password string) error {
	s.mu.Lock()
	records, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to read credential file: %w", err)
	}

	hash, exists := records[username]
	if !exists {
		return ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// load reads all records; a missing file is an empty store. Malformed lines
// are skipped rather than failing every lookup.
func (s *FileStore) load() (map[string]string, error) {
	records := make(map[string]string)

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		username, hash, found := strings.Cut(scanner.Text(), ",")
		if !found || username == "" {
			continue
		}
		records[username] = hash
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
