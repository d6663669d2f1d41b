// Package session owns one connection's lifecycle: the authentication gate,
// the read loop, command dispatch, and a bounded outbound queue drained by
// a dedicated writer goroutine so broadcasts never wait on this peer's
// network stack.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parley/internal/auth"
	"parley/internal/hub"
	"parley/pkg/chat"
)

// State tracks a session through its lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// LineConn is the transport surface a session needs: a persistent
// bidirectional connection framed into lines. Close must unblock a pending
// ReadLine.
type LineConn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

// Options carries the chat settings a session needs.
type Options struct {
	DefaultRoom   string
	HistoryLines  int
	OutboundQueue int
	MaxLineLength int
}

// flushTimeout bounds how long Close waits for the writer to flush queued
// lines before the connection is torn down.
const flushTimeout = 2 * time.Second

// Session is the server-side state for one connection. Run drives it from
// Connecting to Closed; the username is immutable once authenticated and
// the session occupies exactly one room at a time while active.
type Session struct {
	id     string
	conn   LineConn
	hub    *hub.Hub
	creds  auth.Store
	opts   Options
	logger zerolog.Logger

	// Owned by the Run goroutine.
	username   string
	room       string
	registered bool

	state      atomic.Int32
	closed     atomic.Bool
	outbound   chan string
	done       chan struct{}
	writerDone chan struct{}

	closeOnce   sync.Once
	cleanupOnce sync.Once
}

var _ chat.Client = (*Session)(nil)

// New creates a session for an accepted connection. Run must be called to
// start it.
func New(conn LineConn, h *hub.Hub, creds auth.Store, opts Options, logger zerolog.Logger) *Session {
	id := uuid.New().String()
	s := &Session{
		id:         id,
		conn:       conn,
		hub:        h,
		creds:      creds,
		opts:       opts,
		logger:     logger.With().Str("component", "session").Str("session", id).Logger(),
		outbound:   make(chan string, opts.OutboundQueue),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Username returns the authenticated username, or "" before
// authentication.
func (s *Session) Username() string { return s.username }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(state State) { s.state.Store(int32(state)) }

// Run drives the session to completion: authentication, activation, the
// read loop, and cleanup. It returns when the session is closed.
func (s *Session) Run() {
	go s.writeLoop()
	defer s.cleanup()

	s.setState(StateAuthenticating)
	username, err := s.authenticate()
	if err != nil {
		return
	}
	s.username = username

	if !s.activate() {
		return
	}
	s.readLoop()
}

// Deliver enqueues a line without blocking. A full queue or a closed
// session returns false and the line is dropped for this session only.
func (s *Session) Deliver(line string) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.outbound <- line:
		return true
	default:
		return false
	}
}

// send is Deliver for the session's own output, with drop logging.
func (s *Session) send(line string) {
	if !s.Deliver(line) && !s.closed.Load() {
		s.logger.Warn().Msg("outbound queue full, dropping line")
	}
}

// writeLoop is the single writer for the connection. On a write failure it
// closes the connection, which unblocks the read loop and lets cleanup run
// through the normal path.
func (s *Session) writeLoop() {
	defer close(s.writerDone)
	for {
		select {
		case line := <-s.outbound:
			if err := s.conn.WriteLine(line); err != nil {
				s.closed.Store(true)
				_ = s.conn.Close()
				return
			}
		case <-s.done:
			// Flush lines already queued, then stop.
			for {
				select {
				case line := <-s.outbound:
					if err := s.conn.WriteLine(line); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// Close tears the session down: it stops accepting outbound lines, gives
// the writer a bounded chance to flush, and closes the connection so a
// pending read unblocks. Safe to call from any goroutine, any number of
// times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		select {
		case <-s.writerDone:
		case <-time.After(flushTimeout):
		}
		_ = s.conn.Close()
	})
}

// authenticate runs the login/register gate. It returns the authenticated
// username, or an error if the connection failed mid-dialog. Wrong
// credentials and taken usernames re-prompt; only I/O failures are fatal.
func (s *Session) authenticate() (string, error) {
	s.send("Welcome to Parley!")
	for {
		s.send("1. Login")
		s.send("2. Register")
		s.send("Enter choice:")

		choice, err := s.conn.ReadLine()
		if err != nil {
			return "", err
		}
		switch strings.TrimSpace(choice) {
		case "1":
			return s.loginFlow()
		case "2":
			return s.registerFlow()
		default:
			s.send("Invalid choice. Enter 1 or 2.")
		}
	}
}

func (s *Session) loginFlow() (string, error) {
	for {
		s.send("Enter username:")
		username, err := s.conn.ReadLine()
		if err != nil {
			return "", err
		}
		username = strings.TrimSpace(username)

		s.send("Enter password:")
		password, err := s.conn.ReadLine()
		if err != nil {
			return "", err
		}

		if err := s.creds.Verify(username, password); err != nil {
			s.send("Wrong username or password. Try again.")
			continue
		}
		return username, nil
	}
}

func (s *Session) registerFlow() (string, error) {
	for {
		s.send("Choose username:")
		username, err := s.conn.ReadLine()
		if err != nil {
			return "", err
		}
		username = strings.TrimSpace(username)

		s.send("Choose password:")
		password, err := s.conn.ReadLine()
		if err != nil {
			return "", err
		}

		if err := s.creds.Register(username, password); err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidUsername):
				s.send("Invalid username. Use letters, digits, - or _ (max 32 characters).")
			case errors.Is(err, auth.ErrUserExists):
				s.send("Username already exists. Try again.")
			default:
				s.logger.Error().Err(err).Msg("registration failed")
				s.send("Registration failed. Try again.")
			}
			continue
		}
		s.send("Registered successfully!")
		return username, nil
	}
}

// activate claims the username, joins the default room, and plays back
// recent history. A duplicate login loses the claim and is turned away
// without touching the existing session.
func (s *Session) activate() bool {
	if !s.hub.TryRegister(s.username, s) {
		s.send("This user is already logged in elsewhere. Disconnecting.")
		s.logger.Warn().Str("user", s.username).Msg("duplicate login rejected")
		return false
	}
	s.registered = true
	s.room = s.opts.DefaultRoom
	s.hub.Join(s.room, s)
	s.setState(StateActive)

	s.send(fmt.Sprintf("[%s] Logged in as %s", chat.Timestamp(), s.username))
	s.send("Type /help for commands. You are in room: #" + s.room)
	s.sendHistory(s.room, s.opts.HistoryLines)
	s.hub.Broadcast(s.room, chat.FormatSystem(s.username+" joined #"+s.room), true)

	s.logger.Info().
		Str("user", s.username).
		Str("remote", s.conn.RemoteAddr()).
		Msg("session active")
	return true
}

// readLoop consumes lines until the connection fails or a command ends the
// session. Blank lines are ignored; command lines are dispatched; anything
// else is broadcast to the current room and persisted.
func (s *Session) readLoop() {
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			if !s.closed.Load() {
				s.logger.Debug().Err(err).Str("user", s.username).Msg("connection read failed")
			}
			return
		}
		if len(line) > s.opts.MaxLineLength {
			s.send("Line too long, ignored.")
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if !s.dispatch(line) {
				return
			}
			continue
		}
		s.hub.Broadcast(s.room, chat.FormatMessage(s.username, line), true)
	}
}

// sendHistory plays back the last n lines of a room to this session and
// reports whether anything was sent.
func (s *Session) sendHistory(room string, n int) bool {
	lines, err := s.hub.Tail(room, n)
	if err != nil {
		s.logger.Error().Err(err).Str("room", room).Msg("failed to read history")
		return false
	}
	if len(lines) == 0 {
		return false
	}
	s.send(fmt.Sprintf("---- Last %d messages (#%s) ----", len(lines), room))
	for _, line := range lines {
		s.send(line)
	}
	s.send("---------------------------------------------")
	return true
}

// cleanup runs exactly once when the session ends, from any path: it
// releases the username (only if this session still holds it), leaves the
// current room, and then announces the departure so the notice cannot reach
// a half-cleaned-up session.
func (s *Session) cleanup() {
	s.cleanupOnce.Do(func() {
		if s.registered {
			s.hub.RemoveOnline(s.username, s)
			s.hub.Leave(s.room, s)
			s.hub.Broadcast(s.room, chat.FormatSystem(s.username+" disconnected from #"+s.room), true)
		}
		s.setState(StateClosed)
		s.Close()
		s.logger.Info().Str("user", s.username).Msg("session closed")
	})
}
