// Package server accepts incoming connections and spawns one session per
// connection. Two listeners carry the same newline-delimited protocol: the
// primary TCP listener and an optional WebSocket endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"parley/internal/auth"
	"parley/internal/config"
	"parley/internal/hub"
	"parley/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server owns the accept loops and tracks live sessions for shutdown. A
// slow or misbehaving session never stalls acceptance: each accepted
// connection is handed to its own goroutine immediately.
type Server struct {
	cfg    *config.Config
	hub    *hub.Hub
	creds  auth.Store
	logger zerolog.Logger
	root   zerolog.Logger

	listener net.Listener
	wsServer *http.Server

	mu       sync.Mutex
	sessions map[*session.Session]struct{}
	closing  bool

	wg sync.WaitGroup
}

// New creates a server; Start begins accepting.
func New(cfg *config.Config, h *hub.Hub, creds auth.Store, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		hub:      h,
		creds:    creds,
		logger:   logger.With().Str("component", "server").Logger(),
		root:     logger,
		sessions: make(map[*session.Session]struct{}),
	}
}

// Start opens the TCP listener (and the WebSocket endpoint when enabled)
// and begins accepting connections in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.Addr, err)
	}
	s.listener = listener
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("listening for connections")

	s.wg.Add(1)
	go s.acceptLoop()

	if s.cfg.WebSocket.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", s.handleWebSocket)
		s.wsServer = &http.Server{
			Addr:              s.cfg.WebSocket.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		s.logger.Info().Str("addr", s.cfg.WebSocket.Addr).Msg("websocket endpoint enabled")

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error().Err(err).Msg("websocket server error")
			}
		}()
	}

	return nil
}

// Addr returns the TCP listener's actual address, useful when the
// configured port is 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isClosing() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			continue
		}
		s.startSession(newTCPConn(conn, s.cfg.Server.WriteTimeout))
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	s.startSession(newWSConn(conn, s.cfg.WebSocket.WriteTimeout))
}

// startSession spawns an independent worker for one accepted connection.
func (s *Server) startSession(conn session.LineConn) {
	sess := session.New(conn, s.hub, s.creds, session.Options{
		DefaultRoom:   s.cfg.Chat.DefaultRoom,
		HistoryLines:  s.cfg.Chat.HistoryLines,
		OutboundQueue: s.cfg.Chat.OutboundQueue,
		MaxLineLength: s.cfg.Chat.MaxLineLength,
	}, s.root)

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug().Str("remote", conn.RemoteAddr()).Str("session", sess.ID()).Msg("connection accepted")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess.Run()
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
	}()
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// Shutdown stops accepting, closes every live session, and waits up to
// timeout for their goroutines to finish.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	s.closing = true
	sessions := make([]*session.Session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.wsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = s.wsServer.Shutdown(ctx)
	}

	for _, sess := range sessions {
		sess.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info().Msg("server shutdown complete")
		return nil
	case <-time.After(timeout):
		s.logger.Warn().Msg("server shutdown timeout, sessions may still be running")
		return context.DeadlineExceeded
	}
}
