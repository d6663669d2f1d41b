package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"parley/internal/auth"
	"parley/internal/config"
	"parley/internal/history"
	"parley/internal/hub"
	"parley/internal/registry"
	"parley/internal/server"
)

const shutdownTimeout = 30 * time.Second

// Application wires the components in dependency order: stores, then
// registries, then the hub, then the listener.
type Application struct {
	config *config.Config
	logger zerolog.Logger
	server *server.Server
}

// NewApplication validates the configuration and constructs every
// component. Nothing is listening until Start.
func NewApplication(cfg *config.Config, logger zerolog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	historyStore, err := history.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history store: %w", err)
	}
	credStore := auth.NewFileStore(filepath.Join(cfg.Storage.DataDir, "users.txt"))

	online := registry.NewOnline()
	rooms := registry.NewRooms(cfg.Chat.DefaultRoom)
	messageHub := hub.New(online, rooms, historyStore, logger)
	srv := server.New(cfg, messageHub, credStore, logger)

	return &Application{
		config: cfg,
		logger: logger,
		server: srv,
	}, nil
}

// Start begins accepting connections.
func (app *Application) Start() error {
	return app.server.Start()
}

// Stop closes the listeners and live sessions.
func (app *Application) Stop() error {
	return app.server.Shutdown(shutdownTimeout)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	logger := newLogger(cfg)

	app, err := NewApplication(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	logger.Info().Str("addr", cfg.Server.Addr).Msg("parley started")

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signalCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	if err := app.Stop(); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// newLogger builds the root logger: human-readable console output in
// development, JSON elsewhere.
func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.Env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	}
	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()
}
