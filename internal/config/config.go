// Package config loads and validates server settings with precedence
// file > environment > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"parley/pkg/chat"
)

// Config holds all settings for the chat server.
type Config struct {
	Env       string           `json:"env"`
	Server    *ServerConfig    `json:"server"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Storage   *StorageConfig   `json:"storage"`
	Chat      *ChatConfig      `json:"chat"`
}

// ServerConfig covers the TCP listener.
type ServerConfig struct {
	Addr         string        `json:"addr"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// WebSocketConfig covers the optional WebSocket endpoint, which carries the
// same newline-delimited protocol as the TCP listener.
type WebSocketConfig struct {
	Enabled      bool          `json:"enabled"`
	Addr         string        `json:"addr"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// StorageConfig locates the durable state: the credential file and one
// history file per room, all under DataDir.
type StorageConfig struct {
	DataDir string `json:"data_dir"`
}

// ChatConfig tunes room and session behavior.
type ChatConfig struct {
	DefaultRoom   string `json:"default_room"`
	HistoryLines  int    `json:"history_lines"`
	OutboundQueue int    `json:"outbound_queue"`
	MaxLineLength int    `json:"max_line_length"`
}

// DefaultConfig returns production-ready defaults: TCP on 5000, WebSocket
// disabled, durable state under ./data.
func DefaultConfig() *Config {
	return &Config{
		Env: "development",
		Server: &ServerConfig{
			Addr:         ":5000",
			WriteTimeout: 5 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			Enabled:      false,
			Addr:         ":5080",
			WriteTimeout: 5 * time.Second,
		},
		Storage: &StorageConfig{
			DataDir: "./data",
		},
		Chat: &ChatConfig{
			DefaultRoom:   chat.DefaultRoom,
			HistoryLines:  20,
			OutboundQueue: 64,
			MaxLineLength: 1024,
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr cannot be empty")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("websocket configuration is required")
	}
	if c.WebSocket.Enabled && c.WebSocket.Addr == "" {
		return fmt.Errorf("websocket addr cannot be empty when enabled")
	}
	if c.WebSocket.Enabled && c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket write timeout must be positive")
	}
	if c.Storage == nil {
		return fmt.Errorf("storage configuration is required")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage data dir cannot be empty")
	}
	if c.Chat == nil {
		return fmt.Errorf("chat configuration is required")
	}
	if c.Chat.DefaultRoom == "" {
		return fmt.Errorf("chat default room cannot be empty")
	}
	if !chat.IsValidRoomName(c.Chat.DefaultRoom) {
		return fmt.Errorf("chat default room %q is not a valid room name", c.Chat.DefaultRoom)
	}
	if c.Chat.HistoryLines <= 0 {
		return fmt.Errorf("chat history lines must be positive")
	}
	if c.Chat.OutboundQueue <= 0 {
		return fmt.Errorf("chat outbound queue must be positive")
	}
	if c.Chat.MaxLineLength <= 0 {
		return fmt.Errorf("chat max line length must be positive")
	}
	return nil
}

// LoadFromEnv returns the defaults overridden by PARLEY_* environment
// variables. A .env file is loaded first if present, as a development
// convenience.
func LoadFromEnv() *Config {
	_ = godotenv.Load()

	config := DefaultConfig()

	if env := os.Getenv("PARLEY_ENV"); env != "" {
		config.Env = env
	}
	if addr := os.Getenv("PARLEY_SERVER_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
	if timeout := os.Getenv("PARLEY_SERVER_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.WriteTimeout = d
		}
	}
	if enabled := os.Getenv("PARLEY_WEBSOCKET_ENABLED"); enabled != "" {
		config.WebSocket.Enabled = enabled == "true"
	}
	if addr := os.Getenv("PARLEY_WEBSOCKET_ADDR"); addr != "" {
		config.WebSocket.Addr = addr
	}
	if timeout := os.Getenv("PARLEY_WEBSOCKET_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.WebSocket.WriteTimeout = d
		}
	}
	if dir := os.Getenv("PARLEY_DATA_DIR"); dir != "" {
		config.Storage.DataDir = dir
	}
	if room := os.Getenv("PARLEY_DEFAULT_ROOM"); room != "" {
		config.Chat.DefaultRoom = chat.NormalizeRoom(room)
	}
	if lines := os.Getenv("PARLEY_HISTORY_LINES"); lines != "" {
		if n, err := strconv.Atoi(lines); err == nil {
			config.Chat.HistoryLines = n
		}
	}
	if queue := os.Getenv("PARLEY_OUTBOUND_QUEUE"); queue != "" {
		if n, err := strconv.Atoi(queue); err == nil {
			config.Chat.OutboundQueue = n
		}
	}
	if max := os.Getenv("PARLEY_MAX_LINE_LENGTH"); max != "" {
		if n, err := strconv.Atoi(max); err == nil {
			config.Chat.MaxLineLength = n
		}
	}

	return config
}

// ConfigFile mirrors Config for JSON parsing; durations are strings so the
// file can say "5s" instead of nanosecond counts.
type ConfigFile struct {
	Env       string               `json:"env"`
	Server    *ServerConfigFile    `json:"server"`
	WebSocket *WebSocketConfigFile `json:"websocket"`
	Storage   *StorageConfig       `json:"storage"`
	Chat      *ChatConfig          `json:"chat"`
}

type ServerConfigFile struct {
	Addr         string `json:"addr"`
	WriteTimeout string `json:"write_timeout"`
}

type WebSocketConfigFile struct {
	Enabled      bool   `json:"enabled"`
	Addr         string `json:"addr"`
	WriteTimeout string `json:"write_timeout"`
}

// LoadFromFile parses a JSON config file over the defaults and validates
// the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file ConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config := DefaultConfig()

	if file.Env != "" {
		config.Env = file.Env
	}
	if file.Server != nil {
		if file.Server.Addr != "" {
			config.Server.Addr = file.Server.Addr
		}
		if file.Server.WriteTimeout != "" {
			if d, err := time.ParseDuration(file.Server.WriteTimeout); err == nil {
				config.Server.WriteTimeout = d
			}
		}
	}
	if file.WebSocket != nil {
		config.WebSocket.Enabled = file.WebSocket.Enabled
		if file.WebSocket.Addr != "" {
			config.WebSocket.Addr = file.WebSocket.Addr
		}
		if file.WebSocket.WriteTimeout != "" {
			if d, err := time.ParseDuration(file.WebSocket.WriteTimeout); err == nil {
				config.WebSocket.WriteTimeout = d
			}
		}
	}
	if file.Storage != nil && file.Storage.DataDir != "" {
		config.Storage.DataDir = file.Storage.DataDir
	}
	if file.Chat != nil {
		if file.Chat.DefaultRoom != "" {
			// Normalized so the default matches what /join produces.
			config.Chat.DefaultRoom = chat.NormalizeRoom(file.Chat.DefaultRoom)
		}
		if file.Chat.HistoryLines > 0 {
			config.Chat.HistoryLines = file.Chat.HistoryLines
		}
		if file.Chat.OutboundQueue > 0 {
			config.Chat.OutboundQueue = file.Chat.OutboundQueue
		}
		if file.Chat.MaxLineLength > 0 {
			config.Chat.MaxLineLength = file.Chat.MaxLineLength
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return config, nil
}

// Load resolves configuration with precedence file > environment >
// defaults. The file path comes from PARLEY_CONFIG_FILE; a missing or
// unreadable file falls back to the environment result.
func Load() *Config {
	config := LoadFromEnv()

	if path := os.Getenv("PARLEY_CONFIG_FILE"); path != "" {
		if fileConfig, err := LoadFromFile(path); err == nil {
			config = fileConfig
		}
	}

	return config
}
