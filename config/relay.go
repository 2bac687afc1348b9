package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// RelayConfig holds WebSocket relay configuration.
type RelayConfig struct {
	Addr            string        `envconfig:"RELAY_ADDR" default:":8080"`
	Path            string        `envconfig:"RELAY_WS_PATH" default:"/chat-ws"`
	PingInterval    time.Duration `envconfig:"RELAY_PING_INTERVAL" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"RELAY_WRITE_TIMEOUT" default:"10s"`
	ReadBufferSize  int           `envconfig:"RELAY_READ_BUFFER" default:"1024"`
	WriteBufferSize int           `envconfig:"RELAY_WRITE_BUFFER" default:"1024"`
	SendBufferSize  int           `envconfig:"RELAY_SEND_BUFFER" default:"256"`
	MaxMessageBytes int64         `envconfig:"RELAY_MAX_MESSAGE_BYTES" default:"65536"`
	Acks            bool          `envconfig:"RELAY_ACKS" default:"true"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
}

// DefaultConfig returns the default relay configuration.
func DefaultConfig() *RelayConfig {
	return &RelayConfig{
		Addr:            ":8080",
		Path:            "/chat-ws",
		PingInterval:    30 * time.Second,
		WriteTimeout:    10 * time.Second,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		MaxMessageBytes: 64 * 1024,
		Acks:            true,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// FromEnv loads the configuration from the environment, falling back to
// defaults for unset keys.
func FromEnv() (*RelayConfig, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	cfg.Path = NormalizePath(cfg.Path)
	return cfg, nil
}

// NormalizePath guarantees the WebSocket path starts with '/' and falls back
// to /chat-ws when empty.
func NormalizePath(path string) string {
	if path == "" {
		return "/chat-ws"
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}
