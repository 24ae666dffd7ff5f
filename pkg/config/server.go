package config

import (
	"fmt"
	"time"
)

// ServerConfig controls the HTTP/WebSocket server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// WSWriteTimeout bounds each WebSocket send.
	WSWriteTimeout time.Duration `yaml:"ws_write_timeout"`
}

// DefaultServerConfig returns the built-in server defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		WSWriteTimeout: 10 * time.Second,
	}
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks server bounds.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be within [1, 65535], got %d", c.Port)
	}
	if c.WSWriteTimeout <= 0 {
		return fmt.Errorf("ws_write_timeout must be positive")
	}
	return nil
}
