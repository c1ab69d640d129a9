package api

import (
	"fmt"
	"time"

	"github.com/gftj/tipjar-go/internal/constants"
)

// Config holds API server configuration
type Config struct {
	Host string
	Port int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int

	EnableGraphQL   bool
	EnableWebSocket bool
	EnableCORS      bool
	AllowedOrigins  []string

	GraphQLPath   string
	WebSocketPath string
}

// SetDefaults fills in missing values
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = constants.DefaultAPIHost
	}
	if c.Port == 0 {
		c.Port = constants.DefaultAPIPort
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = constants.DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = constants.DefaultWriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = constants.DefaultIdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = constants.DefaultShutdownTimeout
	}
	if c.MaxHeaderBytes == 0 {
		c.MaxHeaderBytes = constants.DefaultMaxHeaderBytes
	}
	if c.GraphQLPath == "" {
		c.GraphQLPath = constants.DefaultGraphQLPath
	}
	if c.WebSocketPath == "" {
		c.WebSocketPath = constants.DefaultWebSocketPath
	}
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = []string{"*"}
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Address returns the listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
