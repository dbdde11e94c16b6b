// Package config provides the configuration system for the gridbase server.
// A single Config structure covers every component, organized into logical
// sections:
//   - Server: HTTP listen address and request timeouts
//   - Storage: backend selection (memory or postgres) and connection settings
//   - Engine: table mutation coordination limits
//   - Auth: static token to user-id mapping standing in for the session service
//   - Observability: metrics, tracing, logging
//
// Example usage:
//
//	cfg := config.Default()
//	cfg.Storage.Backend = "postgres"
//	cfg.Storage.DSN = "postgres://localhost/gridbase"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration for the gridbase server
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Engine        EngineConfig        `yaml:"engine" json:"engine"`
	Auth          AuthConfig          `yaml:"auth" json:"auth"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080"
	Addr string `yaml:"addr" json:"addr"`
	// ReadTimeout bounds request read time
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`
	// WriteTimeout bounds response write time
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	// Backend is "memory" or "postgres"
	Backend string `yaml:"backend" json:"backend"`
	// DSN is the postgres connection string when Backend is "postgres"
	DSN string `yaml:"dsn" json:"dsn"`
	// MaxConns caps the postgres connection pool
	MaxConns int32 `yaml:"max_conns" json:"max_conns"`
	// ConnectTimeout bounds initial pool establishment
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	// Migrate runs schema DDL on startup when true
	Migrate bool `yaml:"migrate" json:"migrate"`
}

// EngineConfig contains mutation coordination settings
type EngineConfig struct {
	// MutationWait bounds how long an operation waits for a table whose
	// schema is being mutated before failing with a retryable conflict
	MutationWait time.Duration `yaml:"mutation_wait" json:"mutation_wait"`
}

// AuthConfig maps bearer tokens to user ids. It stands in for the external
// session service the dashboard normally resolves identities through.
type AuthConfig struct {
	// Tokens maps bearer token -> user id
	Tokens map[string]int64 `yaml:"tokens" json:"tokens"`
}

// ObservabilityConfig contains monitoring settings
type ObservabilityConfig struct {
	// EnableMetrics exposes prometheus metrics at /metrics
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing enables OpenTelemetry tracing
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// LogLevel sets the zap log level (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogEncoding is "json" or "console"
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Backend:        "memory",
			MaxConns:       10,
			ConnectTimeout: 10 * time.Second,
			Migrate:        true,
		},
		Engine: EngineConfig{
			MutationWait: 5 * time.Second,
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			LogLevel:      "info",
			LogEncoding:   "json",
		},
	}
}

// Validate checks the configuration and applies defaults for zero values
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	switch c.Storage.Backend {
	case "", "memory":
		c.Storage.Backend = "memory"
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.MaxConns <= 0 {
		c.Storage.MaxConns = 10
	}
	if c.Storage.ConnectTimeout <= 0 {
		c.Storage.ConnectTimeout = 10 * time.Second
	}

	if c.Engine.MutationWait <= 0 {
		c.Engine.MutationWait = 5 * time.Second
	}

	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogEncoding == "" {
		c.Observability.LogEncoding = "json"
	}

	return nil
}
