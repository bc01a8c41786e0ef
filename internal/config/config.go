// Package config provides centralized configuration management for the server.
// It loads configuration from environment variables with sensible defaults,
// lets command-line flags override them, and validates all settings on
// startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Workspace WorkspaceConfig
	Server    ServerConfig
	Ingest    IngestConfig
	Ops       OpsConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
}

// WorkspaceConfig locates the sandbox every file operation is confined to.
type WorkspaceConfig struct {
	// Root is the workspace root directory (default: current directory)
	Root string `env:"INVEST_ROOT" envAlt:"WORKSPACE_ROOT" default:"."`

	// ErrorLogPath is the error document, relative to Root (default: db/errors.json)
	ErrorLogPath string `env:"INVEST_ERROR_LOG" default:"db/errors.json"`

	// DataDir holds raw data, philosophy files and analysis output (default: investment_data)
	DataDir string `env:"INVEST_DATA_DIR" default:"investment_data"`
}

// ServerConfig holds transport settings.
type ServerConfig struct {
	// Transport is stdio or http (default: stdio)
	Transport string `env:"MCP_TRANSPORT" default:"stdio"`

	// Host is the interface to bind to in http mode (default: 127.0.0.1)
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on in http mode (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for streaming)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers are honored
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`

	// RateLimit is the per-client request budget per minute in http mode (default: 600)
	RateLimit int `env:"SERVER_RATE_LIMIT" default:"600"`
}

// IngestConfig holds CSV ingestion settings.
type IngestConfig struct {
	// MaxFileSize is the maximum CSV size in bytes (default: 32MB)
	MaxFileSize int64 `env:"INGEST_MAX_FILE_SIZE" default:"33554432"`
}

// OpsConfig bounds concurrent tool calls.
type OpsConfig struct {
	// MaxConcurrent is how many operations may run at once (default: 1)
	MaxConcurrent int `env:"OPS_MAX_CONCURRENT" default:"1"`

	// MaxWaitTime is how long a call waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"OPS_MAX_WAIT_TIME" default:"30s"`

	// CallTimeout caps a single tool call (default: 2m)
	CallTimeout time.Duration `env:"OPS_CALL_TIMEOUT" default:"2m"`
}

// DatabaseConfig holds the optional analysis archive connection.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty disables the archive.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Transports accepted by ServerConfig.Transport.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ArchiveEnabled reports whether analyses are mirrored into Postgres.
func (c *DatabaseConfig) ArchiveEnabled() bool {
	return c.URL != ""
}
