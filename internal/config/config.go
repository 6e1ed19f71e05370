// Package config loads importer configuration from the environment.
// Values are parsed once at startup and validated up front so that a
// misconfigured deployment fails before touching the database.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	Import   ImportConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required).
	URL string `env:"DATABASE_URL"`

	// FallbackURL is read from DB_URL when DATABASE_URL is unset.
	FallbackURL string `env:"DB_URL"`

	// ConnectTimeout bounds connection establishment and the startup ping.
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s"`

	// MaxConns caps the pool; an import only ever holds one connection,
	// the rest serve health checks.
	MaxConns int32 `env:"DB_MAX_CONNS" envDefault:"4"`
}

// ImportConfig holds pipeline settings.
type ImportConfig struct {
	// DataDir is where relative source file names are resolved.
	DataDir string `env:"IMPORT_DATA_DIR" envDefault:"./data"`

	// PlanFile optionally overrides sources and batch sizes per entity (YAML).
	PlanFile string `env:"IMPORT_PLAN_FILE"`

	// ReadChunks is how many insert chunks are buffered before flushing.
	ReadChunks int `env:"IMPORT_READ_CHUNKS" envDefault:"10"`

	// FailedRowsDir receives per-entity CSVs of rejected rows (disabled when empty).
	FailedRowsDir string `env:"IMPORT_FAILED_ROWS_DIR"`

	// Schedule is a cron expression for serve mode (disabled when empty).
	Schedule string `env:"IMPORT_SCHEDULE"`

	// Scope is what scheduled runs load.
	Scope string `env:"IMPORT_SCOPE" envDefault:"all"`

	// KeepGoing loads the entities whose headers validated even when others failed.
	KeepGoing bool `env:"IMPORT_KEEP_GOING" envDefault:"false"`
}

// ServerConfig holds HTTP server settings for serve mode.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"60s"`

	// APIKeys guard the import trigger; empty disables auth.
	APIKeys []string `env:"SERVER_API_KEYS" envSeparator:","`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
