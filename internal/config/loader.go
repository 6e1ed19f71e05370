package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/emissions-import/internal/core"
)

// LoadDotEnv loads the given .env files into the process environment
// without overriding variables that are already set. Missing files are
// skipped. Returns how many files were loaded.
func LoadDotEnv(files ...string) (int, error) {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads configuration from the process environment and validates it.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom reads configuration from vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = cfg.Database.FallbackURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.ConnectTimeout <= 0 {
		errs = append(errs, "DB_CONNECT_TIMEOUT must be positive")
	}

	if c.Import.DataDir == "" {
		errs = append(errs, "IMPORT_DATA_DIR must not be empty")
	}
	if c.Import.ReadChunks <= 0 {
		errs = append(errs, "IMPORT_READ_CHUNKS must be positive")
	}
	if c.Import.Schedule != "" {
		if _, err := core.ParseSchedule(c.Import.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("IMPORT_SCHEDULE: %v", err))
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.New("validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// ErrNoDatabaseURL is returned by RequireDatabase when neither
// DATABASE_URL nor DB_URL is set.
var ErrNoDatabaseURL = errors.New("DATABASE_URL is required")

// RequireDatabase reports whether a connection string is configured.
// Commands that never connect (check, plan) skip this.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return ErrNoDatabaseURL
	}
	return nil
}

// String returns a safe representation for logging; the DSN is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, ConnectTimeout: %s}, ",
		c.Database.MaxConns, c.Database.ConnectTimeout)
	fmt.Fprintf(&b, "Import: {DataDir: %q, PlanFile: %q, ReadChunks: %d, Schedule: %q}, ",
		c.Import.DataDir, c.Import.PlanFile, c.Import.ReadChunks, c.Import.Schedule)
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
