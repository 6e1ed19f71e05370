// Package db opens the PostgreSQL pool and hands out exclusive sessions
// to import runs.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/emissions-import/internal/config"
	"github.com/JonMunkholm/emissions-import/internal/core"
)

// Pool wraps a pgx pool. An import acquires one connection for its whole run.
type Pool struct {
	*pgxpool.Pool
}

// Connect parses cfg, opens the pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("connected to database", "name", DatabaseName(cfg.URL), "max_conns", cfg.MaxConns)
	return &Pool{Pool: pool}, nil
}

// WithSession acquires one connection and runs fn on it exclusively.
// A connection that broke during fn is destroyed instead of returned to the pool.
func (p *Pool) WithSession(ctx context.Context, fn func(core.Session) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return fn(conn.Conn())
}

// Healthy pings the database with a short timeout.
func (p *Pool) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.Ping(ctx)
}

// DatabaseName extracts the database name from a URL or keyword/value DSN
// for logging, without exposing credentials.
func DatabaseName(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		return strings.TrimPrefix(u.Path, "/")
	}
	for _, part := range strings.Fields(dsn) {
		if name, ok := strings.CutPrefix(part, "dbname="); ok {
			return name
		}
	}
	return ""
}
