// Package db opens the SQLite database used by the sqlite item backend.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// ConnectionConfig holds database connection pool configuration.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	BusyTimeout     time.Duration
}

// DefaultConnectionConfig returns the pool settings for a single-writer SQLite file.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    1, // SQLite only supports one writer at a time
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Hour,
		BusyTimeout:     5 * time.Second,
	}
}

// DSN builds the modernc.org/sqlite data source name for path.
func DSN(path string, cfg ConnectionConfig) string {
	return fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(%d)",
		path, cfg.BusyTimeout.Milliseconds())
}

// Open creates the connection pool for the database at path and verifies it.
func Open(ctx context.Context, path string, cfg ConnectionConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DSN(path, cfg))
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("Open: PingContext: %w", err)
	}

	slog.Info("database connection established",
		slog.String("path", path),
		slog.Int("max_open_conns", cfg.MaxOpenConns))
	return db, nil
}
