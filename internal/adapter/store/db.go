// Package store implements the persistence layer on SQLite (modernc.org/sqlite,
// a pure-Go driver — see SPEC_FULL.md's storage engine decision). It keeps the
// teacher's Querier/TxManager/mapError shape but swaps pgx/pgxpool for
// database/sql.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/heartmarshall/wordflow-backend/internal/config"
)

// Open opens the SQLite database file, applies connection-level pragmas, and
// pings it for fail-fast validation. SQLite only supports one writer at a
// time, so MaxOpenConns defaults to 1 (config.DatabaseConfig) to avoid
// SQLITE_BUSY under concurrent writers; busy_timeout provides a grace period
// for the rest.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	return db, nil
}
