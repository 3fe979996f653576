// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sqlite implements the Repository interfaces declared in
// pkg/store on top of a single-writer SQLite database (modernc.org/sqlite,
// pure Go, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/stacklok/vtn-core/pkg/logger"
)

// DB wraps a *sql.DB opened against a single SQLite file with the
// pragmas the rest of this package assumes are in effect.
type DB struct {
	db *sql.DB
}

// DefaultDBPath returns the default database location under the user's
// config directory, falling back to the working directory's name if
// the config directory cannot be determined.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "vtn-core.db"
	}
	return filepath.Join(dir, "vtn-core", "vtn-core.db")
}

// Open creates dbPath's parent directory if needed, opens a SQLite
// connection pool capped at one connection (SQLite serializes writers
// regardless, and a single connection keeps WAL readers consistent with
// the driver's internal statement cache), applies the pragmas, and runs
// pending migrations.
func Open(ctx context.Context, dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := applyPragmas(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	db := &DB{db: sqlDB}

	if err := migrate(ctx, db.db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	logger.Infow("opened sqlite database", "path", dbPath)
	return db, nil
}

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA cache_size = -2000",
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}
	return nil
}

// DB exposes the underlying connection pool for repository queries.
func (d *DB) DB() *sql.DB {
	return d.db
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}
