// Package store provides the durable sqlite-backed storage shared by the
// configuration, control-flag, heartbeat, and order components. Every
// operation commits as a single statement; there are no multi-statement
// transactions spanning a read-then-write sequence.
package store

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/rxtech-lab/centrix/pkg/errors"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Store owns the database handle and the shared statement builder.
type Store struct {
	db *sql.DB
	sq squirrel.StatementBuilderType
}

// Open opens (or creates) the sqlite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStoreClosed, err, "failed to open database at %s", path)
	}

	return &Store{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Init creates the required tables if they do not yet exist. Safe to call
// repeatedly.
func (s *Store) Init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS config_settings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			value_type TEXT NOT NULL,
			scope TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			updated_by TEXT,
			UNIQUE(key, scope)
		)`,
		`CREATE TABLE IF NOT EXISTS control_flags (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS heartbeats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			status TEXT NOT NULL,
			ts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity DOUBLE NOT NULL,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			error_message TEXT
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(errors.ErrCodeSchemaFailed, "failed to create table", err)
		}
	}

	return nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Builder returns the shared squirrel statement builder.
func (s *Store) Builder() squirrel.StatementBuilderType {
	return s.sq
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
