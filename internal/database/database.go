// Package database provides database access for the status history
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
	Driver string
}

// New creates a new database connection. driver is "postgres" or "sqlite3".
func New(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite3" {
		// A single connection keeps ":memory:" databases shared and serialises writers.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, Driver: driver}, nil
}

// Migrate creates all required tables
func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS status_checks (
		id VARCHAR(36) PRIMARY KEY,
		target TEXT NOT NULL,
		checked_at TIMESTAMP NOT NULL,
		outcome VARCHAR(20) NOT NULL,
		running BOOLEAN NOT NULL DEFAULT FALSE,
		connected BOOLEAN NOT NULL DEFAULT FALSE,
		remote_timestamp TEXT NOT NULL DEFAULT '',
		error_kind VARCHAR(50) NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		latency_ms BIGINT NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_status_checks_checked_at ON status_checks(checked_at);
	CREATE INDEX IF NOT EXISTS idx_status_checks_outcome ON status_checks(outcome);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Reset drops all tables (for testing)
func (db *DB) Reset() error {
	_, err := db.Exec(`DROP TABLE IF EXISTS status_checks`)
	return err
}

// CleanData deletes all rows without dropping tables (for testing)
func (db *DB) CleanData() error {
	_, err := db.Exec(`DELETE FROM status_checks`)
	return err
}
