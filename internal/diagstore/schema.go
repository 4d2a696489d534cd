// Package diagstore persists the last diagnostics reported for each document in
// SQLite, together with a log of full validation runs.
package diagstore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path         TEXT PRIMARY KEY,
	diagnostics  INTEGER NOT NULL DEFAULT 0,
	published_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS diagnostics (
	path       TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
	ordinal    INTEGER NOT NULL,
	code       TEXT NOT NULL,
	severity   TEXT NOT NULL,
	message    TEXT NOT NULL,
	source     TEXT NOT NULL DEFAULT '',
	start_line INTEGER NOT NULL,
	start_char INTEGER NOT NULL,
	end_line   INTEGER NOT NULL,
	end_char   INTEGER NOT NULL,
	PRIMARY KEY (path, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_diagnostics_code ON diagnostics(code);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	documents   INTEGER NOT NULL DEFAULT 0,
	diagnostics INTEGER NOT NULL DEFAULT 0
);
`

// DB wraps a sql.DB with diagnostics-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("diagstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("diagstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("diagstore: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
