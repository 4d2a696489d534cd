package diagstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/speclink/internal/diagnostics"
	"github.com/starford/speclink/internal/models"
)

var _ diagnostics.Sink = (*DB)(nil)

// Run summarises one full validation pass.
type Run struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Documents   int       `json:"documents"`
	Diagnostics int       `json:"diagnostics"`
}

// Publish replaces the stored diagnostics of path within a transaction. A path
// with no diagnostics is removed.
func (db *DB) Publish(path string, diags []models.Diagnostic) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("diagstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("diagstore: clear %s: %w", path, err)
	}
	if len(diags) == 0 {
		return tx.Commit()
	}

	_, err = tx.Exec(`INSERT INTO documents (path, diagnostics, published_at) VALUES (?, ?, ?)`,
		path, len(diags), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("diagstore: insert document: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO diagnostics (path, ordinal, code, severity, message, source, start_line, start_char, end_line, end_char)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("diagstore: prepare diagnostic insert: %w", err)
	}
	defer stmt.Close()
	for i, d := range diags {
		_, err := stmt.Exec(path, i, string(d.Code), string(d.Severity), d.Message, d.Source,
			d.Range.Start.Line, d.Range.Start.Character, d.Range.End.Line, d.Range.End.Character)
		if err != nil {
			return fmt.Errorf("diagstore: insert diagnostic: %w", err)
		}
	}
	return tx.Commit()
}

// Retract removes everything stored for path.
func (db *DB) Retract(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("diagstore: retract %s: %w", path, err)
	}
	return nil
}

// Diagnostics returns the stored diagnostics of path in publication order.
func (db *DB) Diagnostics(path string) ([]models.Diagnostic, error) {
	rows, err := db.conn.Query(`
		SELECT code, severity, message, source, start_line, start_char, end_line, end_char
		FROM diagnostics WHERE path = ? ORDER BY ordinal
	`, path)
	if err != nil {
		return nil, fmt.Errorf("diagstore: diagnostics: %w", err)
	}
	defer rows.Close()

	out := []models.Diagnostic{}
	for rows.Next() {
		var (
			d              models.Diagnostic
			code, severity string
		)
		if err := rows.Scan(&code, &severity, &d.Message, &d.Source,
			&d.Range.Start.Line, &d.Range.Start.Character, &d.Range.End.Line, &d.Range.End.Character); err != nil {
			return nil, err
		}
		d.Code = models.IssueKind(code)
		d.Severity = models.Severity(severity)
		out = append(out, d)
	}
	return out, rows.Err()
}

// AllPaths returns every path with stored diagnostics.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("diagstore: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// CountByCode returns the number of stored diagnostics per issue kind.
func (db *DB) CountByCode() (map[models.IssueKind]int, error) {
	rows, err := db.conn.Query(`SELECT code, count(*) FROM diagnostics GROUP BY code`)
	if err != nil {
		return nil, fmt.Errorf("diagstore: count by code: %w", err)
	}
	defer rows.Close()
	out := make(map[models.IssueKind]int)
	for rows.Next() {
		var (
			code string
			n    int
		)
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		out[models.IssueKind(code)] = n
	}
	return out, rows.Err()
}

// RecordRun stores the summary of a finished validation pass.
func (db *DB) RecordRun(r Run) error {
	_, err := db.conn.Exec(`
		INSERT INTO runs (id, started_at, finished_at, documents, diagnostics)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.Documents, r.Diagnostics)
	if err != nil {
		return fmt.Errorf("diagstore: record run: %w", err)
	}
	return nil
}

// LastRun returns the most recently finished run, or nil when there is none.
func (db *DB) LastRun() (*Run, error) {
	var r Run
	err := db.conn.QueryRow(`
		SELECT id, started_at, finished_at, documents, diagnostics
		FROM runs ORDER BY finished_at DESC LIMIT 1
	`).Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Documents, &r.Diagnostics)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("diagstore: last run: %w", err)
	}
	return &r, nil
}
