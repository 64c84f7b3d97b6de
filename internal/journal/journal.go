// Package journal keeps a local append-only record of review resolutions.
// It mirrors the portal's server-side audit trail so a clinician can see what
// they resolved in past sessions without another round-trip.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hsdd/triage/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Entry is one recorded resolution.
type Entry struct {
	ResolvedAt     time.Time
	SessionID      string
	ItemID         string
	SubjectRef     string
	PredictedLabel string
	CorrectedLabel string
	Status         model.ReviewStatus
}

// Journal is a SQLite-backed resolution log.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the journal database at path. Use ":memory:" for
// an ephemeral journal in tests.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	return &Journal{db: db, path: path}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Migrate creates the journal schema if it does not exist yet.
func (j *Journal) Migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS resolutions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		subject_ref TEXT NOT NULL,
		predicted_label TEXT NOT NULL,
		corrected_label TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		resolved_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_resolutions_session ON resolutions(session_id);
	CREATE INDEX IF NOT EXISTS idx_resolutions_item ON resolutions(item_id);`

	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate journal: %w", err)
	}
	return nil
}

// Record appends one resolution. Entries are never updated or deleted.
func (j *Journal) Record(ctx context.Context, entry Entry) error {
	if entry.SessionID == "" || entry.ItemID == "" {
		return fmt.Errorf("journal entry needs session and item ids")
	}
	if !entry.Status.Valid() {
		return fmt.Errorf("journal entry has unknown status %q", entry.Status)
	}
	if entry.ResolvedAt.IsZero() {
		entry.ResolvedAt = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO resolutions (session_id, item_id, subject_ref, predicted_label, corrected_label, status, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID, entry.ItemID, entry.SubjectRef, entry.PredictedLabel,
		entry.CorrectedLabel, string(entry.Status), entry.ResolvedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record resolution: %w", err)
	}
	return nil
}

// List returns entries newest-first, optionally filtered to one session.
// limit <= 0 means no limit.
func (j *Journal) List(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	query := `
		SELECT session_id, item_id, subject_ref, predicted_label, corrected_label, status, resolved_at
		FROM resolutions`
	args := make([]any, 0, 2)
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY resolved_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolutions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var status string
		if err := rows.Scan(&entry.SessionID, &entry.ItemID, &entry.SubjectRef,
			&entry.PredictedLabel, &entry.CorrectedLabel, &status, &entry.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		entry.Status = model.ReviewStatus(status)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resolutions: %w", err)
	}

	return entries, nil
}
