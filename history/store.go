// CLAUDE:SUMMARY SQLite download history: one row per run, one row per download attempt.
// Package history persists download attempts and run summaries across
// runs in a local SQLite database. It exists for post-hoc auditing of
// skip/retry behaviour; the pipeline works identically without it.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/flatexdl/archive"
	"github.com/hazyhaar/flatexdl/dbopen"
)

// Schema is the complete history schema.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    archive_url TEXT NOT NULL,
    started_at  INTEGER NOT NULL,
    finished_at INTEGER,
    total       INTEGER NOT NULL DEFAULT 0,
    downloaded  INTEGER NOT NULL DEFAULT 0,
    skipped     INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS attempts (
    id          TEXT PRIMARY KEY,
    run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    row_no      INTEGER NOT NULL,
    attempt     INTEGER NOT NULL,
    url         TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    message     TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id, row_no);
`

// Store wraps the history database.
type Store struct {
	DB *sql.DB
}

// Open opens (and if needed creates) the history database at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return &Store{DB: db}, nil
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// StartRun records the beginning of a run.
func (s *Store) StartRun(ctx context.Context, runID, archiveURL string, startedAt time.Time) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO runs (id, archive_url, started_at) VALUES (?, ?, ?)`,
		runID, archiveURL, startedAt.UnixMilli())
	return err
}

// FinishRun records the final counters of a run.
func (s *Store) FinishRun(ctx context.Context, rep *archive.RunReport) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, total = ?, downloaded = ?, skipped = ?, failed = ?
		WHERE id = ?`,
		rep.FinishedAt.UnixMilli(), rep.Total, rep.Downloaded, rep.Skipped, rep.Failed,
		rep.RunID)
	return err
}

// RecordAttempt persists one download attempt. Satisfies
// archive.Recorder.
func (s *Store) RecordAttempt(ctx context.Context, a archive.Attempt) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO attempts (id, run_id, row_no, attempt, url, status, message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.Must(uuid.NewV7()).String(), a.RunID, a.Row, a.Attempt,
		a.URL, a.Status, a.Message, a.Duration.Milliseconds(),
		time.Now().UnixMilli())
	return err
}

// AttemptEntry is one persisted attempt row.
type AttemptEntry struct {
	ID         string
	RunID      string
	Row        int
	Attempt    int
	URL        string
	Status     string
	Message    string
	DurationMs int64
	CreatedAt  int64
}

// RunAttempts returns the attempts of a run in row/attempt order.
func (s *Store) RunAttempts(ctx context.Context, runID string) ([]*AttemptEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, run_id, row_no, attempt, url, status, message, duration_ms, created_at
		FROM attempts WHERE run_id = ?
		ORDER BY row_no, attempt`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*AttemptEntry
	for rows.Next() {
		var e AttemptEntry
		if err := rows.Scan(&e.ID, &e.RunID, &e.Row, &e.Attempt,
			&e.URL, &e.Status, &e.Message, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan attempt: %w", err)
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}
