// Package runlog keeps a SQLite history of ingestion run reports.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"docrag/internal/service"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	tier TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	processed INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	total_chunks INTEGER NOT NULL,
	cancelled INTEGER NOT NULL,
	peak_heap_bytes INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS run_documents (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	document_id TEXT NOT NULL,
	display_name TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL,
	chunks INTEGER NOT NULL,
	pages_dropped INTEGER NOT NULL,
	chunks_dropped INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Store records run reports. It implements service.RunRecorder.
type Store struct {
	db   *sql.DB
	path string
}

var _ service.RunRecorder = (*Store)(nil)

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating runlog directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening runlog: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating runlog schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Record stores a report and its document outcomes in one transaction.
func (s *Store) Record(ctx context.Context, r *service.RunReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, tier, started_at, finished_at, processed, skipped, failed, total_chunks, cancelled, peak_heap_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Tier, formatTime(r.StartedAt), formatTime(r.FinishedAt),
		r.Processed, r.Skipped, r.Failed, r.TotalChunksIndexed, r.Cancelled, int64(r.PeakHeapBytes),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_documents (run_id, position, document_id, display_name, status, reason, chunks, pages_dropped, chunks_dropped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing document insert: %w", err)
	}
	defer stmt.Close()
	for i, d := range r.Documents {
		if _, err := stmt.ExecContext(ctx, r.RunID, i, d.DocumentID, d.DisplayName, string(d.Status), d.Reason, d.Chunks, d.PagesDropped, d.ChunksDropped); err != nil {
			return fmt.Errorf("inserting document %s: %w", d.DocumentID, err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit reports, newest first, with their documents.
func (s *Store) Recent(ctx context.Context, limit int) ([]service.RunReport, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, tier, started_at, finished_at, processed, skipped, failed, total_chunks, cancelled, peak_heap_bytes
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	var reports []service.RunReport
	for rows.Next() {
		var r service.RunReport
		var started, finished string
		var peak int64
		if err := rows.Scan(&r.RunID, &r.Tier, &started, &finished, &r.Processed, &r.Skipped, &r.Failed, &r.TotalChunksIndexed, &r.Cancelled, &peak); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		r.PeakHeapBytes = uint64(peak)
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range reports {
		docs, err := s.documents(ctx, reports[i].RunID)
		if err != nil {
			return nil, err
		}
		reports[i].Documents = docs
	}
	return reports, nil
}

func (s *Store) documents(ctx context.Context, runID string) ([]service.DocumentOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, display_name, status, reason, chunks, pages_dropped, chunks_dropped
		FROM run_documents WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying run documents: %w", err)
	}
	defer rows.Close()

	var docs []service.DocumentOutcome
	for rows.Next() {
		var d service.DocumentOutcome
		var status string
		if err := rows.Scan(&d.DocumentID, &d.DisplayName, &status, &d.Reason, &d.Chunks, &d.PagesDropped, &d.ChunksDropped); err != nil {
			return nil, fmt.Errorf("scanning run document: %w", err)
		}
		d.Status = service.Status(status)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
