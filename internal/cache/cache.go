// Package cache stores run history and the last remote issue snapshot in an
// embedded SQLite database.
//
// The cache is advisory: sync runs always fetch the remote issues fresh
// and only write here afterwards, so deleting the file loses history but
// never changes what a run does.
//
// Layout:
//   - Database file: .edit-ghi/cache.db
//   - issues: the remote issues as of the last recorded run
//   - runs: one row per recorded run with per-action counts
//   - results: one row per item outcome, linked to its run
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/edit-ghi/internal/reconcile"
	"github.com/steveyegge/edit-ghi/internal/sync"
	"github.com/steveyegge/edit-ghi/internal/types"
)

// DefaultPath is the cache location relative to the working directory.
const DefaultPath = ".edit-ghi/cache.db"

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
	path string
}

// Ensure DB implements sync.Recorder
var _ sync.Recorder = (*DB)(nil)

// Open opens (creating if needed) the cache at path and initializes the
// schema.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	c, err := cache.Open(".edit-ghi/cache.db")
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, path: path}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.conn.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close cache: %w", err)
	}
	db.conn = nil
	return nil
}

// InitSchema creates the tables if they don't exist. Safe to call
// multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the tables with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS issues (
		number INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		state TEXT NOT NULL,
		labels TEXT,  -- JSON array
		run_id TEXT NOT NULL,
		fetched_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		tracker TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		files TEXT NOT NULL,  -- JSON array
		dry_run INTEGER NOT NULL DEFAULT 0,
		remote_count INTEGER NOT NULL DEFAULT 0,
		noop INTEGER NOT NULL DEFAULT 0,
		create_remote INTEGER NOT NULL DEFAULT 0,
		update_remote INTEGER NOT NULL DEFAULT 0,
		update_local INTEGER NOT NULL DEFAULT 0,
		create_local INTEGER NOT NULL DEFAULT 0,
		ignored INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS results (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		action TEXT NOT NULL,
		title TEXT NOT NULL,
		source TEXT,
		number INTEGER,
		summary TEXT,
		reason TEXT,
		applied INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		PRIMARY KEY (run_id, seq),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_results_number ON results(number);
	`
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// RecordRun stores a finished run and replaces the issue snapshot.
func (db *DB) RecordRun(ctx context.Context, report *sync.Report, snapshot []types.RemoteIssue) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	filesJSON, err := json.Marshal(report.Files)
	if err != nil {
		return fmt.Errorf("failed to marshal files: %w", err)
	}
	c := report.Counts()
	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (
		id, tracker, started_at, finished_at, files, dry_run, remote_count,
		noop, create_remote, update_remote, update_local, create_local, ignored, failed
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.Tracker,
		report.StartedAt.UTC().Format(timeFormat),
		report.FinishedAt.UTC().Format(timeFormat),
		string(filesJSON),
		boolToInt(report.DryRun),
		report.RemoteCount,
		c.NoOp, c.CreateRemote, c.UpdateRemote, c.UpdateLocal, c.CreateLocal, c.Ignored, c.Failed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}

	for i, res := range report.Results {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO results (run_id, seq, action, title, source, number, summary, reason, applied, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, i, string(res.Action), res.Title, res.Source, res.Number,
			res.Summary, res.Reason, boolToInt(res.Applied), res.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to insert result %d of run %s: %w", i, report.RunID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM issues"); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	fetchedAt := report.StartedAt.UTC().Format(timeFormat)
	for _, is := range snapshot {
		labelsJSON, err := json.Marshal(is.Labels)
		if err != nil {
			return fmt.Errorf("failed to marshal labels: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO issues (number, title, state, labels, run_id, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
			title = excluded.title,
			state = excluded.state,
			labels = excluded.labels,
			run_id = excluded.run_id,
			fetched_at = excluded.fetched_at`,
			is.Number, is.Title, string(is.State), string(labelsJSON), report.RunID, fetchedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to store issue #%d: %w", is.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Snapshot returns the stored remote issues ordered by number and the
// time they were fetched. The time is zero when no snapshot exists.
func (db *DB) Snapshot(ctx context.Context) ([]types.RemoteIssue, time.Time, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT number, title, state, labels, fetched_at FROM issues ORDER BY number`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var (
		issues  []types.RemoteIssue
		fetched time.Time
	)
	for rows.Next() {
		var (
			is        types.RemoteIssue
			state     string
			labels    sql.NullString
			fetchedAt string
		)
		if err := rows.Scan(&is.Number, &is.Title, &state, &labels, &fetchedAt); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan issue: %w", err)
		}
		is.State = types.State(state)
		if labels.Valid && labels.String != "" && labels.String != "null" {
			if err := json.Unmarshal([]byte(labels.String), &is.Labels); err != nil {
				return nil, time.Time{}, fmt.Errorf("failed to unmarshal labels for #%d: %w", is.Number, err)
			}
		}
		if t, err := time.Parse(timeFormat, fetchedAt); err == nil {
			fetched = t
		}
		issues = append(issues, is)
	}
	return issues, fetched, rows.Err()
}

// Run is a stored run summary.
type Run struct {
	ID          string      `json:"id" yaml:"id"`
	Tracker     string      `json:"tracker" yaml:"tracker"`
	StartedAt   time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time   `json:"finished_at" yaml:"finished_at"`
	Files       []string    `json:"files" yaml:"files"`
	DryRun      bool        `json:"dry_run" yaml:"dry_run"`
	RemoteCount int         `json:"remote_count" yaml:"remote_count"`
	Counts      sync.Counts `json:"counts" yaml:"counts"`
}

// Runs returns the most recent runs, newest first. limit <= 0 means all.
func (db *DB) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `
	SELECT id, tracker, started_at, finished_at, files, dry_run, remote_count,
		noop, create_remote, update_remote, update_local, create_local, ignored, failed
	FROM runs
	ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
			files             string
			dryRun            int
		)
		c := &r.Counts
		if err := rows.Scan(&r.ID, &r.Tracker, &started, &finished, &files, &dryRun, &r.RemoteCount,
			&c.NoOp, &c.CreateRemote, &c.UpdateRemote, &c.UpdateLocal, &c.CreateLocal, &c.Ignored, &c.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeFormat, started)
		r.FinishedAt, _ = time.Parse(timeFormat, finished)
		r.DryRun = dryRun != 0
		if err := json.Unmarshal([]byte(files), &r.Files); err != nil {
			return nil, fmt.Errorf("failed to unmarshal files for run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastRun returns the most recent run, or nil when none is recorded.
func (db *DB) LastRun(ctx context.Context) (*Run, error) {
	runs, err := db.Runs(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// ErrRunNotFound is returned by Results for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Results returns the item outcomes of a run in their original order.
func (db *DB) Results(ctx context.Context, runID string) ([]sync.ItemResult, error) {
	var exists int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up run %s: %w", runID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := db.conn.QueryContext(ctx, `
	SELECT action, title, source, number, summary, reason, applied, error
	FROM results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []sync.ItemResult
	for rows.Next() {
		var (
			r                               sync.ItemResult
			action                          string
			source, summary, reason, errMsg sql.NullString
			number                          sql.NullInt64
			applied                         int
		)
		if err := rows.Scan(&action, &r.Title, &source, &number, &summary, &reason, &applied, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Action = reconcile.Action(action)
		r.Source = source.String
		r.Number = int(number.Int64)
		r.Summary = summary.String
		r.Reason = reason.String
		r.Applied = applied != 0
		r.Error = errMsg.String
		results = append(results, r)
	}
	return results, rows.Err()
}

// Stats describes the cache contents.
type Stats struct {
	Path      string `json:"path" yaml:"path"`
	SizeBytes int64  `json:"size_bytes" yaml:"size_bytes"`
	Issues    int    `json:"issues" yaml:"issues"`
	Runs      int    `json:"runs" yaml:"runs"`
}

// Stats returns row counts and the on-disk size, including the WAL.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	s := Stats{Path: db.path}
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues`).Scan(&s.Issues); err != nil {
		return s, fmt.Errorf("failed to count issues: %w", err)
	}
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&s.Runs); err != nil {
		return s, fmt.Errorf("failed to count runs: %w", err)
	}
	for _, p := range []string{db.path, db.path + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			s.SizeBytes += info.Size()
		}
	}
	return s, nil
}

// Prune deletes all but the newest keep runs and their results.
func (db *DB) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := db.conn.ExecContext(ctx, `
	DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
