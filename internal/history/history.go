// Package history keeps a SQLite ledger of executor batches and
// breakdown runs together with the per-task outcomes they produced.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// FileName is the database file inside the workspace.
const FileName = "history.db"

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Run kinds.
const (
	KindBatch     = "batch"
	KindBreakdown = "breakdown"
)

// Run is one recorded batch or breakdown run.
type Run struct {
	ID         string     `json:"id" yaml:"id"`
	Kind       string     `json:"kind" yaml:"kind"`
	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Total      int        `json:"total" yaml:"total"`
	Succeeded  int        `json:"succeeded" yaml:"succeeded"`
	Failed     int        `json:"failed" yaml:"failed"`
	Note       string     `json:"note,omitempty" yaml:"note,omitempty"`
}

// Event is one task or phase outcome inside a run.
type Event struct {
	ID        int64     `json:"id" yaml:"id"`
	RunID     string    `json:"run_id" yaml:"run_id"`
	PhaseID   string    `json:"phase_id" yaml:"phase_id"`
	Result    string    `json:"result" yaml:"result"`
	Detail    string    `json:"detail,omitempty" yaml:"detail,omitempty"`
	ElapsedMS int64     `json:"elapsed_ms" yaml:"elapsed_ms"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Totals are the counters written when a run finishes.
type Totals struct {
	Total     int
	Succeeded int
	Failed    int
	Note      string
}

// Store is the history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	db, err := openDB("sqlite", filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			started_at  TEXT NOT NULL,
			finished_at TEXT,
			total       INTEGER NOT NULL DEFAULT 0,
			succeeded   INTEGER NOT NULL DEFAULT 0,
			failed      INTEGER NOT NULL DEFAULT 0,
			note        TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			phase_id   TEXT NOT NULL,
			result     TEXT NOT NULL,
			detail     TEXT NOT NULL DEFAULT '',
			elapsed_ms INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
		CREATE INDEX IF NOT EXISTS idx_events_phase ON events(phase_id);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// StartRun records a new run and returns its id. An empty id gets a
// fresh UUID.
func (s *Store) StartRun(ctx context.Context, id, kind string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, started_at) VALUES (?, ?, ?)`,
		id, kind, formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("history: start run: %w", err)
	}
	return id, nil
}

// AddEvent appends an outcome to a run.
func (s *Store) AddEvent(ctx context.Context, runID, phaseID, result, detail string, elapsed time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (run_id, phase_id, result, detail, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, phaseID, result, detail, elapsed.Milliseconds(), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("history: add event: %w", err)
	}
	return nil
}

// FinishRun stamps the run finished with its totals.
func (s *Store) FinishRun(ctx context.Context, runID string, t Totals) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, total = ?, succeeded = ?, failed = ?, note = ? WHERE id = ?`,
		formatTime(time.Now()), t.Total, t.Succeeded, t.Failed, t.Note, runID,
	)
	if err != nil {
		return fmt.Errorf("history: finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("history: run %s not found", runID)
	}
	return nil
}

// ListRuns returns the most recent runs first. kind filters when set;
// limit <= 0 means 20.
func (s *Store) ListRuns(ctx context.Context, kind string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, kind, started_at, finished_at, total, succeeded, failed, note FROM runs`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &r.Kind, &started, &finished, &r.Total, &r.Succeeded, &r.Failed, &r.Note); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.StartedAt = parseTime(started)
		if finished.Valid {
			t := parseTime(finished.String)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Events returns the events of a run in insertion order.
func (s *Store) Events(ctx context.Context, runID string) ([]Event, error) {
	return s.queryEvents(ctx, `WHERE run_id = ? ORDER BY id`, runID)
}

// PhaseEvents returns every recorded outcome of one phase, newest first.
func (s *Store) PhaseEvents(ctx context.Context, phaseID string) ([]Event, error) {
	return s.queryEvents(ctx, `WHERE phase_id = ? ORDER BY id DESC`, phaseID)
}

func (s *Store) queryEvents(ctx context.Context, where string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, phase_id, result, detail, elapsed_ms, created_at FROM events `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var created string
		if err := rows.Scan(&e.ID, &e.RunID, &e.PhaseID, &e.Result, &e.Detail, &e.ElapsedMS, &created); err != nil {
			return nil, fmt.Errorf("history: scan event: %w", err)
		}
		e.CreatedAt = parseTime(created)
		events = append(events, e)
	}
	return events, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
