// ============================================================================
// RUN HISTORY STORE
// ============================================================================
//
// Persists one row per measured harness run in SQLite so throughput can be
// compared across builds, capacities and queue implementations. Summaries
// aggregate in SQL; ExportJSON renders them for external tooling.

package results

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sugawarayuuta/sonnet"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	queue           TEXT    NOT NULL,
	capacity        INTEGER NOT NULL,
	message_size    INTEGER NOT NULL,
	look_ahead_step INTEGER NOT NULL,
	reps            INTEGER NOT NULL,
	run_index       INTEGER NOT NULL,
	elapsed_ns      INTEGER NOT NULL,
	ops_per_sec     REAL    NOT NULL,
	digest          TEXT    NOT NULL DEFAULT '',
	started_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_by_queue ON runs(queue, capacity, message_size);
`

// Run is one measured pass of the harness.
type Run struct {
	Queue         string
	Capacity      int
	MessageSize   int
	LookAheadStep int
	Reps          int
	RunIndex      int
	Elapsed       time.Duration
	OpsPerSec     float64
	Digest        string
	StartedAt     time.Time
}

// Summary aggregates the runs of one queue configuration.
type Summary struct {
	Queue       string    `json:"queue"`
	Capacity    int       `json:"capacity"`
	MessageSize int       `json:"message_size"`
	Runs        int       `json:"runs"`
	MeanOps     float64   `json:"mean_ops_per_sec"`
	BestOps     float64   `json:"best_ops_per_sec"`
	WorstOps    float64   `json:"worst_ops_per_sec"`
	LastRun     time.Time `json:"last_run"`
}

// Store is a handle on the results database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("results: open %s: %w", path, err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("results: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts one run.
func (s *Store) Record(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (queue, capacity, message_size, look_ahead_step, reps,
		                  run_index, elapsed_ns, ops_per_sec, digest, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Queue, r.Capacity, r.MessageSize, r.LookAheadStep, r.Reps,
		r.RunIndex, int64(r.Elapsed), r.OpsPerSec, r.Digest, r.StartedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("results: record: %w", err)
	}
	return nil
}

// RecordAll inserts runs in one transaction.
func (s *Store) RecordAll(ctx context.Context, runs []Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("results: begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO runs (queue, capacity, message_size, look_ahead_step, reps,
		                  run_index, elapsed_ns, ops_per_sec, digest, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("results: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range runs {
		if _, err := stmt.ExecContext(ctx,
			r.Queue, r.Capacity, r.MessageSize, r.LookAheadStep, r.Reps,
			r.RunIndex, int64(r.Elapsed), r.OpsPerSec, r.Digest, r.StartedAt.UnixNano()); err != nil {
			tx.Rollback()
			return fmt.Errorf("results: record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("results: commit: %w", err)
	}
	return nil
}

// Count returns the number of stored runs.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("results: count: %w", err)
	}
	return n, nil
}

// Summaries aggregates stored runs per (queue, capacity, message size).
// An empty queue selects every implementation.
func (s *Store) Summaries(ctx context.Context, queue string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT queue, capacity, message_size, COUNT(*),
		       AVG(ops_per_sec), MAX(ops_per_sec), MIN(ops_per_sec), MAX(started_at)
		FROM runs
		WHERE ? = '' OR queue = ?
		GROUP BY queue, capacity, message_size
		ORDER BY queue, capacity, message_size`, queue, queue)
	if err != nil {
		return nil, fmt.Errorf("results: query: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sm   Summary
			last int64
		)
		if err := rows.Scan(&sm.Queue, &sm.Capacity, &sm.MessageSize, &sm.Runs,
			&sm.MeanOps, &sm.BestOps, &sm.WorstOps, &last); err != nil {
			return nil, fmt.Errorf("results: scan: %w", err)
		}
		sm.LastRun = time.Unix(0, last).UTC()
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("results: rows: %w", err)
	}
	return out, nil
}

// ExportJSON writes summaries to w as a JSON array.
func ExportJSON(w io.Writer, summaries []Summary) error {
	if summaries == nil {
		summaries = []Summary{}
	}
	data, err := sonnet.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("results: encode: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("results: export: %w", err)
	}
	return nil
}
