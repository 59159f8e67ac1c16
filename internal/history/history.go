// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a SQLite log of federated searches: one row per run
// and one per source outcome. Result payloads are never stored, only the
// bookkeeping needed to spot slow or failing sources.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/dispatch-engine/pkg/types"
)

// Source outcome statuses.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Run is one recorded search.
type Run struct {
	ID                string      `json:"id" yaml:"id"`
	Query             string      `json:"query" yaml:"query"`
	Profile           string      `json:"profile,omitempty" yaml:"profile,omitempty"`
	MergeMode         string      `json:"merge_mode" yaml:"merge_mode"`
	TotalCount        int         `json:"total_count" yaml:"total_count"`
	DuplicatesRemoved int         `json:"duplicates_removed" yaml:"duplicates_removed"`
	Partial           bool        `json:"partial" yaml:"partial"`
	DurationMS        int64       `json:"duration_ms" yaml:"duration_ms"`
	StartedAt         time.Time   `json:"started_at" yaml:"started_at"`
	Sources           []SourceRun `json:"sources" yaml:"sources"`
}

// SourceRun is one adapter's outcome within a run.
type SourceRun struct {
	Source     string `json:"source" yaml:"source"`
	Status     string `json:"status" yaml:"status"`
	Count      int    `json:"count" yaml:"count"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// SourceHealth aggregates every recorded outcome of one adapter.
type SourceHealth struct {
	Source        string  `json:"source" yaml:"source"`
	Runs          int     `json:"runs" yaml:"runs"`
	Failures      int     `json:"failures" yaml:"failures"`
	Timeouts      int     `json:"timeouts" yaml:"timeouts"`
	AvgDurationMS float64 `json:"avg_duration_ms" yaml:"avg_duration_ms"`
}

// FailureRate is the share of runs that errored or timed out.
func (h SourceHealth) FailureRate() float64 {
	if h.Runs == 0 {
		return 0
	}
	return float64(h.Failures+h.Timeouts) / float64(h.Runs)
}

// Store manages the history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultPath returns the per-user history database location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "history.db"
	}
	return filepath.Join(dir, "dispatch-engine", "history.db")
}

// Open opens or creates the database at path and its schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			profile TEXT,
			merge_mode TEXT NOT NULL,
			total_count INTEGER NOT NULL,
			duplicates_removed INTEGER NOT NULL DEFAULT 0,
			partial INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			started_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_sources (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			source TEXT NOT NULL,
			status TEXT NOT NULL,
			count INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			error TEXT,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_run_sources_source ON run_sources(source)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores a completed search. It satisfies the engine's recorder hook.
func (s *Store) Record(ctx context.Context, result *types.FederatedSearchResult) error {
	_, err := s.Insert(ctx, result)
	return err
}

// Insert stores a completed search and returns its run id.
func (s *Store) Insert(ctx context.Context, result *types.FederatedSearchResult) (string, error) {
	id := uuid.NewString()
	started := s.now().UTC().Add(-time.Duration(result.DurationMS) * time.Millisecond)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, query, profile, merge_mode, total_count, duplicates_removed, partial, duration_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, result.Query, result.Profile, string(result.MergeMode), result.TotalCount,
		result.DuplicatesRemoved, result.Partial, result.DurationMS, started.Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_sources (run_id, position, source, status, count, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, src := range sourceRuns(result) {
		var errText any
		if src.Error != "" {
			errText = src.Error
		}
		if _, err := stmt.ExecContext(ctx, id, i, src.Source, src.Status, src.Count, src.DurationMS, errText); err != nil {
			return "", fmt.Errorf("inserting source %s: %w", src.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// sourceRuns flattens a result into per-source outcomes: completed sources
// first in declaration order, then failures. Interleaved results carry no
// per-source durations, so only counts are known for them.
func sourceRuns(result *types.FederatedSearchResult) []SourceRun {
	groups := make(map[string]types.SourceResults, len(result.Sources))
	for _, g := range result.Sources {
		groups[g.Source] = g
	}
	counts := make(map[string]int)
	for _, r := range result.Results {
		counts[r.Source]++
	}

	runs := make([]SourceRun, 0, len(result.Completed)+len(result.Errors))
	for _, name := range result.Completed {
		sr := SourceRun{Source: name, Status: StatusOK, Count: counts[name]}
		if g, ok := groups[name]; ok {
			sr.Count = g.Count
			sr.DurationMS = g.DurationMS
		}
		runs = append(runs, sr)
	}
	for _, e := range result.Errors {
		status := StatusError
		if e.IsTimeout {
			status = StatusTimeout
		}
		runs = append(runs, SourceRun{Source: e.Source, Status: status, Error: e.Error})
	}
	return runs
}

// Recent returns the n most recent runs, newest first, with their sources.
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, COALESCE(profile, ''), merge_mode, total_count, duplicates_removed, partial, duration_ms, started_at
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			started string
		)
		if err := rows.Scan(&r.ID, &r.Query, &r.Profile, &r.MergeMode, &r.TotalCount,
			&r.DuplicatesRemoved, &r.Partial, &r.DurationMS, &started); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeLayout, started)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		src, err := s.sources(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Sources = src
	}
	return runs, nil
}

func (s *Store) sources(ctx context.Context, runID string) ([]SourceRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, status, count, duration_ms, COALESCE(error, '')
		 FROM run_sources WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying run sources: %w", err)
	}
	defer rows.Close()

	var out []SourceRun
	for rows.Next() {
		var sr SourceRun
		if err := rows.Scan(&sr.Source, &sr.Status, &sr.Count, &sr.DurationMS, &sr.Error); err != nil {
			return nil, fmt.Errorf("scanning run source: %w", err)
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

// Health aggregates outcomes per adapter, sorted by adapter name.
func (s *Store) Health(ctx context.Context) ([]SourceHealth, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source,
			COUNT(*),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			COALESCE(AVG(CASE WHEN status = ? THEN duration_ms END), 0)
		 FROM run_sources GROUP BY source ORDER BY source`,
		StatusError, StatusTimeout, StatusOK)
	if err != nil {
		return nil, fmt.Errorf("querying source health: %w", err)
	}
	defer rows.Close()

	var out []SourceHealth
	for rows.Next() {
		var h SourceHealth
		if err := rows.Scan(&h.Source, &h.Runs, &h.Failures, &h.Timeouts, &h.AvgDurationMS); err != nil {
			return nil, fmt.Errorf("scanning source health: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Prune deletes runs older than cutoff and reports how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	return res.RowsAffected()
}
