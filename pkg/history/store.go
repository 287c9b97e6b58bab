// Package history persists run reports to a local SQLite journal. The
// journal is purely observational: the engine never reads it to decide what
// to do, so deleting the database file costs nothing but history.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/provisor/provisor/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunRecord is one journaled run.
type RunRecord struct {
	RunID        string
	PlanID       string
	ManifestPath string
	DryRun       bool
	Status       string
	StartedAt    time.Time
	Duration     time.Duration
	Summary      engine.Summary
}

// StepRecord is one journaled resource outcome.
type StepRecord struct {
	ResourceID   string
	ResourceKind string
	Outcome      string
	Tolerated    bool
	Reason       string
	Error        string
	Duration     time.Duration
}

// Store is the SQLite-backed run journal.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the journal.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun journals a completed run and all its step results in one
// transaction.
func (s *Store) RecordRun(ctx context.Context, manifestPath string, report *engine.RunReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer tx.Rollback()

	sum := report.Summarize()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, plan_id, manifest_path, dry_run, status,
			started_at, duration_ms, unchanged, applied, failed, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.PlanID, manifestPath, report.DryRun,
		string(report.Status), report.StartedAt.UTC(),
		report.Duration.Milliseconds(),
		sum.Unchanged, sum.Applied, sum.Failed, sum.Skipped,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", report.RunID, err)
	}

	for i, res := range report.Results {
		errText := ""
		if res.Err != nil {
			errText = res.Err.Error()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO step_results (run_id, seq, resource_id, resource_kind,
				outcome, tolerated, reason, error, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, i, res.ResourceID, res.ResourceKind,
			string(res.Outcome.Kind), res.Outcome.Tolerated,
			res.Outcome.Reason, errText, res.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert step %s of run %s: %w", res.ResourceID, report.RunID, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, plan_id, manifest_path, dry_run, status, started_at,
			duration_ms, unchanged, applied, failed, skipped
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var durMS int64
		if err := rows.Scan(&r.RunID, &r.PlanID, &r.ManifestPath, &r.DryRun,
			&r.Status, &r.StartedAt, &durMS,
			&r.Summary.Unchanged, &r.Summary.Applied,
			&r.Summary.Failed, &r.Summary.Skipped); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Duration = time.Duration(durMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// StepResults returns the journaled steps of a run in plan order.
func (s *Store) StepResults(ctx context.Context, runID string) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT resource_id, resource_kind, outcome, tolerated, reason, error, duration_ms
		FROM step_results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("load steps of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var r StepRecord
		var durMS int64
		if err := rows.Scan(&r.ResourceID, &r.ResourceKind, &r.Outcome,
			&r.Tolerated, &r.Reason, &r.Error, &durMS); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		r.Duration = time.Duration(durMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}
