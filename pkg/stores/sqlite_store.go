// Package stores persists the build run history in SQLite.
package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/crossforge/crossforge/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements engine.HistoryStore on a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration.
type Config struct {
	// Path is the database file, or ":memory:" for an ephemeral store.
	Path string
}

// NewSQLiteStore creates a new store instance. Init must be called before
// use.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: cfg.Path}, nil
}

// Open creates, initializes and migrates a store in one call.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	store, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if s.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", s.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations from the embedded schema.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// CreateRun records the start of a build run.
func (s *SQLiteStore) CreateRun(ctx context.Context, runID, project, host string, startedAt time.Time) error {
	query := `
		INSERT INTO runs (id, project, host, status, started_at)
		VALUES (?, ?, ?, 'running', ?)`
	if _, err := s.db.ExecContext(ctx, query, runID, project, host, startedAt); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// RecordStep records one step outcome for a run.
func (s *SQLiteStore) RecordStep(ctx context.Context, runID string, step engine.StepResult) error {
	query := `
		INSERT INTO steps (id, run_id, target, status, exit_code, artifact_path, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(),
		runID,
		step.Target.String(),
		string(step.Status),
		step.ExitCode,
		step.ArtifactPath,
		step.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record step: %w", err)
	}
	return nil
}

// CompleteRun records the terminal outcome of a run.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status engine.RunStatus, completedAt time.Time) error {
	query := `UPDATE runs SET status = ?, completed_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, string(status), completedAt, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// GetRun fetches one run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	query := `
		SELECT id, project, host, status, started_at, completed_at
		FROM runs WHERE id = ?`
	var run RunRecord
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&run.ID, &run.Project, &run.Host, &run.Status, &run.StartedAt, &run.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, project, host, status, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(&run.ID, &run.Project, &run.Host, &run.Status, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListSteps returns the steps of one run in execution order.
func (s *SQLiteStore) ListSteps(ctx context.Context, runID string) ([]StepRecord, error) {
	query := `
		SELECT id, run_id, target, status, exit_code, artifact_path, duration_ms, created_at
		FROM steps WHERE run_id = ? ORDER BY created_at ASC, rowid ASC`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var step StepRecord
		var durationMS int64
		if err := rows.Scan(&step.ID, &step.RunID, &step.Target, &step.Status,
			&step.ExitCode, &step.ArtifactPath, &durationMS, &step.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		step.Duration = time.Duration(durationMS) * time.Millisecond
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
