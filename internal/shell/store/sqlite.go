package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/autorelease/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store on a SQLite database. Inside WithTx the same
// type runs against the transaction instead of the pool.
type SQLiteStore struct {
	db *sqlx.DB // nil inside a transaction
	q  queryer
}

// NewSQLiteStore opens the history at dsn (a file path or ":memory:") and
// brings its schema up to date.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("Open", "", "", err.Error(), ErrConnectionFailed)
	}
	// ":memory:" databases live and die with their connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("Open", "", "", err.Error(), ErrConnectionFailed)
	}
	if err := migrateUp(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("Open", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db, q: db}, nil
}

// migrateUp applies the embedded migrations.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	drv, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Close closes the database. It is a no-op inside a transaction.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithTx runs fn in a transaction, committing when fn returns nil. Nested
// calls join the outer transaction.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", err.Error(), ErrTxFailed)
	}
	if err := fn(&SQLiteStore{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback after %v: %v", err, rbErr), ErrTxFailed)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", err.Error(), ErrTxFailed)
	}
	return nil
}

// =============================================================================
// Run Rows
// =============================================================================

// runRow represents a release_runs row in the database.
type runRow struct {
	ID         string  `db:"id"`
	CommitSHA  string  `db:"commit_sha"`
	Branch     string  `db:"branch"`
	Status     string  `db:"status"`
	DryRun     bool    `db:"dry_run"`
	Message    string  `db:"message"`
	Plan       string  `db:"plan"`
	StartedAt  string  `db:"started_at"`
	FinishedAt *string `db:"finished_at"`
}

// CreateRun inserts run, assigning an ID when it has none.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	planJSON, err := json.Marshal(run.Plan)
	if err != nil {
		return NewStoreError("CreateRun", "run", run.ID, "failed to serialize plan", ErrInvalidData)
	}

	query := `
		INSERT INTO release_runs (
			id, commit_sha, branch, status, dry_run, message, plan, started_at, finished_at
		) VALUES (
			:id, :commit_sha, :branch, :status, :dry_run, :message, :plan, :started_at, :finished_at
		)`

	row := map[string]any{
		"id":          run.ID,
		"commit_sha":  run.Commit,
		"branch":      run.Branch,
		"status":      string(run.Status),
		"dry_run":     run.DryRun,
		"message":     run.Message,
		"plan":        string(planJSON),
		"started_at":  formatTime(run.StartedAt),
		"finished_at": formatTimePtr(run.FinishedAt),
	}

	_, err = s.q.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: release_runs.id") {
			return NewStoreError("CreateRun", "run", run.ID, "run with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateRun", "run", run.ID, err.Error(), err)
	}
	return nil
}

// UpdateRun stores the run's status, message and finish time.
func (s *SQLiteStore) UpdateRun(ctx context.Context, run *domain.Run) error {
	query := `
		UPDATE release_runs SET
			status = :status,
			message = :message,
			finished_at = :finished_at
		WHERE id = :id`

	row := map[string]any{
		"id":          run.ID,
		"status":      string(run.Status),
		"message":     run.Message,
		"finished_at": formatTimePtr(run.FinishedAt),
	}

	result, err := s.q.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateRun", "run", run.ID, err.Error(), err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateRun", "run", run.ID, "run not found", ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	query := `SELECT * FROM release_runs WHERE id = ?`

	var row runRow
	err := s.q.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRun", "run", id, "run not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}
	return rowToRun(&row)
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	opts = opts.Normalize()

	var rows []runRow
	var err error
	if opts.Status != "" {
		query := `SELECT * FROM release_runs WHERE status = ? ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`
		err = s.q.SelectContext(ctx, &rows, query, string(opts.Status), opts.Limit, opts.Offset)
	} else {
		query := `SELECT * FROM release_runs ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`
		err = s.q.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	}
	if err != nil {
		return nil, NewStoreError("ListRuns", "run", "", err.Error(), err)
	}

	runs := make([]domain.Run, 0, len(rows))
	for _, row := range rows {
		run, err := rowToRun(&row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func rowToRun(row *runRow) (*domain.Run, error) {
	run := &domain.Run{
		ID:      row.ID,
		Commit:  row.CommitSHA,
		Branch:  row.Branch,
		Status:  domain.RunStatus(row.Status),
		DryRun:  row.DryRun,
		Message: row.Message,
	}
	if err := json.Unmarshal([]byte(row.Plan), &run.Plan); err != nil {
		return nil, NewStoreError("GetRun", "run", row.ID, "failed to deserialize plan", ErrInvalidData)
	}

	var err error
	run.StartedAt, err = time.Parse(time.RFC3339, row.StartedAt)
	if err != nil {
		return nil, NewStoreError("GetRun", "run", row.ID, "invalid started_at", ErrInvalidData)
	}
	if row.FinishedAt != nil {
		finished, err := time.Parse(time.RFC3339, *row.FinishedAt)
		if err != nil {
			return nil, NewStoreError("GetRun", "run", row.ID, "invalid finished_at", ErrInvalidData)
		}
		run.FinishedAt = &finished
	}
	return run, nil
}

// =============================================================================
// Step Rows
// =============================================================================

// stepRow represents a release_steps row in the database.
type stepRow struct {
	ID        int64  `db:"id"`
	RunID     string `db:"run_id"`
	Seq       int    `db:"seq"`
	Kind      string `db:"kind"`
	Target    string `db:"target"`
	Status    string `db:"status"`
	Message   string `db:"message"`
	CreatedAt string `db:"created_at"`
}

// AppendStep inserts step and sets its ID.
func (s *SQLiteStore) AppendStep(ctx context.Context, step *domain.Step) error {
	query := `
		INSERT INTO release_steps (
			run_id, seq, kind, target, status, message, created_at
		) VALUES (
			:run_id, :seq, :kind, :target, :status, :message, :created_at
		)`

	row := map[string]any{
		"run_id":     step.RunID,
		"seq":        step.Seq,
		"kind":       string(step.Kind),
		"target":     step.Target,
		"status":     string(step.Status),
		"message":    step.Message,
		"created_at": formatTime(step.At),
	}

	result, err := s.q.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("AppendStep", "step", step.RunID, "run does not exist", ErrForeignKey)
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("AppendStep", "step", step.RunID, fmt.Sprintf("step %d already recorded", step.Seq), ErrDuplicateID)
		}
		return NewStoreError("AppendStep", "step", step.RunID, err.Error(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return NewStoreError("AppendStep", "step", step.RunID, err.Error(), err)
	}
	step.ID = id
	return nil
}

// ListSteps returns a run's steps in execution order.
func (s *SQLiteStore) ListSteps(ctx context.Context, runID string) ([]domain.Step, error) {
	query := `SELECT * FROM release_steps WHERE run_id = ? ORDER BY seq`

	var rows []stepRow
	if err := s.q.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, NewStoreError("ListSteps", "step", runID, err.Error(), err)
	}

	steps := make([]domain.Step, 0, len(rows))
	for _, row := range rows {
		at, err := time.Parse(time.RFC3339, row.CreatedAt)
		if err != nil {
			return nil, NewStoreError("ListSteps", "step", runID, "invalid created_at", ErrInvalidData)
		}
		steps = append(steps, domain.Step{
			ID:      row.ID,
			RunID:   row.RunID,
			Seq:     row.Seq,
			Kind:    domain.StepKind(row.Kind),
			Target:  row.Target,
			Status:  domain.StepStatus(row.Status),
			Message: row.Message,
			At:      at,
		})
	}
	return steps, nil
}

// =============================================================================
// Helpers
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
