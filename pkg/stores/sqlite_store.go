package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const memoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: opens a fresh database.
	if cfg.Path == memoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection and applies connection PRAGMAs.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	if s.cfg.Path != memoryPath {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

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

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// withTx runs fn in a transaction, rolling back when fn fails.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateSyncRun creates a new sync run record
func (s *SQLiteStore) CreateSyncRun(ctx context.Context, run *SyncRun) error {
	query := `
		INSERT INTO sync_runs (id, direction, status, source, total, changed, failed, issues, started_at, completed_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Direction,
		run.Status,
		run.Source,
		run.Total,
		run.Changed,
		run.Failed,
		run.Issues,
		run.StartedAt,
		run.CompletedAt,
		run.Error,
	)

	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}

	return nil
}

// FinishSyncRun stores the final status and counters of a run
func (s *SQLiteStore) FinishSyncRun(ctx context.Context, run *SyncRun) error {
	query := `
		UPDATE sync_runs
		SET status = ?, total = ?, changed = ?, failed = ?, issues = ?, completed_at = ?, error = ?
		WHERE id = ?
	`

	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query,
		run.Status,
		run.Total,
		run.Changed,
		run.Failed,
		run.Issues,
		run.CompletedAt,
		run.Error,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("sync run %s: %w", run.ID, ErrNotFound)
	}

	return nil
}

// GetSyncRun retrieves a sync run by ID
func (s *SQLiteStore) GetSyncRun(ctx context.Context, id string) (*SyncRun, error) {
	query := `
		SELECT id, direction, status, source, total, changed, failed, issues, started_at, completed_at, error
		FROM sync_runs
		WHERE id = ?
	`

	run, err := scanSyncRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}

	return run, nil
}

// ListSyncRuns lists sync runs, newest first
func (s *SQLiteStore) ListSyncRuns(ctx context.Context, limit, offset int) ([]*SyncRun, error) {
	query := `
		SELECT id, direction, status, source, total, changed, failed, issues, started_at, completed_at, error
		FROM sync_runs
		ORDER BY started_at DESC, id
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	runs := []*SyncRun{}
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", err)
	}

	return runs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSyncRun(row rowScanner) (*SyncRun, error) {
	run := &SyncRun{}
	err := row.Scan(
		&run.ID,
		&run.Direction,
		&run.Status,
		&run.Source,
		&run.Total,
		&run.Changed,
		&run.Failed,
		&run.Issues,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Error,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// AppendSyncItem appends a per-entity result to a run
func (s *SQLiteStore) AppendSyncItem(ctx context.Context, item *SyncItem) error {
	query := `
		INSERT INTO sync_items (run_id, kind, alias, change, changes, issues, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	issues, err := json.Marshal(item.Issues)
	if err != nil {
		return fmt.Errorf("failed to encode sync item issues: %w", err)
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, query,
		item.RunID,
		item.Kind,
		item.Alias,
		item.Change,
		item.Changes,
		string(issues),
		item.Error,
		item.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append sync item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get sync item ID: %w", err)
	}

	item.ID = id
	return nil
}

// ListSyncItems lists the items of a run in insertion order
func (s *SQLiteStore) ListSyncItems(ctx context.Context, runID string) ([]*SyncItem, error) {
	query := `
		SELECT id, run_id, kind, alias, change, changes, issues, error, timestamp
		FROM sync_items
		WHERE run_id = ?
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync items: %w", err)
	}
	defer rows.Close()

	items := []*SyncItem{}
	for rows.Next() {
		item := &SyncItem{}
		var issues string
		err := rows.Scan(
			&item.ID,
			&item.RunID,
			&item.Kind,
			&item.Alias,
			&item.Change,
			&item.Changes,
			&issues,
			&item.Error,
			&item.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync item: %w", err)
		}
		if err := json.Unmarshal([]byte(issues), &item.Issues); err != nil {
			return nil, fmt.Errorf("failed to decode sync item issues: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync items: %w", err)
	}

	return items, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
