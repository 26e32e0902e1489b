// Package store provides SQLite-backed persistence for Worklog.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fentz26/worklog/internal/models"
	_ "modernc.org/sqlite"
)

// querier is the subset of *sql.DB and *sql.Tx the queries need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// queries holds every read and write, so they run the same way inside and
// outside a transaction.
type queries struct {
	q querier
}

// Store provides access to the Worklog SQLite database.
type Store struct {
	queries
	db *sql.DB
}

// Tx is a Store view bound to an open transaction.
type Tx struct {
	queries
	tx *sql.Tx
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{queries: queries{q: db}, db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunInTx runs fn inside a transaction, committing if fn returns nil.
// fn must only use the Tx it is handed; the pool holds a single connection.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", mapBusy(err))
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{queries: queries{q: sqlTx}, tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", mapBusy(err))
	}
	return nil
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		priority TEXT NOT NULL DEFAULT 'medium',
		owner_id TEXT NOT NULL,
		assignee_id TEXT,
		project_id TEXT,
		parent_task_id TEXT,
		due_at DATETIME,
		completed INTEGER NOT NULL DEFAULT 0,
		completed_at DATETIME,
		notes TEXT NOT NULL DEFAULT '',
		attachments TEXT,
		links TEXT,
		estimated_hours REAL NOT NULL DEFAULT 0,
		actual_hours REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS task_dependencies (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		depends_on_task_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (task_id, depends_on_task_id),
		FOREIGN KEY (task_id) REFERENCES tasks(id),
		FOREIGN KEY (depends_on_task_id) REFERENCES tasks(id)
	);

	CREATE TABLE IF NOT EXISTS time_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		task_id TEXT,
		project_id TEXT,
		description TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME,
		duration INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 0,
		is_manual INTEGER NOT NULL DEFAULT 0,
		approval_status TEXT NOT NULL DEFAULT 'pending',
		invoiceable INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS time_log_edits (
		id TEXT PRIMARY KEY,
		time_log_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		editor_id TEXT NOT NULL,
		edited_at DATETIME NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME,
		duration INTEGER NOT NULL,
		description TEXT NOT NULL,
		prev_hash TEXT NOT NULL,
		hash TEXT NOT NULL,
		UNIQUE (time_log_id, seq)
	);

	CREATE TABLE IF NOT EXISTS pdr (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		subject_id TEXT,
		actor_id TEXT,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_task_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id);
	CREATE INDEX IF NOT EXISTS idx_deps_task ON task_dependencies(task_id);
	CREATE INDEX IF NOT EXISTS idx_deps_depends_on ON task_dependencies(depends_on_task_id);
	CREATE INDEX IF NOT EXISTS idx_time_logs_user_start ON time_logs(user_id, start_time);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_time_logs_one_active ON time_logs(user_id) WHERE is_active = 1;
	CREATE INDEX IF NOT EXISTS idx_time_log_edits_log ON time_log_edits(time_log_id);

	CREATE TRIGGER IF NOT EXISTS time_log_edits_append_only
	BEFORE UPDATE ON time_log_edits
	BEGIN
		SELECT RAISE(ABORT, 'edit history is append-only');
	END;
	`

	_, err := s.db.Exec(schema)
	return err
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeList(items []string) sql.NullString {
	if len(items) == 0 {
		return sql.NullString{}
	}
	data, _ := json.Marshal(items)
	return sql.NullString{String: string(data), Valid: true}
}

func decodeList(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw.String), &items); err != nil {
		return nil
	}
	return items
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "unique constraint")
}

// mapBusy turns SQLite lock contention into ErrConflict so callers can retry.
func mapBusy(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return fmt.Errorf("%w: %v", models.ErrConflict, err)
	}
	return err
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
