package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xln3/forgeagent/pkg/types"
)

// currentSchemaVersion is the schema version this build knows how to
// migrate to. Bump it and append a migration when the schema changes.
const currentSchemaVersion = 1

// Store is the worker's embedded relational store. ListSessions and
// ListTasksBySession return many rows; every other method works on a
// single row. Open limits the pool to one connection, so calls made
// through one Store run one at a time; WAL mode lets readers on other
// connections proceed while a write is in progress.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path, enables WAL
// and foreign-key enforcement, and applies any pending forward migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// sqlite3's driver serializes writers internally; a single connection
	// avoids "database is locked" errors under WAL with concurrent writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type migration struct {
	version int
	apply   func(tx *sql.Tx) error
}

var migrations = []migration{
	{
		version: 1,
		apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE sessions (
	id           TEXT PRIMARY KEY,
	project_root TEXT NOT NULL,
	model        TEXT NOT NULL,
	status       TEXT NOT NULL,
	metadata     TEXT NOT NULL DEFAULT '{}',
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	completed_at INTEGER
);
CREATE INDEX idx_sessions_status_root_created
	ON sessions(status, project_root, created_at);

CREATE TABLE tasks (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	type         TEXT NOT NULL,
	description  TEXT NOT NULL,
	status       TEXT NOT NULL,
	result       TEXT,
	error        TEXT,
	started_at   INTEGER,
	completed_at INTEGER
);
CREATE INDEX idx_tasks_session_status ON tasks(session_id, status);
`)
			return err
		},
	},
}

// migrate creates the _meta table if missing, reads the recorded schema
// version, and applies every migration from version+1 through
// currentSchemaVersion in order, recording each step as it commits.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS _meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("store: create _meta: %w", err)
	}

	version, err := s.schemaVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("store: begin migration %d: %w", m.version, err)
		}
		if err := m.apply(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO _meta(key, value) VALUES('schema_version', ?)
			ON CONFLICT(key) DO UPDATE SET value=excluded.value`, fmt.Sprintf("%d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: commit migration %d: %w", m.version, err)
		}
		version = m.version
	}
	return nil
}

func (s *Store) schemaVersion() (int, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM _meta WHERE key = 'schema_version'`).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: read schema_version: %w", err)
	}
	var version int
	if _, err := fmt.Sscanf(value, "%d", &version); err != nil {
		return 0, fmt.Errorf("store: parse schema_version %q: %w", value, err)
	}
	return version, nil
}

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, sess *types.Session) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions(id, project_root, model, status, metadata, created_at, updated_at, completed_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ProjectRoot, sess.Model, sess.Status, encodeMetadata(sess.Metadata),
		sess.CreatedAt, sess.UpdatedAt, sess.CompletedAt)
	if err != nil {
		return fmt.Errorf("store: create session %s: %w", sess.ID, err)
	}
	return nil
}

// GetSession fetches one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, project_root, model, status, metadata, created_at, updated_at, completed_at
FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// ListSessions returns sessions matching an optional status filter (empty
// string means all), most-recently-created first.
func (s *Store) ListSessions(ctx context.Context, status string) ([]*types.Session, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.QueryContext(ctx, `
SELECT id, project_root, model, status, metadata, created_at, updated_at, completed_at
FROM sessions ORDER BY created_at DESC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
SELECT id, project_root, model, status, metadata, created_at, updated_at, completed_at
FROM sessions WHERE status = ? ORDER BY created_at DESC`, status)
	}
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []*types.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// UpdateSessionStatus updates a session's status and updated_at, and its
// completed_at if provided.
func (s *Store) UpdateSessionStatus(ctx context.Context, id string, status types.SessionStatus, updatedAt int64, completedAt *int64) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE sessions SET status = ?, updated_at = ?, completed_at = COALESCE(?, completed_at)
WHERE id = ?`, status, updatedAt, completedAt, id)
	if err != nil {
		return fmt.Errorf("store: update session %s: %w", id, err)
	}
	return requireRowsAffected(res, "session", id)
}

// DeleteSession removes a session; its tasks cascade-delete via the FK.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete session %s: %w", id, err)
	}
	return requireRowsAffected(res, "session", id)
}

// CreateTask inserts a new task row.
func (s *Store) CreateTask(ctx context.Context, t *types.Task) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tasks(id, session_id, type, description, status, result, error, started_at, completed_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.Type, t.Description, t.Status, t.Result, t.Error, t.StartedAt, t.CompletedAt)
	if err != nil {
		return fmt.Errorf("store: create task %s: %w", t.ID, err)
	}
	return nil
}

// GetTask fetches one task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, session_id, type, description, status, result, error, started_at, completed_at
FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// ListTasksBySession returns every task for a session, oldest first.
func (s *Store) ListTasksBySession(ctx context.Context, sessionID string) ([]*types.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, type, description, status, result, error, started_at, completed_at
FROM tasks WHERE session_id = ? ORDER BY rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list tasks for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTaskStatus updates a task's status, result/error, and timestamps.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status types.TaskStatus, result, errMsg *string, startedAt, completedAt *int64) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE tasks SET status = ?, result = COALESCE(?, result), error = COALESCE(?, error),
	started_at = COALESCE(?, started_at), completed_at = COALESCE(?, completed_at)
WHERE id = ?`, status, result, errMsg, startedAt, completedAt, id)
	if err != nil {
		return fmt.Errorf("store: update task %s: %w", id, err)
	}
	return requireRowsAffected(res, "task", id)
}

// CancelTask marks a task cancelled.
func (s *Store) CancelTask(ctx context.Context, id string, completedAt int64) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE tasks SET status = ?, completed_at = ? WHERE id = ?`, types.TaskCancelled, completedAt, id)
	if err != nil {
		return fmt.Errorf("store: cancel task %s: %w", id, err)
	}
	return requireRowsAffected(res, "task", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*types.Session, error) {
	var sess types.Session
	var metadata string
	var completedAt sql.NullInt64
	if err := row.Scan(&sess.ID, &sess.ProjectRoot, &sess.Model, &sess.Status, &metadata,
		&sess.CreatedAt, &sess.UpdatedAt, &completedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan session: %w", err)
	}
	sess.Metadata = decodeMetadata(metadata)
	if completedAt.Valid {
		sess.CompletedAt = &completedAt.Int64
	}
	return &sess, nil
}

func scanTask(row rowScanner) (*types.Task, error) {
	var t types.Task
	var result, errMsg sql.NullString
	var startedAt, completedAt sql.NullInt64
	if err := row.Scan(&t.ID, &t.SessionID, &t.Type, &t.Description, &t.Status,
		&result, &errMsg, &startedAt, &completedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan task: %w", err)
	}
	if result.Valid {
		t.Result = &result.String
	}
	if errMsg.Valid {
		t.Error = &errMsg.String
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.Int64
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Int64
	}
	return &t, nil
}

func requireRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected for %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return nil
}

// nowMillis is a convenience for callers stamping created_at/updated_at.
func nowMillis() int64 { return time.Now().UnixMilli() }
