// Package store provides SQLite-backed persistence for the task
// history archive. The scheduler's in-memory ring stays authoritative;
// the archive survives restarts.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"convoke/internal/monitor"
)

// HistoryStore archives terminal tasks.
type HistoryStore interface {
	Append(task monitor.Task) error
	Query(filter Filter) ([]monitor.Task, error)
	Prune(before time.Time) error
	Close() error
}

// Filter narrows a history query. Zero values match everything.
type Filter struct {
	State    monitor.TaskState
	Platform string
	Since    time.Time
	Limit    int
	Offset   int
}

// SQLiteHistory is the file-backed HistoryStore.
type SQLiteHistory struct {
	db *sql.DB
}

// Open creates or opens the archive at dbPath and runs migrations.
func Open(dbPath string) (*SQLiteHistory, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL for concurrent readers; SQLite allows one writer at a time
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteHistory{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteHistory) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS task_history (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		platform TEXT NOT NULL,
		policy TEXT NOT NULL,
		priority TEXT NOT NULL,
		error_kind TEXT,
		submitted_at DATETIME NOT NULL,
		completed_at DATETIME NOT NULL,
		wall_time_ms INTEGER,
		record TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_task_history_completed
		ON task_history(completed_at);
	CREATE INDEX IF NOT EXISTS idx_task_history_state
		ON task_history(state);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append stores one terminal task. Re-appending the same id overwrites,
// so retries are harmless.
func (s *SQLiteHistory) Append(task monitor.Task) error {
	if task.CompletedAt == nil {
		return fmt.Errorf("task %s is not terminal", task.ID)
	}
	record, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	var wallTime sql.NullInt64
	if task.Result != nil {
		wallTime = sql.NullInt64{Int64: task.Result.Metrics.WallTimeMs, Valid: true}
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO task_history
			(id, state, platform, policy, priority, error_kind,
			 submitted_at, completed_at, wall_time_ms, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, string(task.State), task.Request.Platform,
		string(task.Request.Policy), string(task.Priority), task.ErrorKind,
		task.SubmittedAt.UTC(), task.CompletedAt.UTC(), wallTime, string(record))
	if err != nil {
		return fmt.Errorf("insert task %s: %w", task.ID, err)
	}
	return nil
}

// Query returns archived tasks matching filter, most recent first.
func (s *SQLiteHistory) Query(filter Filter) ([]monitor.Task, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	query := `SELECT record FROM task_history WHERE 1=1`
	var args []any
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	if filter.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, filter.Platform)
	}
	if !filter.Since.IsZero() {
		query += ` AND completed_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY completed_at DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var tasks []monitor.Task
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		var task monitor.Task
		if err := json.Unmarshal([]byte(record), &task); err != nil {
			return nil, fmt.Errorf("decode task record: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Prune deletes archived tasks completed before the cutoff.
func (s *SQLiteHistory) Prune(before time.Time) error {
	_, err := s.db.Exec(`DELETE FROM task_history WHERE completed_at < ?`, before.UTC())
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}
