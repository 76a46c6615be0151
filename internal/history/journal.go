package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one finished task as recorded in the journal.
type Entry struct {
	ID         int64
	TaskID     int64
	RunID      string
	InputPath  string
	OutputDir  string
	RecipePath string
	Status     string
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Journal appends finished task outcomes to SQLite.
type Journal struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	// Fixed-width so finished_at sorts lexically.
	timeLayout       = "2006-01-02T15:04:05.000000000Z07:00"
	defaultListLimit = 50
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open initializes or connects to the journal database at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	journal := &Journal{db: db, path: path}
	if err := journal.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return journal, nil
}

// Path returns the database file location.
func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends an entry. FinishedAt defaults to now.
func (j *Journal) Record(ctx context.Context, entry Entry) (int64, error) {
	if j == nil || j.db == nil {
		return 0, errors.New("history journal not open")
	}
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now()
	}
	var started any
	if !entry.StartedAt.IsZero() {
		started = entry.StartedAt.UTC().Format(timeLayout)
	}

	var id int64
	err := retryOnBusy(ctx, func() error {
		res, err := j.db.ExecContext(ctx,
			`INSERT INTO outcomes (task_id, run_id, input_path, output_dir, recipe_path, status, message, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.TaskID,
			entry.RunID,
			entry.InputPath,
			entry.OutputDir,
			entry.RecipePath,
			entry.Status,
			entry.Message,
			started,
			entry.FinishedAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("record outcome: %w", err)
	}
	return id, nil
}

// List returns the most recent entries, newest first. A non-positive limit
// uses the default of 50.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, errors.New("history journal not open")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, task_id, run_id, input_path, output_dir, recipe_path, status, message, started_at, finished_at
		 FROM outcomes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry    Entry
			started  sql.NullString
			finished string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TaskID,
			&entry.RunID,
			&entry.InputPath,
			&entry.OutputDir,
			&entry.RecipePath,
			&entry.Status,
			&entry.Message,
			&started,
			&finished,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if started.Valid {
			entry.StartedAt = parseTime(started.String)
		}
		entry.FinishedAt = parseTime(finished)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return entries, nil
}

// Prune deletes entries that finished before cutoff and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if j == nil || j.db == nil {
		return 0, errors.New("history journal not open")
	}
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := j.db.ExecContext(ctx, "DELETE FROM outcomes WHERE finished_at < ?", cutoff.UTC().Format(timeLayout))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune outcomes: %w", err)
	}
	return removed, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}
