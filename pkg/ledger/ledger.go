// Package ledger keeps a SQLite record of the jobs submitted for an
// experiment.
package ledger

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

// ErrLedger is returned for ledger storage failures.
var ErrLedger = errors.New("ledger")

// Role identifies what a submitted job does.
type Role string

const (
	RoleFolds     Role = "folds"
	RoleCollector Role = "collector"
)

// Entry is one recorded submission.
type Entry struct {
	SubmittedAt time.Time
	Experiment  string
	Role        Role
	JobID       string
	JobName     string
	ArrayRange  string
	HoldOn      string
	Script      string
	ID          int64
}

// Ledger is a SQLite-backed submission history.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger database at path.
func Open(ctx context.Context, path string) (*Ledger, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path is required", ErrLedger)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create dir: %w", ErrLedger, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", ErrLedger, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Ledger{db: db, path: path}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS kfold_submissions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  experiment TEXT NOT NULL,
  role TEXT NOT NULL,
  job_id TEXT NOT NULL,
  job_name TEXT NOT NULL,
  array_range TEXT NOT NULL DEFAULT '',
  hold_on TEXT NOT NULL DEFAULT '',
  script TEXT NOT NULL DEFAULT '',
  submitted_at_ns INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_experiment ON kfold_submissions(experiment, submitted_at_ns);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: init schema: %w", ErrLedger, err)
		}
	}

	return nil
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.path
}

// Record appends e to the ledger. A zero SubmittedAt is set to now.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO kfold_submissions
  (experiment, role, job_id, job_name, array_range, hold_on, script, submitted_at_ns)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Experiment, string(e.Role), e.JobID, e.JobName, e.ArrayRange, e.HoldOn, e.Script,
		e.SubmittedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%w: record %s: %w", ErrLedger, e.JobName, err)
	}

	return nil
}

// List returns the entries for experiment, oldest first. An empty
// experiment lists every entry.
func (l *Ledger) List(ctx context.Context, experiment string) ([]Entry, error) {
	query := `SELECT id, experiment, role, job_id, job_name, array_range, hold_on, script, submitted_at_ns
FROM kfold_submissions`

	var args []any
	if experiment != "" {
		query += ` WHERE experiment = ?`
		args = append(args, experiment)
	}

	query += ` ORDER BY submitted_at_ns, id`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrLedger, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			role string
			ns   int64
		)

		err := rows.Scan(&e.ID, &e.Experiment, &role, &e.JobID, &e.JobName, &e.ArrayRange, &e.HoldOn, &e.Script, &ns)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrLedger, err)
		}

		e.Role = Role(role)
		e.SubmittedAt = time.Unix(0, ns)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrLedger, err)
	}

	return entries, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}

	return l.db.Close()
}
