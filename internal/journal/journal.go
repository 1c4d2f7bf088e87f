package journal

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

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	timeLayout              = "2006-01-02T15:04:05.000000000Z07:00"
)

// Journal persists run and attempt history in SQLite.
type Journal struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Option customizes a Journal.
type Option func(*Journal)

// WithClock replaces the wall clock used for run and attempt timestamps.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) {
		if now != nil {
			j.now = now
		}
	}
}

// Open creates or connects to the journal database at path.
func Open(path string, opts ...Option) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	j := &Journal{db: db, path: path, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	if err := j.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Path returns the database file location.
func (j *Journal) Path() string {
	return j.path
}

// StartRun inserts a run in the running state.
func (j *Journal) StartRun(ctx context.Context, id, command string) error {
	return j.exec(ctx,
		"INSERT INTO runs (id, command, status, started_at) VALUES (?, ?, ?, ?)",
		id, command, string(RunRunning), formatTime(j.now()),
	)
}

// FinishRun stores the final counters and status. A nil runErr marks the run
// succeeded; context cancellation marks it canceled.
func (j *Journal) FinishRun(ctx context.Context, id string, summary Summary, runErr error) error {
	status := RunSucceeded
	var message any
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		status = RunCanceled
		message = runErr.Error()
	default:
		status = RunFailed
		message = runErr.Error()
	}
	return j.exec(ctx, `UPDATE runs SET status = ?, finished_at = ?, acquired = ?, published = ?,
		publish_failed = ?, posted = ?, exhausted = ?, pruned = ?, error_message = ? WHERE id = ?`,
		string(status), formatTime(j.now()), summary.Acquired, summary.Published,
		summary.PublishFailed, summary.Posted, summary.Exhausted, summary.Pruned, message, id,
	)
}

// RecordAttempt appends one attempt row.
func (j *Journal) RecordAttempt(ctx context.Context, attempt Attempt) error {
	created := attempt.CreatedAt
	if created.IsZero() {
		created = j.now()
	}
	return j.exec(ctx, `INSERT INTO attempts (run_id, record_id, stage, channel, attempt, outcome, error_message, url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.RunID, attempt.RecordID, attempt.Stage, attempt.Channel, attempt.Attempt,
		string(attempt.Outcome), nullString(attempt.Error), nullString(attempt.URL), formatTime(created),
	)
}

// ListRuns returns the most recent runs first.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `SELECT id, command, status, started_at, finished_at, acquired, published,
		publish_failed, posted, exhausted, pruned, error_message FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a single run, or sql.ErrNoRows wrapped when absent.
func (j *Journal) GetRun(ctx context.Context, id string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT id, command, status, started_at, finished_at, acquired, published,
		publish_failed, posted, exhausted, pruned, error_message FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// AttemptsForRun returns every attempt of a run in insertion order.
func (j *Journal) AttemptsForRun(ctx context.Context, runID string) ([]Attempt, error) {
	return j.queryAttempts(ctx, "WHERE run_id = ? ORDER BY id", runID)
}

// AttemptsForRecord returns the attempt history of one record across runs.
func (j *Journal) AttemptsForRecord(ctx context.Context, recordID int64) ([]Attempt, error) {
	return j.queryAttempts(ctx, "WHERE record_id = ? ORDER BY id", recordID)
}

// PruneRuns deletes runs started before cutoff along with their attempts.
func (j *Journal) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		tx, err := j.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		bound := formatTime(cutoff)
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM attempts WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)", bound); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", bound)
		if err != nil {
			return err
		}
		if removed, err = res.RowsAffected(); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return removed, nil
}

func (j *Journal) queryAttempts(ctx context.Context, clause string, arg any) ([]Attempt, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT id, run_id, record_id, stage, channel, attempt, outcome,
		error_message, url, created_at FROM attempts `+clause, arg)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			a        Attempt
			outcome  string
			errText  sql.NullString
			url      sql.NullString
			created  string
		)
		if err := rows.Scan(&a.ID, &a.RunID, &a.RecordID, &a.Stage, &a.Channel, &a.Attempt, &outcome, &errText, &url, &created); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Outcome = Outcome(outcome)
		a.Error = errText.String
		a.URL = url.String
		a.CreatedAt = parseTime(created)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run      Run
		status   string
		started  string
		finished sql.NullString
		message  sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Command, &status, &started, &finished,
		&run.Summary.Acquired, &run.Summary.Published, &run.Summary.PublishFailed,
		&run.Summary.Posted, &run.Summary.Exhausted, &run.Summary.Pruned, &message); err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	run.StartedAt = parseTime(started)
	if finished.Valid {
		run.FinishedAt = parseTime(finished.String)
	}
	run.Error = message.String
	return run, nil
}

func (j *Journal) exec(ctx context.Context, query string, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return retryOnBusy(ctx, func() error {
		_, err := j.db.ExecContext(ctx, query, args...)
		return err
	})
}

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

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
