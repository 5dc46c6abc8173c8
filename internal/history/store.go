package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in SQLite's user_version header field.
const schemaVersion = 1

// ErrSchemaMismatch is returned when the database was written by a different
// schema version.
var ErrSchemaMismatch = errors.New("history schema version mismatch")

// busyBackoff is the wait between attempts of a write that hit SQLITE_BUSY.
// Its length bounds the number of attempts.
var busyBackoff = []time.Duration{
	10 * time.Millisecond,
	40 * time.Millisecond,
	100 * time.Millisecond,
	200 * time.Millisecond,
}

// Run modes.
const (
	ModeFresh  = "fresh"
	ModeResume = "resume"
)

// Run is one invocation of the migration command.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Mode       string
	ExitStatus string
}

// Finished reports whether the run recorded an exit status.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Outcome is the recorded result of one resource within a run.
type Outcome struct {
	RunID      string
	Resource   string
	Outcome    string
	Reason     string
	RecordedAt time.Time
}

// Store manages run history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	store := &Store{db: db, path: path, now: time.Now}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migrate creates the tables of a new database and refuses one written by a
// different schema version.
func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read history schema version: %w", err)
	}
	switch version {
	case schemaVersion:
		return nil
	case 0:
	default:
		return fmt.Errorf("%w: %s has version %d, this build expects %d (move it aside to start a new history)",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history schema: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("stamp history schema: %w", err)
	}
	return tx.Commit()
}

// StartRun records a new run and returns its ID.
func (s *Store) StartRun(ctx context.Context, mode string) (string, error) {
	id := uuid.NewString()
	if err := s.exec(ctx,
		"INSERT INTO runs (id, started_at, mode) VALUES (?, ?, ?)",
		id, formatTime(s.now()), mode,
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordOutcome appends a resource outcome to runID.
func (s *Store) RecordOutcome(ctx context.Context, runID, resource, outcome, reason string) error {
	if err := s.exec(ctx,
		"INSERT INTO outcomes (run_id, resource, outcome, reason, recorded_at) VALUES (?, ?, ?, ?, ?)",
		runID, resource, outcome, nullIfEmpty(reason), formatTime(s.now()),
	); err != nil {
		return fmt.Errorf("insert outcome for %s: %w", resource, err)
	}
	return nil
}

// FinishRun stamps the run with its exit status.
func (s *Store) FinishRun(ctx context.Context, runID, exitStatus string) error {
	if err := s.exec(ctx,
		"UPDATE runs SET finished_at = ?, exit_status = ? WHERE id = ?",
		formatTime(s.now()), exitStatus, runID,
	); err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started_at, finished_at, mode, exit_status FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			started  string
			finished sql.NullString
			status   sql.NullString
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.Mode, &status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		if finished.Valid {
			run.FinishedAt = parseTime(finished.String)
		}
		run.ExitStatus = status.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Outcomes returns the outcomes recorded for runID in insertion order.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	return s.queryOutcomes(ctx,
		"SELECT run_id, resource, outcome, reason, recorded_at FROM outcomes WHERE run_id = ? ORDER BY id",
		runID,
	)
}

// LatestOutcomes returns the most recent outcome of every resource keyed by name.
func (s *Store) LatestOutcomes(ctx context.Context) (map[string]Outcome, error) {
	outcomes, err := s.queryOutcomes(ctx,
		`SELECT run_id, resource, outcome, reason, recorded_at FROM outcomes
		 WHERE id IN (SELECT MAX(id) FROM outcomes GROUP BY resource)`,
	)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		latest[o.Resource] = o
	}
	return latest, nil
}

func (s *Store) queryOutcomes(ctx context.Context, query string, args ...any) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var (
			o        Outcome
			reason   sql.NullString
			recorded string
		)
		if err := rows.Scan(&o.RunID, &o.Resource, &o.Outcome, &reason, &recorded); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Reason = reason.String
		o.RecordedAt = parseTime(recorded)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// exec runs a write, retrying while another process holds the database
// lock beyond the driver's busy timeout.
func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	for attempt := 0; ; attempt++ {
		_, err := s.db.ExecContext(ctx, query, args...)
		if err == nil || !isBusy(err) || attempt == len(busyBackoff) {
			return err
		}
		timer := time.NewTimer(busyBackoff[attempt])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func isBusy(err error) bool {
	var coded interface{ Code() int }
	if errors.As(err, &coded) && coded.Code()&0xff == sqlite3.SQLITE_BUSY {
		return true
	}
	return strings.Contains(err.Error(), "database is locked")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
