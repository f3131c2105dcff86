package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/faultline/internal/model"

	_ "modernc.org/sqlite"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    entry_point TEXT NOT NULL,
    status      TEXT NOT NULL,
    verdict     TEXT NOT NULL,
    reason      TEXT,
    error       TEXT,
    format      TEXT NOT NULL,
    document    TEXT,
    act_count   INTEGER NOT NULL,
    duration_ms INTEGER,
    created_at  DATETIME NOT NULL,
    started_at  DATETIME,
    finished_at DATETIME
)`

const createActResultsTable = `
CREATE TABLE IF NOT EXISTS act_results (
    run_id          TEXT NOT NULL REFERENCES runs(id),
    ordinal         INTEGER NOT NULL,
    name            TEXT NOT NULL,
    verdict         TEXT NOT NULL,
    next_point      TEXT NOT NULL,
    message         TEXT,
    faults          TEXT NOT NULL,
    observed_faults TEXT NOT NULL,
    PRIMARY KEY (run_id, ordinal)
)`

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT NOT NULL REFERENCES runs(id),
    seq        INTEGER NOT NULL,
    kind       TEXT NOT NULL,
    act        TEXT,
    origin     TEXT,
    detail     TEXT,
    created_at DATETIME NOT NULL
)`

const createEventsIndex = `CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, seq)`

const runColumns = `id, name, entry_point, status, verdict, reason, error, format,
	document, act_count, duration_ms, created_at, started_at, finished_at`

// ErrNotFound is returned when a run is not found.
var ErrNotFound = errors.New("run not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createRunsTable, createActResultsTable, createEventsTable, createEventsIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	r := &model.Run{}
	var reason, errMsg, document sql.NullString
	err := row.Scan(
		&r.ID, &r.Name, &r.EntryPoint, &r.Status, &r.Verdict, &reason, &errMsg, &r.Format,
		&document, &r.ActCount, &r.DurationMS, &r.CreatedAt, &r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Reason = reason.String
	r.Error = errMsg.String
	r.Document = document.String
	return r, nil
}

// CreateRun inserts a new run record.
func (s *SQLiteStore) CreateRun(ctx context.Context, r *model.Run) error {
	if r.Verdict == "" {
		r.Verdict = model.VerdictUndefined
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.EntryPoint, r.Status, r.Verdict, r.Reason, r.Error, r.Format,
		r.Document, r.ActCount, r.DurationMS, r.CreatedAt, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns a paginated list of runs ordered by created_at DESC,
// along with the total count of all runs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*model.Run, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, total, nil
}

// currentStatus reads the status of a run inside tx.
func currentStatus(ctx context.Context, tx *sql.Tx, id string) (string, error) {
	var status string
	err := tx.QueryRowContext(ctx, "SELECT status FROM runs WHERE id = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read run status: %w", err)
	}
	return status, nil
}

// UpdateRunStatus moves a run to status. Terminal statuses also set
// finished_at; running sets started_at.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id, status string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	from, err := currentStatus(ctx, tx, id)
	if err != nil {
		return err
	}
	if !model.ValidTransition(from, status) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, status)
	}

	now := time.Now().UTC()
	switch {
	case model.IsTerminal(status):
		_, err = tx.ExecContext(ctx,
			"UPDATE runs SET status = ?, finished_at = ? WHERE id = ?", status, now, id)
	case status == model.StatusRunning:
		_, err = tx.ExecContext(ctx,
			"UPDATE runs SET status = ?, started_at = ? WHERE id = ?", status, now, id)
	default:
		_, err = tx.ExecContext(ctx,
			"UPDATE runs SET status = ? WHERE id = ?", status, id)
	}
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return tx.Commit()
}

// UpdateRun writes every mutable field of r. A status change must be a
// valid transition.
func (s *SQLiteStore) UpdateRun(ctx context.Context, r *model.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	from, err := currentStatus(ctx, tx, r.ID)
	if err != nil {
		return err
	}
	if from != r.Status && !model.ValidTransition(from, r.Status) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, r.Status)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, verdict = ?, reason = ?, error = ?, act_count = ?,
			duration_ms = ?, started_at = ?, finished_at = ?
		WHERE id = ?`,
		r.Status, r.Verdict, r.Reason, r.Error, r.ActCount,
		r.DurationMS, r.StartedAt, r.FinishedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return tx.Commit()
}

// SaveActResults replaces the act results of a run.
func (s *SQLiteStore) SaveActResults(ctx context.Context, runID string, acts []model.ActResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM act_results WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("clear act results: %w", err)
	}
	for _, a := range acts {
		faults, err := json.Marshal(a.Faults)
		if err != nil {
			return fmt.Errorf("encode faults: %w", err)
		}
		observed, err := json.Marshal(a.ObservedFaults)
		if err != nil {
			return fmt.Errorf("encode observed faults: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO act_results (run_id, ordinal, name, verdict, next_point, message, faults, observed_faults)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, a.Ordinal, a.Name, a.Verdict, a.NextPoint, a.Message, string(faults), string(observed),
		); err != nil {
			return fmt.Errorf("insert act result: %w", err)
		}
	}
	return tx.Commit()
}

// GetActResults returns the act results of a run in act order.
func (s *SQLiteStore) GetActResults(ctx context.Context, runID string) ([]model.ActResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, ordinal, name, verdict, next_point, message, faults, observed_faults
		FROM act_results WHERE run_id = ? ORDER BY ordinal ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query act results: %w", err)
	}
	defer rows.Close()

	var acts []model.ActResult
	for rows.Next() {
		var (
			a                model.ActResult
			message          sql.NullString
			faults, observed string
		)
		if err := rows.Scan(&a.RunID, &a.Ordinal, &a.Name, &a.Verdict, &a.NextPoint, &message, &faults, &observed); err != nil {
			return nil, fmt.Errorf("scan act result: %w", err)
		}
		a.Message = message.String
		if err := json.Unmarshal([]byte(faults), &a.Faults); err != nil {
			return nil, fmt.Errorf("decode faults: %w", err)
		}
		if err := json.Unmarshal([]byte(observed), &a.ObservedFaults); err != nil {
			return nil, fmt.Errorf("decode observed faults: %w", err)
		}
		acts = append(acts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate act results: %w", err)
	}
	return acts, nil
}

// InsertEvent appends a protocol event and sets its ID.
func (s *SQLiteStore) InsertEvent(ctx context.Context, e *model.Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (run_id, seq, kind, act, origin, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Seq, e.Kind, e.Act, e.Origin, e.Detail, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("event id: %w", err)
	}
	e.ID = id
	return nil
}

// GetEvents returns every event of a run ordered by seq.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID string) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, seq, kind, act, origin, detail, created_at
		FROM events WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			e                   model.Event
			act, origin, detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Seq, &e.Kind, &act, &origin, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Act, e.Origin, e.Detail = act.String, origin.String, detail.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// GetRunStats aggregates run and act counts.
func (s *SQLiteStore) GetRunStats(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{
		CountByStatus:  make(map[string]int),
		CountByVerdict: make(map[string]int),
		ActsByVerdict:  make(map[string]int),
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(duration_ms) FROM runs").Scan(&stats.Total, &avg); err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}
	stats.AvgDurationMS = avg.Float64

	groups := []struct {
		query string
		into  map[string]int
	}{
		{"SELECT status, COUNT(*) FROM runs GROUP BY status", stats.CountByStatus},
		{"SELECT verdict, COUNT(*) FROM runs GROUP BY verdict", stats.CountByVerdict},
		{"SELECT verdict, COUNT(*) FROM act_results GROUP BY verdict", stats.ActsByVerdict},
	}
	for _, g := range groups {
		if err := s.countInto(ctx, g.query, g.into); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (s *SQLiteStore) countInto(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("group counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan group count: %w", err)
		}
		into[key] = n
	}
	return rows.Err()
}
