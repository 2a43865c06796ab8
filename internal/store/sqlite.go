package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/islamic-data/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Category string          `json:"category,omitempty"`
	Status   model.RunStatus `json:"status,omitempty"`
	Limit    int             `json:"limit,omitempty"`
	Offset   int             `json:"offset,omitempty"`
}

// RunResult is the final tally of a run.
type RunResult struct {
	Total     int
	Succeeded int
	Failed    int
	Err       error
}

// Ledger records pipeline runs and per-entity outcomes in SQLite. It never
// holds record content.
type Ledger struct {
	db *sql.DB
}

// NewLedger opens a SQLite database at the given path and configures WAL mode.
func NewLedger(dsn string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &Ledger{db: db}, nil
}

const ledgerMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	category    TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	total       INTEGER NOT NULL DEFAULT 0,
	succeeded   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS run_entities (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	entity_id    TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT '',
	error_kind   TEXT NOT NULL DEFAULT '',
	error_reason TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, entity_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_category ON runs(category);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

// Migrate creates the ledger tables and adds columns missing from ledgers
// written by older versions.
func (l *Ledger) Migrate(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, ledgerMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}

	has, err := l.hasColumn(ctx, "run_entities", "error_reason")
	if err != nil {
		return err
	}
	if !has {
		_, err = l.db.ExecContext(ctx, `ALTER TABLE run_entities ADD COLUMN error_reason TEXT NOT NULL DEFAULT ''`)
		return eris.Wrap(err, "sqlite: add run_entities.error_reason")
	}
	return nil
}

func (l *Ledger) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: table info %s", table)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, eris.Wrap(err, "sqlite: scan table info")
		}
		if name == column {
			return true, nil
		}
	}
	return false, eris.Wrap(rows.Err(), "sqlite: table info iterate")
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// CreateRun opens a running ledger entry for category.
func (l *Ledger) CreateRun(ctx context.Context, category string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, category, status, started_at) VALUES (?, ?, ?, ?)`,
		id, category, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &model.Run{
		ID:        id,
		Category:  category,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

// RecordOutcome upserts the outcome of one entity within a run.
func (l *Ledger) RecordOutcome(ctx context.Context, o model.EntityOutcome) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO run_entities (run_id, entity_id, status, error_kind, error_reason, error) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, entity_id) DO UPDATE SET status = excluded.status,
		 error_kind = excluded.error_kind, error_reason = excluded.error_reason, error = excluded.error`,
		o.RunID, o.EntityID, string(o.Status), o.ErrorKind, o.ErrorReason, o.Error,
	)
	return eris.Wrapf(err, "sqlite: record outcome %s/%s", o.RunID, o.EntityID)
}

// FinishRun closes a run with its tally. A non-nil res.Err marks it failed.
func (l *Ledger) FinishRun(ctx context.Context, runID string, res RunResult) error {
	status := model.RunStatusComplete
	msg := ""
	if res.Err != nil {
		status = model.RunStatusFailed
		msg = res.Err.Error()
	}

	r, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, total = ?, succeeded = ?, failed = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), res.Total, res.Succeeded, res.Failed, msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(r, "run", runID)
}

// GetRun loads one run.
func (l *Ledger) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, category, status, total, succeeded, failed, error, started_at, finished_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

// ListRuns returns runs newest first.
func (l *Ledger) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, category, status, total, succeeded, failed, error, started_at, finished_at FROM runs WHERE 1=1`
	var args []any

	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// ListOutcomes returns the entity outcomes of a run ordered by entity ID.
func (l *Ledger) ListOutcomes(ctx context.Context, runID string) ([]model.EntityOutcome, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, entity_id, status, error_kind, error_reason, error FROM run_entities WHERE run_id = ? ORDER BY entity_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list outcomes %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.EntityOutcome
	for rows.Next() {
		var o model.EntityOutcome
		var status string
		if err := rows.Scan(&o.RunID, &o.EntityID, &status, &o.ErrorKind, &o.ErrorReason, &o.Error); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome")
		}
		o.Status = model.Status(status)
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list outcomes iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var finished sql.NullTime

	err := row.Scan(&r.ID, &r.Category, &status, &r.Total, &r.Succeeded, &r.Failed, &r.Error, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Status = model.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
