package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/resolver-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for single-binary
// local use.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'running',
	total        INTEGER NOT NULL DEFAULT 0,
	correct      INTEGER NOT NULL DEFAULT 0,
	failures     INTEGER NOT NULL DEFAULT 0,
	accuracy     REAL,
	cost_usd     REAL NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS run_records (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	idx         INTEGER NOT NULL,
	question_id TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	actual      TEXT NOT NULL DEFAULT '',
	predicted   TEXT NOT NULL DEFAULT '',
	rationale   TEXT NOT NULL DEFAULT '',
	citations   TEXT NOT NULL DEFAULT '[]',
	cost_usd    REAL NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, idx)
);

CREATE TABLE IF NOT EXISTS reports (
	run_id     TEXT PRIMARY KEY REFERENCES runs(id),
	markdown   TEXT NOT NULL,
	json       TEXT NOT NULL,
	matrix     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_run_records_question_id ON run_records(question_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, created_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Source, string(run.Status), run.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ? WHERE id = ?`,
		string(status), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, run model.Run) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, total = ?, correct = ?, failures = ?, accuracy = ?, cost_usd = ?, completed_at = ? WHERE id = ?`,
		string(run.Status), run.Total, run.Correct, run.Failures,
		nullableFloat(run.Accuracy), run.CostUSD, nullableTime(run.CompletedAt), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", run.ID)
	}
	return checkRowsAffected(res, run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, total, correct, failures, accuracy, cost_usd, created_at, completed_at
		 FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, total, correct, failures, accuracy, cost_usd, created_at, completed_at
	          FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

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

func (s *SQLiteStore) UpsertRecord(ctx context.Context, rec model.RunRecord) error {
	citationsJSON, err := marshalCitations(rec.Citations)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_records (run_id, idx, question_id, status, actual, predicted, rationale, citations, cost_usd, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, idx) DO UPDATE SET
		   status = excluded.status,
		   actual = excluded.actual,
		   predicted = excluded.predicted,
		   rationale = excluded.rationale,
		   citations = excluded.citations,
		   cost_usd = excluded.cost_usd,
		   error = excluded.error`,
		rec.RunID, rec.Index, rec.QuestionID, string(rec.Status),
		string(rec.Actual), string(rec.Predicted), rec.Rationale,
		citationsJSON, rec.CostUSD, rec.Error,
	)
	return eris.Wrapf(err, "sqlite: upsert record %s/%d", rec.RunID, rec.Index)
}

func (s *SQLiteStore) GetRunRecords(ctx context.Context, runID string) ([]model.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, idx, question_id, status, actual, predicted, rationale, citations, cost_usd, error
		 FROM run_records WHERE run_id = ? ORDER BY idx`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get records for run %s", runID)
	}
	defer rows.Close()

	var records []model.RunRecord
	for rows.Next() {
		var rec model.RunRecord
		var citationsJSON string
		if err := rows.Scan(
			&rec.RunID, &rec.Index, &rec.QuestionID, &rec.Status,
			&rec.Actual, &rec.Predicted, &rec.Rationale, &citationsJSON,
			&rec.CostUSD, &rec.Error,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		if err := json.Unmarshal([]byte(citationsJSON), &rec.Citations); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal citations")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: get records iterate")
}

func (s *SQLiteStore) SaveReport(ctx context.Context, rep model.StoredReport) error {
	matrixJSON, err := json.Marshal(rep.Matrix)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal matrix")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (run_id, markdown, json, matrix, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (run_id) DO UPDATE SET
		   markdown = excluded.markdown,
		   json = excluded.json,
		   matrix = excluded.matrix,
		   created_at = excluded.created_at`,
		rep.RunID, rep.Markdown, rep.JSON, string(matrixJSON), rep.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save report %s", rep.RunID)
}

func (s *SQLiteStore) GetReport(ctx context.Context, runID string) (*model.StoredReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, markdown, json, matrix, created_at FROM reports WHERE run_id = ?`,
		runID,
	)

	var rep model.StoredReport
	var matrixJSON string
	err := row.Scan(&rep.RunID, &rep.Markdown, &rep.JSON, &matrixJSON, &rep.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: report %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan report")
	}
	if err := json.Unmarshal([]byte(matrixJSON), &rep.Matrix); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal matrix")
	}
	return &rep, nil
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	return nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func marshalCitations(cs []model.Citation) (string, error) {
	if len(cs) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(cs)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal citations")
	}
	return string(b), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var accuracy sql.NullFloat64
	var completedAt sql.NullTime

	err := row.Scan(
		&r.ID, &r.Source, &r.Status, &r.Total, &r.Correct, &r.Failures,
		&accuracy, &r.CostUSD, &r.CreatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if accuracy.Valid {
		v := accuracy.Float64
		r.Accuracy = &v
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}
