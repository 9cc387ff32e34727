package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/resolver-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it,
// which keeps the driver unit-testable without a live database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using a pgx connection pool, for shared
// deployments.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects a PostgresStore to the given database URL.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'running',
	total        INTEGER NOT NULL DEFAULT 0,
	correct      INTEGER NOT NULL DEFAULT 0,
	failures     INTEGER NOT NULL DEFAULT 0,
	accuracy     DOUBLE PRECISION,
	cost_usd     DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS run_records (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	idx         INTEGER NOT NULL,
	question_id TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	actual      TEXT NOT NULL DEFAULT '',
	predicted   TEXT NOT NULL DEFAULT '',
	rationale   TEXT NOT NULL DEFAULT '',
	citations   JSONB NOT NULL DEFAULT '[]',
	cost_usd    DOUBLE PRECISION NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, idx)
);

CREATE TABLE IF NOT EXISTS reports (
	run_id     TEXT PRIMARY KEY REFERENCES runs(id),
	markdown   TEXT NOT NULL,
	json       TEXT NOT NULL,
	matrix     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_run_records_question_id ON run_records(question_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run model.Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, status, created_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Source, string(run.Status), run.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1 WHERE id = $2`,
		string(status), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, run model.Run) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, total = $2, correct = $3, failures = $4, accuracy = $5, cost_usd = $6, completed_at = $7 WHERE id = $8`,
		string(run.Status), run.Total, run.Correct, run.Failures,
		run.Accuracy, run.CostUSD, run.CompletedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, status, total, correct, failures, accuracy, cost_usd, created_at, completed_at
		 FROM runs WHERE id = $1`,
		runID,
	)
	return scanPgRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, total, correct, failures, accuracy, cost_usd, created_at, completed_at
	          FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if !filter.CreatedAfter.IsZero() {
		args = append(args, filter.CreatedAfter.UTC())
		query += ` AND created_at > $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) UpsertRecord(ctx context.Context, rec model.RunRecord) error {
	citationsJSON, err := marshalCitations(rec.Citations)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO run_records (run_id, idx, question_id, status, actual, predicted, rationale, citations, cost_usd, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
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
	return eris.Wrapf(err, "postgres: upsert record %s/%d", rec.RunID, rec.Index)
}

func (s *PostgresStore) GetRunRecords(ctx context.Context, runID string) ([]model.RunRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, idx, question_id, status, actual, predicted, rationale, citations, cost_usd, error
		 FROM run_records WHERE run_id = $1 ORDER BY idx`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get records for run %s", runID)
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
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		if err := json.Unmarshal([]byte(citationsJSON), &rec.Citations); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal citations")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: get records iterate")
}

func (s *PostgresStore) SaveReport(ctx context.Context, rep model.StoredReport) error {
	matrixJSON, err := json.Marshal(rep.Matrix)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal matrix")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (run_id, markdown, json, matrix, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id) DO UPDATE SET
		   markdown = excluded.markdown,
		   json = excluded.json,
		   matrix = excluded.matrix,
		   created_at = excluded.created_at`,
		rep.RunID, rep.Markdown, rep.JSON, string(matrixJSON), rep.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: save report %s", rep.RunID)
}

func (s *PostgresStore) GetReport(ctx context.Context, runID string) (*model.StoredReport, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT run_id, markdown, json, matrix, created_at FROM reports WHERE run_id = $1`,
		runID,
	)

	var rep model.StoredReport
	var matrixJSON string
	err := row.Scan(&rep.RunID, &rep.Markdown, &rep.JSON, &matrixJSON, &rep.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: report %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan report")
	}
	if err := json.Unmarshal([]byte(matrixJSON), &rep.Matrix); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal matrix")
	}
	return &rep, nil
}

func scanPgRun(row scannable) (*model.Run, error) {
	var r model.Run
	var accuracy *float64
	var completedAt *time.Time

	err := row.Scan(
		&r.ID, &r.Source, &r.Status, &r.Total, &r.Correct, &r.Failures,
		&accuracy, &r.CostUSD, &r.CreatedAt, &completedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	r.Accuracy = accuracy
	r.CompletedAt = completedAt
	return &r, nil
}

