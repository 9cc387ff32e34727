package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/resolver-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	createdAt := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", "questions.yaml", "running", createdAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.CreateRun(context.Background(), model.Run{
		ID:        "run-1",
		Source:    "questions.yaml",
		Status:    model.RunStatusRunning,
		CreatedAt: createdAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, source, status, total, correct, failures, accuracy, cost_usd, created_at, completed_at`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	acc := 0.9
	createdAt := time.Now().UTC()
	completedAt := createdAt.Add(time.Minute)
	rows := pgxmock.NewRows([]string{
		"id", "source", "status", "total", "correct", "failures",
		"accuracy", "cost_usd", "created_at", "completed_at",
	}).AddRow("run-1", "tournament/quarterly", "completed", 20, 18, 0, &acc, 1.5, createdAt, &completedAt)

	mock.ExpectQuery(`SELECT id, source, status`).
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 20, run.Total)
	require.NotNil(t, run.Accuracy)
	assert.InDelta(t, 0.9, *run.Accuracy, 1e-9)
	require.NotNil(t, run.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("failed", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusFailed)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO run_records`).
		WithArgs("run-1", 0, "q-1", "completed", "TRUE", "TRUE",
			"criteria affirmed by filing",
			`[{"quote":"closed on 2026-03-01","source_url":"https://example.gov","rank":0}]`,
			0.01, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertRecord(context.Background(), model.RunRecord{
		RunID:      "run-1",
		Index:      0,
		QuestionID: "q-1",
		Status:     model.QuestionStatusCompleted,
		Actual:     model.LabelTrue,
		Predicted:  model.LabelTrue,
		Rationale:  "criteria affirmed by filing",
		Citations:  []model.Citation{{Quote: "closed on 2026-03-01", SourceURL: "https://example.gov", Rank: 0}},
		CostUSD:    0.01,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveReport(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	matrix := model.NewConfusionMatrix()
	matrix.Add(model.LabelTrue, model.LabelTrue)

	mock.ExpectExec(`INSERT INTO reports`).
		WithArgs("run-1", "# Assessment Report\n", `{"total":1}`,
			`{"TRUE":{"TRUE":1}}`, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveReport(context.Background(), model.StoredReport{
		RunID:     "run-1",
		Markdown:  "# Assessment Report\n",
		JSON:      `{"total":1}`,
		Matrix:    matrix,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetReport_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT run_id, markdown, json, matrix, created_at FROM reports`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetReport(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	createdAt := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "source", "status", "total", "correct", "failures",
		"accuracy", "cost_usd", "created_at", "completed_at",
	}).
		AddRow("run-2", "", "completed", 5, 4, 0, (*float64)(nil), 0.5, createdAt, (*time.Time)(nil)).
		AddRow("run-1", "", "failed", 0, 0, 1, (*float64)(nil), 0.0, createdAt.Add(-time.Hour), (*time.Time)(nil))

	mock.ExpectQuery(`FROM runs WHERE 1=1`).
		WithArgs(100).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Nil(t, runs[0].Accuracy)
	assert.NoError(t, mock.ExpectationsWereMet())
}
