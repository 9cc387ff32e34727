package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/resolver-cli/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testRun(id string) model.Run {
	return model.Run{
		ID:        id,
		Source:    "questions.yaml",
		Status:    model.RunStatusRunning,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLiteRunLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	run := testRun(uuid.New().String())
	require.NoError(t, s.CreateRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.Accuracy)
	assert.Nil(t, got.CompletedAt)

	acc := 0.9
	now := time.Now().UTC().Truncate(time.Second)
	run.Status = model.RunStatusCompleted
	run.Total = 20
	run.Correct = 18
	run.Accuracy = &acc
	run.CostUSD = 1.25
	run.CompletedAt = &now
	require.NoError(t, s.CompleteRun(ctx, run))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.Equal(t, 20, got.Total)
	assert.Equal(t, 18, got.Correct)
	require.NotNil(t, got.Accuracy)
	assert.InDelta(t, 0.9, *got.Accuracy, 1e-9)
	require.NotNil(t, got.CompletedAt)
}

func TestSQLiteGetRunNotFound(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)

	_, err := s.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLiteUpdateRunStatus(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	run := testRun(uuid.New().String())
	require.NoError(t, s.CreateRun(ctx, run))
	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusCancelled))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCancelled, got.Status)

	err = s.UpdateRunStatus(ctx, "missing", model.RunStatusFailed)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLiteListRuns(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	old := testRun(uuid.New().String())
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, s.CreateRun(ctx, old))

	recent := testRun(uuid.New().String())
	require.NoError(t, s.CreateRun(ctx, recent))
	require.NoError(t, s.UpdateRunStatus(ctx, recent.ID, model.RunStatusCompleted))

	t.Run("all", func(t *testing.T) {
		runs, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		// Newest first.
		assert.Equal(t, recent.ID, runs[0].ID)
	})

	t.Run("by status", func(t *testing.T) {
		runs, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusCompleted})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, recent.ID, runs[0].ID)
	})

	t.Run("created after", func(t *testing.T) {
		runs, err := s.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().UTC().Add(-24 * time.Hour)})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, recent.ID, runs[0].ID)
	})

	t.Run("limit", func(t *testing.T) {
		runs, err := s.ListRuns(ctx, RunFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})
}

func TestSQLiteRecordUpsert(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	run := testRun(uuid.New().String())
	require.NoError(t, s.CreateRun(ctx, run))

	rec := model.RunRecord{
		RunID:      run.ID,
		Index:      0,
		QuestionID: "q-1",
		Status:     model.QuestionStatusPending,
		Actual:     model.LabelTrue,
	}
	require.NoError(t, s.UpsertRecord(ctx, rec))

	// Same (run, index) transitions in place instead of inserting a
	// second row.
	rec.Status = model.QuestionStatusCompleted
	rec.Predicted = model.LabelTrue
	rec.Rationale = "event occurred before the deadline"
	rec.Citations = []model.Citation{{Quote: "the merger closed on 2026-03-01", SourceURL: "https://example.gov/filing", Rank: 0}}
	rec.CostUSD = 0.01
	require.NoError(t, s.UpsertRecord(ctx, rec))

	records, err := s.GetRunRecords(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.QuestionStatusCompleted, records[0].Status)
	assert.Equal(t, model.LabelTrue, records[0].Predicted)
	require.Len(t, records[0].Citations, 1)
	assert.Equal(t, "the merger closed on 2026-03-01", records[0].Citations[0].Quote)
}

func TestSQLiteRecordOrdering(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	run := testRun(uuid.New().String())
	require.NoError(t, s.CreateRun(ctx, run))

	// Insert out of order; reads come back by index.
	for _, idx := range []int{2, 0, 1} {
		require.NoError(t, s.UpsertRecord(ctx, model.RunRecord{
			RunID:      run.ID,
			Index:      idx,
			QuestionID: "q",
			Status:     model.QuestionStatusPending,
		}))
	}

	records, err := s.GetRunRecords(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, i, rec.Index)
	}
}

func TestSQLiteReportRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	run := testRun(uuid.New().String())
	require.NoError(t, s.CreateRun(ctx, run))

	matrix := model.NewConfusionMatrix()
	matrix.Add(model.LabelTrue, model.LabelTrue)
	matrix.Add(model.LabelFalse, model.LabelUnmatched)

	rep := model.StoredReport{
		RunID:     run.ID,
		Markdown:  "# Assessment Report\n",
		JSON:      `{"total":2}`,
		Matrix:    matrix,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SaveReport(ctx, rep))

	got, err := s.GetReport(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.Markdown, got.Markdown)
	assert.Equal(t, rep.JSON, got.JSON)
	assert.Equal(t, 1, got.Matrix.Cell(model.LabelTrue, model.LabelTrue))
	assert.Equal(t, 1, got.Matrix.Cell(model.LabelFalse, model.LabelUnmatched))

	_, err = s.GetReport(ctx, "no-such-run")
	assert.True(t, eris.Is(err, ErrNotFound))
}
