package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/resolver-cli/internal/model"
	"github.com/sells-group/resolver-cli/internal/store"
)

// fakeStore serves canned runs for collector tests.
type fakeStore struct {
	store.Store
	runs []model.Run
	err  error

	gotFilter store.RunFilter
}

func (f *fakeStore) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	f.gotFilter = filter
	return f.runs, f.err
}

func completedRun(accuracy float64, total int, cost float64) model.Run {
	return model.Run{
		Status:   model.RunStatusCompleted,
		Total:    total,
		Correct:  int(accuracy * float64(total)),
		Accuracy: &accuracy,
		CostUSD:  cost,
	}
}

func TestCollectorCollect(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{runs: []model.Run{
		completedRun(0.9, 20, 1.50),
		completedRun(0.7, 10, 0.75),
		{Status: model.RunStatusFailed, Failures: 3, CostUSD: 0.10},
		{Status: model.RunStatusRunning},
	}}

	snap, err := NewCollector(fs).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.RunsTotal)
	assert.Equal(t, 2, snap.RunsCompleted)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsRunning)
	assert.InDelta(t, 1.0/3.0, snap.RunFailRate, 1e-9)
	assert.Equal(t, 30, snap.QuestionsScored)
	assert.Equal(t, 3, snap.QuestionsFailed)
	assert.True(t, snap.AccuracyKnown)
	assert.InDelta(t, 0.8, snap.MeanAccuracy, 1e-9)
	assert.InDelta(t, 2.35, snap.TotalCostUSD, 1e-9)
	assert.Equal(t, 24, snap.LookbackHours)

	// Window cutoff is passed down to the store.
	assert.WithinDuration(t, time.Now().UTC().Add(-24*time.Hour), fs.gotFilter.CreatedAfter, 5*time.Second)
}

func TestCollectorCollectEmpty(t *testing.T) {
	t.Parallel()

	snap, err := NewCollector(&fakeStore{}).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.RunsTotal)
	assert.Zero(t, snap.RunFailRate)
	assert.False(t, snap.AccuracyKnown)
}
