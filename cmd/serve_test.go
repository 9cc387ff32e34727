//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/resolver-cli/internal/model"
	"github.com/sells-group/resolver-cli/internal/monitoring"
	"github.com/sells-group/resolver-cli/internal/store"
)

// stubStore serves canned data for handler tests.
type stubStore struct {
	runs    []model.Run
	records []model.RunRecord
	report  *model.StoredReport
}

func (s *stubStore) CreateRun(context.Context, model.Run) error { return nil }

func (s *stubStore) UpdateRunStatus(context.Context, string, model.RunStatus) error { return nil }

func (s *stubStore) CompleteRun(context.Context, model.Run) error { return nil }

func (s *stubStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	for _, r := range s.runs {
		if r.ID == runID {
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *stubStore) ListRuns(context.Context, store.RunFilter) ([]model.Run, error) {
	return s.runs, nil
}

func (s *stubStore) UpsertRecord(context.Context, model.RunRecord) error { return nil }

func (s *stubStore) GetRunRecords(context.Context, string) ([]model.RunRecord, error) {
	return s.records, nil
}

func (s *stubStore) SaveReport(context.Context, model.StoredReport) error { return nil }

func (s *stubStore) GetReport(_ context.Context, runID string) (*model.StoredReport, error) {
	if s.report != nil && s.report.RunID == runID {
		return s.report, nil
	}
	return nil, store.ErrNotFound
}

func (s *stubStore) Migrate(context.Context) error { return nil }
func (s *stubStore) Close() error                  { return nil }

func testMux(st *stubStore) *http.ServeMux {
	return serveMux(st, monitoring.NewCollector(st), 24)
}

func TestServeMux_Health(t *testing.T) {
	mux := testMux(&stubStore{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServeMux_ListRuns(t *testing.T) {
	accuracy := 0.9
	mux := testMux(&stubStore{
		runs: []model.Run{{
			ID:        "run-1",
			Source:    "file:questions.yaml",
			Status:    model.RunStatusCompleted,
			Total:     10,
			Correct:   9,
			Accuracy:  &accuracy,
			CreatedAt: time.Now().UTC(),
		}},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Runs []model.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "run-1", body.Runs[0].ID)
}

func TestServeMux_GetRun_WithRecords(t *testing.T) {
	mux := testMux(&stubStore{
		runs: []model.Run{{ID: "run-1", Status: model.RunStatusCompleted}},
		records: []model.RunRecord{
			{RunID: "run-1", Index: 0, QuestionID: "q-1", Status: model.QuestionStatusCompleted, Actual: model.LabelTrue, Predicted: model.LabelTrue},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Run     model.Run         `json:"run"`
		Records []model.RunRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.Run.ID)
	require.Len(t, body.Records, 1)
	assert.Equal(t, "q-1", body.Records[0].QuestionID)
}

func TestServeMux_GetRun_NotFound(t *testing.T) {
	mux := testMux(&stubStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "not found")
}

func TestServeMux_Report(t *testing.T) {
	mux := testMux(&stubStore{
		report: &model.StoredReport{
			RunID:    "run-1",
			Markdown: "# Assessment Report\n\nAccuracy: 90.0%\n",
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1/report", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rr.Body.String(), "# Assessment Report")
}

func TestServeMux_Report_NotFound(t *testing.T) {
	mux := testMux(&stubStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/runs/missing/report", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServeMux_Metrics(t *testing.T) {
	mux := testMux(&stubStore{
		runs: []model.Run{
			{ID: "a", Status: model.RunStatusCompleted, Total: 10, Correct: 8, CreatedAt: time.Now().UTC()},
			{ID: "b", Status: model.RunStatusFailed, CreatedAt: time.Now().UTC()},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var snap monitoring.MetricsSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, 2, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 24, snap.LookbackHours)
}
