package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/resolver-cli/internal/model"
)

// ErrNotFound is returned when a run or report does not exist. Callers check
// it with errors.Is to distinguish absence from driver failure.
var ErrNotFound = eris.New("store: not found")

// RunFilter narrows ListRuns results.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
}

// Store persists assessment runs, their per-question records, and rendered
// reports. Both drivers implement identical semantics.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) error
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Per-question records
	UpsertRecord(ctx context.Context, rec model.RunRecord) error
	GetRunRecords(ctx context.Context, runID string) ([]model.RunRecord, error)

	// Rendered reports
	SaveReport(ctx context.Context, rep model.StoredReport) error
	GetReport(ctx context.Context, runID string) (*model.StoredReport, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
