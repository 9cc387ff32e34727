// Package monitoring computes health metrics over recent assessment runs and
// posts threshold breaches to a webhook.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/resolver-cli/internal/model"
	"github.com/sells-group/resolver-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of assessment health inside the
// lookback window.
type MetricsSnapshot struct {
	RunsTotal     int     `json:"runs_total"`
	RunsCompleted int     `json:"runs_completed"`
	RunsFailed    int     `json:"runs_failed"`
	RunsRunning   int     `json:"runs_running"`
	RunsCancelled int     `json:"runs_cancelled"`
	RunFailRate   float64 `json:"run_fail_rate"`

	// Assessment quality over completed runs.
	QuestionsScored int     `json:"questions_scored"`
	QuestionsFailed int     `json:"questions_failed"`
	MeanAccuracy    float64 `json:"mean_accuracy"`
	AccuracyKnown   bool    `json:"accuracy_known"`

	TotalCostUSD float64 `json:"total_cost_usd"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the run store.
type Collector struct {
	store store.Store
}

// NewCollector creates a metrics collector over the given store.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect builds a snapshot over runs created inside the lookback window.
// Mean accuracy averages only completed runs that scored at least one
// question; AccuracyKnown is false when no run did.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var accuracySum float64
	var accuracyRuns int

	for _, r := range runs {
		switch r.Status {
		case model.RunStatusCompleted:
			snap.RunsCompleted++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		case model.RunStatusCancelled:
			snap.RunsCancelled++
		}

		snap.QuestionsScored += r.Total
		snap.QuestionsFailed += r.Failures
		snap.TotalCostUSD += r.CostUSD

		if r.Status == model.RunStatusCompleted && r.Accuracy != nil {
			accuracySum += *r.Accuracy
			accuracyRuns++
		}
	}

	finished := snap.RunsCompleted + snap.RunsFailed
	if finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if accuracyRuns > 0 {
		snap.MeanAccuracy = accuracySum / float64(accuracyRuns)
		snap.AccuracyKnown = true
	}

	return snap, nil
}
