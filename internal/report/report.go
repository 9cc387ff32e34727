// Package report renders a frozen assessment into auditable documents. It
// performs no classification or scoring of its own; everything here is a pure
// projection of already-scored data.
package report

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/resolver-cli/internal/model"
)

// AssessmentReport is the frozen output of one assessment run. Built once
// from the final scorer state and read-only thereafter.
type AssessmentReport struct {
	GeneratedAt time.Time             `json:"generated_at"`
	StartedAt   time.Time             `json:"started_at"`
	Matrix      model.ConfusionMatrix `json:"matrix"`
	Total       int                   `json:"total"`
	Correct     int                   `json:"correct"`
	Accuracy    *float64              `json:"accuracy,omitempty"`
	CostUSD     float64               `json:"cost_usd"`
	TokenUsage  model.TokenUsage      `json:"token_usage"`
	Outcomes    []model.Outcome       `json:"outcomes"`
	Failures    []model.ItemFailure   `json:"failures,omitempty"`
}

// Build assembles the report from the final matrix snapshot, the outcomes in
// input order, and the per-item structural failures. Accuracy is nil when
// nothing was scored; renderers show that as N/A.
func Build(matrix model.ConfusionMatrix, outcomes []model.Outcome, failures []model.ItemFailure, startedAt time.Time) *AssessmentReport {
	rep := &AssessmentReport{
		GeneratedAt: time.Now().UTC(),
		StartedAt:   startedAt.UTC(),
		Matrix:      matrix.Clone(),
		Total:       matrix.Total(),
		Correct:     matrix.Correct(),
		Outcomes:    outcomes,
		Failures:    failures,
	}
	if acc, ok := matrix.Accuracy(); ok {
		rep.Accuracy = &acc
	}
	for _, o := range outcomes {
		rep.CostUSD += o.Record.CostUSD
		rep.TokenUsage.Add(o.Record.TokenUsage)
	}
	return rep
}

// ClassMetrics is one per-label row derived from the matrix. Nil precision
// or recall means the denominator was zero.
type ClassMetrics struct {
	Label     model.Label `json:"label"`
	Precision *float64    `json:"precision,omitempty"`
	Recall    *float64    `json:"recall,omitempty"`
}

// PerClass derives precision and recall for each ground-truth label. The
// matrix is the single source of truth; nothing here is recomputed from the
// outcomes. UNMATCHED has no row of its own since it never appears as ground
// truth and never counts as correct.
func (r *AssessmentReport) PerClass() []ClassMetrics {
	truths := model.GroundTruthLabels()
	out := make([]ClassMetrics, 0, len(truths))
	for _, label := range truths {
		var colSum, rowSum int
		for _, actual := range truths {
			colSum += r.Matrix.Cell(actual, label)
		}
		for _, predicted := range model.PredictionLabels() {
			rowSum += r.Matrix.Cell(label, predicted)
		}

		cm := ClassMetrics{Label: label}
		diag := r.Matrix.Cell(label, label)
		if colSum > 0 {
			p := float64(diag) / float64(colSum)
			cm.Precision = &p
		}
		if rowSum > 0 {
			rc := float64(diag) / float64(rowSum)
			cm.Recall = &rc
		}
		out = append(out, cm)
	}
	return out
}

// JSON renders the report as indented JSON. Struct fields keep declaration
// order and map keys serialize sorted, so repeated rendering of the same
// report is byte-identical.
func JSON(rep *AssessmentReport) (string, error) {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "report: marshal json")
	}
	return string(data) + "\n", nil
}
