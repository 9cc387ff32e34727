package model

import "time"

// RunStatus tracks the lifecycle of an assessment run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// QuestionStatus tracks one question inside a run.
type QuestionStatus string

const (
	QuestionStatusPending   QuestionStatus = "pending"
	QuestionStatusRunning   QuestionStatus = "running"
	QuestionStatusCompleted QuestionStatus = "completed"
	QuestionStatusFailed    QuestionStatus = "failed"
)

// Run is the persisted summary of one assessment run. Accuracy is nil for a
// zero-question run (reported as N/A, never as 0%).
type Run struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Status      RunStatus  `json:"status"`
	Total       int        `json:"total"`
	Correct     int        `json:"correct"`
	Failures    int        `json:"failures"`
	Accuracy    *float64   `json:"accuracy,omitempty"`
	CostUSD     float64    `json:"cost_usd"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunRecord is the persisted per-question row of a run.
type RunRecord struct {
	RunID      string         `json:"run_id"`
	Index      int            `json:"index"`
	QuestionID string         `json:"question_id"`
	Status     QuestionStatus `json:"status"`
	Actual     Label          `json:"actual,omitempty"`
	Predicted  Label          `json:"predicted,omitempty"`
	Rationale  string         `json:"rationale,omitempty"`
	Citations  []Citation     `json:"citations,omitempty"`
	CostUSD    float64        `json:"cost_usd"`
	Error      string         `json:"error,omitempty"`
}

// StoredReport is the persisted rendering of a completed run: both
// serializations plus the raw matrix cells for later re-aggregation.
type StoredReport struct {
	RunID     string          `json:"run_id"`
	Markdown  string          `json:"markdown"`
	JSON      string          `json:"json"`
	Matrix    ConfusionMatrix `json:"matrix"`
	CreatedAt time.Time       `json:"created_at"`
}
