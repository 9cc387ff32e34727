package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Question is a forecasting question to be resolved. Immutable once ingested.
type Question struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	URL       string     `json:"url,omitempty"`
	Criteria  string     `json:"criteria"`
	CloseTime *time.Time `json:"close_time,omitempty"`
}

// Validate checks the structural preconditions for resolution. A question
// without criteria text cannot be classified and fails the batch item.
func (q Question) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return eris.New("model: question has no id")
	}
	if strings.TrimSpace(q.Criteria) == "" {
		return eris.Errorf("model: question %s has no resolution criteria", q.ID)
	}
	return nil
}

// QuestionCase pairs a question with its externally supplied ground-truth
// outcome. The ordered list of cases is the input to an assessment run.
type QuestionCase struct {
	Question Question `json:"question"`
	Actual   Label    `json:"actual"`
}

// Validate checks both the question and the ground-truth label.
func (c QuestionCase) Validate() error {
	if err := c.Question.Validate(); err != nil {
		return err
	}
	if !c.Actual.IsGroundTruth() {
		return eris.Errorf("model: question %s has invalid ground-truth label %q", c.Question.ID, c.Actual)
	}
	return nil
}
