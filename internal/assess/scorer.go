// Package assess scores resolution records against ground truth and drives
// ordered question batches through the resolver.
package assess

import (
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/resolver-cli/internal/model"
)

// Scorer folds observations into a confusion matrix under single-writer
// discipline. An actual label outside the ground-truth set, a predicted label
// outside the prediction set, or a second observation for an already scored
// question ID would corrupt matrix totals, so all three surface as errors.
type Scorer struct {
	mu     sync.Mutex
	matrix model.ConfusionMatrix
	seen   map[string]struct{}
}

// NewScorer returns a Scorer with an empty matrix.
func NewScorer() *Scorer {
	return &Scorer{
		matrix: model.NewConfusionMatrix(),
		seen:   make(map[string]struct{}),
	}
}

// Score folds one observation into the matrix. Each question ID is accepted
// exactly once per run.
func (s *Scorer) Score(questionID string, actual, predicted model.Label) error {
	if !actual.IsGroundTruth() {
		return eris.Errorf("assess: actual label %q is outside the ground-truth set", actual)
	}
	if !predicted.IsPrediction() {
		return eris.Errorf("assess: predicted label %q is outside the prediction set", predicted)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[questionID]; dup {
		return eris.Errorf("assess: question %s scored twice", questionID)
	}
	s.seen[questionID] = struct{}{}
	s.matrix.Add(actual, predicted)
	return nil
}

// Matrix returns a snapshot safe to read while scoring continues.
func (s *Scorer) Matrix() model.ConfusionMatrix {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matrix.Clone()
}

// Total returns the number of observations scored so far.
func (s *Scorer) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matrix.Total()
}

// Correct returns the number of observations whose prediction matched the
// ground truth.
func (s *Scorer) Correct() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matrix.Correct()
}

// Accuracy returns correct/total; false when nothing has been scored.
func (s *Scorer) Accuracy() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matrix.Accuracy()
}
