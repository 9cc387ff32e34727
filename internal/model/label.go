package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Label is a resolution outcome category.
type Label string

const (
	// LabelTrue means the resolution criteria were met.
	LabelTrue Label = "TRUE"
	// LabelFalse means the resolution criteria were not met.
	LabelFalse Label = "FALSE"
	// LabelUnresolvable means the available evidence cannot settle the
	// criteria either way.
	LabelUnresolvable Label = "UNRESOLVABLE"
	// LabelCancelled means the question was withdrawn or became moot before
	// the criteria could be evaluated.
	LabelCancelled Label = "CANCELLED"
	// LabelUnmatched is prediction-only: no defensible label could be mapped
	// onto the ground-truth taxonomy. It never appears as ground truth and
	// always scores as incorrect.
	LabelUnmatched Label = "UNMATCHED"
)

// GroundTruthLabels returns the closed set of labels valid as ground truth.
func GroundTruthLabels() []Label {
	return []Label{LabelTrue, LabelFalse, LabelUnresolvable, LabelCancelled}
}

// PredictionLabels returns the closed set of labels valid as predictions:
// the ground-truth set plus the UNMATCHED sentinel.
func PredictionLabels() []Label {
	return []Label{LabelTrue, LabelFalse, LabelUnresolvable, LabelCancelled, LabelUnmatched}
}

// IsGroundTruth reports whether l is a member of the ground-truth set.
func (l Label) IsGroundTruth() bool {
	switch l {
	case LabelTrue, LabelFalse, LabelUnresolvable, LabelCancelled:
		return true
	}
	return false
}

// IsPrediction reports whether l is a member of the prediction set.
func (l Label) IsPrediction() bool {
	return l == LabelUnmatched || l.IsGroundTruth()
}

// String returns the canonical upper-case literal.
func (l Label) String() string {
	return string(l)
}

// ParseGroundTruth converts a raw label literal into a ground-truth Label.
// Matching is case-insensitive on the canonical literals; anything else is a
// structural error, rejected here so malformed values never reach scoring.
func ParseGroundTruth(s string) (Label, error) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	if !l.IsGroundTruth() {
		return "", eris.Errorf("model: unknown ground-truth label %q", s)
	}
	return l, nil
}

// ParsePrediction converts a raw label literal into a prediction Label.
func ParsePrediction(s string) (Label, error) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	if !l.IsPrediction() {
		return "", eris.Errorf("model: unknown prediction label %q", s)
	}
	return l, nil
}

// IsCorrect reports whether a prediction matches the ground truth. UNMATCHED
// never matches anything, including itself.
func IsCorrect(actual, predicted Label) bool {
	if predicted == LabelUnmatched {
		return false
	}
	return actual == predicted
}
