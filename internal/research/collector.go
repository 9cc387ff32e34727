// Package research collects evidence for resolution questions from
// web-search providers and classifies source authority.
package research

import (
	"context"
	"errors"

	"github.com/sells-group/resolver-cli/internal/model"
	"github.com/sells-group/resolver-cli/internal/resilience"
)

// Evidence is one collection pass for a question: the ordered snippets plus
// the provider usage and cost the pass incurred.
type Evidence struct {
	Items   []model.EvidenceItem
	Usage   model.TokenUsage
	CostUSD float64
}

// Collector gathers evidence bearing on a question's resolution criteria.
// Implementations may return an empty item list; errors carry a transient or
// permanent kind via the resilience package.
type Collector interface {
	Name() string
	Collect(ctx context.Context, q model.Question) (*Evidence, error)
}

// httpStatusError is implemented by provider client errors that expose the
// HTTP status of a failed call.
type httpStatusError interface {
	HTTPStatus() int
}

// classifyProviderError marks a provider error transient or permanent from
// its HTTP status when one is exposed. Errors without a status (network
// failures, timeouts) pass through for the resilience package's
// pattern-based checks.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	var se httpStatusError
	if errors.As(err, &se) {
		if resilience.IsTransientHTTPStatus(se.HTTPStatus()) {
			return resilience.NewTransientError(err, se.HTTPStatus())
		}
		return resilience.NewPermanentError(err, se.HTTPStatus())
	}
	return err
}
