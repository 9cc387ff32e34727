package research

import (
	"context"

	"github.com/sells-group/resolver-cli/internal/model"
	"github.com/sells-group/resolver-cli/internal/resilience"
)

// ResilientCollector retries transient provider failures with backoff and
// trips a circuit breaker on sustained failure. Permanent errors pass
// through on the first attempt; an open circuit fails fast.
type ResilientCollector struct {
	inner   Collector
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewResilientCollector wraps inner with retry and circuit-breaker behavior.
// retries is the attempt count after the first try.
func NewResilientCollector(inner Collector, retries int, breaker *resilience.CircuitBreaker) *ResilientCollector {
	retry := resilience.RetryFromConfig(retries)
	retry.OnRetry = resilience.RetryLogger(inner.Name(), "collect")
	return &ResilientCollector{
		inner:   inner,
		retry:   retry,
		breaker: breaker,
	}
}

// Name identifies the underlying provider.
func (c *ResilientCollector) Name() string { return c.inner.Name() }

func (c *ResilientCollector) Collect(ctx context.Context, q model.Question) (*Evidence, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Evidence, error) {
		if c.breaker == nil {
			return c.inner.Collect(ctx, q)
		}
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*Evidence, error) {
			return c.inner.Collect(ctx, q)
		})
	})
}
