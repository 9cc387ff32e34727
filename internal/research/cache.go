package research

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/sells-group/resolver-cli/internal/model"
)

// CachedCollector memoizes successful collection passes by question ID so a
// retried run or a re-resolved question inside the TTL window does not
// re-query the provider. Failures are never cached.
type CachedCollector struct {
	inner Collector
	cache *gocache.Cache
}

// NewCachedCollector wraps inner with a TTL cache.
func NewCachedCollector(inner Collector, ttl time.Duration) *CachedCollector {
	return &CachedCollector{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Name identifies the underlying provider.
func (c *CachedCollector) Name() string { return c.inner.Name() }

// Collect returns the cached pass for the question when present. Cached
// evidence is treated as frozen; callers must not mutate it.
func (c *CachedCollector) Collect(ctx context.Context, q model.Question) (*Evidence, error) {
	if cached, ok := c.cache.Get(q.ID); ok {
		zap.L().Debug("research: evidence cache hit",
			zap.String("provider", c.Name()),
			zap.String("question_id", q.ID),
		)
		return cached.(*Evidence), nil
	}

	ev, err := c.inner.Collect(ctx, q)
	if err != nil {
		return nil, err
	}
	c.cache.Set(q.ID, ev, gocache.DefaultExpiration)
	return ev, nil
}
