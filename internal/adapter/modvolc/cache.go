package modvolc

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/couchcryptid/modvolc-etl/internal/domain"
	"github.com/couchcryptid/modvolc-etl/internal/observability"
)

// Fetcher retrieves the raw alert listing for a query.
type Fetcher interface {
	Fetch(ctx context.Context, q domain.Query) ([]byte, error)
}

// CachedFetcher wraps a Fetcher with an in-memory TTL cache keyed by the
// query URL. Errors are never cached.
type CachedFetcher struct {
	inner   Fetcher
	cache   *gocache.Cache
	metrics *observability.Metrics
}

// NewCachedFetcher creates a cache decorator around a fetcher. Entries expire
// after ttl.
func NewCachedFetcher(inner Fetcher, ttl time.Duration, metrics *observability.Metrics) *CachedFetcher {
	return &CachedFetcher{
		inner:   inner,
		cache:   gocache.New(ttl, 2*ttl),
		metrics: metrics,
	}
}

func (c *CachedFetcher) Fetch(ctx context.Context, q domain.Query) ([]byte, error) {
	key := QueryURL("", q)
	if v, ok := c.cache.Get(key); ok {
		c.metrics.FetchRequests.WithLabelValues("cache_hit").Inc()
		return v.([]byte), nil
	}
	body, err := c.inner.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, body)
	return body, nil
}

// Flush drops every cached payload.
func (c *CachedFetcher) Flush() {
	c.cache.Flush()
}
