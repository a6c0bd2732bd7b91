package mapbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/couchcryptid/modvolc-etl/internal/domain"
)

// CachedGeocoder wraps a Geocoder with an in-memory TTL cache. Serve mode
// re-locates the same site on every refresh, so lookups are answered locally
// until they expire.
type CachedGeocoder struct {
	inner domain.Geocoder
	cache *gocache.Cache
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, ttl time.Duration) *CachedGeocoder {
	return &CachedGeocoder{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	key := "fwd:" + strings.ToLower(strings.TrimSpace(query))
	if result, ok := c.get(key); ok {
		return result, nil
	}
	result, err := c.inner.ForwardGeocode(ctx, query)
	if err != nil {
		return result, err
	}
	c.put(key, result)
	return result, nil
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := fmt.Sprintf("rev:%.6f,%.6f", lat, lon)
	if result, ok := c.get(key); ok {
		return result, nil
	}
	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	c.put(key, result)
	return result, nil
}

func (c *CachedGeocoder) get(key string) (domain.GeocodingResult, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return domain.GeocodingResult{}, false
	}
	return v.(domain.GeocodingResult), true
}

// put stores only non-empty results so "not found" responses can be retried.
func (c *CachedGeocoder) put(key string, result domain.GeocodingResult) {
	if result.FormattedAddress == "" {
		return
	}
	c.cache.SetDefault(key, result)
}
