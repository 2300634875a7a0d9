package smartcode

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type cacheKey struct {
	code  string
	org   string
	level Level
}

// Cache is a bounded, time-evicting store of passing reports keyed by
// (code, organization id, level). It is safe for concurrent use.
type Cache struct {
	items *ttlcache.Cache[cacheKey, *Report]
	ttl   time.Duration
}

// NewCache creates a cache holding at most capacity reports, each for at
// most ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	items := ttlcache.New[cacheKey, *Report](
		ttlcache.WithTTL[cacheKey, *Report](ttl),
		ttlcache.WithCapacity[cacheKey, *Report](uint64(capacity)),
		ttlcache.WithDisableTouchOnHit[cacheKey, *Report](),
	)
	return &Cache{items: items, ttl: ttl}
}

// TTL is the full lifetime granted to low-complexity codes.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) get(code, org string, level Level) (*Report, bool) {
	item := c.items.Get(cacheKey{code, org, level})
	if item == nil || item.IsExpired() {
		return nil, false
	}
	return item.Value().clone(), true
}

func (c *Cache) put(r *Report) {
	if !r.Valid || r.CacheTTL <= 0 {
		return
	}
	c.items.Set(cacheKey{r.Code, r.OrganizationID, r.Level}, r.clone(), r.CacheTTL)
}

// Invalidate drops every cached level of code for an organization.
func (c *Cache) Invalidate(code, org string) {
	for l := LevelSyntax; l <= LevelIntegration; l++ {
		c.items.Delete(cacheKey{code, org, l})
	}
}

// Len returns the number of cached reports, including expired ones not yet
// evicted.
func (c *Cache) Len() int {
	return c.items.Len()
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.items.DeleteAll()
}
