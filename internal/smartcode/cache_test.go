package smartcode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func passing(code, org string, ttl time.Duration) *Report {
	return &Report{Code: code, OrganizationID: org, Level: LevelSyntax, Valid: true, CacheTTL: ttl}
}

func TestCacheCapacity(t *testing.T) {
	c := NewCache(1, time.Minute)
	c.put(passing("HERA.SALON.CRM.CUSTOMER.ENTITY.v1", orgA, time.Minute))
	c.put(passing("HERA.SALON.CRM.CUSTOMER.ENTITY.v2", orgA, time.Minute))
	assert.Equal(t, 1, c.Len())

	_, ok := c.get("HERA.SALON.CRM.CUSTOMER.ENTITY.v2", orgA, LevelSyntax)
	assert.True(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(8, time.Minute)
	c.put(passing("HERA.SALON.CRM.CUSTOMER.ENTITY.v1", orgA, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok := c.get("HERA.SALON.CRM.CUSTOMER.ENTITY.v1", orgA, LevelSyntax)
	assert.False(t, ok)
}

func TestCachePurge(t *testing.T) {
	c := NewCache(8, time.Minute)
	c.put(passing("HERA.SALON.CRM.CUSTOMER.ENTITY.v1", orgA, time.Minute))
	c.put(passing("HERA.SALON.CRM.CUSTOMER.ENTITY.v1", "org-b", time.Minute))
	assert.Equal(t, 2, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCacheIgnoresFailingReports(t *testing.T) {
	c := NewCache(8, time.Minute)
	c.put(&Report{Code: "x", Valid: false, CacheTTL: time.Minute})
	assert.Equal(t, 0, c.Len())
}
