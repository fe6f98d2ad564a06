package common

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache is an expiring in-process map. Entries not touched within the
// expiration window are evicted by the janitor.
type Cache struct {
	*cache.Cache
}

func NewCache(expirationTime, cleanupTime time.Duration) *Cache {
	return &Cache{cache.New(expirationTime, cleanupTime)}
}

func (c *Cache) Set(key string, value interface{}, expiration ...time.Duration) {
	if len(expiration) > 0 {
		c.Cache.Set(key, value, expiration[0])
		return
	}
	c.Cache.Set(key, value, cache.DefaultExpiration)
}

func (c *Cache) Get(key string) (interface{}, bool) {
	return c.Cache.Get(key)
}

// GetOrAdd returns the value stored under key, storing newValue() first when
// the key is absent. Concurrent callers for the same key observe one value.
// A hit refreshes the entry's expiration.
func (c *Cache) GetOrAdd(key string, newValue func() interface{}) interface{} {
	if v, ok := c.Cache.Get(key); ok {
		c.Cache.Set(key, v, cache.DefaultExpiration)
		return v
	}

	v := newValue()
	if err := c.Cache.Add(key, v, cache.DefaultExpiration); err != nil {
		if existing, ok := c.Cache.Get(key); ok {
			return existing
		}
	}

	return v
}

func (c *Cache) Flush() {
	c.Cache.Flush()
}

func CacheKeyClient(ip string) string {
	return "client:" + ip
}
