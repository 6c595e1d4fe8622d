// Package mirror holds a process-local, non-authoritative copy of stored
// documents. It is consulted only when the remote store is unreachable or
// for entries that are never synced remotely.
package mirror

import (
	"time"

	"github.com/allegro/bigcache"
)

// DefaultTTL is how long a mirrored entry survives without being rewritten.
var DefaultTTL = 24 * time.Hour

type CacheConfig struct {
	// Size is the maximum size of the cache in megabytes. Zero means
	// unbounded.
	Size int
	TTL  time.Duration
}

// Cache is an unversioned, last-write-wins key/value store visible only
// within the current process.
type Cache struct {
	*bigcache.BigCache
}

func NewCache(config CacheConfig) (*Cache, error) {
	defaults := bigcache.DefaultConfig(DefaultTTL)
	defaults.Verbose = false

	if config.TTL != 0 {
		defaults.LifeWindow = config.TTL
	}
	if config.Size != 0 {
		defaults.HardMaxCacheSize = config.Size
	}

	cache, err := bigcache.NewBigCache(defaults)
	if err != nil {
		return nil, err
	}
	return &Cache{BigCache: cache}, nil
}

// Lookup returns the value stored under key. bigcache only fails a Get for
// missing or evicted entries, so every error is a miss.
func (c *Cache) Lookup(key string) ([]byte, bool) {
	val, err := c.Get(key)
	if err != nil {
		return nil, false
	}
	return val, true
}
