// Package nomencl caches remote nomenclature value lists. Entries are
// process-wide, keyed by service id and operator identity, and expire after
// a configurable interval. Concurrent refreshes of one key are serialized so
// a remote list is fetched once per expiry.
package nomencl

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/proarc/proarc-api/pkg/remote"
)

// DefaultExpiration keeps lists for ten minutes, matching how often the
// registries publish changes.
const DefaultExpiration = 10 * time.Minute

// Loader fetches a fresh value list.
type Loader func(ctx context.Context) ([]remote.Nomenclature, error)

type entry struct {
	values  []remote.Nomenclature
	expires time.Time
}

// Cache is the expiring nomenclature cache.
type Cache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultExpiration
	}
	return &Cache{ttl: ttl, entries: make(map[string]entry)}
}

// Key builds the cache key from the service id and the operator identity.
// The operator is hashed; credentials never appear in the key.
func Key(serviceID, operator string) string {
	h := fnv.New64a()
	h.Write([]byte(operator))
	return fmt.Sprintf("%s#%x", serviceID, h.Sum64())
}

// Get returns the cached list or loads it. Only one loader runs per key at a
// time; concurrent callers share its result.
func (c *Cache) Get(ctx context.Context, key string, load Loader) ([]remote.Nomenclature, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(e.expires) {
		return e.values, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// a racing caller may have refreshed the entry already
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && time.Now().Before(e.expires) {
			return e.values, nil
		}

		values, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = entry{values: values, expires: time.Now().Add(c.ttl)}
		c.mu.Unlock()
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]remote.Nomenclature), nil
}

// Invalidate drops one key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
