package fleet

import (
	"fmt"
	"sync"

	"github.com/tiendc/go-deepcopy"
)

const carListKey = "cars"

func carKey(id int64) string { return fmt.Sprintf("car:%d", id) }

// readCache is a read-through cache for car lookups. Every write bumps the
// generation so a fill racing with an invalidation is discarded.
type readCache struct {
	mu      sync.RWMutex
	gen     uint64
	entries map[string]any
}

func newReadCache() *readCache {
	return &readCache{entries: map[string]any{}}
}

func (c *readCache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *readCache) get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *readCache) fill(key string, gen uint64, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.entries[key] = v
}

func (c *readCache) invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for _, k := range keys {
		delete(c.entries, k)
	}
}

// cached returns a deep copy of the cached value for key, loading and
// storing it on a miss. Sources are passed by address so unexported fields
// such as those of time.Time are copied.
func cached[T any](c *readCache, key string, load func() (T, bool, error)) (T, bool, error) {
	var out T
	if v, ok := c.get(key); ok {
		src := v.(T)
		if err := deepcopy.Copy(&out, &src); err != nil {
			return out, false, fmt.Errorf("copy %s: %w", key, err)
		}
		return out, true, nil
	}
	gen := c.generation()
	v, found, err := load()
	if err != nil || !found {
		return v, found, err
	}
	var stored T
	if err := deepcopy.Copy(&stored, &v); err != nil {
		return v, true, fmt.Errorf("copy %s: %w", key, err)
	}
	c.fill(key, gen, stored)
	return v, true, nil
}
