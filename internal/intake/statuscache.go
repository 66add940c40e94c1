package intake

import (
	"sync"
	"time"

	"github.com/zano-fusd/deposit-watcher/internal/jobstore"
)

// statusCache is a short-lived in-process cache in front of the KV Status
// read (spec §4.9: "default min(5s, intervalMs)") to absorb client polling
// without adding load to the KV store.
type statusCache struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]cachedStatus
}

type cachedStatus struct {
	status   *jobstore.Status
	found    bool
	cachedAt time.Time
}

func newStatusCache(ttl time.Duration) *statusCache {
	return &statusCache{ttl: ttl, m: make(map[string]cachedStatus)}
}

func (c *statusCache) get(key string) (*jobstore.Status, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.m[key]
	if !ok || time.Since(entry.cachedAt) > c.ttl {
		return nil, false, false
	}
	return entry.status, entry.found, true
}

func (c *statusCache) put(key string, status *jobstore.Status, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = cachedStatus{status: status, found: found, cachedAt: time.Now()}
}
