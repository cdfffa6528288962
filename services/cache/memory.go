package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemorySeenCache is a TTL-bound LRU of seen keys, used when no memcached is configured
type MemorySeenCache struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	now   func() time.Time
	ll    *list.List               // most-recent at front
	items map[string]*list.Element // key -> element
}

type entry struct {
	key string
	exp time.Time
}

// NewMemorySeenCache creates an in-process seen cache
func NewMemorySeenCache(maxKeys int, ttl time.Duration) *MemorySeenCache {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemorySeenCache{
		cap:   maxKeys,
		ttl:   ttl,
		now:   time.Now,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

// Seen reports whether key is cached and still fresh
func (c *MemorySeenCache) Seen(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false, nil
	}
	if c.now().Before(el.Value.(entry).exp) {
		c.ll.MoveToFront(el)
		return true, nil
	}

	// expired
	c.ll.Remove(el)
	delete(c.items, key)
	return false, nil
}

// Mark caches key, evicting the least recently used keys over capacity
func (c *MemorySeenCache) Mark(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	exp := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		el.Value = entry{key: key, exp: exp}
		c.ll.MoveToFront(el)
		return nil
	}

	c.items[key] = c.ll.PushFront(entry{key: key, exp: exp})
	for c.ll.Len() > c.cap {
		tail := c.ll.Back()
		c.ll.Remove(tail)
		delete(c.items, tail.Value.(entry).key)
	}
	return nil
}

// Len returns the number of cached keys, expired ones included
func (c *MemorySeenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
