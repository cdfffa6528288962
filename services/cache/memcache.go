package cache

import (
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheSeenCache implements SeenCache on top of memcached
type MemcacheSeenCache struct {
	client *memcache.Client
	prefix string
	ttl    time.Duration
}

// NewMemcacheSeenCache creates a memcache backed seen cache
func NewMemcacheSeenCache(serverAddr, prefix string, ttl time.Duration) *MemcacheSeenCache {
	client := memcache.New(serverAddr)
	client.Timeout = 500 * time.Millisecond

	return &MemcacheSeenCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Seen looks key up in memcache
func (m *MemcacheSeenCache) Seen(key string) (bool, error) {
	_, err := m.client.Get(hashKey(m.prefix, key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Mark stores key with the configured expiration
func (m *MemcacheSeenCache) Mark(key string) error {
	return m.client.Set(&memcache.Item{
		Key:        hashKey(m.prefix, key),
		Value:      []byte("1"),
		Expiration: expiration(m.ttl, time.Now()),
	})
}

// maxRelativeExpiration is the largest value memcached reads as a relative
// TTL; anything above is taken as an absolute unix time
const maxRelativeExpiration = 30 * 24 * time.Hour

// expiration converts ttl into a memcache expiration value
func expiration(ttl time.Duration, now time.Time) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > maxRelativeExpiration {
		return int32(now.Add(ttl).Unix())
	}
	return int32(ttl.Seconds())
}

// Ping checks the connection to memcached
func (m *MemcacheSeenCache) Ping() error {
	return m.client.Ping()
}
