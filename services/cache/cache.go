package cache

import (
	"crypto/sha1"
	"encoding/hex"
)

// SeenCache remembers dedup keys that are known to be stored, so repeated runs
// can skip the store lookup. It is an optimisation only: a miss says nothing.
type SeenCache interface {
	// Seen reports whether key was marked and has not expired
	Seen(key string) (bool, error)

	// Mark records key as stored
	Mark(key string) error
}

// hashKey maps an arbitrary dedup key (a URL, usually) onto a fixed size cache key
func hashKey(prefix, key string) string {
	sum := sha1.Sum([]byte(key))
	return prefix + hex.EncodeToString(sum[:])
}
