package store

import (
	"context"
	"errors"

	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/logger"
	"sjsage522/eventworker/services/cache"
)

// CachedStore fronts a Store with a seen-key cache. A cache hit answers
// FindByKey without touching the store; cache failures fall through to it.
type CachedStore struct {
	Store
	seen cache.SeenCache
}

// NewCachedStore wraps inner with the seen cache
func NewCachedStore(inner Store, seen cache.SeenCache) *CachedStore {
	return &CachedStore{Store: inner, seen: seen}
}

// FindByKey implements Store. A record returned from a cache hit only
// carries its key.
func (s *CachedStore) FindByKey(ctx context.Context, key string) (*event.Event, error) {
	hit, err := s.seen.Seen(key)
	if err != nil {
		logger.ForCache().Warn().Err(err).Str("key", key).Msg("Seen cache lookup failed")
	} else if hit {
		return &event.Event{Key: key}, nil
	}

	e, err := s.Store.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	s.mark(key)
	return e, nil
}

// Create implements Store
func (s *CachedStore) Create(ctx context.Context, e *event.Event) (*event.Event, error) {
	created, err := s.Store.Create(ctx, e)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			key := e.Key
			if key == "" {
				key = e.DedupKey()
			}
			s.mark(key)
		}
		return nil, err
	}
	s.mark(created.Key)
	return created, nil
}

func (s *CachedStore) mark(key string) {
	if err := s.seen.Mark(key); err != nil {
		logger.ForCache().Warn().Err(err).Str("key", key).Msg("Failed to mark key as seen")
	}
}
