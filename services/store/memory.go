package store

import (
	"context"
	"sync"
	"time"

	"sjsage522/eventworker/internal/event"
)

// MemoryStore keeps events in process memory. It backs dry runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]event.Event
	order  []string
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string]event.Event),
		now:    time.Now,
	}
}

// FindByKey implements Store
func (s *MemoryStore) FindByKey(ctx context.Context, key string) (*event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

// Create implements Store
func (s *MemoryStore) Create(ctx context.Context, e *event.Event) (*event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	created := prepare(e, s.now)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[created.Key]; ok {
		return nil, ErrDuplicate
	}
	s.events[created.Key] = created
	s.order = append(s.order, created.Key)
	return &created, nil
}

// All returns stored events in creation order
func (s *MemoryStore) All() []event.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]event.Event, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.events[k])
	}
	return out
}

// Len returns the number of stored events
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Close implements Store
func (s *MemoryStore) Close() error {
	return nil
}
