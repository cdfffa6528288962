package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"sjsage522/eventworker/internal/event"
)

var (
	// ErrNotFound is returned by FindByKey when no record has the key
	ErrNotFound = errors.New("event not found")

	// ErrDuplicate is returned by Create when a record with the same key exists
	ErrDuplicate = errors.New("event already exists")
)

// Store persists ingested events keyed by their dedup key
type Store interface {
	// FindByKey returns the stored event with the dedup key or ErrNotFound
	FindByKey(ctx context.Context, key string) (*event.Event, error)

	// Create stores a new event and returns it with ID and CreatedAt assigned.
	// It fails with ErrDuplicate if the key is already taken.
	Create(ctx context.Context, e *event.Event) (*event.Event, error)

	// Close releases the underlying connection
	Close() error
}

// prepare fills the fields a store assigns on creation
func prepare(e *event.Event, now func() time.Time) event.Event {
	created := *e
	if created.Key == "" {
		created.Key = created.DedupKey()
	}
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if created.Status == "" {
		created.Status = event.StatusNew
	}
	created.CreatedAt = now().UTC()
	return created
}
