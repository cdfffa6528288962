// Package event defines the event record extracted from listing pages and
// the key used to deduplicate it across runs.
package event

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"time"
)

const (
	// TitleNotFound marks a card whose title could not be extracted.
	// Records carrying it are never persisted.
	TitleNotFound = "Title Not Found"

	// DateTBA is used when a card has no recognizable date
	DateTBA = "Date TBA"

	// syntheticKeyPrefix marks keys derived from content instead of a link
	syntheticKeyPrefix = "sha1:"
)

// Status is the lifecycle marker of a stored event
type Status string

const (
	// StatusNew is assigned on creation; later stages may move records on
	StatusNew Status = "new"
)

// Event represents a single event card extracted from a listing page
type Event struct {
	ID        string    `json:"id,omitempty"`
	Key       string    `json:"key"`
	Source    string    `json:"source,omitempty"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	Venue     string    `json:"venue"`
	ImageURL  string    `json:"imageUrl"`
	SourceURL string    `json:"sourceUrl"`
	City      string    `json:"city"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// HasTitle reports whether the title was actually extracted
func (e *Event) HasTitle() bool {
	return e.Title != TitleNotFound
}

// DedupKey returns the key used to detect an already ingested event.
// A non-empty source URL is used verbatim.
func (e *Event) DedupKey() string {
	if e.SourceURL != "" {
		return e.SourceURL
	}
	return SyntheticKey(e.Title, e.Date)
}

// IsSyntheticKey reports whether key was derived from content
func IsSyntheticKey(key string) bool {
	return strings.HasPrefix(key, syntheticKeyPrefix)
}

// SyntheticKey derives a deterministic key for events without a link
func SyntheticKey(title, date string) string {
	h := sha1.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(title)) + "|" + strings.ToLower(strings.TrimSpace(date))))
	return fmt.Sprintf("%s%x", syntheticKeyPrefix, h.Sum(nil))
}
