package crawler

import "sjsage522/eventworker/internal/event"

// Normalize turns raw card fields into an event record. Absent or empty text
// becomes the matching sentinel; venue and city come from the source.
func Normalize(raw RawFields, src *SourceConfig) event.Event {
	return event.Event{
		Source:    src.Name,
		Title:     raw.Title.Or(event.TitleNotFound),
		Date:      raw.Date.Or(event.DateTBA),
		Venue:     src.Venue,
		ImageURL:  raw.Image.Or(""),
		SourceURL: raw.Link.Or(""),
		City:      src.City,
		Status:    event.StatusNew,
	}
}
