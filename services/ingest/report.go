package ingest

import (
	"errors"
	"fmt"

	pkgerrors "sjsage522/eventworker/pkg/errors"
)

// Report summarizes one ingestion pass
type Report struct {
	Attempted int     `json:"attempted"`
	Created   int     `json:"created"`
	Skipped   int     `json:"skipped"`
	Failed    int     `json:"failed"`
	Errors    []error `json:"-"`
}

// Err joins the per-record errors, nil when every record went through
func (r Report) Err() error {
	return errors.Join(r.Errors...)
}

// Retryable reports whether any record failed with an error worth retrying
func (r Report) Retryable() bool {
	for _, err := range r.Errors {
		if pkgerrors.IsRetryable(err) {
			return true
		}
	}
	return false
}

// Add accumulates other into r
func (r *Report) Add(other Report) {
	r.Attempted += other.Attempted
	r.Created += other.Created
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
}

func (r Report) String() string {
	return fmt.Sprintf("attempted=%d created=%d skipped=%d failed=%d", r.Attempted, r.Created, r.Skipped, r.Failed)
}

// RecordError ties a store failure to the record it aborted
type RecordError struct {
	Key   string
	Title string
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("ingest %q (%s): %v", e.Title, e.Key, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
