// Package ingest decides which extracted events are new and stores them
// exactly once per dedup key.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/internal/metrics"
	"sjsage522/eventworker/logger"
	pkgerrors "sjsage522/eventworker/pkg/errors"
	"sjsage522/eventworker/services/publisher"
	"sjsage522/eventworker/services/store"
)

// EmptySourceURLPolicy decides what happens to records without a link
type EmptySourceURLPolicy string

const (
	// PolicySynthesize keys the record by a hash of its title and date
	PolicySynthesize EmptySourceURLPolicy = "synthesize"
	// PolicyReject skips the record
	PolicyReject EmptySourceURLPolicy = "reject"
)

// ParseEmptySourceURLPolicy maps a config value to a policy; empty means synthesize
func ParseEmptySourceURLPolicy(s string) (EmptySourceURLPolicy, error) {
	switch EmptySourceURLPolicy(s) {
	case "", PolicySynthesize:
		return PolicySynthesize, nil
	case PolicyReject:
		return PolicyReject, nil
	}
	return "", fmt.Errorf("unknown empty source url policy %q", s)
}

// Options tune a Gate
type Options struct {
	// Workers is the number of records processed concurrently, at least one
	Workers int
	// EmptySourceURL applies to records whose SourceURL is empty
	EmptySourceURL EmptySourceURLPolicy
}

// Gate filters records and creates the ones not stored yet
type Gate struct {
	store     store.Store
	publisher publisher.Publisher
	opts      Options
	locks     *keyLock
}

// NewGate creates a gate writing to s. pub may be nil.
func NewGate(s store.Store, pub publisher.Publisher, opts Options) *Gate {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.EmptySourceURL == "" {
		opts.EmptySourceURL = PolicySynthesize
	}
	if pub == nil {
		pub = publisher.Nop{}
	}
	return &Gate{
		store:     s,
		publisher: pub,
		opts:      opts,
		locks:     newKeyLock(),
	}
}

type outcome struct {
	result string
	err    error
}

// Ingest evaluates every record independently. A store failure aborts only
// its own record and is collected in the report. Records sharing a dedup key
// are evaluated in input order, so the first of them is the one stored.
func (g *Gate) Ingest(ctx context.Context, records []event.Event) Report {
	outcomes := make([]outcome, len(records))

	if g.opts.Workers == 1 {
		for i := range records {
			outcomes[i] = g.ingestOne(ctx, &records[i])
		}
	} else {
		sem := make(chan struct{}, g.opts.Workers)
		var wg sync.WaitGroup
		for _, group := range groupByKey(records) {
			wg.Add(1)
			sem <- struct{}{}
			go func(group []int) {
				defer wg.Done()
				defer func() { <-sem }()
				for _, i := range group {
					outcomes[i] = g.ingestOne(ctx, &records[i])
				}
			}(group)
		}
		wg.Wait()
	}

	report := Report{Attempted: len(records)}
	for i, o := range outcomes {
		metrics.IngestRecords.WithLabelValues(records[i].Source, o.result).Inc()
		switch o.result {
		case metrics.OutcomeCreated:
			report.Created++
		case metrics.OutcomeSkipped:
			report.Skipped++
		case metrics.OutcomeFailed:
			report.Failed++
			report.Errors = append(report.Errors, o.err)
		}
	}
	return report
}

// groupByKey returns record indices grouped by dedup key, groups ordered by
// first appearance and indices in input order
func groupByKey(records []event.Event) [][]int {
	index := make(map[string]int, len(records))
	var groups [][]int
	for i := range records {
		key := records[i].DedupKey()
		g, ok := index[key]
		if !ok {
			g = len(groups)
			index[key] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func (g *Gate) ingestOne(ctx context.Context, e *event.Event) outcome {
	log := logger.ForSource(e.Source)

	if !e.HasTitle() {
		return outcome{result: metrics.OutcomeSkipped}
	}
	if e.SourceURL == "" && g.opts.EmptySourceURL == PolicyReject {
		log.Debug().Str("title", e.Title).Msg("Skipping event without source url")
		return outcome{result: metrics.OutcomeSkipped}
	}

	key := e.DedupKey()
	created, err := g.checkAndCreate(ctx, key, e)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to ingest event")
		return outcome{
			result: metrics.OutcomeFailed,
			err:    &RecordError{Key: key, Title: e.Title, Err: err},
		}
	}
	if created == nil {
		return outcome{result: metrics.OutcomeSkipped}
	}

	log.Debug().
		Str("key", key).
		Str("id", created.ID).
		Bool("synthetic_key", event.IsSyntheticKey(key)).
		Msg("Created event")
	if err := g.publisher.Publish(ctx, created); err != nil {
		metrics.PublishFailures.WithLabelValues(e.Source).Inc()
		log.Error().Err(pkgerrors.NewPublisher(e.Source, "publish created event", err)).Str("key", key).Msg("Failed to publish event")
	}
	return outcome{result: metrics.OutcomeCreated}
}

// checkAndCreate returns the created record, or nil when key is already stored
func (g *Gate) checkAndCreate(ctx context.Context, key string, e *event.Event) (*event.Event, error) {
	unlock := g.locks.Lock(key)
	defer unlock()

	_, err := g.store.FindByKey(ctx, key)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, pkgerrors.NewStore(e.Source, "lookup by key", err)
	}

	rec := *e
	rec.Key = key
	rec.Status = event.StatusNew
	created, err := g.store.Create(ctx, &rec)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.NewStore(e.Source, "create event", err)
	}
	return created, nil
}
