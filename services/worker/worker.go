package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"sjsage522/eventworker/internal/crawler"
	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/logger"
	pkgerrors "sjsage522/eventworker/pkg/errors"
	"sjsage522/eventworker/services/ingest"
)

// Ingester is the part of the ingestion gate the worker depends on
type Ingester interface {
	Ingest(ctx context.Context, records []event.Event) ingest.Report
}

// SourceResult is the outcome of one source in a run
type SourceResult struct {
	Source    string        `json:"source"`
	Extracted int           `json:"extracted"`
	Report    ingest.Report `json:"report"`
	Elapsed   time.Duration `json:"elapsed"`
	// Err is set when the listing could not be rendered; nothing was ingested then
	Err error `json:"-"`
}

// RunResult collects the per-source results of a run in configuration order
type RunResult struct {
	Sources []SourceResult
}

// Total sums the ingestion reports of every source
func (r RunResult) Total() ingest.Report {
	var total ingest.Report
	for _, s := range r.Sources {
		total.Add(s.Report)
	}
	return total
}

// Retryable reports whether running again may recover a failure of this run
func (r RunResult) Retryable() bool {
	for _, s := range r.Sources {
		if pkgerrors.IsRetryable(s.Err) || s.Report.Retryable() {
			return true
		}
	}
	return false
}

// Err joins the fatal per-source errors
func (r RunResult) Err() error {
	var errs []error
	for _, s := range r.Sources {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errors.Join(errs...)
}

// Worker runs every configured crawler once and ingests what they extract
type Worker struct {
	crawlers []crawler.Crawler
	gate     Ingester
	log      *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(crawlers []crawler.Crawler, gate Ingester) *Worker {
	return &Worker{
		crawlers: crawlers,
		gate:     gate,
		log:      logger.ForWorker(),
	}
}

// Run runs all the crawlers in parallel and waits for them to finish
func (w *Worker) Run(ctx context.Context) RunResult {
	start := time.Now()
	results := make([]SourceResult, len(w.crawlers))

	var wg sync.WaitGroup
	for i, c := range w.crawlers {
		wg.Add(1)
		go func(i int, c crawler.Crawler) {
			defer wg.Done()
			results[i] = w.crawlAndIngest(ctx, c)
		}(i, c)
	}
	wg.Wait()

	result := RunResult{Sources: results}
	total := result.Total()
	w.log.Info().
		Int("sources", len(results)).
		Int("attempted", total.Attempted).
		Int("created", total.Created).
		Int("skipped", total.Skipped).
		Int("failed", total.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("Run finished")
	return result
}

// crawlAndIngest renders and extracts one source, then hands the records to the gate
func (w *Worker) crawlAndIngest(ctx context.Context, c crawler.Crawler) SourceResult {
	start := time.Now()
	name := c.GetName()
	log := logger.ForSource(name)

	events, err := c.FetchEvents(ctx)
	if err != nil {
		log.Error().Err(err).Bool("retryable", pkgerrors.IsRetryable(err)).Msg("Failed to fetch events")
		return SourceResult{Source: name, Err: err, Elapsed: time.Since(start)}
	}

	report := w.gate.Ingest(ctx, events)
	result := SourceResult{
		Source:    name,
		Extracted: len(events),
		Report:    report,
		Elapsed:   time.Since(start),
	}

	ev := log.Info()
	if report.Failed > 0 {
		ev = log.Warn().Err(report.Err()).Bool("retryable", report.Retryable())
	}
	ev.Int("extracted", len(events)).
		Int("created", report.Created).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("elapsed", result.Elapsed).
		Msg("Source ingested")

	if len(events) > 0 && logger.IsDebugEnabled() {
		log.Debug().Interface("first", events[0]).Msg("Extracted data")
	}
	return result
}
