// Package metrics exposes prometheus instruments for extraction runs.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventworker"

// Ingest outcomes used as the outcome label
const (
	OutcomeCreated = "created"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

var (
	CardsLocated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cards_located_total",
		Help:      "Candidate event cards found on listing pages.",
	}, []string{"source"})

	IngestRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_records_total",
		Help:      "Records evaluated by the ingestion gate, by outcome.",
	}, []string{"source", "outcome"})

	RenderFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "render_failures_total",
		Help:      "Listing renders that failed, by error type.",
	}, []string{"source", "type"})

	RenderDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "render_duration_seconds",
		Help:      "Time spent waiting for listing pages to render.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 9),
	}, []string{"source"})

	PublishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_failures_total",
		Help:      "Created records that could not be published downstream.",
	}, []string{"source"})
)

var (
	registry     = prometheus.NewRegistry()
	registerOnce sync.Once
)

// Registry returns the registry holding all eventworker instruments
func Registry() *prometheus.Registry {
	registerOnce.Do(func() {
		registry.MustRegister(CardsLocated, IngestRecords, RenderFailures, RenderDuration, PublishFailures)
	})
	return registry
}

// Handler serves the registry in the prometheus exposition format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{})
}
