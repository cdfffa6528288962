package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/internal/metrics"
	"sjsage522/eventworker/internal/renderer"
	"sjsage522/eventworker/logger"
	"sjsage522/eventworker/pkg/errors"
)

// Options are the render settings shared by all crawlers of a run
type Options struct {
	// RenderTimeout bounds the whole render, zero means no bound beyond ctx
	RenderTimeout time.Duration
	Wait          renderer.WaitCondition
}

// EventCrawler renders one listing source and extracts its event cards
type EventCrawler struct {
	Source   *SourceConfig
	Renderer renderer.Renderer
	Options  Options
}

// NewEventCrawler creates a crawler for a prepared source
func NewEventCrawler(src *SourceConfig, r renderer.Renderer, opts Options) *EventCrawler {
	return &EventCrawler{
		Source:   src,
		Renderer: r,
		Options:  opts,
	}
}

// GetName returns the source name
func (c *EventCrawler) GetName() string {
	return c.Source.Name
}

// FetchEvents waits for the listing page to render, then extracts every card.
// A render failure aborts the run; missing markup never does.
func (c *EventCrawler) FetchEvents(ctx context.Context) ([]event.Event, error) {
	doc, err := c.render(ctx)
	if err != nil {
		metrics.RenderFailures.WithLabelValues(c.Source.Name, string(errors.TypeOf(err))).Inc()
		return nil, err
	}

	events := ExtractEvents(doc, c.Source)

	logger.ForSource(c.Source.Name).Debug().
		Int("events", len(events)).
		Msg("Extracted events")

	return events, nil
}

func (c *EventCrawler) render(ctx context.Context) (*goquery.Document, error) {
	if c.Options.RenderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Options.RenderTimeout)
		defer cancel()
	}

	start := time.Now()
	doc, err := c.Renderer.Render(ctx, c.Source.ListingURL, renderer.Options{
		Wait:              c.Options.Wait,
		NavigationTimeout: c.Options.RenderTimeout,
	})
	metrics.RenderDuration.WithLabelValues(c.Source.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.IsType(err, errors.ErrorTypeRenderTimeout) || stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.NewRenderTimeout(c.Source.Name, c.Options.RenderTimeout, err)
		}
		if errors.TypeOf(err) == "" {
			return nil, errors.NewRender(c.Source.Name, "render failed", err)
		}
		return nil, fmt.Errorf("%s: %w", c.Source.Name, err)
	}
	if doc == nil {
		return nil, errors.NewRender(c.Source.Name, "renderer returned no document", nil)
	}

	return doc, nil
}

// ExtractEvents locates the cards on an already rendered document and
// normalizes each one, preserving card order. It is pure and safe to call
// without a live renderer.
func ExtractEvents(doc *goquery.Document, src *SourceConfig) []event.Event {
	cards := LocateCards(doc, src)
	metrics.CardsLocated.WithLabelValues(src.Name).Add(float64(len(cards)))

	base := DocumentBase(doc)
	return processCards(cards, func(card *goquery.Selection) event.Event {
		return Normalize(ExtractFields(card, base, src.Fields), src)
	})
}

// processCards runs processor over cards in parallel goroutines and keeps the input order
func processCards(cards []*goquery.Selection, processor func(*goquery.Selection) event.Event) []event.Event {
	events := make([]event.Event, len(cards))
	var wg sync.WaitGroup

	for i, card := range cards {
		wg.Add(1)
		go func(i int, card *goquery.Selection) {
			defer wg.Done()
			events[i] = processor(card)
		}(i, card)
	}

	wg.Wait()
	return events
}
