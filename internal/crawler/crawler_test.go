package crawler

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/internal/metrics"
	"sjsage522/eventworker/internal/renderer"
	"sjsage522/eventworker/logger"
	"sjsage522/eventworker/pkg/errors"
)

const vividHTML = `<html><body>
	<article><h3>Vivid Sydney</h3><time>1 Jun</time><img src="/a.jpg"><a href="/e/1">link</a></article>
</body></html>`

// staticRenderer serves fixed HTML as if it had been rendered
func staticRenderer(html string) renderer.Renderer {
	return renderer.Func(func(ctx context.Context, pageURL string, opts renderer.Options) (*goquery.Document, error) {
		return renderer.NewDocument(strings.NewReader(html), pageURL)
	})
}

func TestEventCrawler_FetchEvents(t *testing.T) {
	src := newTestSource(t)
	c := NewEventCrawler(src, staticRenderer(vividHTML), Options{RenderTimeout: time.Second})
	assert.Equal(t, "sydney", c.GetName())

	events, err := c.FetchEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, event.Event{
		Source:    "sydney",
		Title:     "Vivid Sydney",
		Date:      "1 Jun",
		Venue:     "Sydney, Australia",
		ImageURL:  "https://www.sydney.com/a.jpg",
		SourceURL: "https://www.sydney.com/e/1",
		City:      "Sydney",
		Status:    event.StatusNew,
	}, events[0])
}

func TestEventCrawler_PassesRenderOptions(t *testing.T) {
	src := newTestSource(t)

	var gotURL string
	var gotOpts renderer.Options
	var hadDeadline bool
	r := renderer.Func(func(ctx context.Context, pageURL string, opts renderer.Options) (*goquery.Document, error) {
		gotURL, gotOpts = pageURL, opts
		_, hadDeadline = ctx.Deadline()
		return renderer.NewDocument(strings.NewReader("<html></html>"), pageURL)
	})

	c := NewEventCrawler(src, r, Options{RenderTimeout: 5 * time.Second, Wait: renderer.NetworkSettled})
	events, err := c.FetchEvents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)

	assert.Equal(t, "https://www.sydney.com/events", gotURL)
	assert.Equal(t, renderer.NetworkSettled, gotOpts.Wait)
	assert.Equal(t, 5*time.Second, gotOpts.NavigationTimeout)
	assert.True(t, hadDeadline)
}

func TestEventCrawler_RenderTimeout(t *testing.T) {
	src := newTestSource(t)
	blocking := renderer.Func(func(ctx context.Context, pageURL string, opts renderer.Options) (*goquery.Document, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	before := testutil.ToFloat64(metrics.RenderFailures.WithLabelValues("sydney", string(errors.ErrorTypeRenderTimeout)))

	c := NewEventCrawler(src, blocking, Options{RenderTimeout: 20 * time.Millisecond})
	events, err := c.FetchEvents(context.Background())
	require.Error(t, err)
	assert.Nil(t, events)
	assert.Equal(t, errors.ErrorTypeRenderTimeout, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "20ms")

	after := testutil.ToFloat64(metrics.RenderFailures.WithLabelValues("sydney", string(errors.ErrorTypeRenderTimeout)))
	assert.Equal(t, before+1, after)
}

func TestEventCrawler_RenderError(t *testing.T) {
	src := newTestSource(t)
	failing := renderer.Func(func(ctx context.Context, pageURL string, opts renderer.Options) (*goquery.Document, error) {
		return nil, fmt.Errorf("dial tcp: no such host")
	})

	_, err := NewEventCrawler(src, failing, Options{}).FetchEvents(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeRender, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "no such host")
}

func TestExtractEvents_EmptyCard(t *testing.T) {
	src := newTestSource(t)
	doc, err := renderer.NewDocument(strings.NewReader(`<div class="card"><span>?</span></div>`), src.ListingURL)
	require.NoError(t, err)

	events := ExtractEvents(doc, src)
	require.Len(t, events, 1)
	assert.Equal(t, event.TitleNotFound, events[0].Title)
	assert.Equal(t, event.DateTBA, events[0].Date)
	assert.Equal(t, "", events[0].ImageURL)
	assert.Equal(t, "", events[0].SourceURL)
	assert.Equal(t, "Sydney, Australia", events[0].Venue)
}

func TestExtractEvents_PreservesCardOrder(t *testing.T) {
	src := newTestSource(t)

	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, `<article><h3>Event %d</h3><a href="/e/%d">more</a></article>`, i, i)
	}
	b.WriteString("</body></html>")

	doc, err := renderer.NewDocument(strings.NewReader(b.String()), src.ListingURL)
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.CardsLocated.WithLabelValues("sydney"))
	events := ExtractEvents(doc, src)
	require.Len(t, events, 50)
	for i, e := range events {
		assert.Equal(t, fmt.Sprintf("Event %d", i), e.Title)
		assert.Equal(t, fmt.Sprintf("https://www.sydney.com/e/%d", i), e.SourceURL)
	}
	assert.Equal(t, before+50, testutil.ToFloat64(metrics.CardsLocated.WithLabelValues("sydney")))
}

func TestCreateCrawlers(t *testing.T) {
	sources := []SourceConfig{
		{Name: "a", ListingURL: "https://a.example.com"},
		{Name: "b", ListingURL: "https://b.example.com"},
	}
	require.NoError(t, PrepareSources(sources))

	var buf bytes.Buffer
	t.Setenv("LOG_LEVEL", "debug")
	logger.InitWithWriter(&buf)
	t.Cleanup(logger.Init)

	crawlers := CreateCrawlers(sources, staticRenderer("<html></html>"), Options{})
	require.Len(t, crawlers, 2)
	assert.Equal(t, "a", crawlers[0].GetName())
	assert.Equal(t, "b", crawlers[1].GetName())

	out := buf.String()
	assert.Contains(t, out, "Created crawler")
	assert.Contains(t, out, "source=b")
	assert.Contains(t, out, "url=https://b.example.com")
}
