package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sjsage522/eventworker/internal/crawler"
	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/internal/renderer"
	"sjsage522/eventworker/services/cache"
	"sjsage522/eventworker/services/ingest"
	"sjsage522/eventworker/services/store"
	"sjsage522/eventworker/services/worker"
)

// This is a simple test HTML that mimics an event listing page
const testHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Test Events</title>
    <script>window.__STATE__ = {"title": "not an event"}</script>
</head>
<body>
    <div class="item-list-item">
        <h3>Vivid Sydney <script>track()</script></h3>
        <time>1 Jun</time>
        <img src="/img/vivid.jpg" alt="">
        <a href="/events/vivid">More</a>
    </div>
    <article>
        <h2>Sydney Film Festival</h2>
        <p>4 Jun - 15 Jun</p>
        <a href="https://www.sff.org.au/">Tickets</a>
    </article>
    <div class="card">
        <span>Sponsored</span>
    </div>
</body>
</html>
`

func newListingServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, testHTML)
	}))
	t.Cleanup(server.Close)
	return server
}

func testSources(t *testing.T, listingURL string) []crawler.SourceConfig {
	t.Helper()
	sources := []crawler.SourceConfig{{
		Name:       "sydney",
		ListingURL: listingURL,
		Venue:      "Sydney, Australia",
		City:       "Sydney",
	}}
	require.NoError(t, crawler.PrepareSources(sources))
	return sources
}

func TestIntegration_HTTPRendererToSqlite(t *testing.T) {
	server := newListingServer(t, nil)
	sources := testSources(t, server.URL+"/events")

	sqlite, err := store.NewSqliteStore(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	s := store.NewCachedStore(sqlite, cache.NewMemorySeenCache(100, time.Hour))
	defer s.Close()

	crawlers := crawler.CreateCrawlers(sources, renderer.NewHTTP(), crawler.Options{RenderTimeout: 5 * time.Second})
	gate := ingest.NewGate(s, nil, ingest.Options{Workers: 4})
	w := worker.NewWorker(crawlers, gate)

	result := w.Run(context.Background())
	require.NoError(t, result.Err())
	require.Len(t, result.Sources, 1)

	// three cards, one without a title
	assert.Equal(t, 3, result.Sources[0].Extracted)
	assert.Equal(t, ingest.Report{Attempted: 3, Created: 2, Skipped: 1}, result.Sources[0].Report)

	vivid, err := sqlite.FindByKey(context.Background(), server.URL+"/events/vivid")
	require.NoError(t, err)
	assert.Equal(t, "Vivid Sydney", vivid.Title)
	assert.Equal(t, "1 Jun", vivid.Date)
	assert.Equal(t, server.URL+"/img/vivid.jpg", vivid.ImageURL)
	assert.Equal(t, "Sydney, Australia", vivid.Venue)
	assert.Equal(t, "Sydney", vivid.City)
	assert.Equal(t, event.StatusNew, vivid.Status)

	festival, err := sqlite.FindByKey(context.Background(), "https://www.sff.org.au/")
	require.NoError(t, err)
	assert.Equal(t, "Sydney Film Festival", festival.Title)
	assert.Equal(t, "4 Jun - 15 Jun", festival.Date)

	n, err := sqlite.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// a second run creates nothing
	again := w.Run(context.Background()).Total()
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 3, again.Skipped)

	n, _ = sqlite.Count(context.Background())
	assert.Equal(t, 2, n)
}

func TestIntegration_BrowserlessRenderer(t *testing.T) {
	listing := newListingServer(t, nil)

	var requests atomic.Int32
	chrome := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var payload struct {
			URL         string `json:"url"`
			GotoOptions struct {
				WaitUntil string `json:"waitUntil"`
			} `json:"gotoOptions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if payload.GotoOptions.WaitUntil != "networkidle0" {
			http.Error(w, "unexpected wait condition", http.StatusBadRequest)
			return
		}

		resp, err := http.Get(payload.URL)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		w.Header().Set("Content-Type", "text/html")
		io.Copy(w, resp.Body)
	}))
	defer chrome.Close()

	sources := testSources(t, listing.URL+"/events")
	s := store.NewMemoryStore()

	crawlers := crawler.CreateCrawlers(sources, renderer.NewBrowserless(chrome.URL, "token"), crawler.Options{
		RenderTimeout: 5 * time.Second,
		Wait:          renderer.NetworkSettled,
	})
	result := worker.NewWorker(crawlers, ingest.NewGate(s, nil, ingest.Options{})).Run(context.Background())

	require.NoError(t, result.Err())
	assert.Equal(t, int32(1), requests.Load())
	assert.Equal(t, 2, result.Total().Created)
	assert.Equal(t, 2, s.Len())
}

func TestIntegration_RenderTimeoutIngestsNothing(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	sources := testSources(t, slow.URL)
	s := store.NewMemoryStore()

	crawlers := crawler.CreateCrawlers(sources, renderer.NewHTTP(), crawler.Options{RenderTimeout: 50 * time.Millisecond})
	result := worker.NewWorker(crawlers, ingest.NewGate(s, nil, ingest.Options{})).Run(context.Background())

	require.Error(t, result.Err())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, ingest.Report{}, result.Total())
}

func TestIntegration_ManySources(t *testing.T) {
	var hits atomic.Int32
	server := newListingServer(t, &hits)

	var sources []crawler.SourceConfig
	for i := 0; i < 5; i++ {
		sources = append(sources, crawler.SourceConfig{
			Name:       fmt.Sprintf("mirror-%d", i),
			ListingURL: fmt.Sprintf("%s/events?mirror=%d", server.URL, i),
		})
	}
	require.NoError(t, crawler.PrepareSources(sources))

	s := store.NewMemoryStore()
	crawlers := crawler.CreateCrawlers(sources, renderer.NewHTTP(), crawler.Options{RenderTimeout: 5 * time.Second})
	result := worker.NewWorker(crawlers, ingest.NewGate(s, nil, ingest.Options{Workers: 3})).Run(context.Background())

	require.NoError(t, result.Err())
	assert.Equal(t, int32(5), hits.Load())

	// every mirror resolves to the same two links
	total := result.Total()
	assert.Equal(t, 15, total.Attempted)
	assert.Equal(t, 2, total.Created)
	assert.Equal(t, 13, total.Skipped)
	assert.Equal(t, 0, total.Failed)
	assert.Equal(t, 2, s.Len())
}
