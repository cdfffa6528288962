package crawler

import (
	"sjsage522/eventworker/internal/renderer"
	"sjsage522/eventworker/logger"
)

// CreateCrawlers creates one crawler per prepared source
func CreateCrawlers(sources []SourceConfig, r renderer.Renderer, opts Options) []Crawler {
	crawlers := make([]Crawler, 0, len(sources))
	for i := range sources {
		crawlers = append(crawlers, NewEventCrawler(&sources[i], r, opts))
	}

	for i, c := range crawlers {
		logger.ForSource(c.GetName()).Debug().
			Int("index", i).
			Str("url", sources[i].ListingURL).
			Msg("Created crawler")
	}

	return crawlers
}
