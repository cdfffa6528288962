// Package renderer turns a listing URL into a fully rendered, queryable DOM snapshot.
//
// Two adapters are provided: Browserless drives a headless Chrome through the
// browserless HTTP API and waits for network activity to settle, HTTP performs a
// plain fetch for pages that do not need script execution. Both return a
// goquery document whose Url is set to the page URL so that relative links can
// be resolved by the extractor.
package renderer

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"sjsage522/eventworker/pkg/errors"
)

// WaitCondition tells the renderer when a page counts as rendered
type WaitCondition string

const (
	// NetworkSettled waits until there are no in-flight requests for a quiescence window
	NetworkSettled WaitCondition = "network-settled"
	// NetworkMostlySettled tolerates up to two long-lived connections
	NetworkMostlySettled WaitCondition = "network-mostly-settled"
	// DOMContentLoaded returns as soon as the initial document is parsed
	DOMContentLoaded WaitCondition = "dom-content-loaded"
	// Load waits for the window load event
	Load WaitCondition = "load"
)

// ParseWaitCondition validates a wait condition name
func ParseWaitCondition(s string) (WaitCondition, error) {
	switch w := WaitCondition(strings.ToLower(strings.TrimSpace(s))); w {
	case NetworkSettled, NetworkMostlySettled, DOMContentLoaded, Load:
		return w, nil
	case "":
		return NetworkSettled, nil
	default:
		return "", fmt.Errorf("unknown wait condition %q", s)
	}
}

// puppeteer returns the waitUntil value understood by puppeteer based renderers
func (w WaitCondition) puppeteer() string {
	switch w {
	case NetworkMostlySettled:
		return "networkidle2"
	case DOMContentLoaded:
		return "domcontentloaded"
	case Load:
		return "load"
	default:
		return "networkidle0"
	}
}

// Options configures a single render
type Options struct {
	Wait WaitCondition
	// NavigationTimeout is handed to the browser. Zero leaves the browser default.
	// The overall bound on a render is the context deadline.
	NavigationTimeout time.Duration
}

// Renderer returns a DOM snapshot of url once it has finished rendering.
// Failures are *errors.PipelineError of type render or render_timeout.
type Renderer interface {
	Render(ctx context.Context, url string, opts Options) (*goquery.Document, error)
}

// Func adapts an ordinary function to the Renderer interface
type Func func(ctx context.Context, url string, opts Options) (*goquery.Document, error)

// Render calls f
func (f Func) Render(ctx context.Context, url string, opts Options) (*goquery.Document, error) {
	return f(ctx, url, opts)
}

// NewDocument parses html into a snapshot anchored at pageURL
func NewDocument(r io.Reader, pageURL string) (*goquery.Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, errors.NewParsing(pageURL, "invalid page URL", err)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.NewParsing(pageURL, "failed to parse HTML", err)
	}
	doc.Url = u

	return doc, nil
}

// classify maps a transport failure onto the render error taxonomy
func classify(ctx context.Context, pageURL string, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewRenderTimeout(pageURL, 0, err)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewRenderTimeout(pageURL, 0, err)
	}

	return errors.NewRender(pageURL, "request failed", err)
}

// looksLikeHTML is a cheap sanity check on renderer output
func looksLikeHTML(body []byte) bool {
	s := strings.ToLower(string(body))
	return strings.Contains(s, "<html") || strings.Contains(s, "<body")
}
