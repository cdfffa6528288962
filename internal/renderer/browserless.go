package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"sjsage522/eventworker/logger"
	"sjsage522/eventworker/pkg/errors"
)

// Browserless renders pages in a headless Chrome exposed by a browserless instance
type Browserless struct {
	addr   string
	token  string
	client *http.Client
}

type gotoOptions struct {
	WaitUntil string `json:"waitUntil"`
	Timeout   int64  `json:"timeout,omitempty"`
}

type contentRequest struct {
	URL         string      `json:"url"`
	GotoOptions gotoOptions `json:"gotoOptions"`
}

// NewBrowserless creates a renderer talking to the browserless API at addr
func NewBrowserless(addr, token string) *Browserless {
	return &Browserless{
		addr:  strings.TrimRight(addr, "/"),
		token: token,
		// the context deadline bounds each render
		client: &http.Client{},
	}
}

// Ping checks that the browserless instance answers at all
func (b *Browserless) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.addr, nil)
	if err != nil {
		return fmt.Errorf("failed to create ping request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("browserless unreachable at %s: %w", b.addr, err)
	}
	resp.Body.Close()

	return nil
}

func (b *Browserless) endpoint() string {
	endpoint := b.addr + "/content"
	if b.token != "" {
		endpoint += "?token=" + url.QueryEscape(b.token)
	}
	return endpoint
}

// Render loads pageURL in the browser and returns the serialized DOM once the
// wait condition is met
func (b *Browserless) Render(ctx context.Context, pageURL string, opts Options) (*goquery.Document, error) {
	log := logger.ForRenderer()

	payload := contentRequest{
		URL: pageURL,
		GotoOptions: gotoOptions{
			WaitUntil: opts.Wait.puppeteer(),
			Timeout:   opts.NavigationTimeout.Milliseconds(),
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewRender(pageURL, "failed to marshal content payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint(), bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewRender(pageURL, "failed to create content request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug().
		Str("url", pageURL).
		Str("wait_until", payload.GotoOptions.WaitUntil).
		Msg("Rendering with browserless")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, classify(ctx, pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, pageURL, err)
	}

	switch {
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return nil, errors.NewRenderTimeout(pageURL, opts.NavigationTimeout,
			fmt.Errorf("browserless returned status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, errors.NewRender(pageURL,
			fmt.Sprintf("browserless returned non-OK status: %d", resp.StatusCode), nil)
	}

	if len(body) == 0 || !looksLikeHTML(body) {
		return nil, errors.NewRender(pageURL,
			fmt.Sprintf("invalid or empty HTML response from browserless (received %d bytes)", len(body)), nil)
	}

	log.Debug().
		Str("url", pageURL).
		Int("bytes", len(body)).
		Msg("Rendered page")

	return NewDocument(bytes.NewReader(body), pageURL)
}
