package crawler

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sjsage522/eventworker/internal/event"
)

func newTestSource(t *testing.T) *SourceConfig {
	t.Helper()
	src := &SourceConfig{
		Name:       "sydney",
		ListingURL: "https://www.sydney.com/events",
		Venue:      "Sydney, Australia",
		City:       "Sydney",
	}
	require.NoError(t, src.Prepare())
	return src
}

func newTestDocument(t *testing.T, html, pageURL string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	if pageURL != "" {
		doc.Url, err = url.Parse(pageURL)
		require.NoError(t, err)
	}
	return doc
}

func TestExtractFields_AllPresent(t *testing.T) {
	src := newTestSource(t)
	doc := newTestDocument(t, `<article><h3>Vivid Sydney</h3><time>1 Jun</time><img src="/a.jpg"><a href="/e/1">link</a></article>`,
		"https://www.sydney.com/events")

	raw := ExtractFields(doc.Find("article"), DocumentBase(doc), src.Fields)

	assert.Equal(t, Field{Value: "Vivid Sydney", Found: true}, raw.Title)
	assert.Equal(t, Field{Value: "1 Jun", Found: true}, raw.Date)
	assert.Equal(t, Field{Value: "https://www.sydney.com/a.jpg", Found: true}, raw.Image)
	assert.Equal(t, Field{Value: "https://www.sydney.com/e/1", Found: true}, raw.Link)
}

func TestExtractFields_NothingMatches(t *testing.T) {
	src := newTestSource(t)
	doc := newTestDocument(t, `<div class="card"><span>just text</span></div>`, "https://www.sydney.com/events")

	raw := ExtractFields(doc.Find(".card"), DocumentBase(doc), src.Fields)

	assert.False(t, raw.Title.Found)
	assert.False(t, raw.Date.Found)
	assert.False(t, raw.Image.Found)
	assert.False(t, raw.Link.Found)
}

func TestExtractFields_CascadePriority(t *testing.T) {
	src := newTestSource(t)

	testCases := []struct {
		name      string
		html      string
		wantTitle string
		wantDate  string
	}{
		{
			name:      "h3 wins over earlier h2",
			html:      `<div class="card"><h2>Secondary</h2><h3>Primary</h3><p>Some blurb</p><time>Fri 3 May</time></div>`,
			wantTitle: "Primary",
			wantDate:  "Fri 3 May",
		},
		{
			name:      "h2 when no h3",
			html:      `<div class="card"><span class="title">Styled</span><h2>Heading</h2><span class="date">Every Sunday</span><p>blurb</p></div>`,
			wantTitle: "Heading",
			wantDate:  "Every Sunday",
		},
		{
			name:      "title class and first paragraph as last resort",
			html:      `<div class="card"><div class="title">Harbour Lights</div><p>First para</p><p>Second para</p></div>`,
			wantTitle: "Harbour Lights",
			wantDate:  "First para",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc := newTestDocument(t, tc.html, "")
			raw := ExtractFields(doc.Find(".card"), nil, src.Fields)
			assert.Equal(t, tc.wantTitle, raw.Title.Value)
			assert.Equal(t, tc.wantDate, raw.Date.Value)
		})
	}
}

func TestExtractFields_VisibleText(t *testing.T) {
	src := newTestSource(t)
	doc := newTestDocument(t, `<article><h3>
		Sydney   Film
		<script>track()</script><style>.x{}</style>Festival
	</h3></article>`, "")

	raw := ExtractFields(doc.Find("article"), nil, src.Fields)
	assert.Equal(t, "Sydney Film Festival", raw.Title.Value)
}

func TestExtractFields_ElementWithoutAttribute(t *testing.T) {
	src := newTestSource(t)
	doc := newTestDocument(t, `<article><h3>Talk</h3><img alt="no source"><a name="anchor">here</a></article>`,
		"https://www.sydney.com/events")

	raw := ExtractFields(doc.Find("article"), DocumentBase(doc), src.Fields)

	assert.Equal(t, Field{Value: "", Found: true}, raw.Image)
	assert.Equal(t, Field{Value: "", Found: true}, raw.Link)
}

func TestExtractFields_CustomCascade(t *testing.T) {
	src := &SourceConfig{
		Name:       "custom",
		ListingURL: "https://example.com/whats-on",
		Fields: FieldCascades{
			Date:  Cascade{{Selector: "time[datetime]", Attr: "datetime"}, {Selector: ".when"}},
			Image: Cascade{{Selector: "img.lazy", Attr: "data-src"}, {Selector: "img"}},
		},
	}
	require.NoError(t, src.Prepare())

	doc := newTestDocument(t, `<li class="card"><h3>Gig</h3><time datetime="2026-06-01">1 Jun</time>
		<img class="lazy" src="placeholder.gif" data-src="//cdn.example.com/gig.jpg"></li>`, "https://example.com/whats-on")

	raw := ExtractFields(doc.Find(".card"), DocumentBase(doc), src.Fields)

	assert.Equal(t, "2026-06-01", raw.Date.Value)
	assert.Equal(t, "https://cdn.example.com/gig.jpg", raw.Image.Value)
	// unset cascades fall back to the defaults
	assert.Equal(t, "Gig", raw.Title.Value)
}

func TestDocumentBase(t *testing.T) {
	doc := newTestDocument(t, `<html><head><base href="/sub/"></head><body><article><a href="e/2">x</a></article></body></html>`,
		"https://www.sydney.com/events")

	base := DocumentBase(doc)
	require.NotNil(t, base)
	assert.Equal(t, "https://www.sydney.com/sub/", base.String())

	src := newTestSource(t)
	raw := ExtractFields(doc.Find("article"), base, src.Fields)
	assert.Equal(t, "https://www.sydney.com/sub/e/2", raw.Link.Value)

	assert.Nil(t, DocumentBase(nil))
}

func TestResolveURL(t *testing.T) {
	base, _ := url.Parse("https://www.sydney.com/events/")

	assert.Equal(t, "https://www.sydney.com/events/a.jpg", resolveURL(base, "a.jpg"))
	assert.Equal(t, "https://other.example.com/x", resolveURL(base, "https://other.example.com/x"))
	assert.Equal(t, "", resolveURL(base, ""))
	assert.Equal(t, "http://[::1", resolveURL(base, "http://[::1"))
}

func TestNormalize(t *testing.T) {
	src := newTestSource(t)

	rec := Normalize(RawFields{
		Title: Field{Value: "Vivid Sydney", Found: true},
		Date:  Field{Value: "1 Jun", Found: true},
		Image: Field{Value: "https://www.sydney.com/a.jpg", Found: true},
		Link:  Field{Value: "https://www.sydney.com/e/1", Found: true},
	}, src)

	assert.Equal(t, event.Event{
		Source:    "sydney",
		Title:     "Vivid Sydney",
		Date:      "1 Jun",
		Venue:     "Sydney, Australia",
		ImageURL:  "https://www.sydney.com/a.jpg",
		SourceURL: "https://www.sydney.com/e/1",
		City:      "Sydney",
		Status:    event.StatusNew,
	}, rec)
}

func TestNormalize_Sentinels(t *testing.T) {
	src := newTestSource(t)

	empty := Normalize(RawFields{}, src)
	assert.Equal(t, event.TitleNotFound, empty.Title)
	assert.Equal(t, event.DateTBA, empty.Date)
	assert.Equal(t, "", empty.ImageURL)
	assert.Equal(t, "", empty.SourceURL)
	assert.Equal(t, event.StatusNew, empty.Status)

	// an element that resolved but carried no text is no better than none
	blank := Normalize(RawFields{Title: Field{Found: true}, Date: Field{Found: true}}, src)
	assert.Equal(t, event.TitleNotFound, blank.Title)
	assert.Equal(t, event.DateTBA, blank.Date)
}

func TestExtractEvents_EmptyFirstMatchWins(t *testing.T) {
	src := newTestSource(t)
	doc := newTestDocument(t, `<article><h3> </h3><h2>Real Title</h2><time></time><p>1 Jun</p></article>`,
		"https://www.sydney.com/events")

	raw := ExtractFields(doc.Find("article"), nil, src.Fields)
	assert.True(t, raw.Title.Found)
	assert.Equal(t, "", raw.Title.Value)

	e := Normalize(raw, src)
	assert.Equal(t, event.TitleNotFound, e.Title)
	assert.Equal(t, event.DateTBA, e.Date)
	assert.False(t, e.HasTitle())
}
