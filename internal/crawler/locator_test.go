package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardTexts(t *testing.T, html string, selectors ...string) []string {
	t.Helper()
	src := &SourceConfig{Name: "test", ListingURL: "https://example.com", CardSelectors: selectors}
	require.NoError(t, src.Prepare())

	var texts []string
	for _, card := range LocateCards(newTestDocument(t, html, ""), src) {
		texts = append(texts, card.AttrOr("id", ""))
	}
	return texts
}

func TestLocateCards_UnionInDocumentOrder(t *testing.T) {
	html := `<body>
		<div class="card" id="c1"></div>
		<article id="a1"></article>
		<li class="item-list-item" id="i1"></li>
		<div class="card" id="c2"></div>
	</body>`

	got := cardTexts(t, html, ".item-list-item", "article", ".card")
	assert.Equal(t, []string{"c1", "a1", "i1", "c2"}, got)
}

func TestLocateCards_SecondSelectorOnly(t *testing.T) {
	html := `<body><section><article id="a1"></article><article id="a2"></article></section></body>`

	got := cardTexts(t, html, ".item-list-item", "article", ".card")
	assert.Equal(t, []string{"a1", "a2"}, got)
}

func TestLocateCards_NoDeduplication(t *testing.T) {
	html := `<body><article class="card" id="both"></article><div class="card" id="only"></div></body>`

	got := cardTexts(t, html, ".item-list-item", "article", ".card")
	assert.Equal(t, []string{"both", "both", "only"}, got)
}

func TestLocateCards_Empty(t *testing.T) {
	got := cardTexts(t, `<body><p>No events this week</p></body>`, ".item-list-item", "article", ".card")
	assert.Empty(t, got)

	src := newTestSource(t)
	assert.Empty(t, LocateCards(nil, src))
}

func TestLocateCards_Unprepared(t *testing.T) {
	src := &SourceConfig{Name: "raw", CardSelectors: []string{"article"}}
	assert.Nil(t, LocateCards(newTestDocument(t, `<article></article>`, ""), src))
}
