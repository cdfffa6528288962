package crawler

import (
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// LocateCards returns every element of doc matched by any of the source's card
// selectors, in document order. An element matching several selectors is
// returned once per selector; low quality matches are weeded out later by the
// title rule. The source must be prepared.
func LocateCards(doc *goquery.Document, src *SourceConfig) []*goquery.Selection {
	if doc == nil || !src.prepared() {
		return nil
	}

	var cards []*goquery.Selection
	for _, root := range doc.Nodes {
		walkElements(root, func(n *html.Node) {
			for _, m := range src.cardMatchers {
				if m.Match(n) {
					cards = append(cards, doc.FindNodes(n))
				}
			}
		})
	}

	return cards
}

// walkElements visits the element nodes below n in document order
func walkElements(n *html.Node, visit func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			visit(c)
		}
		walkElements(c, visit)
	}
}
