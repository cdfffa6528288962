package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nonVisible are removed before reading an element's text
const nonVisible = "script, style, noscript, template"

// Field is an optionally extracted value
type Field struct {
	Value string
	Found bool
}

// Or returns the value, or fallback when nothing usable was extracted
func (f Field) Or(fallback string) string {
	if !f.Found || f.Value == "" {
		return fallback
	}
	return f.Value
}

// RawFields holds what the cascades found on a single card
type RawFields struct {
	Title Field
	Date  Field
	Image Field
	Link  Field
}

// ExtractFields applies each field's cascade to card. Missing markup leaves the
// field unfound; it is never an error. base anchors relative image and link
// URLs and may be nil.
func ExtractFields(card *goquery.Selection, base *url.URL, fields FieldCascades) RawFields {
	return RawFields{
		Title: firstMatch(card, fields.Title, nil),
		Date:  firstMatch(card, fields.Date, nil),
		Image: firstMatch(card, fields.Image, base),
		Link:  firstMatch(card, fields.Link, base),
	}
}

// firstMatch walks the cascade and reads the property of the first element found.
// A non-nil base marks a URL field.
func firstMatch(card *goquery.Selection, cascade Cascade, base *url.URL) Field {
	for _, strategy := range cascade {
		el := findFirst(card, strategy)
		if el.Length() == 0 {
			continue
		}

		if strategy.Attr == "" {
			return Field{Value: visibleText(el), Found: true}
		}

		value, _ := el.Attr(strategy.Attr)
		value = strings.TrimSpace(value)
		if base != nil {
			value = resolveURL(base, value)
		}
		return Field{Value: value, Found: true}
	}

	return Field{}
}

func findFirst(card *goquery.Selection, strategy Strategy) *goquery.Selection {
	if strategy.matcher != nil {
		return card.FindMatcher(strategy.matcher).First()
	}
	return card.Find(strategy.Selector).First()
}

// visibleText approximates innerText: hidden content is dropped and
// whitespace runs collapse into single spaces
func visibleText(el *goquery.Selection) string {
	clone := el.Clone()
	clone.Find(nonVisible).Remove()
	return strings.Join(strings.Fields(clone.Text()), " ")
}

// DocumentBase returns the URL relative references on doc resolve against,
// honouring a <base href> element
func DocumentBase(doc *goquery.Document) *url.URL {
	if doc == nil {
		return nil
	}

	base := doc.Url
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
			if base != nil {
				return base.ResolveReference(u)
			}
			if u.IsAbs() {
				return u
			}
		}
	}
	return base
}

// resolveURL makes raw absolute against base. Values that do not parse are
// returned unchanged, the way a browser reports them.
func resolveURL(base *url.URL, raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(u).String()
}
