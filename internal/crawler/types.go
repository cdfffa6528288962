package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/pkg/errors"
)

// Crawler interface defines the contract for all crawler implementations
type Crawler interface {
	// FetchEvents renders the listing page and extracts its event cards
	FetchEvents(ctx context.Context) ([]event.Event, error)

	// GetName returns the crawler's name for logging and identification
	GetName() string
}

// Strategy is one step of a field cascade: the first element under the card
// matching Selector wins and Attr is read from it. An empty Attr reads the
// element's visible text.
type Strategy struct {
	Selector string `yaml:"selector"`
	Attr     string `yaml:"attr,omitempty"`

	matcher cascadia.Selector
}

// UnmarshalYAML accepts either a bare selector string or a mapping
func (s *Strategy) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Selector = node.Value
		return nil
	}

	type plain Strategy
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = Strategy(p)
	return nil
}

func (s *Strategy) compile() error {
	m, err := cascadia.Compile(s.Selector)
	if err != nil {
		return fmt.Errorf("invalid selector %q: %w", s.Selector, err)
	}
	s.matcher = m
	return nil
}

// Cascade is an ordered list of strategies, most specific markup first
type Cascade []Strategy

// FieldCascades holds the cascade used for every extracted field
type FieldCascades struct {
	Title Cascade `yaml:"title"`
	Date  Cascade `yaml:"date"`
	Image Cascade `yaml:"image"`
	Link  Cascade `yaml:"link"`
}

// SourceConfig describes one listing page and the markup vocabulary used on it
type SourceConfig struct {
	Name          string        `yaml:"name"`
	ListingURL    string        `yaml:"listing_url"`
	Venue         string        `yaml:"venue"`
	City          string        `yaml:"city"`
	CardSelectors []string      `yaml:"card_selectors"`
	Fields        FieldCascades `yaml:"fields"`

	cardMatchers []cascadia.Selector
}

// Default selector vocabularies, used for anything a source leaves unset
var (
	DefaultCardSelectors = []string{".item-list-item", "article", ".card"}

	DefaultFieldCascades = FieldCascades{
		Title: Cascade{{Selector: "h3"}, {Selector: "h2"}, {Selector: ".title"}},
		Date:  Cascade{{Selector: "time"}, {Selector: ".date"}, {Selector: "p"}},
		Image: Cascade{{Selector: "img", Attr: "src"}},
		Link:  Cascade{{Selector: "a", Attr: "href"}},
	}
)

// Prepare fills defaults, validates the source and compiles its selectors.
// It must be called before the source is used for extraction.
func (s *SourceConfig) Prepare() error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return errors.NewValidation("", "source name is required")
	}
	if strings.TrimSpace(s.ListingURL) == "" {
		return errors.NewValidation(s.Name, "listing_url is required")
	}

	if len(s.CardSelectors) == 0 {
		s.CardSelectors = append([]string(nil), DefaultCardSelectors...)
	}
	s.Fields.Title = orDefault(s.Fields.Title, DefaultFieldCascades.Title)
	s.Fields.Date = orDefault(s.Fields.Date, DefaultFieldCascades.Date)
	s.Fields.Image = withAttr(orDefault(s.Fields.Image, DefaultFieldCascades.Image), "src")
	s.Fields.Link = withAttr(orDefault(s.Fields.Link, DefaultFieldCascades.Link), "href")

	s.cardMatchers = make([]cascadia.Selector, 0, len(s.CardSelectors))
	for _, sel := range s.CardSelectors {
		m, err := cascadia.Compile(sel)
		if err != nil {
			return errors.NewConfiguration(fmt.Sprintf("source %s: invalid card selector %q", s.Name, sel), err)
		}
		s.cardMatchers = append(s.cardMatchers, m)
	}

	for _, cascade := range []Cascade{s.Fields.Title, s.Fields.Date, s.Fields.Image, s.Fields.Link} {
		for i := range cascade {
			if err := cascade[i].compile(); err != nil {
				return errors.NewConfiguration("source "+s.Name, err)
			}
		}
	}

	return nil
}

// prepared reports whether Prepare has run successfully
func (s *SourceConfig) prepared() bool {
	return len(s.cardMatchers) == len(s.CardSelectors) && len(s.cardMatchers) > 0
}

// orDefault returns a private copy of c, or of def when c is empty
func orDefault(c, def Cascade) Cascade {
	if len(c) == 0 {
		c = def
	}
	return append(Cascade(nil), c...)
}

// withAttr sets attr on strategies that do not name one; URL fields always read an attribute
func withAttr(c Cascade, attr string) Cascade {
	for i := range c {
		if c[i].Attr == "" {
			c[i].Attr = attr
		}
	}
	return c
}
