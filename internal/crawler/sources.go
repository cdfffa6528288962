package crawler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"sjsage522/eventworker/pkg/errors"
)

// sourcesFile is the on-disk layout of a sources file
type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// DefaultSources returns the built-in source used when no sources file is configured
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{
			Name:       "sydney",
			ListingURL: "https://www.sydney.com/events",
			Venue:      "Sydney, Australia",
			City:       "Sydney",
		},
	}
}

// LoadSources reads and prepares the sources listed in a YAML file.
// An empty path yields the built-in defaults.
func LoadSources(path string) ([]SourceConfig, error) {
	var sources []SourceConfig
	if path == "" {
		sources = DefaultSources()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading sources file: %w", err)
		}
		sources, err = ParseSources(data)
		if err != nil {
			return nil, err
		}
	}

	if err := PrepareSources(sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// ParseSources decodes a YAML sources document without preparing it
func ParseSources(data []byte) ([]SourceConfig, error) {
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing sources file: %w", err)
	}
	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("sources file lists no sources")
	}
	return file.Sources, nil
}

// PrepareSources prepares every source and rejects duplicate names
func PrepareSources(sources []SourceConfig) error {
	seen := make(map[string]bool, len(sources))
	for i := range sources {
		if err := sources[i].Prepare(); err != nil {
			return err
		}
		if seen[sources[i].Name] {
			return errors.NewValidation(sources[i].Name, "duplicate source name")
		}
		seen[sources[i].Name] = true
	}
	return nil
}

// FindSource returns the source with the given name
func FindSource(sources []SourceConfig, name string) (*SourceConfig, bool) {
	for i := range sources {
		if sources[i].Name == name {
			return &sources[i], true
		}
	}
	return nil, false
}
