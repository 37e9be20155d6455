// Package source defines the upstream collaborator contract: given a query,
// a source yields a finite set of candidate items, each with a stable
// canonical id used as the deduplication key, and can fetch the raw content
// behind an item.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/incidentwire/incidentwire/pkg/types"
)

// ErrUnavailable indicates a source failed to enumerate items. The session
// skips the source and continues with the others.
var ErrUnavailable = errors.New("source: unavailable")

// Source is one configured content source.
type Source interface {
	// Name identifies the source in provenance and progress text.
	Name() string

	// Discover enumerates candidate items for the query.
	Discover(ctx context.Context, q types.Query) ([]types.SourceItem, error)

	// Fetch retrieves the raw content behind a discovered item.
	Fetch(ctx context.Context, item types.SourceItem) (string, error)
}

// Definition is the yaml shape of one configured source.
type Definition struct {
	Name          string  `yaml:"name"`
	SearchURL     string  `yaml:"search_url"`
	ItemSelector  string  `yaml:"item_selector"`
	LinkSelector  string  `yaml:"link_selector"`
	TitleSelector string  `yaml:"title_selector"`
	BodySelector  string  `yaml:"body_selector"`
	RatePerSecond float64 `yaml:"rate_per_second"`
}

type registryFile struct {
	Sources []Definition `yaml:"sources"`
}

// LoadDefinitions reads a yaml source registry file.
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: read registry: %w", err)
	}
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("source: parse registry: %w", err)
	}
	for i, def := range file.Sources {
		if def.Name == "" || def.SearchURL == "" {
			return nil, fmt.Errorf("source: registry entry %d missing name or search_url", i)
		}
	}
	return file.Sources, nil
}

// BuildAll constructs HTML sources from definitions.
func BuildAll(defs []Definition) []Source {
	sources := make([]Source, 0, len(defs))
	for _, def := range defs {
		sources = append(sources, NewHTMLSource(def))
	}
	return sources
}

// CanonicalID normalizes a resource URL into the id used for deduplication:
// lowercase scheme and host, no fragment, no trailing slash. A URL that
// fails to parse is used verbatim so the item is still processable.
func CanonicalID(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	s := u.String()
	return strings.TrimRight(s, "/")
}
