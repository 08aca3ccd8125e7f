// Package memory is an in-process content source. It is seeded from a YAML
// (or JSON, which YAML accepts) file and accepts pushed changes, which makes
// it the default backend for development and for hosts that forward their
// content over the events endpoint.
package memory

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/openfeeder/internal/feed"
	"github.com/JakeFAU/openfeeder/internal/source"
)

// Source keeps items keyed by URL.
type Source struct {
	mu    sync.RWMutex
	items map[string]feed.Item
}

var (
	_ feed.Source = (*Source)(nil)
	_ feed.Writer = (*Source)(nil)
)

// New returns a source containing items.
func New(items ...feed.Item) *Source {
	s := &Source{items: make(map[string]feed.Item, len(items))}
	for _, it := range items {
		s.items[it.URL] = normalize(it)
	}
	return s
}

type seedFile struct {
	Items []feed.Item `yaml:"items"`
}

// Load reads a seed document of the form `items: [...]`.
func Load(r io.Reader) (*Source, error) {
	var seed seedFile
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for _, it := range seed.Items {
		if err := source.Validate(it); err != nil {
			return nil, fmt.Errorf("seed item %q: %w", it.URL, err)
		}
	}
	return New(seed.Items...), nil
}

// LoadFile opens path and calls Load. An empty path yields an empty source.
func LoadFile(path string) (*Source, error) {
	if path == "" {
		return New(), nil
	}
	// #nosec G304 -- seed path comes from operator configuration.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// GetItems returns one page of items ordered by publication date, newest first.
func (s *Source) GetItems(_ context.Context, page, limit int) (feed.Page, error) {
	page, limit = source.Normalize(page, limit)
	all := s.sorted(func(a, b feed.Item) bool { return a.PublishedAt.After(b.PublishedAt) })
	start := (page - 1) * limit
	if start >= len(all) {
		return feed.Page{Items: []feed.Item{}, Total: len(all)}, nil
	}
	end := min(start+limit, len(all))
	return feed.Page{Items: all[start:end], Total: len(all)}, nil
}

// GetItem looks up one item.
func (s *Source) GetItem(_ context.Context, url string) (feed.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[url]
	if !ok {
		return feed.Item{}, feed.ErrNotFound
	}
	return it, nil
}

// ListModified returns items updated within [since, until]. A zero until is
// unbounded.
func (s *Source) ListModified(_ context.Context, since, until time.Time) ([]feed.Item, error) {
	all := s.sorted(func(a, b feed.Item) bool { return a.UpdatedAt.After(b.UpdatedAt) })
	out := make([]feed.Item, 0, len(all))
	for _, it := range all {
		if it.UpdatedAt.Before(since) {
			continue
		}
		if !until.IsZero() && it.UpdatedAt.After(until) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// Put inserts or replaces an item.
func (s *Source) Put(_ context.Context, item feed.Item) error {
	if err := source.Validate(item); err != nil {
		return err
	}
	s.mu.Lock()
	s.items[item.URL] = normalize(item)
	s.mu.Unlock()
	return nil
}

// Delete removes an item; deleting a missing item returns feed.ErrNotFound.
func (s *Source) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[url]; !ok {
		return feed.ErrNotFound
	}
	delete(s.items, url)
	return nil
}

func (s *Source) sorted(less func(a, b feed.Item) bool) []feed.Item {
	s.mu.RLock()
	out := make([]feed.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if less(out[i], out[j]) {
			return true
		}
		if less(out[j], out[i]) {
			return false
		}
		return out[i].URL < out[j].URL
	})
	return out
}

func normalize(it feed.Item) feed.Item {
	it.PublishedAt = it.PublishedAt.UTC()
	if it.UpdatedAt.IsZero() {
		it.UpdatedAt = it.PublishedAt
	}
	it.UpdatedAt = it.UpdatedAt.UTC()
	return it
}
