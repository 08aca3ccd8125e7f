// Package source holds helpers shared by the feed.Source adapters in its
// subpackages: memory (seeded from YAML, writable), postgres and sqlite.
package source

import "github.com/JakeFAU/openfeeder/internal/feed"

// Normalize clamps paging arguments to sane values.
func Normalize(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	return page, limit
}

// Validate checks the fields every stored item must carry.
func Validate(item feed.Item) error {
	if item.URL == "" || item.URL[0] != '/' {
		return feed.InvalidURL("item url must be a relative path starting with /")
	}
	if item.Title == "" {
		return feed.InvalidParam("item title is required")
	}
	if item.PublishedAt.IsZero() {
		return feed.InvalidParam("item published_at is required")
	}
	return nil
}
