// Package cache defines the response cache contract shared by the memory and
// redis implementations. Entries are addressed by (route kind, identity,
// page) and grouped under tags so that one content change can clear every
// denormalized index page at once.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultTTL bounds how long a computed response may be served.
const DefaultTTL = time.Hour

// Kind names the route a cached payload belongs to.
type Kind string

// Cached route kinds.
const (
	KindIndex Kind = "index"
	KindItem  Kind = "item"
)

const tagPrefix = "tag:"

// TagIndex groups every paginated index page.
const TagIndex = tagPrefix + "index"

// IsTag reports whether keyOrTag names a tag rather than a single key.
func IsTag(keyOrTag string) bool {
	return strings.HasPrefix(keyOrTag, tagPrefix)
}

// Key identifies one cached response.
type Key struct {
	Kind     Kind
	Identity string
	Page     int
}

// String renders the key in its storage form.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%d", k.Kind, k.Identity, k.Page)
}

// Tags lists the invalidation tags the key is registered under.
func (k Key) Tags() []string {
	switch k.Kind {
	case KindIndex:
		return []string{TagIndex}
	case KindItem:
		return []string{ItemTag(k.Identity)}
	default:
		return nil
	}
}

// ItemTag is the tag covering every cached page of one item.
func ItemTag(url string) string {
	return tagPrefix + "item:" + url
}

// Entry is a cache hit. Age is always populated so callers can disclose it.
type Entry struct {
	Payload   []byte
	CreatedAt time.Time
	Age       time.Duration
}

// Store is a TTL-bounded key/value store for computed responses.
type Store interface {
	// Get returns the entry for key; ok is false on a miss or once the TTL
	// has elapsed.
	Get(ctx context.Context, key Key) (entry Entry, ok bool, err error)
	// Set stores payload under key and registers it with the key's tags.
	Set(ctx context.Context, key Key, payload []byte) error
	// Invalidate removes a single key (in String form) or every key
	// registered under a tag.
	Invalidate(ctx context.Context, keyOrTag string) error
}

// InvalidateItem clears the item's own entries and every index page, since
// index pages are snapshots that embed the item.
func InvalidateItem(ctx context.Context, s Store, url string) error {
	if err := s.Invalidate(ctx, ItemTag(url)); err != nil {
		return fmt.Errorf("invalidate item %s: %w", url, err)
	}
	if err := s.Invalidate(ctx, TagIndex); err != nil {
		return fmt.Errorf("invalidate index: %w", err)
	}
	return nil
}
