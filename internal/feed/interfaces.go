package feed

import (
	"context"
	"time"
)

// Source is the narrow capability every host platform adapter implements.
// Implementations must only return publicly visible items.
type Source interface {
	// GetItems returns one page (1-based) of items, newest first.
	GetItems(ctx context.Context, page, limit int) (Page, error)
	// GetItem returns the item at url or ErrNotFound.
	GetItem(ctx context.Context, url string) (Item, error)
	// ListModified returns items whose UpdatedAt falls within [since, until],
	// most recently updated first.
	ListModified(ctx context.Context, since, until time.Time) ([]Item, error)
}

// Writer is implemented by sources that accept changes pushed through the
// events endpoint instead of owning their own storage.
type Writer interface {
	Put(ctx context.Context, item Item) error
	Delete(ctx context.Context, url string) error
}

// TombstoneLog is the append-only, bounded record of deletions.
type TombstoneLog interface {
	Append(ctx context.Context, url string, at time.Time) error
	// Since returns tombstones with DeletedAt >= t, newest first.
	Since(ctx context.Context, t time.Time) ([]Tombstone, error)
}

// Ranker scores chunks against a query. It is an optional capability; when
// absent every chunk relevance stays nil.
type Ranker interface {
	Rank(ctx context.Context, query string, chunks []Chunk) ([]float64, error)
}

// Hasher computes digests for chunk ids and ETags.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces random identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
