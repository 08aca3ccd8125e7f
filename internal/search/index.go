// Package search keeps an in-memory full-text index of published items and
// answers the q= mode of the content endpoint.
package search

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve"
	"go.uber.org/zap"

	"github.com/JakeFAU/openfeeder/internal/chunker"
	"github.com/JakeFAU/openfeeder/internal/feed"
)

const rebuildPageSize = 100

// Hit is one search result.
type Hit struct {
	URL   string
	Score float64
}

type document struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Index wraps a memory-only bleve index keyed by item URL.
type Index struct {
	idx    bleve.Index
	logger *zap.Logger
}

// New creates an empty index.
func New(logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}
	return &Index{idx: idx, logger: logger}, nil
}

// Close releases the index.
func (i *Index) Close() error {
	return i.idx.Close()
}

// Index adds or replaces an item.
func (i *Index) Index(item feed.Item) error {
	doc := document{Title: item.Title, Text: chunker.Clean(item.Body)}
	if err := i.idx.Index(item.URL, doc); err != nil {
		return fmt.Errorf("index %s: %w", item.URL, err)
	}
	return nil
}

// Delete removes an item.
func (i *Index) Delete(url string) error {
	if err := i.idx.Delete(url); err != nil {
		return fmt.Errorf("unindex %s: %w", url, err)
	}
	return nil
}

// Count reports the number of indexed documents.
func (i *Index) Count() (uint64, error) {
	return i.idx.DocCount()
}

// Search runs a match query over title and text and returns at most limit
// hits, best first.
func (i *Index) Search(ctx context.Context, q string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), limit, 0, false)
	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{URL: h.ID, Score: h.Score})
	}
	return hits, nil
}

// Rebuild pages through src and indexes every item.
func (i *Index) Rebuild(ctx context.Context, src feed.Source) (int, error) {
	n := 0
	for page := 1; ; page++ {
		p, err := src.GetItems(ctx, page, rebuildPageSize)
		if err != nil {
			return n, fmt.Errorf("rebuild page %d: %w", page, err)
		}
		batch := i.idx.NewBatch()
		for _, it := range p.Items {
			if err := batch.Index(it.URL, document{Title: it.Title, Text: chunker.Clean(it.Body)}); err != nil {
				return n, fmt.Errorf("batch %s: %w", it.URL, err)
			}
		}
		if err := i.idx.Batch(batch); err != nil {
			return n, fmt.Errorf("apply batch: %w", err)
		}
		n += len(p.Items)
		if len(p.Items) < rebuildPageSize || n >= p.Total {
			break
		}
	}
	i.logger.Info("search index rebuilt", zap.Int("items", n))
	return n, nil
}
