package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve"

	"github.com/JakeFAU/openfeeder/internal/feed"
)

// ChunkRanker scores the chunks of one item against a query with a
// throwaway index. Scores are normalized to [0, 1] by the best hit; chunks
// that do not match score 0.
type ChunkRanker struct{}

var _ feed.Ranker = ChunkRanker{}

// Rank returns one score per chunk, in chunk order.
func (ChunkRanker) Rank(ctx context.Context, query string, chunks []feed.Chunk) ([]float64, error) {
	scores := make([]float64, len(chunks))
	if query == "" || len(chunks) == 0 {
		return scores, nil
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create rank index: %w", err)
	}
	defer func() { _ = idx.Close() }()

	batch := idx.NewBatch()
	for n, c := range chunks {
		if err := batch.Index(strconv.Itoa(n), document{Text: c.Text}); err != nil {
			return nil, fmt.Errorf("index chunk %d: %w", n, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("apply rank batch: %w", err)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), len(chunks), 0, false)
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("rank %q: %w", query, err)
	}
	if len(res.Hits) == 0 {
		return scores, nil
	}
	best := res.Hits[0].Score
	for _, h := range res.Hits {
		n, err := strconv.Atoi(h.ID)
		if err != nil || n < 0 || n >= len(scores) || best <= 0 {
			continue
		}
		scores[n] = h.Score / best
	}
	return scores, nil
}
