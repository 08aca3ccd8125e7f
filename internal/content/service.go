// Package content serves the index, item and search modes of the content
// endpoint and applies content change events. It owns the cache-aside flow:
// consult the cache, otherwise fetch from the source, chunk, serialize and
// store.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/openfeeder/internal/cache"
	"github.com/JakeFAU/openfeeder/internal/chunker"
	"github.com/JakeFAU/openfeeder/internal/feed"
	"github.com/JakeFAU/openfeeder/internal/notify"
	"github.com/JakeFAU/openfeeder/internal/search"
)

// Paging limits.
const (
	DefaultLimit       = 10
	MaxLimit           = 100
	MaxSearchLimit     = 50
	defaultSummaryWord = 40
)

// Searcher is the full-text index the service keeps in step with changes.
type Searcher interface {
	Search(ctx context.Context, q string, limit int) ([]search.Hit, error)
	Index(item feed.Item) error
	Delete(url string) error
}

// Observer receives cache outcomes, typically for metrics.
type Observer interface {
	CacheResult(kind cache.Kind, hit bool)
}

// Payload is a serialized response plus how it was produced.
type Payload struct {
	Body []byte
	Hit  bool
	Age  time.Duration
}

// Summary is the compact wire form of an item used by index and search.
type Summary struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Author    string    `json:"author,omitempty"`
	Published time.Time `json:"published"`
	Updated   time.Time `json:"updated"`
	Summary   string    `json:"summary"`
	Score     *float64  `json:"score,omitempty"`
}

// Pagination describes an index page.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// IndexDocument is the index-mode response.
type IndexDocument struct {
	Version    string     `json:"openfeeder_version"`
	Items      []Summary  `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// ItemDocument is the item-mode response.
type ItemDocument struct {
	Version   string       `json:"openfeeder_version"`
	URL       string       `json:"url"`
	Title     string       `json:"title"`
	Author    string       `json:"author,omitempty"`
	Published time.Time    `json:"published"`
	Updated   time.Time    `json:"updated"`
	Summary   string       `json:"summary"`
	Chunks    []feed.Chunk `json:"chunks"`
	Meta      ItemMeta     `json:"meta"`
}

// ItemMeta carries chunk bookkeeping.
type ItemMeta struct {
	TotalChunks int    `json:"total_chunks"`
	Query       string `json:"query,omitempty"`
}

// SearchDocument is the search-mode response.
type SearchDocument struct {
	Version string    `json:"openfeeder_version"`
	Query   string    `json:"query"`
	Items   []Summary `json:"items"`
	Total   int       `json:"total"`
}

// Deps wires a Service. Writer, Searcher, Ranker, Events and Observer are optional.
type Deps struct {
	Source       feed.Source
	Writer       feed.Writer
	Cache        cache.Store
	Chunker      *chunker.Chunker
	Tombstones   feed.TombstoneLog
	Searcher     Searcher
	Ranker       feed.Ranker
	Events       notify.Emitter
	Observer     Observer
	Clock        feed.Clock
	Logger       *zap.Logger
	SummaryWords int
}

// Service implements the content serving path.
type Service struct {
	d Deps
}

// New validates deps.
func New(d Deps) (*Service, error) {
	switch {
	case d.Source == nil:
		return nil, errors.New("content source is required")
	case d.Cache == nil:
		return nil, errors.New("cache is required")
	case d.Chunker == nil:
		return nil, errors.New("chunker is required")
	case d.Tombstones == nil:
		return nil, errors.New("tombstone log is required")
	case d.Clock == nil:
		return nil, errors.New("clock is required")
	}
	if d.Events == nil {
		d.Events = notify.Discard{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.SummaryWords <= 0 {
		d.SummaryWords = defaultSummaryWord
	}
	return &Service{d: d}, nil
}

// Writable reports whether change events can carry item bodies.
func (s *Service) Writable() bool {
	return s.d.Writer != nil
}

// Index returns one cached index page.
func (s *Service) Index(ctx context.Context, page, limit int) (Payload, error) {
	if page < 1 {
		return Payload{}, feed.InvalidParam("page must be a positive integer")
	}
	if limit < 1 || limit > MaxLimit {
		return Payload{}, feed.InvalidParam("limit must be between 1 and %d", MaxLimit)
	}
	key := cache.Key{Kind: cache.KindIndex, Identity: fmt.Sprintf("limit=%d", limit), Page: page}
	return s.cached(ctx, key, func() (any, error) {
		p, err := s.d.Source.GetItems(ctx, page, limit)
		if err != nil {
			return nil, feed.Internal(err, "content source failure")
		}
		doc := IndexDocument{
			Version: feed.Version,
			Items:   make([]Summary, 0, len(p.Items)),
			Pagination: Pagination{
				Page:       page,
				Limit:      limit,
				Total:      p.Total,
				TotalPages: (p.Total + limit - 1) / limit,
			},
		}
		for _, it := range p.Items {
			doc.Items = append(doc.Items, s.summary(it))
		}
		return doc, nil
	})
}

// Item returns the chunked item at rawURL. With a query and a configured
// ranker the chunks carry relevance scores and the cache is bypassed.
func (s *Service) Item(ctx context.Context, rawURL, query string) (Payload, error) {
	path, err := CleanPath(rawURL)
	if err != nil {
		return Payload{}, err
	}
	build := func() (any, error) { return s.itemDocument(ctx, path, query) }
	if query != "" && s.d.Ranker != nil {
		v, err := build()
		if err != nil {
			return Payload{}, err
		}
		body, err := json.Marshal(v)
		if err != nil {
			return Payload{}, feed.Internal(err, "encode response")
		}
		return Payload{Body: body}, nil
	}
	return s.cached(ctx, cache.Key{Kind: cache.KindItem, Identity: path, Page: 1}, build)
}

func (s *Service) itemDocument(ctx context.Context, path, query string) (*ItemDocument, error) {
	it, err := s.d.Source.GetItem(ctx, path)
	if errors.Is(err, feed.ErrNotFound) {
		return nil, feed.NotFound("no content at %s", path)
	}
	if err != nil {
		return nil, feed.Internal(err, "content source failure")
	}
	chunks, err := s.d.Chunker.Chunk(it.URL, it.Body)
	if err != nil {
		return nil, feed.Internal(err, "chunking failed")
	}
	if query != "" && s.d.Ranker != nil && len(chunks) > 0 {
		scores, err := s.d.Ranker.Rank(ctx, query, chunks)
		if err != nil {
			s.d.Logger.Warn("chunk ranking failed", zap.Error(err), zap.String("url", path))
		} else if len(scores) == len(chunks) {
			for i := range chunks {
				score := scores[i]
				chunks[i].Relevance = &score
			}
		}
	}
	sum := s.summary(it)
	return &ItemDocument{
		Version:   feed.Version,
		URL:       it.URL,
		Title:     it.Title,
		Author:    it.Author,
		Published: sum.Published,
		Updated:   sum.Updated,
		Summary:   sum.Summary,
		Chunks:    chunks,
		Meta:      ItemMeta{TotalChunks: len(chunks), Query: query},
	}, nil
}

// Search answers q= requests through the full-text index. Hits that no
// longer resolve in the source are skipped.
func (s *Service) Search(ctx context.Context, q string, limit int) (Payload, error) {
	if s.d.Searcher == nil {
		return Payload{}, feed.InvalidParam("search is not enabled on this site")
	}
	if limit < 1 || limit > MaxSearchLimit {
		return Payload{}, feed.InvalidParam("limit must be between 1 and %d", MaxSearchLimit)
	}
	hits, err := s.d.Searcher.Search(ctx, q, limit)
	if err != nil {
		return Payload{}, feed.Internal(err, "search failure")
	}
	doc := SearchDocument{Version: feed.Version, Query: q, Items: make([]Summary, 0, len(hits))}
	for _, h := range hits {
		it, err := s.d.Source.GetItem(ctx, h.URL)
		if errors.Is(err, feed.ErrNotFound) {
			continue
		}
		if err != nil {
			return Payload{}, feed.Internal(err, "content source failure")
		}
		sum := s.summary(it)
		score := h.Score
		sum.Score = &score
		doc.Items = append(doc.Items, sum)
	}
	doc.Total = len(doc.Items)
	body, err := json.Marshal(doc)
	if err != nil {
		return Payload{}, feed.Internal(err, "encode response")
	}
	return Payload{Body: body}, nil
}

// RecordChange applies a content mutation: the writable source is updated
// when present, cached entries for the item and every index page are
// dropped, deletions are tombstoned and the search index follows along.
// The notification is emitted without waiting on any sink.
func (s *Service) RecordChange(ctx context.Context, ev feed.ChangeEvent) error {
	if !ev.Kind.Valid() {
		return feed.InvalidParam("unknown change type %q", ev.Kind)
	}
	path, err := CleanPath(ev.URL)
	if err != nil {
		return err
	}
	ev.URL = path
	if ev.At.IsZero() {
		ev.At = s.d.Clock.Now()
	}
	ev.At = ev.At.UTC()

	if err := s.applyToWriter(ctx, ev); err != nil {
		return err
	}
	if err := cache.InvalidateItem(ctx, s.d.Cache, ev.URL); err != nil {
		return feed.Internal(err, "cache invalidation failed")
	}
	if ev.Kind == feed.ChangeDeleted {
		if err := s.d.Tombstones.Append(ctx, ev.URL, ev.At); err != nil {
			return feed.Internal(err, "tombstone append failed")
		}
	}
	s.updateSearch(ctx, ev)

	s.d.Events.Emit(notify.Event{Kind: notify.ChangeKind(ev.Kind), TS: ev.At, URL: ev.URL})
	s.d.Logger.Info("content change recorded", zap.String("type", string(ev.Kind)), zap.String("url", ev.URL))
	return nil
}

func (s *Service) applyToWriter(ctx context.Context, ev feed.ChangeEvent) error {
	if s.d.Writer == nil {
		return nil
	}
	if ev.Kind == feed.ChangeDeleted {
		if err := s.d.Writer.Delete(ctx, ev.URL); err != nil && !errors.Is(err, feed.ErrNotFound) {
			return feed.Internal(err, "content delete failed")
		}
		return nil
	}
	if ev.Item == nil {
		return nil
	}
	item := *ev.Item
	item.URL = ev.URL
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = ev.At
	}
	if item.PublishedAt.IsZero() && ev.Kind == feed.ChangeCreated {
		item.PublishedAt = ev.At
	}
	if err := s.d.Writer.Put(ctx, item); err != nil {
		var fe *feed.Error
		if errors.As(err, &fe) {
			return fe
		}
		return feed.Internal(err, "content write failed")
	}
	return nil
}

func (s *Service) updateSearch(ctx context.Context, ev feed.ChangeEvent) {
	if s.d.Searcher == nil {
		return
	}
	if ev.Kind == feed.ChangeDeleted {
		if err := s.d.Searcher.Delete(ev.URL); err != nil {
			s.d.Logger.Warn("search unindex failed", zap.Error(err), zap.String("url", ev.URL))
		}
		return
	}
	it, err := s.d.Source.GetItem(ctx, ev.URL)
	if err != nil {
		if ev.Item == nil {
			s.d.Logger.Warn("search reindex skipped", zap.Error(err), zap.String("url", ev.URL))
			return
		}
		it = *ev.Item
		it.URL = ev.URL
	}
	if err := s.d.Searcher.Index(it); err != nil {
		s.d.Logger.Warn("search index failed", zap.Error(err), zap.String("url", ev.URL))
	}
}

func (s *Service) cached(ctx context.Context, key cache.Key, build func() (any, error)) (Payload, error) {
	entry, ok, err := s.d.Cache.Get(ctx, key)
	if err != nil {
		s.d.Logger.Warn("cache read failed", zap.Error(err), zap.String("key", key.String()))
	}
	if ok {
		s.observe(key.Kind, true)
		return Payload{Body: entry.Payload, Hit: true, Age: entry.Age}, nil
	}
	s.observe(key.Kind, false)

	v, err := build()
	if err != nil {
		return Payload{}, err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return Payload{}, feed.Internal(err, "encode response")
	}
	if err := s.d.Cache.Set(ctx, key, body); err != nil {
		s.d.Logger.Warn("cache write failed", zap.Error(err), zap.String("key", key.String()))
	}
	return Payload{Body: body}, nil
}

func (s *Service) observe(kind cache.Kind, hit bool) {
	if s.d.Observer != nil {
		s.d.Observer.CacheResult(kind, hit)
	}
}

func (s *Service) summary(it feed.Item) Summary {
	text := it.Excerpt
	if text == "" {
		text = chunker.Summary(it.Body, s.d.SummaryWords)
	}
	updated := it.UpdatedAt
	if updated.IsZero() {
		updated = it.PublishedAt
	}
	return Summary{
		URL:       it.URL,
		Title:     it.Title,
		Author:    it.Author,
		Published: it.PublishedAt.UTC(),
		Updated:   updated.UTC(),
		Summary:   text,
	}
}
