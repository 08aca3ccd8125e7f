package diffsync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/openfeeder/internal/chunker"
	"github.com/JakeFAU/openfeeder/internal/feed"
)

// DefaultSummaryWords bounds the summary derived from an item body when the
// item has no excerpt.
const DefaultSummaryWords = 40

// Request carries the raw since/until parameters as received.
type Request struct {
	Since string
	Until string
}

// Item is the wire form of a changed item.
type Item struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Author    string    `json:"author,omitempty"`
	Published time.Time `json:"published"`
	Updated   time.Time `json:"updated"`
	Summary   string    `json:"summary"`
}

// Counts holds the bucket sizes.
type Counts struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// Meta is the "sync" block of the envelope. Since and Until are only set
// when the caller supplied them.
type Meta struct {
	Since     *time.Time `json:"since,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
	AsOf      time.Time  `json:"as_of"`
	SyncToken string     `json:"sync_token"`
	Counts    Counts     `json:"counts"`
}

// Response is the full sync envelope.
type Response struct {
	Version string           `json:"openfeeder_version"`
	Sync    Meta             `json:"sync"`
	Added   []Item           `json:"added"`
	Updated []Item           `json:"updated"`
	Deleted []feed.Tombstone `json:"deleted"`
}

// Engine computes differential syncs.
type Engine struct {
	source       feed.Source
	tombstones   feed.TombstoneLog
	clock        feed.Clock
	summaryWords int
	logger       *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSummaryWords overrides DefaultSummaryWords.
func WithSummaryWords(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.summaryWords = n
		}
	}
}

// New builds an Engine.
func New(source feed.Source, tombstones feed.TombstoneLog, clock feed.Clock, opts ...Option) *Engine {
	e := &Engine{
		source:       source,
		tombstones:   tombstones,
		clock:        clock,
		summaryWords: DefaultSummaryWords,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve turns the raw parameters into a window. since may be a timestamp
// or a token; until must be a timestamp and defaults to now.
func (e *Engine) Resolve(req Request, now time.Time) (since, until time.Time, err error) {
	since, err = ParseTimestamp(req.Since)
	if err != nil {
		since, err = DecodeToken(req.Since)
		if err != nil {
			return time.Time{}, time.Time{}, feed.InvalidParam("since must be an ISO 8601 timestamp or a sync token")
		}
	}
	until = now
	if req.Until != "" {
		until, err = ParseTimestamp(req.Until)
		if err != nil {
			return time.Time{}, time.Time{}, feed.InvalidParam("until must be an ISO 8601 timestamp")
		}
	}
	if until.Before(since) {
		return time.Time{}, time.Time{}, feed.InvalidParam("until must not be earlier than since")
	}
	return since, until, nil
}

// Sync runs one differential sync. It returns either a complete envelope or
// an error; nothing partial.
func (e *Engine) Sync(ctx context.Context, req Request) (*Response, error) {
	asOf := e.clock.Now().UTC()
	since, until, err := e.Resolve(req, asOf)
	if err != nil {
		return nil, err
	}

	changed, err := e.source.ListModified(ctx, since, until)
	if err != nil {
		e.logger.Error("content source window query failed", zap.Error(err))
		return nil, feed.Internal(err, "content source failure")
	}
	deleted, err := e.tombstones.Since(ctx, since)
	if err != nil {
		e.logger.Error("tombstone query failed", zap.Error(err))
		return nil, feed.Internal(err, "tombstone log failure")
	}
	if deleted == nil {
		deleted = []feed.Tombstone{}
	}

	resp := &Response{
		Version: feed.Version,
		Added:   make([]Item, 0),
		Updated: make([]Item, 0),
		Deleted: deleted,
	}
	for _, it := range changed {
		wire := e.wireItem(it)
		if !it.PublishedAt.Before(since) {
			resp.Added = append(resp.Added, wire)
		} else {
			resp.Updated = append(resp.Updated, wire)
		}
	}

	resp.Sync = Meta{
		AsOf:      asOf,
		SyncToken: EncodeToken(asOf),
		Counts: Counts{
			Added:   len(resp.Added),
			Updated: len(resp.Updated),
			Deleted: len(resp.Deleted),
		},
	}
	if req.Since != "" {
		resp.Sync.Since = &since
	}
	if req.Until != "" {
		resp.Sync.Until = &until
	}

	e.logger.Debug("sync computed",
		zap.Time("since", since),
		zap.Time("until", until),
		zap.Int("added", resp.Sync.Counts.Added),
		zap.Int("updated", resp.Sync.Counts.Updated),
		zap.Int("deleted", resp.Sync.Counts.Deleted),
	)
	return resp, nil
}

func (e *Engine) wireItem(it feed.Item) Item {
	summary := it.Excerpt
	if summary == "" {
		summary = chunker.Summary(it.Body, e.summaryWords)
	}
	return Item{
		URL:       it.URL,
		Title:     it.Title,
		Author:    it.Author,
		Published: it.PublishedAt.UTC(),
		Updated:   it.UpdatedAt.UTC(),
		Summary:   summary,
	}
}
