// Package memory implements the tombstone log in process memory, with
// optional snapshots to a blob store so deletions survive a restart.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/openfeeder/internal/feed"
	"github.com/JakeFAU/openfeeder/internal/storage"
)

// DefaultCap is the maximum number of tombstones kept when no cap is configured.
const DefaultCap = 1000

// Log is a bounded, append-only deletion log. Once the cap is reached the
// oldest entries are evicted first.
type Log struct {
	mu      sync.RWMutex
	entries []feed.Tombstone
	limit   int
	gen     uint64

	// writeMu orders snapshot writes; saved is the generation last written.
	writeMu sync.Mutex
	saved   uint64

	blobs  storage.BlobStore
	path   string
	logger *zap.Logger
}

var _ feed.TombstoneLog = (*Log)(nil)

// Option customizes a Log.
type Option func(*Log)

// WithSnapshots persists the log to path in blobs after each append and
// enables Restore.
func WithSnapshots(blobs storage.BlobStore, path string) Option {
	return func(l *Log) {
		l.blobs = blobs
		l.path = path
	}
}

// WithLogger sets the logger used for snapshot failures.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Log) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a log holding at most limit tombstones.
func New(limit int, opts ...Option) *Log {
	if limit <= 0 {
		limit = DefaultCap
	}
	l := &Log{limit: limit, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records a deletion and evicts the oldest entries past the cap. A
// failed snapshot is logged but does not fail the append.
func (l *Log) Append(ctx context.Context, url string, at time.Time) error {
	if url == "" {
		return fmt.Errorf("tombstone url is required")
	}
	l.mu.Lock()
	l.entries = append(l.entries, feed.Tombstone{URL: url, DeletedAt: at.UTC()})
	if over := len(l.entries) - l.limit; over > 0 {
		l.entries = append([]feed.Tombstone(nil), l.entries[over:]...)
	}
	l.gen++
	l.mu.Unlock()

	if l.blobs != nil {
		if err := l.persist(ctx); err != nil {
			l.logger.Warn("tombstone snapshot failed", zap.Error(err))
		}
	}
	return nil
}

// Since returns tombstones with DeletedAt >= t, newest first.
func (l *Log) Since(_ context.Context, t time.Time) ([]feed.Tombstone, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]feed.Tombstone, 0)
	for i := len(l.entries) - 1; i >= 0; i-- {
		if !l.entries[i].DeletedAt.Before(t) {
			out = append(out, l.entries[i])
		}
	}
	return out, nil
}

// Len reports the number of retained tombstones.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Snapshot writes the current log to the configured blob store.
func (l *Log) Snapshot(ctx context.Context) error {
	if l.blobs == nil {
		return nil
	}
	return l.persist(ctx)
}

// Restore replaces the log with the stored snapshot. A missing snapshot
// leaves the log empty.
func (l *Log) Restore(ctx context.Context) error {
	if l.blobs == nil {
		return nil
	}
	rc, err := l.blobs.GetObject(ctx, l.path)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open tombstone snapshot: %w", err)
	}
	defer func() { _ = rc.Close() }()

	var entries []feed.Tombstone
	if err := json.NewDecoder(rc).Decode(&entries); err != nil {
		return fmt.Errorf("decode tombstone snapshot: %w", err)
	}
	if over := len(entries) - l.limit; over > 0 {
		entries = entries[over:]
	}
	l.mu.Lock()
	l.entries = entries
	l.gen++
	l.mu.Unlock()
	return nil
}

func (l *Log) copyLocked() []feed.Tombstone {
	return append([]feed.Tombstone(nil), l.entries...)
}

// persist writes the latest state while holding writeMu, so a write never
// replaces a newer snapshot with an older one. A generation already written
// by a concurrent caller is skipped.
func (l *Log) persist(ctx context.Context) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.mu.RLock()
	gen := l.gen
	snap := l.copyLocked()
	l.mu.RUnlock()
	if gen != 0 && gen == l.saved {
		return nil
	}
	if err := l.write(ctx, snap); err != nil {
		return err
	}
	l.saved = gen
	return nil
}

func (l *Log) write(ctx context.Context, entries []feed.Tombstone) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode tombstones: %w", err)
	}
	if _, err := l.blobs.PutObject(ctx, l.path, "application/json", bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write tombstone snapshot: %w", err)
	}
	return nil
}
