// Package sqlite is a single-file content source for small sites. It owns its
// schema and accepts pushed changes like the memory source, but survives
// restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/openfeeder/internal/feed"
	"github.com/JakeFAU/openfeeder/internal/source"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	url          TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	body         TEXT NOT NULL DEFAULT '',
	author       TEXT NOT NULL DEFAULT '',
	excerpt      TEXT NOT NULL DEFAULT '',
	published_at INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_published ON items(published_at DESC);
CREATE INDEX IF NOT EXISTS idx_items_updated ON items(updated_at DESC);
`

const columns = `url, title, body, author, excerpt, published_at, updated_at`

// Source stores items in SQLite. Timestamps are kept as unix nanoseconds so
// range queries compare numerically.
type Source struct {
	db *sql.DB
}

var (
	_ feed.Source = (*Source)(nil)
	_ feed.Writer = (*Source)(nil)
)

// Open creates the database file (and its directory) if needed and applies the schema.
func Open(ctx context.Context, path string) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Source{db: db}, nil
}

// Close closes the database handle.
func (s *Source) Close() error {
	return s.db.Close()
}

// GetItems returns one page ordered by publication date, newest first.
func (s *Source) GetItems(ctx context.Context, page, limit int) (feed.Page, error) {
	page, limit = source.Normalize(page, limit)
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM items`).Scan(&total); err != nil {
		return feed.Page{}, fmt.Errorf("count items: %w", err)
	}
	items, err := s.query(ctx,
		`SELECT `+columns+` FROM items ORDER BY published_at DESC, url LIMIT ? OFFSET ?`,
		limit, (page-1)*limit)
	if err != nil {
		return feed.Page{}, err
	}
	return feed.Page{Items: items, Total: total}, nil
}

// GetItem returns the item at url or feed.ErrNotFound.
func (s *Source) GetItem(ctx context.Context, url string) (feed.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM items WHERE url = ?`, url)
	it, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return feed.Item{}, feed.ErrNotFound
	}
	if err != nil {
		return feed.Item{}, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// ListModified returns items updated within [since, until]; a zero until is unbounded.
func (s *Source) ListModified(ctx context.Context, since, until time.Time) ([]feed.Item, error) {
	upper := int64(1<<63 - 1)
	if !until.IsZero() {
		upper = until.UnixNano()
	}
	return s.query(ctx,
		`SELECT `+columns+` FROM items WHERE updated_at >= ? AND updated_at <= ? ORDER BY updated_at DESC, url`,
		since.UnixNano(), upper)
}

// Put upserts an item.
func (s *Source) Put(ctx context.Context, item feed.Item) error {
	if err := source.Validate(item); err != nil {
		return err
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.PublishedAt
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO items (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
	title = excluded.title,
	body = excluded.body,
	author = excluded.author,
	excerpt = excluded.excerpt,
	published_at = excluded.published_at,
	updated_at = excluded.updated_at`,
		item.URL, item.Title, item.Body, item.Author, item.Excerpt,
		item.PublishedAt.UnixNano(), item.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert item %s: %w", item.URL, err)
	}
	return nil
}

// Delete removes an item, returning feed.ErrNotFound when absent.
func (s *Source) Delete(ctx context.Context, url string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE url = ?`, url)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", url, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item %s: %w", url, err)
	}
	if n == 0 {
		return feed.ErrNotFound
	}
	return nil
}

func (s *Source) query(ctx context.Context, query string, args ...any) ([]feed.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]feed.Item, 0)
	for rows.Next() {
		it, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (feed.Item, error) {
	var (
		it             feed.Item
		pub, updatedAt int64
	)
	if err := row.Scan(&it.URL, &it.Title, &it.Body, &it.Author, &it.Excerpt, &pub, &updatedAt); err != nil {
		return feed.Item{}, err
	}
	it.PublishedAt = time.Unix(0, pub).UTC()
	it.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return it, nil
}
