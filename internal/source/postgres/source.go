// Package postgres reads content straight from a host platform's Postgres
// table. The adapter is read-only: the host owns the rows.
//
// Expected columns: url, title, body, author, excerpt, published_at,
// updated_at. Only publicly visible rows should be exposed through the
// configured table or view.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/openfeeder/internal/feed"
	"github.com/JakeFAU/openfeeder/internal/postgres"
	"github.com/JakeFAU/openfeeder/internal/source"
)

const defaultTable = "content_items"

type querier interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Source implements feed.Source over a Postgres table or view.
type Source struct {
	pool  querier
	table string
}

var _ feed.Source = (*Source)(nil)

// New connects with cfg and returns a source over table.
func New(ctx context.Context, cfg postgres.Config, table string) (*Source, error) {
	p, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s, err := NewWithPool(p, table)
	if err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a source from an existing pool (primarily for testing).
func NewWithPool(pool querier, table string) (*Source, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := postgres.TableName(table, defaultTable)
	if err != nil {
		return nil, err
	}
	return &Source{pool: pool, table: name}, nil
}

// Close releases the pool.
func (s *Source) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *Source) columns() string {
	return `url, title, body, COALESCE(author, ''), COALESCE(excerpt, ''), published_at, COALESCE(updated_at, published_at)`
}

// GetItems returns one page ordered by published_at descending.
func (s *Source) GetItems(ctx context.Context, page, limit int) (feed.Page, error) {
	page, limit = source.Normalize(page, limit)

	var total int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&total); err != nil {
		return feed.Page{}, fmt.Errorf("count items: %w", err)
	}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY published_at DESC, url LIMIT $1 OFFSET $2`, s.columns(), s.table)
	items, err := s.query(ctx, query, limit, (page-1)*limit)
	if err != nil {
		return feed.Page{}, err
	}
	return feed.Page{Items: items, Total: total}, nil
}

// GetItem returns the row at url or feed.ErrNotFound.
func (s *Source) GetItem(ctx context.Context, url string) (feed.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE url = $1`, s.columns(), s.table)
	it, err := scanItem(s.pool.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return feed.Item{}, feed.ErrNotFound
	}
	if err != nil {
		return feed.Item{}, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// ListModified returns rows updated within [since, until], newest update first.
func (s *Source) ListModified(ctx context.Context, since, until time.Time) ([]feed.Item, error) {
	query := fmt.Sprintf(`SELECT %[1]s FROM %[2]s
WHERE COALESCE(updated_at, published_at) >= $1 AND COALESCE(updated_at, published_at) <= $2
ORDER BY COALESCE(updated_at, published_at) DESC, url`, s.columns(), s.table)
	if until.IsZero() {
		until = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	return s.query(ctx, query, since.UTC(), until.UTC())
}

func (s *Source) query(ctx context.Context, query string, args ...any) ([]feed.Item, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := make([]feed.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
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

func scanItem(row pgx.Row) (feed.Item, error) {
	var it feed.Item
	if err := row.Scan(&it.URL, &it.Title, &it.Body, &it.Author, &it.Excerpt, &it.PublishedAt, &it.UpdatedAt); err != nil {
		return feed.Item{}, err
	}
	it.PublishedAt = it.PublishedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	return it, nil
}
