// Package postgres stores the tombstone log in a Postgres table so that every
// replica serves the same deletion history.
//
// Expected schema:
//
//	CREATE TABLE tombstones (
//	    id         BIGSERIAL PRIMARY KEY,
//	    url        TEXT NOT NULL,
//	    deleted_at TIMESTAMPTZ NOT NULL
//	);
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JakeFAU/openfeeder/internal/feed"
	"github.com/JakeFAU/openfeeder/internal/postgres"
)

const defaultTable = "tombstones"

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Log is a Postgres-backed feed.TombstoneLog capped at limit rows.
type Log struct {
	pool  pool
	table string
	limit int
}

var _ feed.TombstoneLog = (*Log)(nil)

// New connects with cfg and returns a log over table.
func New(ctx context.Context, cfg postgres.Config, table string, limit int) (*Log, error) {
	p, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	l, err := NewWithPool(p, table, limit)
	if err != nil {
		p.Close()
		return nil, err
	}
	return l, nil
}

// NewWithPool constructs a log from an existing pool (primarily for testing).
func NewWithPool(p pool, table string, limit int) (*Log, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := postgres.TableName(table, defaultTable)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1000
	}
	return &Log{pool: p, table: name, limit: limit}, nil
}

// Close releases the pool.
func (l *Log) Close() {
	if l != nil && l.pool != nil {
		l.pool.Close()
	}
}

// Append inserts a tombstone and trims the table back to the cap in the same
// transaction.
func (l *Log) Append(ctx context.Context, url string, at time.Time) (err error) {
	if url == "" {
		return fmt.Errorf("tombstone url is required")
	}
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tombstone tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	insert := fmt.Sprintf(`INSERT INTO %s (url, deleted_at) VALUES ($1, $2)`, l.table)
	if _, err = tx.Exec(ctx, insert, url, at.UTC()); err != nil {
		return fmt.Errorf("insert tombstone: %w", err)
	}
	trim := fmt.Sprintf(`DELETE FROM %[1]s WHERE id NOT IN (
	SELECT id FROM %[1]s ORDER BY deleted_at DESC, id DESC LIMIT $1
)`, l.table)
	if _, err = tx.Exec(ctx, trim, l.limit); err != nil {
		return fmt.Errorf("trim tombstones: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tombstone tx: %w", err)
	}
	return nil
}

// Since returns tombstones with deleted_at >= t, newest first.
func (l *Log) Since(ctx context.Context, t time.Time) ([]feed.Tombstone, error) {
	query := fmt.Sprintf(`SELECT url, deleted_at FROM %s WHERE deleted_at >= $1 ORDER BY deleted_at DESC, id DESC`, l.table)
	rows, err := l.pool.Query(ctx, query, t.UTC())
	if err != nil {
		return nil, fmt.Errorf("query tombstones: %w", err)
	}
	defer rows.Close()

	out := make([]feed.Tombstone, 0)
	for rows.Next() {
		var ts feed.Tombstone
		if err := rows.Scan(&ts.URL, &ts.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan tombstone: %w", err)
		}
		ts.DeletedAt = ts.DeletedAt.UTC()
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tombstones: %w", err)
	}
	return out, nil
}

// Len reports the number of stored tombstones.
func (l *Log) Len(ctx context.Context) (int, error) {
	var n int
	if err := l.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, l.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tombstones: %w", err)
	}
	return n, nil
}
