package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/openfeeder/internal/feed"
)

func newMockLog(t *testing.T, limit int) (*Log, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	l, err := NewWithPool(mock, "tombstones", limit)
	require.NoError(t, err)
	return l, mock
}

func TestAppendInsertsAndTrims(t *testing.T) {
	t.Parallel()

	l, mock := newMockLog(t, 50)
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tombstones").
		WithArgs("/gone", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM tombstones").
		WithArgs(50).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	require.NoError(t, l.Append(context.Background(), "/gone", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	l, mock := newMockLog(t, 10)
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tombstones").
		WithArgs("/gone", at).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := l.Append(context.Background(), "/gone", at)
	require.ErrorContains(t, err, "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSinceScansRows(t *testing.T) {
	t.Parallel()

	l, mock := newMockLog(t, 10)
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"url", "deleted_at"}).
		AddRow("/b", since.Add(2*time.Hour)).
		AddRow("/a", since)
	mock.ExpectQuery("SELECT url, deleted_at FROM tombstones").
		WithArgs(since).
		WillReturnRows(rows)

	got, err := l.Since(context.Background(), since)
	require.NoError(t, err)
	require.Equal(t, []feed.Tombstone{
		{URL: "/b", DeletedAt: since.Add(2 * time.Hour)},
		{URL: "/a", DeletedAt: since},
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLen(t *testing.T) {
	t.Parallel()

	l, mock := newMockLog(t, 10)
	mock.ExpectQuery("SELECT count").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))
	n, err := l.Len(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, n)
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "", 0)
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewWithPool(mock, "bad name", 0)
	require.Error(t, err)
	l, err := NewWithPool(mock, "", 0)
	require.NoError(t, err)
	require.Equal(t, "tombstones", l.table)
	require.Equal(t, 1000, l.limit)
}
