package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/openfeeder/internal/feed"
)

func day(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }

func openTemp(t *testing.T) *Source {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	ctx := context.Background()
	item := feed.Item{URL: "/a", Title: "A", Body: "<p>x</p>", Author: "Ada", PublishedAt: day(1), UpdatedAt: day(2)}
	require.NoError(t, s.Put(ctx, item))

	got, err := s.GetItem(ctx, "/a")
	require.NoError(t, err)
	require.Equal(t, item, got)

	item.Title = "A2"
	require.NoError(t, s.Put(ctx, item))
	got, err = s.GetItem(ctx, "/a")
	require.NoError(t, err)
	require.Equal(t, "A2", got.Title)

	_, err = s.GetItem(ctx, "/missing")
	require.ErrorIs(t, err, feed.ErrNotFound)
}

func TestPagingAndWindow(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, feed.Item{URL: "/a", Title: "A", PublishedAt: day(1), UpdatedAt: day(5)}))
	require.NoError(t, s.Put(ctx, feed.Item{URL: "/b", Title: "B", PublishedAt: day(3)}))
	require.NoError(t, s.Put(ctx, feed.Item{URL: "/c", Title: "C", PublishedAt: day(2), UpdatedAt: day(4)}))

	page, err := s.GetItems(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Equal(t, "/b", page.Items[0].URL)
	require.Equal(t, "/c", page.Items[1].URL)

	mod, err := s.ListModified(ctx, day(3), day(4))
	require.NoError(t, err)
	require.Len(t, mod, 2)
	require.Equal(t, "/c", mod[0].URL)

	mod, err = s.ListModified(ctx, day(4), time.Time{})
	require.NoError(t, err)
	require.Len(t, mod, 2)
	require.Equal(t, "/a", mod[0].URL)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, feed.Item{URL: "/a", Title: "A", PublishedAt: day(1)}))
	require.NoError(t, s.Delete(ctx, "/a"))
	require.ErrorIs(t, s.Delete(ctx, "/a"), feed.ErrNotFound)
	require.Error(t, s.Put(ctx, feed.Item{URL: "x"}))
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "")
	require.Error(t, err)
}
