package memory

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/openfeeder/internal/feed"
	"github.com/JakeFAU/openfeeder/internal/storage"
	blobmemory "github.com/JakeFAU/openfeeder/internal/storage/memory"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSinceReturnsNewestFirstInclusive(t *testing.T) {
	t.Parallel()

	l := New(10)
	ctx := context.Background()
	require.NoError(t, l.Append(ctx, "/a", base))
	require.NoError(t, l.Append(ctx, "/b", base.Add(time.Hour)))
	require.NoError(t, l.Append(ctx, "/c", base.Add(2*time.Hour)))

	got, err := l.Since(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, []feed.Tombstone{
		{URL: "/c", DeletedAt: base.Add(2 * time.Hour)},
		{URL: "/b", DeletedAt: base.Add(time.Hour)},
	}, got)

	got, err = l.Since(ctx, base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Empty(t, got)
	require.NotNil(t, got)
}

func TestCapEvictsOldest(t *testing.T) {
	t.Parallel()

	l := New(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(ctx, fmt.Sprintf("/%d", i), base.Add(time.Duration(i)*time.Minute)))
		require.LessOrEqual(t, l.Len(), 3)
	}

	got, err := l.Since(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "/4", got[0].URL)
	require.Equal(t, "/2", got[2].URL)
}

func TestDefaultCapAndValidation(t *testing.T) {
	t.Parallel()

	l := New(0)
	require.Equal(t, DefaultCap, l.limit)
	require.Error(t, l.Append(context.Background(), "", base))
}

func TestSnapshotRestore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := blobmemory.NewBlobStore()
	l := New(5, WithSnapshots(blobs, "tombstones.json"))
	require.NoError(t, l.Append(ctx, "/gone", base))
	require.NoError(t, l.Append(ctx, "/also-gone", base.Add(time.Minute)))

	restored := New(5, WithSnapshots(blobs, "tombstones.json"))
	require.NoError(t, restored.Restore(ctx))
	require.Equal(t, 2, restored.Len())

	got, err := restored.Since(ctx, base)
	require.NoError(t, err)
	require.Equal(t, "/also-gone", got[0].URL)
}

func TestRestoreMissingSnapshotAndTrim(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := blobmemory.NewBlobStore()
	l := New(2, WithSnapshots(blobs, "log.json"))
	require.NoError(t, l.Restore(ctx))
	require.Zero(t, l.Len())

	_, err := blobs.PutObject(ctx, "log.json", "", strings.NewReader(
		`[{"url":"/1","deleted_at":"2026-01-01T00:00:00Z"},{"url":"/2","deleted_at":"2026-01-02T00:00:00Z"},{"url":"/3","deleted_at":"2026-01-03T00:00:00Z"}]`))
	require.NoError(t, err)
	require.NoError(t, l.Restore(ctx))
	require.Equal(t, 2, l.Len())

	_, err = blobs.PutObject(ctx, "log.json", "", strings.NewReader("not json"))
	require.NoError(t, err)
	require.Error(t, l.Restore(ctx))
}

// slowFirstWrite delays the first snapshot write so that, without ordering,
// it would land after a newer one.
type slowFirstWrite struct {
	storage.BlobStore
	calls atomic.Int32
}

func (s *slowFirstWrite) PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if s.calls.Add(1) == 1 {
		time.Sleep(20 * time.Millisecond)
	}
	return s.BlobStore.PutObject(ctx, path, contentType, strings.NewReader(string(data)))
}

func TestConcurrentAppendsAllSurviveRestore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := &slowFirstWrite{BlobStore: blobmemory.NewBlobStore()}
	l := New(100, WithSnapshots(blobs, "tombstones.json"))

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, l.Append(ctx, fmt.Sprintf("/deleted/%d", i), base.Add(time.Duration(i)*time.Second)))
		}(i)
	}
	wg.Wait()

	restored := New(100, WithSnapshots(blobs, "tombstones.json"))
	require.NoError(t, restored.Restore(ctx))
	got, err := restored.Since(ctx, base)
	require.NoError(t, err)

	urls := make(map[string]bool, len(got))
	for _, ts := range got {
		urls[ts.URL] = true
	}
	for i := 0; i < n; i++ {
		require.True(t, urls[fmt.Sprintf("/deleted/%d", i)], "missing /deleted/%d", i)
	}
}
