package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/openfeeder/internal/feed"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	page, limit := Normalize(0, -3)
	require.Equal(t, 1, page)
	require.Equal(t, 1, limit)

	page, limit = Normalize(4, 20)
	require.Equal(t, 4, page)
	require.Equal(t, 20, limit)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	ok := feed.Item{URL: "/a", Title: "A", PublishedAt: time.Now()}
	require.NoError(t, Validate(ok))

	bad := ok
	bad.URL = "a"
	require.Equal(t, feed.CodeInvalidURL, feed.AsError(Validate(bad)).Code)

	bad = ok
	bad.Title = ""
	require.Equal(t, feed.CodeInvalidParam, feed.AsError(Validate(bad)).Code)

	bad = ok
	bad.PublishedAt = time.Time{}
	require.Error(t, Validate(bad))
}
