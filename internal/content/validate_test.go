package content

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/openfeeder/internal/feed"
)

func TestCleanPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/blog/post", "/blog/post", true},
		{"/blog/post?x=1", "/blog/post", true},
		{"", "", false},
		{"blog/post", "", false},
		{"https://evil.example/x", "", false},
		{"//evil.example/x", "", false},
		{"/a/../etc/passwd", "", false},
		{"/a/%2e%2e/etc", "", false},
		{"/a\\b", "", false},
		{"/a/./b", "", false},
		{"javascript:alert(1)", "", false},
	}
	for _, tc := range cases {
		got, err := CleanPath(tc.in)
		if !tc.ok {
			require.Error(t, err, tc.in)
			require.Equal(t, feed.CodeInvalidURL, feed.AsError(err).Code, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got)
	}
}
