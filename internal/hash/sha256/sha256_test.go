package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashIsStablePerIdentity(t *testing.T) {
	t.Parallel()

	h := New()
	tests := []struct {
		identity string
		want     string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"hello world", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
	}
	for _, tc := range tests {
		got, err := h.Hash([]byte(tc.identity))
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "identity %q", tc.identity)
	}

	a, _ := h.Hash([]byte("/blog/a"))
	b, _ := h.Hash([]byte("/blog/b"))
	require.NotEqual(t, a, b)
}

func TestETagQuotesDigestPrefix(t *testing.T) {
	t.Parallel()

	h := New()
	got := h.ETag([]byte("hello world"))
	require.Equal(t, `"b94d27b9934d3e08a52e52d7da7dabfa"`, got)
	require.Len(t, got, 2*etagBytes+2)
	require.NotEqual(t, got, h.ETag([]byte("hello world!")))
}
