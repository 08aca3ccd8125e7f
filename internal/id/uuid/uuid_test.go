package uuid

import (
	"testing"

	googleuuid "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGeneratorIssuesRandomSessionIDs(t *testing.T) {
	t.Parallel()

	gen := New()
	seen := make(map[string]struct{})
	for range 50 {
		id, err := gen.NewID()
		require.NoError(t, err)
		require.True(t, Valid(id))
		require.Equal(t, googleuuid.Version(4), googleuuid.MustParse(id).Version())
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"6ba7b810-9dad-41d1-80b4-00c04fd430c8": true,
		"":                                     false,
		"not-a-uuid":                           false,
		"../../etc/passwd":                     false,
		"6ba7b810-9dad-41d1-80b4":              false,
	}
	for in, want := range tests {
		require.Equal(t, want, Valid(in), "Valid(%q)", in)
	}
}
