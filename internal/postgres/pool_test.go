package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableName(t *testing.T) {
	t.Parallel()

	name, err := TableName("", "tombstones")
	require.NoError(t, err)
	require.Equal(t, "tombstones", name)

	name, err = TableName("content_items", "x")
	require.NoError(t, err)
	require.Equal(t, "content_items", name)

	_, err = TableName("items; DROP TABLE x", "x")
	require.Error(t, err)
}

func TestOpenRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{})
	require.ErrorContains(t, err, "dsn")

	_, err = Open(context.Background(), Config{DSN: "::not a dsn::"})
	require.Error(t, err)
}
