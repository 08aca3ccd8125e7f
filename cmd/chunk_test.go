package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkCommandReadsStdin(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader("<h2>Title</h2><p>First paragraph.</p><p>Second paragraph.</p>"))
	root.SetArgs([]string{"chunk", "--identity", "/doc", "--size", "3"})
	require.NoError(t, root.Execute())

	var chunks []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &chunks))
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		require.NotEmpty(t, c.ID)
		require.NotEmpty(t, c.Text)
	}
}

func TestChunkCommandRejectsUnknownUnit(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader("text"))
	root.SetArgs([]string{"chunk", "--unit", "lines"})
	require.Error(t, root.Execute())
}

func TestChunkCommandMissingFile(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"chunk", "/nonexistent/file.html"})
	require.Error(t, root.Execute())
}
