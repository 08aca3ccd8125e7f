// Package storage defines the blob store used to persist snapshots (for
// example the tombstone log) outside the process.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by GetObject when nothing is stored at path.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore persists opaque objects by path.
type BlobStore interface {
	// PutObject writes the reader's content to path and returns a URI for it.
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
	// GetObject opens the object at path. Callers close the reader.
	GetObject(ctx context.Context, path string) (io.ReadCloser, error)
}
