// Package diffsync answers "what changed since checkpoint X" by combining a
// content source window query with the tombstone log, and mints opaque sync
// tokens that callers hand back on their next call.
//
// Items whose publication time is at or after the resolved since are
// reported as added and the rest as updated. An old item published inside
// the window is therefore "added" even if it was never modified; the
// behavior is kept as-is.
package diffsync
