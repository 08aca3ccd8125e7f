// Package sha256 derives the content digests OpenFeeder exposes: the stable
// prefix of chunk ids and the ETag of every cacheable response.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// etagBytes is how much of the digest goes into an ETag (32 hex characters).
const etagBytes = 16

// Hasher implements feed.Hasher.
type Hasher struct{}

// New returns a Hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the full hex digest of data. It never fails; the error is
// part of feed.Hasher.
func (*Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ETag returns a quoted strong validator for body.
func (*Hasher) ETag(body []byte) string {
	sum := sha256.Sum256(body)
	buf := make([]byte, 0, 2*etagBytes+2)
	buf = append(buf, '"')
	buf = hex.AppendEncode(buf, sum[:etagBytes])
	return string(append(buf, '"'))
}
