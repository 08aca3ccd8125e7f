package diffsync

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const tokenVersion = 1

var errBadToken = errors.New("malformed sync token")

type tokenBody struct {
	V  int    `json:"v"`
	TS string `json:"ts"`
}

// EncodeToken wraps t in an opaque, URL-safe token.
func EncodeToken(t time.Time) string {
	body, _ := json.Marshal(tokenBody{V: tokenVersion, TS: t.UTC().Format(time.RFC3339Nano)})
	return base64.RawURLEncoding.EncodeToString(body)
}

// DecodeToken reverses EncodeToken.
func DecodeToken(tok string) (time.Time, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(tok, "="))
	if err != nil {
		return time.Time{}, errBadToken
	}
	var body tokenBody
	if err := json.Unmarshal(raw, &body); err != nil || body.V != tokenVersion {
		return time.Time{}, errBadToken
	}
	t, err := time.Parse(time.RFC3339Nano, body.TS)
	if err != nil {
		return time.Time{}, errBadToken
	}
	return t.UTC(), nil
}

// ParseTimestamp accepts RFC 3339 first and then the looser layouts
// understood by dateparse (plain dates, unix seconds). Ambiguous day/month
// orderings are rejected. Zoneless values are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	// ParseStrict rejects ambiguous forms such as 03/04/2026 instead of
	// guessing month first; ParseIn then reads the accepted value as UTC.
	if _, err := dateparse.ParseStrict(s); err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
