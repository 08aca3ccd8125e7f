package content

import (
	"net/url"
	"strings"

	"github.com/JakeFAU/openfeeder/internal/feed"
)

// CleanPath validates a client-supplied item reference. Only site-relative
// paths are accepted; schemes, hosts, backslashes, control characters and
// any ".." segment (including percent-encoded ones) are rejected.
func CleanPath(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", feed.InvalidURL("url parameter is required")
	}
	if strings.ContainsAny(raw, "\\\x00") || strings.HasPrefix(raw, "//") {
		return "", feed.InvalidURL("url must be a site-relative path")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", feed.InvalidURL("url is not parseable")
	}
	if u.Scheme != "" || u.Host != "" || u.Opaque != "" {
		return "", feed.InvalidURL("url must be a site-relative path")
	}
	p := u.Path
	if !strings.HasPrefix(p, "/") {
		return "", feed.InvalidURL("url must start with /")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." || seg == "." {
			return "", feed.InvalidURL("url must not contain relative segments")
		}
	}
	for _, r := range p {
		if r < 0x20 || r == 0x7f {
			return "", feed.InvalidURL("url contains control characters")
		}
	}
	return p, nil
}
