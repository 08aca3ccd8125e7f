package gateway

import (
	"net/http"
	"path"
	"strings"
)

// DefaultSignatures are matched case-insensitively as user-agent substrings.
var DefaultSignatures = []string{
	"GPTBot", "ChatGPT-User", "OAI-SearchBot",
	"ClaudeBot", "Claude-Web", "anthropic-ai",
	"PerplexityBot", "Perplexity-User",
	"Google-Extended", "CCBot", "Bytespider", "Amazonbot",
	"Applebot-Extended", "cohere-ai", "Meta-ExternalAgent",
	"Diffbot", "YouBot", "DuckAssistBot",
}

// DefaultStaticExtensions never reach the gateway.
var DefaultStaticExtensions = []string{
	".css", ".js", ".mjs", ".map", ".json", ".xml", ".txt",
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".avif", ".svg", ".ico",
	".woff", ".woff2", ".ttf", ".eot", ".otf",
	".mp4", ".webm", ".mp3", ".wav", ".pdf", ".zip", ".gz",
}

// DefaultStaticPrefixes are asset and admin trees on common platforms.
var DefaultStaticPrefixes = []string{
	"/wp-content/", "/wp-includes/", "/wp-admin/", "/wp-json/",
	"/static/", "/assets/", "/_next/", "/cdn/", "/media/",
}

var protocolPrefixes = []string{"/openfeeder", "/.well-known/openfeeder"}

// Mode is the gateway's decision for one request.
type Mode int

// Gateway modes. Respond is reached through its own endpoint, never by
// inspecting a page request.
const (
	ModeBypass Mode = iota
	ModeColdStart
	ModeDirect
	ModeRespond
)

func (m Mode) String() string {
	switch m {
	case ModeColdStart:
		return "cold_start"
	case ModeDirect:
		return "direct"
	case ModeRespond:
		return "respond"
	default:
		return "bypass"
	}
}

// Signals are the explicit intent hints a crawler may send.
type Signals struct {
	Intent string
	Depth  string
	Format string
	Query  string
}

// Present reports whether any signal was sent.
func (s Signals) Present() bool {
	return s.Intent != "" || s.Depth != "" || s.Format != "" || s.Query != ""
}

// ReadSignals takes each signal from its X-OpenFeeder-* header, falling back
// to the same-named query parameter.
func ReadSignals(r *http.Request) Signals {
	q := r.URL.Query()
	pick := func(header, param string) string {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			return v
		}
		return strings.TrimSpace(q.Get(param))
	}
	return Signals{
		Intent: pick("X-OpenFeeder-Intent", "intent"),
		Depth:  pick("X-OpenFeeder-Depth", "depth"),
		Format: pick("X-OpenFeeder-Format", "format"),
		Query:  pick("X-OpenFeeder-Query", "query"),
	}
}

// Decision is the outcome of inspecting a request.
type Decision struct {
	Mode    Mode
	Agent   string
	Signals Signals
}

// Detector decides which requests the gateway handles.
type Detector struct {
	signatures []string
	lowered    []string
	extensions map[string]struct{}
	prefixes   []string
}

// NewDetector builds a detector; nil slices select the defaults.
func NewDetector(signatures, extensions, prefixes []string) *Detector {
	if signatures == nil {
		signatures = DefaultSignatures
	}
	if extensions == nil {
		extensions = DefaultStaticExtensions
	}
	if prefixes == nil {
		prefixes = DefaultStaticPrefixes
	}
	d := &Detector{
		extensions: make(map[string]struct{}, len(extensions)),
		prefixes:   append([]string(nil), prefixes...),
	}
	for _, s := range signatures {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		d.signatures = append(d.signatures, s)
		d.lowered = append(d.lowered, strings.ToLower(s))
	}
	for _, ext := range extensions {
		d.extensions[strings.ToLower(ext)] = struct{}{}
	}
	return d
}

// MatchAgent returns the configured signature found in ua.
func (d *Detector) MatchAgent(ua string) (string, bool) {
	ua = strings.ToLower(ua)
	if ua == "" {
		return "", false
	}
	for i, sig := range d.lowered {
		if strings.Contains(ua, sig) {
			return d.signatures[i], true
		}
	}
	return "", false
}

// IsStatic reports whether p looks like an asset rather than a page.
func (d *Detector) IsStatic(p string) bool {
	for _, prefix := range d.prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	_, ok := d.extensions[strings.ToLower(path.Ext(p))]
	return ok
}

// IsProtocol reports whether p is one of the service's own endpoints.
func IsProtocol(p string) bool {
	for _, prefix := range protocolPrefixes {
		if p == prefix || strings.HasPrefix(p, prefix+"/") || strings.HasPrefix(p, prefix+".") {
			return true
		}
	}
	return false
}

// Inspect classifies r into Bypass, Direct or ColdStart.
func (d *Detector) Inspect(r *http.Request) Decision {
	if r.Method != http.MethodGet {
		return Decision{Mode: ModeBypass}
	}
	p := r.URL.Path
	if IsProtocol(p) || d.IsStatic(p) {
		return Decision{Mode: ModeBypass}
	}
	agent, ok := d.MatchAgent(r.UserAgent())
	if !ok {
		return Decision{Mode: ModeBypass}
	}
	signals := ReadSignals(r)
	if signals.Present() {
		return Decision{Mode: ModeDirect, Agent: agent, Signals: signals}
	}
	return Decision{Mode: ModeColdStart, Agent: agent}
}
