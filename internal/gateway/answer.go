package gateway

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/openfeeder/internal/diffsync"
	"github.com/JakeFAU/openfeeder/internal/feed"
)

// Protocol paths advertised to crawlers.
const (
	PathContent   = "/openfeeder"
	PathDiscovery = "/.well-known/openfeeder.json"
	PathRespond   = "/openfeeder/gateway/respond"
)

// Relevance tiers for recommended endpoints.
const (
	RelevanceHigh   = "high"
	RelevanceMedium = "medium"
	RelevanceLow    = "low"
)

// Site describes the host for generated links. An empty BaseURL produces
// site-relative links.
type Site struct {
	Name         string   `mapstructure:"name"`
	BaseURL      string   `mapstructure:"base_url"`
	Capabilities []string `mapstructure:"capabilities"`
}

// DefaultCapabilities is advertised when the site lists none.
var DefaultCapabilities = []string{"index", "item", "search", "sync", "gateway"}

// Endpoint is one recommended follow-up call.
type Endpoint struct {
	URL         string `json:"url"`
	Relevance   string `json:"relevance"`
	Description string `json:"description"`
}

// Answer is the Direct and Respond response body.
type Answer struct {
	Openfeeder           string            `json:"openfeeder"`
	Tailored             bool              `json:"tailored"`
	Intent               string            `json:"intent"`
	Depth                string            `json:"depth"`
	Format               string            `json:"format"`
	RecommendedEndpoints []Endpoint        `json:"recommended_endpoints"`
	QueryHints           []string          `json:"query_hints"`
	CurrentPage          PageContext       `json:"current_page"`
	Endpoints            map[string]string `json:"endpoints"`
}

type linker struct {
	base string
}

func (l linker) link(p string, params url.Values) string {
	u := strings.TrimRight(l.base, "/") + p
	if enc := params.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// Endpoints lists the protocol endpoints with placeholder parameters.
func (s Site) Endpoints() map[string]string {
	l := linker{base: s.BaseURL}
	return map[string]string{
		"discovery": l.link(PathDiscovery, nil),
		"index":     l.link(PathContent, nil),
		"item":      l.link(PathContent, nil) + "?url={path}",
		"search":    l.link(PathContent, nil) + "?q={query}",
		"sync":      l.link(PathContent, nil) + "?since={timestamp_or_sync_token}",
		"respond":   l.link(PathRespond, nil),
	}
}

func limitFor(depth string) int {
	switch depth {
	case "brief":
		return 5
	case "full":
		return 25
	default:
		return 10
	}
}

// BuildAnswer renders the tailored answer for a page and resolved
// preferences. now anchors the "latest" sync window.
func BuildAnswer(site Site, pc PageContext, prefs Preferences, now time.Time) *Answer {
	l := linker{base: site.BaseURL}
	limit := strconv.Itoa(limitFor(prefs.Depth))

	query := prefs.Query
	if query == "" {
		query = pc.Topic
	}

	itemParams := url.Values{"url": {pc.URL}}
	if prefs.Format != defaultFormat {
		itemParams.Set("format", prefs.Format)
	}
	item := l.link(PathContent, itemParams)
	index := l.link(PathContent, url.Values{"limit": {limit}})
	since := diffsync.EncodeToken(now.Add(-24 * time.Hour))
	sync := l.link(PathContent, url.Values{"since": {since}})
	var search string
	if query != "" {
		search = l.link(PathContent, url.Values{"q": {query}, "limit": {limit}})
	}

	var eps []Endpoint
	add := func(u, rel, desc string) {
		if u != "" {
			eps = append(eps, Endpoint{URL: u, Relevance: rel, Description: desc})
		}
	}

	switch prefs.Intent {
	case IntentSingleProduct, IntentRead:
		add(item, RelevanceHigh, "Chunked content of the requested page")
		add(search, RelevanceMedium, "Other content about "+strconv.Quote(query))
		add(index, RelevanceLow, "Paginated index of all content")
	case IntentCompare:
		add(search, RelevanceHigh, "Similar items to compare against")
		add(item, RelevanceMedium, "Chunked content of the requested page")
		add(index, RelevanceLow, "Paginated index of all content")
	case IntentBrowse:
		add(search, RelevanceHigh, "Items matching "+strconv.Quote(query))
		add(index, RelevanceMedium, "Paginated index of all content")
		add(item, RelevanceLow, "Chunked content of the category page itself")
	case IntentSearch, IntentRelated:
		add(search, RelevanceHigh, "Full-text search results")
		add(index, RelevanceMedium, "Paginated index of all content")
		if pc.Type != PageSearch && pc.Type != PageHome {
			add(item, RelevanceLow, "Chunked content of the requested page")
		}
	case IntentLatest:
		add(sync, RelevanceHigh, "Everything added, updated or deleted in the last 24 hours")
		add(index, RelevanceMedium, "Paginated index, newest first")
	default:
		add(index, RelevanceHigh, "Paginated index of all content")
		add(l.link(PathDiscovery, nil), RelevanceMedium, "Discovery document describing this site's feed")
		add(search, RelevanceLow, "Full-text search results")
	}

	hints := make([]string, 0, len(eps)+1)
	for _, ep := range eps {
		hints = append(hints, "GET "+ep.URL)
	}
	if prefs.Intent != IntentLatest {
		hints = append(hints, "GET "+sync)
	}

	return &Answer{
		Openfeeder:           feed.Version,
		Tailored:             true,
		Intent:               prefs.Intent,
		Depth:                prefs.Depth,
		Format:               prefs.Format,
		RecommendedEndpoints: eps,
		QueryHints:           hints,
		CurrentPage:          pc,
		Endpoints:            site.Endpoints(),
	}
}
