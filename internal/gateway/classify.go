package gateway

import (
	"net/url"
	"path"
	"strings"
)

// PageType is the coarse kind of page a crawler asked for.
type PageType string

// Page types.
const (
	PageHome     PageType = "home"
	PageSearch   PageType = "search"
	PageProduct  PageType = "product"
	PageCategory PageType = "category"
	PageArticle  PageType = "article"
)

// PageContext is what the gateway learned about the requested page. It is
// stored in the session between ColdStart and Respond.
type PageContext struct {
	URL   string   `json:"url"`
	Type  PageType `json:"type"`
	Topic string   `json:"topic"`
}

var (
	productSegments  = map[string]bool{"product": true, "products": true, "item": true, "p": true}
	categorySegments = map[string]bool{"category": true, "product-category": true, "collections": true, "tag": true}
)

// Classify infers the page type and topic from the URL shape alone.
func Classify(u *url.URL) PageContext {
	p := u.Path
	if p == "" {
		p = "/"
	}
	pc := PageContext{URL: p}
	segs := segments(p)

	q := u.Query()
	term := strings.TrimSpace(q.Get("s"))
	if term == "" {
		term = strings.TrimSpace(q.Get("q"))
	}
	if term != "" || (len(segs) > 0 && segs[0] == "search") {
		pc.Type = PageSearch
		pc.Topic = term
		if pc.Topic == "" && len(segs) > 1 {
			pc.Topic = humanize(segs[len(segs)-1])
		}
		return pc
	}
	if len(segs) == 0 {
		pc.Type = PageHome
		return pc
	}

	pc.Topic = humanize(segs[len(segs)-1])
	for i, s := range segs {
		hasNext := i+1 < len(segs)
		if hasNext && (productSegments[s] || s == "shop") {
			pc.Type = PageProduct
			return pc
		}
	}
	for _, s := range segs {
		if categorySegments[s] {
			pc.Type = PageCategory
			return pc
		}
	}
	if len(segs) == 1 && (segs[0] == "shop" || segs[0] == "products") {
		pc.Type = PageCategory
		return pc
	}
	pc.Type = PageArticle
	return pc
}

func segments(p string) []string {
	out := make([]string, 0, 4)
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}

func humanize(slug string) string {
	if decoded, err := url.PathUnescape(slug); err == nil {
		slug = decoded
	}
	switch strings.ToLower(path.Ext(slug)) {
	case ".html", ".htm", ".php", ".aspx":
		slug = strings.TrimSuffix(slug, path.Ext(slug))
	}
	slug = strings.NewReplacer("-", " ", "_", " ", "+", " ").Replace(slug)
	return strings.Join(strings.Fields(slug), " ")
}
