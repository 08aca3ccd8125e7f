package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/openfeeder/internal/content"
	"github.com/JakeFAU/openfeeder/internal/diffsync"
	"github.com/JakeFAU/openfeeder/internal/feed"
	"github.com/JakeFAU/openfeeder/internal/metrics"
)

const (
	maxEventsBody = 1 << 20
	formatJSON    = "json"
	formatMD      = "markdown"
)

// getContent dispatches on the query: q selects search, since/until select
// sync, url selects one item and anything else is the paginated index.
func (s *Server) getContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Has("q"):
		s.search(w, r, q)
	case q.Has("since") || q.Has("until"):
		s.diff(w, r, q)
	case q.Has("url"):
		s.item(w, r, q)
	default:
		s.index(w, r, q)
	}
}

func (s *Server) index(w http.ResponseWriter, r *http.Request, q url.Values) {
	page, err := intParam(q, "page", 1)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	limit, err := intParam(q, "limit", content.DefaultLimit)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	p, err := s.content.Index(r.Context(), page, limit)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.writePayload(w, r, contentTypeJSON, p.Body, &cacheState{hit: p.Hit, age: p.Age})
}

func (s *Server) item(w http.ResponseWriter, r *http.Request, q url.Values) {
	format := strings.ToLower(q.Get("format"))
	if format != "" && format != formatJSON && format != formatMD {
		writeError(w, s.logger, feed.InvalidParam("format must be %q or %q", formatJSON, formatMD))
		return
	}
	p, err := s.content.Item(r.Context(), q.Get("url"), strings.TrimSpace(q.Get("query")))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	cs := &cacheState{hit: p.Hit, age: p.Age}
	if format != formatMD {
		s.writePayload(w, r, contentTypeJSON, p.Body, cs)
		return
	}
	var doc content.ItemDocument
	if err := json.Unmarshal(p.Body, &doc); err != nil {
		writeError(w, s.logger, feed.Internal(err, "decode item"))
		return
	}
	s.writePayload(w, r, contentTypeMarkdown, renderMarkdown(&doc), cs)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, q url.Values) {
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, s.logger, feed.InvalidParam("q must not be empty"))
		return
	}
	limit, err := intParam(q, "limit", content.DefaultLimit)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	p, err := s.content.Search(r.Context(), query, limit)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.writePayload(w, r, contentTypeJSON, p.Body, nil)
}

func (s *Server) diff(w http.ResponseWriter, r *http.Request, q url.Values) {
	resp, err := s.sync.Sync(r.Context(), diffsync.Request{Since: q.Get("since"), Until: q.Get("until")})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	metrics.ObserveSync(resp.Sync.Counts.Added, resp.Sync.Counts.Updated, resp.Sync.Counts.Deleted)
	body, err := json.Marshal(resp)
	if err != nil {
		writeError(w, s.logger, feed.Internal(err, "encode response"))
		return
	}
	s.writePayload(w, r, contentTypeJSON, body, nil)
}

type eventsResponse struct {
	Version  string `json:"openfeeder_version"`
	Accepted int    `json:"accepted"`
}

// postEvents accepts one change event or a JSON array of them. Events are
// applied in order; the first failure stops the batch.
func (s *Server) postEvents(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventsBody)).Decode(&raw); err != nil {
		writeError(w, s.logger, feed.InvalidParam("request body must be a change event or an array of them"))
		return
	}
	var events []feed.ChangeEvent
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &events); err != nil {
			writeError(w, s.logger, feed.InvalidParam("malformed change event array"))
			return
		}
	} else {
		var ev feed.ChangeEvent
		if err := json.Unmarshal(trimmed, &ev); err != nil {
			writeError(w, s.logger, feed.InvalidParam("malformed change event"))
			return
		}
		events = append(events, ev)
	}

	for i, ev := range events {
		if err := s.content.RecordChange(r.Context(), ev); err != nil {
			fe := feed.AsError(err)
			s.logger.Warn("change event rejected",
				zap.Int("applied", i),
				zap.String("code", string(fe.Code)),
			)
			writeError(w, s.logger, err)
			return
		}
	}
	writeJSON(w, s.logger, http.StatusAccepted, eventsResponse{Version: feed.Version, Accepted: len(events)})
}

func intParam(q url.Values, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, feed.InvalidParam("%s must be an integer", name)
	}
	return n, nil
}
