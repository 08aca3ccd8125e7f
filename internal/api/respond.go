package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/openfeeder/internal/feed"
)

// CacheControl is sent with every served content payload.
const CacheControl = "public, max-age=300, stale-while-revalidate=60"

const (
	contentTypeJSON     = "application/json; charset=utf-8"
	contentTypeMarkdown = "text/markdown; charset=utf-8"
	cacheHeader         = "X-OpenFeeder-Cache"
)

type errorEnvelope struct {
	Version string      `json:"openfeeder_version"`
	Error   *feed.Error `json:"error"`
}

// cacheState reports how a payload was produced. A nil state omits the
// cache headers.
type cacheState struct {
	hit bool
	age time.Duration
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	fe := feed.AsError(err)
	if fe.Status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, logger, fe.Status, errorEnvelope{Version: feed.Version, Error: fe})
}

// writePayload serves body with a content-hash ETag computed over the final
// bytes. A matching If-None-Match yields an empty 304.
func (s *Server) writePayload(w http.ResponseWriter, r *http.Request, contentType string, body []byte, cs *cacheState) {
	etag := s.hasher.ETag(body)
	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Cache-Control", CacheControl)
	if cs != nil {
		if cs.hit {
			h.Set(cacheHeader, "HIT")
			h.Set("Age", strconv.Itoa(int(cs.age.Seconds())))
		} else {
			h.Set(cacheHeader, "MISS")
		}
	}
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("write payload failed", zap.Error(err))
	}
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
