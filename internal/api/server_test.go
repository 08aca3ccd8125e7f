package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cachememory "github.com/JakeFAU/openfeeder/internal/cache/memory"
	"github.com/JakeFAU/openfeeder/internal/chunker"
	"github.com/JakeFAU/openfeeder/internal/content"
	"github.com/JakeFAU/openfeeder/internal/diffsync"
	"github.com/JakeFAU/openfeeder/internal/feed"
	"github.com/JakeFAU/openfeeder/internal/gateway"
	"github.com/JakeFAU/openfeeder/internal/hash/sha256"
	"github.com/JakeFAU/openfeeder/internal/id/uuid"
	sourcememory "github.com/JakeFAU/openfeeder/internal/source/memory"
	tombmemory "github.com/JakeFAU/openfeeder/internal/tombstone/memory"
)

const crawlerUA = "Mozilla/5.0 (compatible; GPTBot/1.2; +https://openai.com/gptbot)"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type testEnv struct {
	server *Server
	source *sourcememory.Source
}

type envOption func(*Deps)

func withAPIKey(key string) envOption { return func(d *Deps) { d.APIKey = key } }

func withUpstream(h http.Handler) envOption { return func(d *Deps) { d.Upstream = h } }

func withoutGateway() envOption { return func(d *Deps) { d.Gateway = nil } }

func withReady(fn func(context.Context) error) envOption { return func(d *Deps) { d.Ready = fn } }

func newTestEnv(t *testing.T, opts ...envOption) testEnv {
	t.Helper()

	clock := &fakeClock{now: testNow}
	src := sourcememory.New(
		feed.Item{
			URL:         "/blog/first",
			Title:       "First post",
			Body:        "<h2>Intro</h2><p>Tomatoes need sun.</p>",
			Author:      "Ada",
			PublishedAt: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		feed.Item{
			URL:         "/blog/second",
			Title:       "Second post",
			Body:        "<p>Bicycles are fast.</p>",
			PublishedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	)
	tombs := tombmemory.New(100)
	svc, err := content.New(content.Deps{
		Source:     src,
		Writer:     src,
		Cache:      cachememory.New(time.Hour, clock),
		Chunker:    chunker.New(chunker.Options{}, sha256.New()),
		Tombstones: tombs,
		Clock:      clock,
	})
	require.NoError(t, err)

	gw, err := gateway.New(gateway.Deps{
		Sessions: gateway.NewMemoryStore(gateway.DefaultSessionTTL, clock, uuid.New(), nil),
		Clock:    clock,
	})
	require.NoError(t, err)

	d := Deps{
		Content: svc,
		Sync:    diffsync.New(src, tombs, clock),
		Gateway: gw,
		Site:    gateway.Site{Name: "Test site"},
		Logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&d)
	}
	return testEnv{server: NewServer(d), source: src}
}

func (e testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) feed.Code {
	t.Helper()
	var env struct {
		Version string `json:"openfeeder_version"`
		Error   struct {
			Code    feed.Code `json:"code"`
			Message string    `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, feed.Version, env.Version)
	require.NotEmpty(t, env.Error.Message)
	return env.Error.Code
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}
}

func TestServer_ReadyzReportsFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withReady(func(context.Context) error { return errors.New("db down") }))
	rec := env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.do(httptest.NewRequest(http.MethodGet, "/openfeeder", nil))
	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "openfeeder_http_requests_total")
}

func TestServer_Discovery(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, gateway.PathDiscovery, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("ETag"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Equal(t, feed.Version, doc["openfeeder_version"])
	require.Contains(t, doc["endpoints"], "respond")
}

func TestServer_IndexCachingHeaders(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	first := env.do(httptest.NewRequest(http.MethodGet, "/openfeeder?limit=1", nil))
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "MISS", first.Header().Get(cacheHeader))
	require.Equal(t, CacheControl, first.Header().Get("Cache-Control"))
	etag := first.Header().Get("ETag")
	require.True(t, strings.HasPrefix(etag, `"`))

	second := env.do(httptest.NewRequest(http.MethodGet, "/openfeeder?limit=1", nil))
	require.Equal(t, "HIT", second.Header().Get(cacheHeader))
	require.Equal(t, "0", second.Header().Get("Age"))
	require.Equal(t, etag, second.Header().Get("ETag"))
	require.Equal(t, first.Body.String(), second.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/openfeeder?limit=1", nil)
	req.Header.Set("If-None-Match", etag)
	notModified := env.do(req)
	require.Equal(t, http.StatusNotModified, notModified.Code)
	require.Empty(t, notModified.Body.Bytes())
}

func TestServer_IndexBadParams(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, target := range []string{"/openfeeder?page=abc", "/openfeeder?page=0", "/openfeeder?limit=1000"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		require.Equal(t, feed.CodeInvalidParam, decodeError(t, rec), target)
	}
}

func TestServer_Item(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/openfeeder?url=/blog/first", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc content.ItemDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Equal(t, "First post", doc.Title)
	require.NotEmpty(t, doc.Chunks)
}

func TestServer_ItemMarkdown(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/openfeeder?url=/blog/first&format=markdown", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, contentTypeMarkdown, rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "# First post\n"))
	require.Contains(t, body, "By Ada")
	require.Contains(t, body, "Tomatoes need sun.")
}

func TestServer_ItemErrors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	cases := map[string]struct {
		status int
		code   feed.Code
	}{
		"/openfeeder?url=/nope":                  {http.StatusNotFound, feed.CodeNotFound},
		"/openfeeder?url=/blog/../etc/passwd":    {http.StatusBadRequest, feed.CodeInvalidURL},
		"/openfeeder?url=https://evil.example/x": {http.StatusBadRequest, feed.CodeInvalidURL},
		"/openfeeder?url=/blog/first&format=pdf": {http.StatusBadRequest, feed.CodeInvalidParam},
	}
	for target, want := range cases {
		rec := env.do(httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, want.status, rec.Code, target)
		require.Equal(t, want.code, decodeError(t, rec), target)
	}
}

func TestServer_SyncExample(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/openfeeder?since=2026-01-01T00:00:00Z", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp diffsync.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Added, 2)
	require.Equal(t, "/blog/second", resp.Added[0].URL)
	require.Empty(t, resp.Updated)
	require.NotNil(t, resp.Sync.Since)
	require.Nil(t, resp.Sync.Until)
	require.NotEmpty(t, resp.Sync.SyncToken)

	next := env.do(httptest.NewRequest(http.MethodGet, "/openfeeder?since="+resp.Sync.SyncToken, nil))
	require.Equal(t, http.StatusOK, next.Code)
}

func TestServer_SyncRejectsInvertedWindow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet,
		"/openfeeder?since=2026-02-01T00:00:00Z&until=2026-01-01T00:00:00Z", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, feed.CodeInvalidParam, decodeError(t, rec))
}

func TestServer_SearchTakesPriorityOverSync(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	// No search index is configured, so search mode answers INVALID_PARAM;
	// a sync would have succeeded.
	rec := env.do(httptest.NewRequest(http.MethodGet, "/openfeeder?q=tomatoes&since=2026-01-01T00:00:00Z", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, feed.CodeInvalidParam, decodeError(t, rec))

	empty := env.do(httptest.NewRequest(http.MethodGet, "/openfeeder?q=", nil))
	require.Equal(t, http.StatusBadRequest, empty.Code)
}

func TestServer_EventsInvalidateAndTombstone(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	warm := env.do(httptest.NewRequest(http.MethodGet, "/openfeeder?url=/blog/first", nil))
	require.Equal(t, http.StatusOK, warm.Code)

	body := `[{"type":"updated","url":"/blog/first","item":{"title":"First post, revised","body":"<p>New text.</p>","published_at":"2026-01-15T00:00:00Z"}},
	          {"type":"deleted","url":"/blog/second","at":"2026-02-20T00:00:00Z"}]`
	rec := env.do(httptest.NewRequest(http.MethodPost, PathEvents, strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), `"accepted":2`)

	after := env.do(httptest.NewRequest(http.MethodGet, "/openfeeder?url=/blog/first", nil))
	require.Equal(t, "MISS", after.Header().Get(cacheHeader))
	require.Contains(t, after.Body.String(), "First post, revised")

	gone := env.do(httptest.NewRequest(http.MethodGet, "/openfeeder?url=/blog/second", nil))
	require.Equal(t, http.StatusNotFound, gone.Code)

	sync := env.do(httptest.NewRequest(http.MethodGet, "/openfeeder?since=2026-02-10T00:00:00Z", nil))
	var resp diffsync.Response
	require.NoError(t, json.Unmarshal(sync.Body.Bytes(), &resp))
	require.Equal(t, []feed.Tombstone{{URL: "/blog/second", DeletedAt: time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)}}, resp.Deleted)
}

func TestServer_EventsRejectsMalformed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, body := range []string{"{oops", `{"type":"moved","url":"/x"}`, `[{"type":"deleted","url":"relative"}]`} {
		rec := env.do(httptest.NewRequest(http.MethodPost, PathEvents, strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestServer_EventsRequireAPIKey(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withAPIKey("secret"))
	body := `{"type":"deleted","url":"/blog/second"}`

	rec := env.do(httptest.NewRequest(http.MethodPost, PathEvents, strings.NewReader(body)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, feed.CodeUnauthorized, decodeError(t, rec))

	req := httptest.NewRequest(http.MethodPost, PathEvents, strings.NewReader(body))
	req.Header.Set("X-API-Key", "secret")
	require.Equal(t, http.StatusAccepted, env.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, PathEvents, strings.NewReader(`{"type":"deleted","url":"/blog/first"}`))
	req.Header.Set("Authorization", "Bearer secret")
	require.Equal(t, http.StatusAccepted, env.do(req).Code)
}

func TestServer_GatewayColdStartThenRespond(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/product/trail-boots", nil)
	req.Header.Set("User-Agent", crawlerUA)
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var cold gateway.ColdStartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cold))
	require.True(t, cold.Dialog.Active)
	require.Equal(t, gateway.PageProduct, cold.Context.DetectedType)

	payload, err := json.Marshal(gateway.RespondRequest{
		SessionID: cold.Dialog.SessionID,
		Answers:   map[string]any{"depth": "brief"},
	})
	require.NoError(t, err)

	respond := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, gateway.PathRespond, bytes.NewReader(payload))
		r.Header.Set("User-Agent", crawlerUA)
		return env.do(r)
	}

	first := respond()
	require.Equal(t, http.StatusOK, first.Code)
	var ans gateway.Answer
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &ans))
	require.True(t, ans.Tailored)
	require.Equal(t, "brief", ans.Depth)

	second := respond()
	require.Equal(t, http.StatusGone, second.Code)
	require.Equal(t, feed.CodeSessionExpired, decodeError(t, second))
}

func TestServer_GatewayMalformedAnswersConsumeSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/products/red-shoe", nil)
	req.Header.Set("User-Agent", crawlerUA)
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var cold gateway.ColdStartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cold))
	id := cold.Dialog.SessionID

	first := env.do(httptest.NewRequest(http.MethodPost, gateway.PathRespond,
		strings.NewReader(`{"session_id":"`+id+`","answers":"garbage"}`)))
	require.Equal(t, http.StatusOK, first.Code)
	var ans gateway.Answer
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &ans))
	require.Equal(t, gateway.IntentSingleProduct, ans.Intent)

	second := env.do(httptest.NewRequest(http.MethodPost, gateway.PathRespond,
		strings.NewReader(`{"session_id":"`+id+`","answers":{}}`)))
	require.Equal(t, http.StatusGone, second.Code)
	require.Equal(t, feed.CodeSessionExpired, decodeError(t, second))
}

func TestServer_GatewayRespondMalformedID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodPost, gateway.PathRespond,
		strings.NewReader(`{"session_id":"not-a-uuid"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, feed.CodeInvalidSession, decodeError(t, rec))

	bad := env.do(httptest.NewRequest(http.MethodPost, gateway.PathRespond, strings.NewReader("[")))
	require.Equal(t, feed.CodeInvalidParam, decodeError(t, bad))
}

func TestServer_GatewayDirect(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/blog/first", nil)
	req.Header.Set("User-Agent", crawlerUA)
	req.Header.Set("X-OpenFeeder-Depth", "full")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var ans gateway.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ans))
	require.True(t, ans.Tailored)
	require.Equal(t, "full", ans.Depth)
	require.NotEmpty(t, ans.RecommendedEndpoints)
}

func TestServer_BypassGoesUpstream(t *testing.T) {
	t.Parallel()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("origin:" + r.URL.Path))
	}))
	defer origin.Close()
	upstream, err := NewUpstream(origin.URL, nil)
	require.NoError(t, err)

	env := newTestEnv(t, withUpstream(upstream))

	human := httptest.NewRequest(http.MethodGet, "/blog/first", nil)
	human.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/140.0")
	rec := env.do(human)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "origin:/blog/first", rec.Body.String())

	asset := httptest.NewRequest(http.MethodGet, "/static/site.css", nil)
	asset.Header.Set("User-Agent", crawlerUA)
	require.Equal(t, "origin:/static/site.css", env.do(asset).Body.String())
}

func TestServer_BypassWithoutUpstreamIsNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withoutGateway())
	req := httptest.NewRequest(http.MethodGet, "/product/trail-boots", nil)
	req.Header.Set("User-Agent", crawlerUA)
	rec := env.do(req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, feed.CodeNotFound, decodeError(t, rec))

	respond := env.do(httptest.NewRequest(http.MethodPost, gateway.PathRespond, strings.NewReader(`{}`)))
	require.Equal(t, http.StatusNotFound, respond.Code)
}

func TestNewUpstreamRejectsRelative(t *testing.T) {
	t.Parallel()

	_, err := NewUpstream("/origin", nil)
	require.Error(t, err)
}

func TestServer_RecoverMiddleware(t *testing.T) {
	t.Parallel()

	handler := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, feed.CodeInternal, decodeError(t, rec))
}

func TestEtagMatches(t *testing.T) {
	t.Parallel()

	require.True(t, etagMatches(`"abc"`, `"abc"`))
	require.True(t, etagMatches(`W/"abc", "def"`, `"abc"`))
	require.True(t, etagMatches(`*`, `"abc"`))
	require.False(t, etagMatches(``, `"abc"`))
	require.False(t, etagMatches(`"xyz"`, `"abc"`))
}
