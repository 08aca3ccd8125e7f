package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/openfeeder/internal/content"
	"github.com/JakeFAU/openfeeder/internal/diffsync"
	"github.com/JakeFAU/openfeeder/internal/feed"
	"github.com/JakeFAU/openfeeder/internal/gateway"
	"github.com/JakeFAU/openfeeder/internal/hash/sha256"
	"github.com/JakeFAU/openfeeder/internal/metrics"
)

const defaultRequestTimeout = 30 * time.Second

// ContentService serves the index, item and search modes and records changes.
type ContentService interface {
	Index(ctx context.Context, page, limit int) (content.Payload, error)
	Item(ctx context.Context, url, query string) (content.Payload, error)
	Search(ctx context.Context, q string, limit int) (content.Payload, error)
	RecordChange(ctx context.Context, ev feed.ChangeEvent) error
}

// Syncer answers the since/until mode.
type Syncer interface {
	Sync(ctx context.Context, req diffsync.Request) (*diffsync.Response, error)
}

// Dialogue is the crawler gateway.
type Dialogue interface {
	Inspect(r *http.Request) gateway.Decision
	MatchAgent(ua string) (string, bool)
	Direct(r *http.Request, d gateway.Decision) *gateway.Answer
	ColdStart(ctx context.Context, r *http.Request, d gateway.Decision) (*gateway.ColdStartResponse, error)
	Respond(ctx context.Context, req gateway.RespondRequest, agent string) (*gateway.Answer, error)
}

// Deps wires a Server. Gateway, Upstream and Ready are optional; an empty
// APIKey leaves the events endpoint open.
type Deps struct {
	Content        ContentService
	Sync           Syncer
	Gateway        Dialogue
	Site           gateway.Site
	APIKey         string
	RequestTimeout time.Duration
	Upstream       http.Handler
	Ready          func(ctx context.Context) error
	Logger         *zap.Logger
}

// Server wires HTTP handlers to the content core.
type Server struct {
	router    chi.Router
	content   ContentService
	sync      Syncer
	gateway   Dialogue
	upstream  http.Handler
	ready     func(ctx context.Context) error
	hasher    *sha256.Hasher
	discovery []byte
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{
		content:  d.Content,
		sync:     d.Sync,
		gateway:  d.Gateway,
		upstream: d.Upstream,
		ready:    d.Ready,
		hasher:   sha256.New(),
		logger:   d.Logger,
	}
	s.discovery = s.buildDiscovery(d.Site)

	metrics.Init()
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(d.Logger))
	r.Use(recoverMiddleware(d.Logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(d.RequestTimeout))
	r.Use(s.gatewayMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get(gateway.PathDiscovery, s.getDiscovery)
	r.Get(gateway.PathContent, s.getContent)
	if s.gateway != nil {
		r.Post(gateway.PathRespond, s.postRespond)
	}
	r.Group(func(r chi.Router) {
		if d.APIKey != "" {
			r.Use(apiKeyMiddleware(d.APIKey, d.Logger))
		}
		r.Post(PathEvents, s.postEvents)
	})

	r.NotFound(s.passThrough)
	r.MethodNotAllowed(s.passThrough)

	s.router = r
	return s
}

// PathEvents receives content change notifications from the host platform.
const PathEvents = gateway.PathContent + "/events"

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeJSON(w, s.logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ready"})
}

// passThrough hands requests that are not protocol routes to the upstream
// origin, or answers NOT_FOUND when there is none.
func (s *Server) passThrough(w http.ResponseWriter, r *http.Request) {
	if s.upstream != nil && !gateway.IsProtocol(r.URL.Path) {
		s.upstream.ServeHTTP(w, r)
		return
	}
	writeError(w, s.logger, feed.NotFound("no route for %s %s", r.Method, r.URL.Path))
}

type discoveryDocument struct {
	Version      string            `json:"openfeeder_version"`
	Site         discoverySite     `json:"site"`
	Feed         discoveryFeed     `json:"feed"`
	Capabilities []string          `json:"capabilities"`
	Endpoints    map[string]string `json:"endpoints"`
}

type discoverySite struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type discoveryFeed struct {
	Endpoint string `json:"endpoint"`
	Type     string `json:"type"`
}

func (s *Server) buildDiscovery(site gateway.Site) []byte {
	caps := site.Capabilities
	if len(caps) == 0 {
		caps = gateway.DefaultCapabilities
	}
	endpoints := site.Endpoints()
	if s.gateway == nil {
		delete(endpoints, "respond")
	}
	doc := discoveryDocument{
		Version:      feed.Version,
		Site:         discoverySite{Name: site.Name, URL: site.BaseURL},
		Feed:         discoveryFeed{Endpoint: endpoints["index"], Type: "paginated"},
		Capabilities: caps,
		Endpoints:    endpoints,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		s.logger.Error("encode discovery document", zap.Error(err))
	}
	return body
}

func (s *Server) getDiscovery(w http.ResponseWriter, r *http.Request) {
	s.writePayload(w, r, contentTypeJSON, s.discovery, nil)
}
