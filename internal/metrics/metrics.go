// Package metrics exposes Prometheus collectors for the OpenFeeder service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JakeFAU/openfeeder/internal/cache"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	cacheRequestsTotal         *prometheus.CounterVec
	gatewayDecisionsTotal      *prometheus.CounterVec
	syncBucketItems            *prometheus.HistogramVec
	sessionsSweptTotal         prometheus.Counter
	notifyDroppedTotal         prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openfeeder_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "openfeeder_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"method", "route"},
		)

		cacheRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openfeeder_cache_requests_total",
				Help: "Response cache lookups, labeled by route kind and result.",
			},
			[]string{"kind", "result"},
		)

		gatewayDecisionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openfeeder_gateway_decisions_total",
				Help: "Gateway dialogue outcomes, labeled by mode.",
			},
			[]string{"mode"},
		)

		syncBucketItems = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "openfeeder_sync_bucket_items",
				Help:    "Number of entries per differential sync bucket.",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
			},
			[]string{"bucket"},
		)

		sessionsSweptTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "openfeeder_gateway_sessions_swept_total",
				Help: "Gateway sessions removed by the TTL sweeper.",
			},
		)

		notifyDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "openfeeder_notify_dropped_total",
				Help: "Notification events dropped because the hub buffer was full.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveCache records a cache lookup.
func ObserveCache(kind cache.Kind, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheRequestsTotal.WithLabelValues(string(kind), result).Inc()
}

// ObserveGateway records the mode chosen for a page request.
func ObserveGateway(mode string) {
	gatewayDecisionsTotal.WithLabelValues(mode).Inc()
}

// ObserveSync records the bucket sizes of one sync response.
func ObserveSync(added, updated, deleted int) {
	syncBucketItems.WithLabelValues("added").Observe(float64(added))
	syncBucketItems.WithLabelValues("updated").Observe(float64(updated))
	syncBucketItems.WithLabelValues("deleted").Observe(float64(deleted))
}

// ObserveSessionsSwept adds n swept sessions.
func ObserveSessionsSwept(n int) {
	if n > 0 {
		sessionsSweptTotal.Add(float64(n))
	}
}

// ObserveNotifyDropped adds n dropped notification events.
func ObserveNotifyDropped(n int64) {
	if n > 0 {
		notifyDroppedTotal.Add(float64(n))
	}
}

// CacheObserver adapts ObserveCache to the content service's observer port.
type CacheObserver struct{}

// CacheResult implements content.Observer.
func (CacheObserver) CacheResult(kind cache.Kind, hit bool) {
	ObserveCache(kind, hit)
}
