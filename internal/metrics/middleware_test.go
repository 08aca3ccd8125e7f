package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/feeds/{kind}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	series := testutil.CollectAndCount(httpRequestDurationSeconds)
	teapots := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "418"))
	notFound := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "404"))

	for _, path := range []string{"/feeds/a", "/feeds/b", "/nowhere"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.InDelta(t, teapots+2, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "418")), 1e-9)
	require.InDelta(t, notFound+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "404")), 1e-9)
	// Both /feeds requests share one series; the miss lands in "unmatched".
	require.LessOrEqual(t, testutil.CollectAndCount(httpRequestDurationSeconds), series+2)
	require.Greater(t, testutil.CollectAndCount(httpRequestDurationSeconds), series)
}

func TestResponseWriterUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}
	require.Same(t, rec, rw.Unwrap())
	rw.WriteHeader(http.StatusAccepted)
	require.Equal(t, http.StatusAccepted, rw.status)
	require.Equal(t, http.StatusAccepted, rec.Code)
}
