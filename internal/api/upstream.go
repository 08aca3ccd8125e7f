package api

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/openfeeder/internal/feed"
)

// NewUpstream builds a reverse proxy to the origin site for page requests
// the gateway lets through.
func NewUpstream(rawURL string, logger *zap.Logger) (http.Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	target, err := url.Parse(rawURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream url %q must be absolute", rawURL)
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("upstream request failed", zap.Error(err), zap.String("path", r.URL.Path))
			writeError(w, logger, &feed.Error{
				Code:    feed.CodeInternal,
				Status:  http.StatusBadGateway,
				Message: "upstream unavailable",
			})
		},
	}, nil
}
