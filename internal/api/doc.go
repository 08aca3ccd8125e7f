// Package api hosts the HTTP server, middleware, and handlers. Notable routes:
//   - GET /.well-known/openfeeder.json for discovery.
//   - GET /openfeeder for the index, item, search and sync modes.
//   - POST /openfeeder/gateway/respond to answer a gateway dialogue.
//   - POST /openfeeder/events for content change notifications.
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//
// Every request first passes the crawler gateway, which may answer it
// directly; what it lets through is routed here or proxied upstream.
package api
