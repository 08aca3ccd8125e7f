// Package sinks contains notify.Sink implementations: structured logs,
// Prometheus counters, a message publisher and an HTTP webhook.
package sinks
