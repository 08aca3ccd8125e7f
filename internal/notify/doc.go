// Package notify is the fire-and-forget side channel of the service. Request
// handlers and the content service Emit events (gateway usage beacons,
// content changes); a background goroutine batches them and fans them out to
// sinks such as logs, Prometheus, Pub/Sub or a webhook. Nothing a sink does
// can slow down or fail the request that produced the event.
package notify
