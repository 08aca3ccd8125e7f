package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/openfeeder/internal/feed"
)

// Kind names what happened.
type Kind string

// Event kinds.
const (
	KindGatewayColdStart Kind = "gateway.cold_start"
	KindGatewayDirect    Kind = "gateway.direct"
	KindGatewayRespond   Kind = "gateway.respond"
	KindContentCreated   Kind = "content.created"
	KindContentUpdated   Kind = "content.updated"
	KindContentDeleted   Kind = "content.deleted"
)

// Event is one notification.
type Event struct {
	// ID is assigned by the hub when left empty; downstream consumers can use
	// it to deduplicate redeliveries.
	ID   string    `json:"id"`
	Kind Kind      `json:"kind"`
	TS   time.Time `json:"ts"`
	// URL is the page or item path the event concerns.
	URL string `json:"url"`
	// Agent is the matched crawler signature for gateway events.
	Agent string `json:"agent,omitempty"`
	// State carries the detected page type or similar low-cardinality detail.
	State string `json:"state,omitempty"`
	Note  string `json:"note,omitempty"`
}

// Validate performs coarse validation.
func (e Event) Validate() error {
	switch e.Kind {
	case KindGatewayColdStart, KindGatewayDirect, KindGatewayRespond,
		KindContentCreated, KindContentUpdated, KindContentDeleted:
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.URL == "" {
		return errors.New("url is required")
	}
	return nil
}

// ChangeKind maps a content change to its event kind.
func ChangeKind(k feed.ChangeKind) Kind {
	switch k {
	case feed.ChangeCreated:
		return KindContentCreated
	case feed.ChangeDeleted:
		return KindContentDeleted
	default:
		return KindContentUpdated
	}
}
