package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/openfeeder/internal/notify"
)

// Publisher delivers one payload to a topic and returns the broker message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// PublisherSink forwards content-change events to a message broker so that
// downstream indexers can react without polling the sync endpoint. Gateway
// beacons are not published.
type PublisherSink struct {
	publisher Publisher
	topic     string
	all       bool
}

// NewPublisherSink builds a sink. When all is true gateway events are
// published too.
func NewPublisherSink(publisher Publisher, topic string, all bool) (*PublisherSink, error) {
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	return &PublisherSink{publisher: publisher, topic: topic, all: all}, nil
}

// Consume publishes events one by one, continuing past failures and
// returning them joined.
func (s *PublisherSink) Consume(ctx context.Context, batch []notify.Event) error {
	var errs []error
	for _, evt := range batch {
		if !s.all && !isContentEvent(evt.Kind) {
			continue
		}
		if _, err := s.publisher.Publish(ctx, s.topic, evt); err != nil {
			errs = append(errs, fmt.Errorf("publish %s %s: %w", evt.Kind, evt.URL, err))
		}
	}
	return errors.Join(errs...)
}

// Close implements notify.Sink.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}

func isContentEvent(k notify.Kind) bool {
	switch k {
	case notify.KindContentCreated, notify.KindContentUpdated, notify.KindContentDeleted:
		return true
	default:
		return false
	}
}
