package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/openfeeder/internal/notify"
)

// PrometheusSink counts events by kind, and gateway events by crawler and
// detected page type.
type PrometheusSink struct {
	events  *prometheus.CounterVec
	crawler *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against reg (the default
// registerer when nil).
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "openfeeder_notify_events_total",
			Help: "Notification events delivered, partitioned by kind.",
		}, []string{"kind"}),
		crawler: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "openfeeder_gateway_crawler_requests_total",
			Help: "Gateway interceptions partitioned by crawler signature and page type.",
		}, []string{"agent", "page_type"}),
	}
	for _, c := range []**prometheus.CounterVec{&s.events, &s.crawler} {
		if err := register(reg, c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// register adds *c to reg, adopting the existing collector when an
// identical one is already registered.
func register(reg prometheus.Registerer, c **prometheus.CounterVec) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
			*c = existing
			return nil
		}
	}
	return fmt.Errorf("register notify collector: %w", err)
}

// Consume updates the counters.
func (s *PrometheusSink) Consume(_ context.Context, batch []notify.Event) error {
	for _, evt := range batch {
		s.events.WithLabelValues(string(evt.Kind)).Inc()
		switch evt.Kind {
		case notify.KindGatewayColdStart, notify.KindGatewayDirect, notify.KindGatewayRespond:
			s.crawler.WithLabelValues(evt.Agent, evt.State).Inc()
		}
	}
	return nil
}

// Close implements notify.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
