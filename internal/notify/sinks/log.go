package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/openfeeder/internal/notify"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs every event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []notify.Event) error {
	for _, evt := range batch {
		s.logger.Info("notification",
			zap.String("id", evt.ID),
			zap.String("kind", string(evt.Kind)),
			zap.Time("ts", evt.TS),
			zap.String("url", evt.URL),
			zap.String("agent", evt.Agent),
			zap.String("state", evt.State),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements notify.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
