// Package sink delivers decoded events to a downstream consumer (component
// G, spec.md §4.G).
package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/flowlens/flowlens/internal/mysql"
)

// Sink accepts decoded events from the pipeline coordinator. Deliver must
// not block indefinitely on a cancelled context.
type Sink interface {
	Deliver(ctx context.Context, event mysql.Event) error
	Close() error
}

// ChannelSink forwards events onto a bounded Go channel, applying
// backpressure to the caller once it fills (spec.md §4.G: "When bounded and
// full, apply backpressure by blocking the decoder"). On every
// highWatermark-th delivery, if the channel is at capacity at that moment,
// it logs a warning so an operator watching logs (not just /metrics) can see
// the pipeline falling behind.
type ChannelSink struct {
	events chan mysql.Event
	logger *zap.Logger

	highWatermark int
	delivered     uint64
}

// NewChannelSink returns a ChannelSink with the given channel capacity.
func NewChannelSink(capacity, highWatermark int, logger *zap.Logger) *ChannelSink {
	return &ChannelSink{
		events:        make(chan mysql.Event, capacity),
		logger:        logger,
		highWatermark: highWatermark,
	}
}

// Events returns the channel consumers should range over.
func (s *ChannelSink) Events() <-chan mysql.Event {
	return s.events
}

// Deliver blocks until the event is queued or ctx is cancelled.
func (s *ChannelSink) Deliver(ctx context.Context, event mysql.Event) error {
	select {
	case s.events <- event:
		s.delivered++
		if s.highWatermark > 0 && s.delivered%uint64(s.highWatermark) == 0 && len(s.events) == cap(s.events) {
			s.logger.Warn("event sink channel at capacity", zap.Int("capacity", cap(s.events)))
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the underlying channel. Closure by the consumer side (per
// spec.md §4.G) is signaled by cancelling the pipeline context instead;
// Close here is called by the producer once it is done sending.
func (s *ChannelSink) Close() error {
	close(s.events)
	return nil
}

// LogSink writes every event as a structured log line. Useful standalone
// (piping events straight to the process log) or composed with a
// ChannelSink consumer that also wants a durable audit trail.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a Sink that logs each event at INFO.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver logs event and never blocks or errors.
func (s *LogSink) Deliver(_ context.Context, event mysql.Event) error {
	s.logger.Info("mysql event",
		zap.String("session_id", event.SessionID),
		zap.Uint64("event_index", event.EventIndex),
		zap.String("direction", event.Direction.String()),
		zap.String("kind", event.Kind),
	)
	return nil
}

// Close is a no-op for LogSink.
func (s *LogSink) Close() error { return nil }
