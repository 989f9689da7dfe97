package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sink receives every event after the hub, e.g. a message broker.
type Sink interface {
	Publish(ctx context.Context, typ string, body []byte) error
}

// Bus stamps events once and hands them to the hub and every sink.
// A nil *Bus drops everything.
type Bus struct {
	Hub   *Hub
	Sinks []Sink
	Log   *zap.Logger
	Now   func() time.Time
}

func (b *Bus) Emit(ctx context.Context, reqID, typ string, data any) {
	if b == nil {
		return
	}
	at := time.Now().UTC()
	if b.Now != nil {
		at = b.Now().UTC()
	}
	body := encode(reqID, typ, 1, at, data)
	if b.Hub != nil {
		b.Hub.Publish(string(body))
	}
	for _, s := range b.Sinks {
		if err := s.Publish(ctx, typ, body); err != nil && b.Log != nil {
			b.Log.Named("events").Warn("sink publish failed", zap.String("type", typ), zap.Error(err))
		}
	}
}
