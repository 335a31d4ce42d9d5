package events

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/empower-grid/gridauth"
)

// DefaultTopic is the stream audit events are published to when no topic is
// configured.
const DefaultTopic = "gridauth.audit"

// WatermillSink publishes audit events to a Watermill topic. It implements
// [gridauth.AuditSink].
type WatermillSink struct {
	publisher message.Publisher
	topic     string
	failures  atomic.Uint64
}

// NewWatermillSink creates a sink publishing to [DefaultTopic].
func NewWatermillSink(publisher message.Publisher) *WatermillSink {
	return NewWatermillSinkWithTopic(publisher, DefaultTopic)
}

// NewWatermillSinkWithTopic creates a sink publishing to the given topic.
func NewWatermillSinkWithTopic(publisher message.Publisher, topic string) *WatermillSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

// Emit serializes the event and publishes it. Publish failures are counted,
// never surfaced: audit delivery must not affect auth flows.
func (s *WatermillSink) Emit(_ context.Context, event gridauth.AuditEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.failures.Add(1)
		return
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("event_type", event.EventType)

	if err := s.publisher.Publish(s.topic, msg); err != nil {
		s.failures.Add(1)
	}
}

// Failures returns how many events failed to serialize or publish.
func (s *WatermillSink) Failures() uint64 {
	return s.failures.Load()
}
