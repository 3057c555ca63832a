package metrics

import (
	"context"

	"github.com/triggerline/triggerline/internal/event"
)

// EventMetricsCollector subscribes to bus events and records metrics
type EventMetricsCollector struct{}

// NewEventMetricsCollector creates a new event metrics collector
func NewEventMetricsCollector() *EventMetricsCollector {
	return &EventMetricsCollector{}
}

// Register subscribes to all events
func (e *EventMetricsCollector) Register(bus event.Bus) error {
	eventTypes := []event.Type{
		event.TriggerEventReceived,
		event.ConnectionEstablished,
		event.ConnectionRemoved,
		event.SubscriptionActivated,
		event.SubscriptionFailed,
	}

	for _, eventType := range eventTypes {
		bus.Subscribe(eventType, e.HandleEvent)
	}

	return nil
}

// HandleEvent counts published events by type. Trigger events are
// additionally broken down by provider and delivery mode.
func (e *EventMetricsCollector) HandleEvent(ctx context.Context, evt event.Event) error {
	EventsPublished.WithLabelValues(string(evt.Type)).Inc()

	if evt.Type == event.TriggerEventReceived {
		payload, err := event.DecodePayload[event.TriggerEventPayloadV1](evt.Payload)
		if err != nil {
			return err
		}
		TriggerEventsForwarded.WithLabelValues(payload.Provider, payload.DeliveryMode).Inc()
	}

	return nil
}
