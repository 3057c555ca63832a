// Package event provides the in-process event bus the orchestrator uses to
// hand normalized provider events to the trigger-matching collaborator,
// plus lifecycle notifications other components can observe.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/triggerline/triggerline/internal/domain"
)

// Type represents the type of an event
type Type string

// Metadata defines the type for event metadata
type Metadata interface{}

// Event represents a generic event in the system
type Event struct {
	Version  string      `json:"version"` // Event schema version (e.g., "1.0")
	Type     Type        `json:"type"`
	Payload  interface{} `json:"payload"`
	Metadata Metadata    `json:"metadata"`
}

// GetMetadataValue extracts a value from the event metadata safely
func (e Event) GetMetadataValue(key string) interface{} {
	if e.Metadata == nil {
		return nil
	}
	if m, ok := e.Metadata.(map[string]interface{}); ok {
		return m[key]
	}
	return nil
}

// Common event types
const (
	// TriggerEventReceived carries a verified provider event toward the
	// trigger-matching collaborator, regardless of delivery mode.
	TriggerEventReceived Type = "trigger.event.received"

	// Connection lifecycle notifications
	ConnectionEstablished Type = "connection.established"
	ConnectionRemoved     Type = "connection.removed"

	// Subscription lifecycle notifications
	SubscriptionActivated Type = "subscription.activated"
	SubscriptionFailed    Type = "subscription.failed"
)

// TriggerEventPayloadV1 is the typed payload for trigger events
type TriggerEventPayloadV1 struct {
	Provider     string          `json:"provider"`
	ResourceRef  string          `json:"resource_ref"`
	EventType    string          `json:"event_type"`
	DeliveryID   string          `json:"delivery_id"`
	DeliveryMode string          `json:"delivery_mode"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Payload      json.RawMessage `json:"payload"`
}

// ConnectionPayloadV1 is the typed payload for connection lifecycle events
type ConnectionPayloadV1 struct {
	UserID   string `json:"user_id"`
	Provider string `json:"provider"`
}

// SubscriptionPayloadV1 is the typed payload for subscription lifecycle events
type SubscriptionPayloadV1 struct {
	SubscriptionID string `json:"subscription_id"`
	Provider       string `json:"provider"`
	ResourceRef    string `json:"resource_ref"`
	EventType      string `json:"event_type"`
	Reason         string `json:"reason,omitempty"`
}

// NewTriggerEvent wraps a normalized provider event for the bus
func NewTriggerEvent(ev domain.ProviderEvent, mode domain.DeliveryMode) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    TriggerEventReceived,
		Payload: TriggerEventPayloadV1{
			Provider:     ev.Provider,
			ResourceRef:  ev.ResourceRef,
			EventType:    ev.EventType,
			DeliveryID:   ev.DeliveryID,
			DeliveryMode: string(mode),
			OccurredAt:   ev.OccurredAt,
			Payload:      ev.Payload,
		},
		Metadata: map[string]interface{}{
			"source": string(mode),
		},
	}
}

// NewConnectionEvent creates a connection lifecycle event
func NewConnectionEvent(eventType Type, userID, provider string) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    eventType,
		Payload: ConnectionPayloadV1{UserID: userID, Provider: provider},
	}
}

// NewSubscriptionEvent creates a subscription lifecycle event
func NewSubscriptionEvent(eventType Type, sub domain.WebhookSubscription) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    eventType,
		Payload: SubscriptionPayloadV1{
			SubscriptionID: sub.ID,
			Provider:       sub.Provider,
			ResourceRef:    sub.ResourceRef,
			EventType:      sub.EventType,
			Reason:         sub.FailureReason,
		},
	}
}

// Handler is a function that handles an event
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for an event bus
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType Type, handler Handler)
}

// MemoryBus is an in-memory implementation of the Event Bus
type MemoryBus struct {
	handlers map[Type][]Handler
	mu       sync.RWMutex
}

// NewMemoryBus creates a new MemoryBus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers: make(map[Type][]Handler),
	}
}

// Publish publishes an event to all subscribers
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers, ok := b.handlers[event.Type]
	b.mu.RUnlock()

	if !ok {
		return nil
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf(LogMsgHandlerErrorFormat, len(errs), event.Type, errs)
	}

	return nil
}

// Subscribe subscribes a handler to an event type
func (b *MemoryBus) Subscribe(eventType Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}
