package domain

import (
	"encoding/json"
	"time"
)

// ProviderEvent is a normalized event observed on a watched resource,
// either delivered by webhook or fetched by a polling sweep. Payload keeps
// the provider's raw body so the trigger engine can apply its own matching.
type ProviderEvent struct {
	Provider    string          `json:"provider"`
	ResourceRef string          `json:"resource_ref"`
	EventType   string          `json:"event_type"`
	// DeliveryID is the provider's per-delivery identifier, used to drop
	// redelivered webhooks. Empty for polled events.
	DeliveryID string          `json:"delivery_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}
