package domain

import (
	"time"
)

// SubscriptionStatus represents the lifecycle state of a webhook subscription
type SubscriptionStatus string

const (
	SubscriptionPending SubscriptionStatus = "pending"
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionFailed  SubscriptionStatus = "failed"
	SubscriptionDeleted SubscriptionStatus = "deleted"
)

// WebhookSubscription represents one registered real-time feed for a single
// (provider, resource, event type) tuple. At most one non-Deleted row exists
// per tuple; the constraint is enforced by the storage layer.
type WebhookSubscription struct {
	ID           string             `json:"id"`
	ConnectionID string             `json:"connection_id"`
	Provider     string             `json:"provider"`
	ResourceRef  string             `json:"resource_ref"`
	EventType    string             `json:"event_type"`
	// ExternalID is the provider-assigned subscription id, nil while Pending.
	ExternalID    *string            `json:"external_id"`
	Status        SubscriptionStatus `json:"status"`
	FailureReason string             `json:"failure_reason,omitempty"`
	// ExpiresAt is set for providers whose registrations lapse (push
	// channels); nil for permanent registrations.
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	EventsReceived int64      `json:"events_received"`
	LastEventAt    *time.Time `json:"last_event_at"`
	RetryCount     int        `json:"retry_count"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// DeliveryMode is the resolved mechanism by which events for a tuple reach
// the trigger engine.
type DeliveryMode string

const (
	DeliveryWebhook DeliveryMode = "webhook"
	DeliveryPolling DeliveryMode = "polling"
)

// TriggerBinding is the read-only view of an automation trigger's interest
// in a (provider, resource, event type) tuple. The orchestrator does not own
// this entity; it only enumerates enabled bindings for the polling sweep.
type TriggerBinding struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Provider    string `json:"provider"`
	ResourceRef string `json:"resource_ref"`
	EventType   string `json:"event_type"`
	Enabled     bool   `json:"enabled"`
}

// TupleKey identifies a poll/resolve target.
type TupleKey struct {
	Provider    string
	ResourceRef string
	EventType   string
}
