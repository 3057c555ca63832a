// Package provider defines the capability interface every external provider
// adapter implements. The rest of the system only ever sees these
// operations; provider quirks (installation-based linking, per-resource
// hooks, EventSub-style subscriptions, push-channel renewal) stay behind
// the adapter boundary.
package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/triggerline/triggerline/internal/domain"
)

// Registration is the provider's answer to a webhook registration.
// ExpiresAt is set by providers whose registrations lapse and need renewal.
type Registration struct {
	ExternalID string
	ExpiresAt  *time.Time
}

// WebhookDelivery is a verified, normalized inbound webhook payload.
type WebhookDelivery struct {
	ExternalID string
	EventType  string
	DeliveryID string
	OccurredAt time.Time
	Payload    json.RawMessage
}

// Adapter translates the orchestrator's generic operations into
// provider-specific API calls and normalizes responses and errors to the
// domain taxonomy. Register/Unregister/Poll act on behalf of the given
// connection's credentials.
type Adapter interface {
	Name() string

	BuildAuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (domain.TokenSet, error)
	RefreshToken(ctx context.Context, refreshToken string) (domain.TokenSet, error)

	// RegisterWebhook registers a real-time feed for the resource. Providers
	// without webhook capability for an event type fail with
	// domain.ErrUnsupported, which is permanent and routes the tuple to
	// polling.
	RegisterWebhook(ctx context.Context, conn *domain.ServiceConnection, resourceRef string, eventTypes []string, callbackURL string) (*Registration, error)

	UnregisterWebhook(ctx context.Context, conn *domain.ServiceConnection, externalID string) error

	PollRecentEvents(ctx context.Context, conn *domain.ServiceConnection, resourceRef string, since time.Time) ([]domain.ProviderEvent, error)

	// VerifyWebhook authenticates an inbound delivery and extracts the
	// normalized payload. Unverifiable payloads must error; they are
	// rejected upstream with 4xx and never forwarded. A nil delivery
	// with a nil error is a verified control message (e.g. a channel
	// sync handshake) that is acknowledged but carries no event.
	VerifyWebhook(header http.Header, body []byte) (*WebhookDelivery, error)
}

// Options carries the per-provider configuration an adapter needs.
type Options struct {
	ClientID      string
	ClientSecret  string
	WebhookSecret string

	// APIBaseURL overrides the provider's API host, used by tests.
	APIBaseURL string

	// HTTPClient overrides the default client, used by tests.
	HTTPClient *http.Client
}
