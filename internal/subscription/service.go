// Package subscription implements the webhook subscription registry: one
// row per (provider, resource, event type) tuple, idempotent creation,
// tombstone deletion and delivery accounting. The storage-level unique
// index on the live tuple is the real dedup guard; this service only
// reacts to it.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/event"
	"github.com/triggerline/triggerline/internal/logger"
	"github.com/triggerline/triggerline/internal/metrics"
	"github.com/triggerline/triggerline/internal/provider"
	"github.com/triggerline/triggerline/internal/repository"
)

// DefaultRetryBackoff delays the single deferred retry after a provider
// rate limit. Creation is human-triggered, so one retry is enough.
const DefaultRetryBackoff = 2 * time.Minute

// Service defines the interface for subscription registry operations
type Service interface {
	// Create registers webhook subscriptions for each event type on the
	// tuple. Existing live rows are returned unchanged (idempotent).
	Create(ctx context.Context, userID, providerID, resourceRef string, eventTypes []string) ([]domain.WebhookSubscription, error)

	// Delete tombstones a subscription. The provider-side unregister call
	// is best effort: a dangling remote registration is harmless, a stuck
	// local row blocks recreation.
	Delete(ctx context.Context, id string) error

	// List returns the non-deleted subscriptions for a user's provider
	// connection, optionally filtered by resource reference.
	List(ctx context.Context, userID, providerID, resourceRef string) ([]domain.WebhookSubscription, error)

	// FindByExternalID maps a provider-assigned subscription id back to
	// the local row, deleted rows included.
	FindByExternalID(ctx context.Context, providerID, externalID string) (*domain.WebhookSubscription, error)

	// RecordEvent bumps delivery counters for the row matching a
	// provider-assigned external id.
	RecordEvent(ctx context.Context, providerID, externalID string, at time.Time) error

	// RetryPending re-attempts registration for Pending rows whose
	// deferred retry is due.
	RetryPending(ctx context.Context, now time.Time) error

	// RenewExpiring re-registers Active rows whose provider registration
	// lapses within the window (push-channel renewal).
	RenewExpiring(ctx context.Context, window time.Duration) error
}

// TokenSource yields a connection bearing a currently valid access
// token, refreshing behind the scenes when the stored one has lapsed.
// Provider registration calls always go through it so a stale token
// never reaches an adapter.
type TokenSource interface {
	GetFresh(ctx context.Context, userID, providerID string) (*domain.ServiceConnection, error)
}

type service struct {
	repo         repository.Subscription
	connRepo     repository.Connection
	providers    *provider.Registry
	tokens       TokenSource
	bus          event.Bus
	callbackURL  func(providerID string) string
	retryBackoff time.Duration
	now          func() time.Time
}

// Config holds the service's wiring options.
type Config struct {
	// WebhookBaseURL is the externally reachable base for inbound webhook
	// endpoints, e.g. https://host/webhooks.
	WebhookBaseURL string

	// RetryBackoff overrides DefaultRetryBackoff when positive.
	RetryBackoff time.Duration
}

// NewService creates a new subscription registry service
func NewService(repo repository.Subscription, connRepo repository.Connection, providers *provider.Registry, tokens TokenSource, bus event.Bus, cfg Config) Service {
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	return &service{
		repo:      repo,
		connRepo:  connRepo,
		providers: providers,
		tokens:    tokens,
		bus:       bus,
		callbackURL: func(providerID string) string {
			return cfg.WebhookBaseURL + "/" + providerID
		},
		retryBackoff: backoff,
		now:          time.Now,
	}
}

func (s *service) Create(ctx context.Context, userID, providerID, resourceRef string, eventTypes []string) ([]domain.WebhookSubscription, error) {
	if len(eventTypes) == 0 {
		return nil, fmt.Errorf("%w: at least one event type required", domain.ErrInvalidResource)
	}

	adapter, err := s.providers.Get(providerID)
	if err != nil {
		return nil, err
	}
	conn, err := s.tokens.GetFresh(ctx, userID, providerID)
	if err != nil {
		return nil, err
	}

	results := make([]domain.WebhookSubscription, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		sub, err := s.createOne(ctx, adapter, conn, resourceRef, eventType)
		if err != nil {
			return nil, err
		}
		results = append(results, *sub)
	}
	return results, nil
}

// createOne runs the registration state machine for a single tuple.
func (s *service) createOne(ctx context.Context, adapter provider.Adapter, conn *domain.ServiceConnection, resourceRef, eventType string) (*domain.WebhookSubscription, error) {
	if existing, err := s.repo.GetLiveTuple(ctx, conn.Provider, resourceRef, eventType); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, err
	}

	inserted, err := s.repo.Insert(ctx, domain.WebhookSubscription{
		ID:           uuid.NewString(),
		ConnectionID: conn.ID,
		Provider:     conn.Provider,
		ResourceRef:  resourceRef,
		EventType:    eventType,
		Status:       domain.SubscriptionPending,
	})
	if err != nil {
		// A concurrent create won the race; its row is the subscription.
		if errors.Is(err, domain.ErrDuplicateSubscription) {
			return s.repo.GetLiveTuple(ctx, conn.Provider, resourceRef, eventType)
		}
		return nil, err
	}

	return s.register(ctx, adapter, conn, inserted)
}

// register performs the provider call and finalizes the row's status.
// Outcome mapping: success → Active, Unsupported/InvalidResource →
// Failed (permanent, reason retained), RateLimited → Pending with one
// deferred retry, anything else → Failed.
func (s *service) register(ctx context.Context, adapter provider.Adapter, conn *domain.ServiceConnection, sub *domain.WebhookSubscription) (*domain.WebhookSubscription, error) {
	log := logger.FromContext(ctx)

	reg, err := adapter.RegisterWebhook(ctx, conn, sub.ResourceRef, []string{sub.EventType}, s.callbackURL(sub.Provider))
	switch {
	case err == nil:
		if updateErr := s.repo.UpdateRegistration(ctx, sub.ID, domain.SubscriptionActive, &reg.ExternalID, reg.ExpiresAt); updateErr != nil {
			return nil, updateErr
		}
		sub.Status = domain.SubscriptionActive
		sub.ExternalID = &reg.ExternalID
		sub.ExpiresAt = reg.ExpiresAt
		metrics.SubscriptionTransitions.WithLabelValues(sub.Provider, string(domain.SubscriptionActive)).Inc()
		s.notify(ctx, event.SubscriptionActivated, sub)
		log.Info("Webhook registered",
			"subscription_id", sub.ID, "provider", sub.Provider, "external_id", reg.ExternalID)

	case errors.Is(err, domain.ErrUnsupported), errors.Is(err, domain.ErrInvalidResource):
		reason := err.Error()
		if markErr := s.repo.MarkFailed(ctx, sub.ID, reason); markErr != nil {
			return nil, markErr
		}
		sub.Status = domain.SubscriptionFailed
		sub.FailureReason = reason
		metrics.SubscriptionTransitions.WithLabelValues(sub.Provider, string(domain.SubscriptionFailed)).Inc()
		s.notify(ctx, event.SubscriptionFailed, sub)
		log.Info("Webhook registration permanently failed, tuple stays on polling",
			"subscription_id", sub.ID, "provider", sub.Provider, "reason", reason)

	case errors.Is(err, domain.ErrRateLimited):
		if sub.RetryCount > 0 {
			// Already retried once; give up rather than loop.
			if markErr := s.repo.MarkFailed(ctx, sub.ID, "provider rate limit persisted across retry"); markErr != nil {
				return nil, markErr
			}
			sub.Status = domain.SubscriptionFailed
			metrics.SubscriptionTransitions.WithLabelValues(sub.Provider, string(domain.SubscriptionFailed)).Inc()
			s.notify(ctx, event.SubscriptionFailed, sub)
			break
		}
		retryAt := s.now().Add(s.retryBackoff)
		if schedErr := s.repo.ScheduleRetry(ctx, sub.ID, retryAt); schedErr != nil {
			return nil, schedErr
		}
		sub.NextRetryAt = &retryAt
		log.Warn("Webhook registration rate limited, retry scheduled",
			"subscription_id", sub.ID, "provider", sub.Provider, "retry_at", retryAt)

	default:
		reason := err.Error()
		if markErr := s.repo.MarkFailed(ctx, sub.ID, reason); markErr != nil {
			return nil, markErr
		}
		sub.Status = domain.SubscriptionFailed
		sub.FailureReason = reason
		metrics.SubscriptionTransitions.WithLabelValues(sub.Provider, string(domain.SubscriptionFailed)).Inc()
		s.notify(ctx, event.SubscriptionFailed, sub)
		log.Error("Webhook registration failed",
			"subscription_id", sub.ID, "provider", sub.Provider, "error", err)
	}

	return sub, nil
}

// notify publishes a subscription lifecycle event, best effort.
func (s *service) notify(ctx context.Context, eventType event.Type, sub *domain.WebhookSubscription) {
	if err := s.bus.Publish(ctx, event.NewSubscriptionEvent(eventType, *sub)); err != nil {
		logger.FromContext(ctx).Error("Failed to publish subscription event",
			"subscription_id", sub.ID, "event_type", eventType, "error", err)
	}
}

func (s *service) Delete(ctx context.Context, id string) error {
	log := logger.FromContext(ctx)

	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status == domain.SubscriptionDeleted {
		return nil
	}

	if sub.ExternalID != nil {
		if err := s.unregister(ctx, sub); err != nil {
			log.Warn("Provider-side deregistration failed, tombstoning anyway",
				"subscription_id", sub.ID, "provider", sub.Provider, "error", err)
		}
	}

	if err := s.repo.MarkDeleted(ctx, id); err != nil {
		return err
	}
	metrics.SubscriptionTransitions.WithLabelValues(sub.Provider, string(domain.SubscriptionDeleted)).Inc()
	log.Info("Subscription deleted", "subscription_id", id, "provider", sub.Provider)
	return nil
}

func (s *service) unregister(ctx context.Context, sub *domain.WebhookSubscription) error {
	adapter, err := s.providers.Get(sub.Provider)
	if err != nil {
		return err
	}
	conn, err := s.freshConnection(ctx, sub.ConnectionID)
	if err != nil {
		return err
	}
	return adapter.UnregisterWebhook(ctx, conn, *sub.ExternalID)
}

// freshConnection resolves a subscription's owning connection with a
// valid access token, refreshing an expired one along the way.
func (s *service) freshConnection(ctx context.Context, connectionID string) (*domain.ServiceConnection, error) {
	conn, err := s.connRepo.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return s.tokens.GetFresh(ctx, conn.UserID, conn.Provider)
}

func (s *service) List(ctx context.Context, userID, providerID, resourceRef string) ([]domain.WebhookSubscription, error) {
	conn, err := s.connRepo.Get(ctx, userID, providerID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByConnection(ctx, conn.ID, resourceRef)
}

func (s *service) FindByExternalID(ctx context.Context, providerID, externalID string) (*domain.WebhookSubscription, error) {
	return s.repo.GetByExternalID(ctx, providerID, externalID)
}

func (s *service) RecordEvent(ctx context.Context, providerID, externalID string, at time.Time) error {
	return s.repo.RecordEvent(ctx, providerID, externalID, at)
}

func (s *service) RetryPending(ctx context.Context, now time.Time) error {
	log := logger.FromContext(ctx)

	due, err := s.repo.ListRetryDue(ctx, now)
	if err != nil {
		return err
	}

	for i := range due {
		sub := &due[i]
		adapter, err := s.providers.Get(sub.Provider)
		if err != nil {
			log.Error("Retry skipped, adapter missing", "subscription_id", sub.ID, "error", err)
			continue
		}
		conn, err := s.freshConnection(ctx, sub.ConnectionID)
		if err != nil {
			log.Error("Retry skipped, connection lookup failed", "subscription_id", sub.ID, "error", err)
			continue
		}
		if _, err := s.register(ctx, adapter, conn, sub); err != nil {
			log.Error("Retry attempt failed to persist", "subscription_id", sub.ID, "error", err)
		}
	}
	return nil
}

func (s *service) RenewExpiring(ctx context.Context, window time.Duration) error {
	log := logger.FromContext(ctx)

	expiring, err := s.repo.ListExpiringBefore(ctx, s.now().Add(window))
	if err != nil {
		return err
	}

	for i := range expiring {
		sub := &expiring[i]
		adapter, err := s.providers.Get(sub.Provider)
		if err != nil {
			log.Error("Renewal skipped, adapter missing", "subscription_id", sub.ID, "error", err)
			continue
		}
		conn, err := s.freshConnection(ctx, sub.ConnectionID)
		if err != nil {
			log.Error("Renewal skipped, connection lookup failed", "subscription_id", sub.ID, "error", err)
			continue
		}

		// Open the replacement registration before dropping the old one so
		// a provider failure leaves the current channel serving events.
		reg, err := adapter.RegisterWebhook(ctx, conn, sub.ResourceRef, []string{sub.EventType}, s.callbackURL(sub.Provider))
		if err != nil {
			log.Warn("Renewal registration failed, keeping current channel",
				"subscription_id", sub.ID, "provider", sub.Provider, "error", err)
			continue
		}

		oldExternalID := sub.ExternalID
		if err := s.repo.UpdateRegistration(ctx, sub.ID, domain.SubscriptionActive, &reg.ExternalID, reg.ExpiresAt); err != nil {
			log.Error("Renewal failed to persist", "subscription_id", sub.ID, "error", err)
			continue
		}
		if oldExternalID != nil && *oldExternalID != reg.ExternalID {
			if err := adapter.UnregisterWebhook(ctx, conn, *oldExternalID); err != nil {
				log.Warn("Failed to close superseded channel",
					"subscription_id", sub.ID, "external_id", *oldExternalID, "error", err)
			}
		}
		log.Info("Registration renewed", "subscription_id", sub.ID, "external_id", reg.ExternalID)
	}
	return nil
}
