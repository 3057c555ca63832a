package repository

import (
	"context"
	"time"

	"github.com/triggerline/triggerline/internal/domain"
)

// Subscription defines the interface for webhook subscription persistence
type Subscription interface {
	// Insert adds a Pending row. Returns domain.ErrDuplicateSubscription
	// when the partial unique index on the live tuple rejects the write.
	Insert(ctx context.Context, sub domain.WebhookSubscription) (*domain.WebhookSubscription, error)

	// GetByID looks up a subscription regardless of status.
	GetByID(ctx context.Context, id string) (*domain.WebhookSubscription, error)

	// GetLiveTuple returns the non-deleted row for a tuple, if any.
	GetLiveTuple(ctx context.Context, provider, resourceRef, eventType string) (*domain.WebhookSubscription, error)

	// GetByExternalID maps a provider's subscription id back to the local row.
	GetByExternalID(ctx context.Context, provider, externalID string) (*domain.WebhookSubscription, error)

	// ListByConnection returns all non-deleted subscriptions owned by a
	// connection, optionally filtered by resource_ref (empty = all).
	ListByConnection(ctx context.Context, connectionID, resourceRef string) ([]domain.WebhookSubscription, error)

	// UpdateRegistration finalizes a registration attempt: status plus the
	// provider-assigned external id and expiry when the attempt succeeded.
	UpdateRegistration(ctx context.Context, id string, status domain.SubscriptionStatus, externalID *string, expiresAt *time.Time) error

	// MarkFailed records a permanent failure with a caller-visible reason.
	MarkFailed(ctx context.Context, id, reason string) error

	// ScheduleRetry leaves the row Pending and stamps the deferred retry.
	ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time) error

	// MarkDeleted tombstones a single subscription.
	MarkDeleted(ctx context.Context, id string) error

	// MarkDeletedByConnection tombstones every live subscription owned by a
	// connection (disconnect cascade).
	MarkDeletedByConnection(ctx context.Context, connectionID string) error

	// RecordEvent bumps the delivery counters for the row matching an
	// external subscription id.
	RecordEvent(ctx context.Context, provider, externalID string, at time.Time) error

	// ListRetryDue returns Pending rows whose deferred retry is due.
	ListRetryDue(ctx context.Context, now time.Time) ([]domain.WebhookSubscription, error)

	// ListExpiringBefore returns Active rows whose provider registration
	// lapses before the given instant (push-channel renewal).
	ListExpiringBefore(ctx context.Context, before time.Time) ([]domain.WebhookSubscription, error)
}
