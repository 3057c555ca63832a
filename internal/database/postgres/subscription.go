package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triggerline/triggerline/internal/domain"
)

// SubscriptionRepository implements the webhook subscription repository for PostgreSQL
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

// NewSubscriptionRepository creates a new SubscriptionRepository
func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `subscription_id, connection_id, provider, resource_ref, event_type,
       external_id, status, failure_reason, expires_at, events_received, last_event_at,
       retry_count, next_retry_at, created_at, updated_at`

// Insert adds a Pending row. The partial unique index on the live tuple is
// the dedup point for concurrent creates; violations surface as
// domain.ErrDuplicateSubscription so the service can re-read the winner.
func (r *SubscriptionRepository) Insert(ctx context.Context, sub domain.WebhookSubscription) (*domain.WebhookSubscription, error) {
	query := `
		INSERT INTO webhook_subscriptions (connection_id, provider, resource_ref, event_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + subscriptionColumns + `
	`
	row := r.db.QueryRow(ctx, query,
		sub.ConnectionID,
		sub.Provider,
		sub.ResourceRef,
		sub.EventType,
		sub.Status,
	)
	out, err := scanSubscription(row)
	if isUniqueViolation(err) {
		return nil, domain.ErrDuplicateSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert subscription: %w", err)
	}
	return out, nil
}

// GetByID looks up a subscription regardless of status
func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.WebhookSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM webhook_subscriptions WHERE subscription_id = $1`
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// GetLiveTuple returns the non-deleted row for a tuple, if any
func (r *SubscriptionRepository) GetLiveTuple(ctx context.Context, provider, resourceRef, eventType string) (*domain.WebhookSubscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM webhook_subscriptions
		WHERE provider = $1 AND resource_ref = $2 AND event_type = $3 AND status <> $4
	`
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, provider, resourceRef, eventType, domain.SubscriptionDeleted))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription tuple: %w", err)
	}
	return sub, nil
}

// GetByExternalID maps a provider subscription id back to the local row
func (r *SubscriptionRepository) GetByExternalID(ctx context.Context, provider, externalID string) (*domain.WebhookSubscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM webhook_subscriptions
		WHERE provider = $1 AND external_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, provider, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription by external id: %w", err)
	}
	return sub, nil
}

// ListByConnection returns non-deleted subscriptions for a connection,
// optionally filtered by resource_ref (empty matches all).
func (r *SubscriptionRepository) ListByConnection(ctx context.Context, connectionID, resourceRef string) ([]domain.WebhookSubscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM webhook_subscriptions
		WHERE connection_id = $1 AND status <> $2 AND ($3 = '' OR resource_ref = $3)
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, connectionID, domain.SubscriptionDeleted, resourceRef)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// UpdateRegistration finalizes a registration attempt
func (r *SubscriptionRepository) UpdateRegistration(ctx context.Context, id string, status domain.SubscriptionStatus, externalID *string, expiresAt *time.Time) error {
	query := `
		UPDATE webhook_subscriptions
		SET status = $2, external_id = $3, expires_at = $4, failure_reason = '', next_retry_at = NULL, updated_at = NOW()
		WHERE subscription_id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, status, externalID, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to update subscription registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// MarkFailed records a permanent failure with a caller-visible reason
func (r *SubscriptionRepository) MarkFailed(ctx context.Context, id, reason string) error {
	query := `
		UPDATE webhook_subscriptions
		SET status = $2, failure_reason = $3, next_retry_at = NULL, updated_at = NOW()
		WHERE subscription_id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, domain.SubscriptionFailed, reason)
	if err != nil {
		return fmt.Errorf("failed to mark subscription failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// ScheduleRetry leaves the row Pending and stamps the deferred retry
func (r *SubscriptionRepository) ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time) error {
	query := `
		UPDATE webhook_subscriptions
		SET retry_count = retry_count + 1, next_retry_at = $2, updated_at = NOW()
		WHERE subscription_id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, nextRetryAt)
	if err != nil {
		return fmt.Errorf("failed to schedule subscription retry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// MarkDeleted tombstones a single subscription
func (r *SubscriptionRepository) MarkDeleted(ctx context.Context, id string) error {
	query := `
		UPDATE webhook_subscriptions
		SET status = $2, updated_at = NOW()
		WHERE subscription_id = $1 AND status <> $2
	`
	_, err := r.db.Exec(ctx, query, id, domain.SubscriptionDeleted)
	if err != nil {
		return fmt.Errorf("failed to mark subscription deleted: %w", err)
	}
	return nil
}

// MarkDeletedByConnection tombstones every live subscription owned by a
// connection (disconnect cascade)
func (r *SubscriptionRepository) MarkDeletedByConnection(ctx context.Context, connectionID string) error {
	query := `
		UPDATE webhook_subscriptions
		SET status = $2, updated_at = NOW()
		WHERE connection_id = $1 AND status <> $2
	`
	_, err := r.db.Exec(ctx, query, connectionID, domain.SubscriptionDeleted)
	if err != nil {
		return fmt.Errorf("failed to cascade subscription deletion: %w", err)
	}
	return nil
}

// RecordEvent bumps delivery counters for the row matching an external id.
// Deleted rows are intentionally not matched; events for them are dropped.
func (r *SubscriptionRepository) RecordEvent(ctx context.Context, provider, externalID string, at time.Time) error {
	query := `
		UPDATE webhook_subscriptions
		SET events_received = events_received + 1, last_event_at = $3, updated_at = NOW()
		WHERE provider = $1 AND external_id = $2 AND status <> $4
	`
	tag, err := r.db.Exec(ctx, query, provider, externalID, at, domain.SubscriptionDeleted)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// ListRetryDue returns Pending rows whose deferred retry is due
func (r *SubscriptionRepository) ListRetryDue(ctx context.Context, now time.Time) ([]domain.WebhookSubscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM webhook_subscriptions
		WHERE status = $1 AND next_retry_at IS NOT NULL AND next_retry_at <= $2
		ORDER BY next_retry_at
	`
	rows, err := r.db.Query(ctx, query, domain.SubscriptionPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list retry-due subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// ListExpiringBefore returns Active rows whose registration lapses before
// the given instant
func (r *SubscriptionRepository) ListExpiringBefore(ctx context.Context, before time.Time) ([]domain.WebhookSubscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM webhook_subscriptions
		WHERE status = $1 AND expires_at IS NOT NULL AND expires_at <= $2
		ORDER BY expires_at
	`
	rows, err := r.db.Query(ctx, query, domain.SubscriptionActive, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func scanSubscription(row pgx.Row) (*domain.WebhookSubscription, error) {
	var sub domain.WebhookSubscription
	err := row.Scan(
		&sub.ID, &sub.ConnectionID, &sub.Provider, &sub.ResourceRef, &sub.EventType,
		&sub.ExternalID, &sub.Status, &sub.FailureReason, &sub.ExpiresAt, &sub.EventsReceived,
		&sub.LastEventAt, &sub.RetryCount, &sub.NextRetryAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func collectSubscriptions(rows pgx.Rows) ([]domain.WebhookSubscription, error) {
	subs := make([]domain.WebhookSubscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return subs, nil
}
