// Package resolver computes the effective delivery mode for a
// (provider, resource, event type) tuple. The result is derived from
// stored state on every call and never cached, so the status API and the
// polling sweep always agree.
package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/repository"
)

// Service defines the interface for delivery mode resolution
type Service interface {
	// Resolve returns the current delivery mode for a tuple. Polling is
	// the default; Webhook requires an Active subscription whose owning
	// connection is effectively Connected. Read-only and safe to call at
	// arbitrary frequency.
	Resolve(ctx context.Context, provider, resourceRef, eventType string) (domain.DeliveryMode, error)
}

type service struct {
	connRepo repository.Connection
	subRepo  repository.Subscription
	now      func() time.Time
}

// NewService creates a new resolver service
func NewService(connRepo repository.Connection, subRepo repository.Subscription) Service {
	return &service{connRepo: connRepo, subRepo: subRepo, now: time.Now}
}

func (s *service) Resolve(ctx context.Context, provider, resourceRef, eventType string) (domain.DeliveryMode, error) {
	sub, err := s.subRepo.GetLiveTuple(ctx, provider, resourceRef, eventType)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			return domain.DeliveryPolling, nil
		}
		return domain.DeliveryPolling, err
	}
	if sub.Status != domain.SubscriptionActive {
		return domain.DeliveryPolling, nil
	}

	conn, err := s.connRepo.GetByID(ctx, sub.ConnectionID)
	if err != nil {
		if errors.Is(err, domain.ErrConnectionNotFound) {
			return domain.DeliveryPolling, nil
		}
		return domain.DeliveryPolling, err
	}
	if !conn.IsConnected(s.now()) {
		return domain.DeliveryPolling, nil
	}

	return domain.DeliveryWebhook, nil
}
