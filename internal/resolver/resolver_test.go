package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/repository"
)

func newTestResolver() (*service, *repository.MockConnection, *repository.MockSubscription) {
	connRepo := new(repository.MockConnection)
	subRepo := new(repository.MockSubscription)
	return NewService(connRepo, subRepo).(*service), connRepo, subRepo
}

func TestResolveDefaultsToPolling(t *testing.T) {
	svc, _, subRepo := newTestResolver()
	subRepo.On("GetLiveTuple", mock.Anything, "ghapp", "acme/widgets", "push").
		Return(nil, domain.ErrSubscriptionNotFound)

	mode, err := svc.Resolve(t.Context(), "ghapp", "acme/widgets", "push")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryPolling, mode)
}

func TestResolveActiveSubscriptionConnectedOwner(t *testing.T) {
	svc, connRepo, subRepo := newTestResolver()
	subRepo.On("GetLiveTuple", mock.Anything, "ghapp", "acme/widgets", "push").
		Return(&domain.WebhookSubscription{ID: "sub-1", ConnectionID: "conn-1", Status: domain.SubscriptionActive}, nil)
	connRepo.On("GetByID", mock.Anything, "conn-1").
		Return(&domain.ServiceConnection{ID: "conn-1", Status: domain.ConnectionConnected, ExpiresAt: time.Now().Add(time.Hour)}, nil)

	mode, err := svc.Resolve(t.Context(), "ghapp", "acme/widgets", "push")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryWebhook, mode)
}

func TestResolveNonActiveStatusesStayOnPolling(t *testing.T) {
	for _, status := range []domain.SubscriptionStatus{
		domain.SubscriptionPending,
		domain.SubscriptionFailed,
	} {
		t.Run(string(status), func(t *testing.T) {
			svc, _, subRepo := newTestResolver()
			subRepo.On("GetLiveTuple", mock.Anything, "ghapp", "acme/widgets", "push").
				Return(&domain.WebhookSubscription{ID: "sub-1", ConnectionID: "conn-1", Status: status}, nil)

			mode, err := svc.Resolve(t.Context(), "ghapp", "acme/widgets", "push")
			require.NoError(t, err)
			assert.Equal(t, domain.DeliveryPolling, mode)
		})
	}
}

func TestResolveExpiredConnectionDemotesToPolling(t *testing.T) {
	svc, connRepo, subRepo := newTestResolver()
	subRepo.On("GetLiveTuple", mock.Anything, "ghapp", "acme/widgets", "push").
		Return(&domain.WebhookSubscription{ID: "sub-1", ConnectionID: "conn-1", Status: domain.SubscriptionActive}, nil)
	connRepo.On("GetByID", mock.Anything, "conn-1").
		Return(&domain.ServiceConnection{
			ID:        "conn-1",
			Status:    domain.ConnectionConnected,
			ExpiresAt: time.Now().Add(-time.Minute),
		}, nil)

	mode, err := svc.Resolve(t.Context(), "ghapp", "acme/widgets", "push")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryPolling, mode,
		"an active subscription without a usable connection must not resolve to webhook")
}

func TestResolveMissingOwnerConnection(t *testing.T) {
	svc, connRepo, subRepo := newTestResolver()
	subRepo.On("GetLiveTuple", mock.Anything, "ghapp", "acme/widgets", "push").
		Return(&domain.WebhookSubscription{ID: "sub-1", ConnectionID: "conn-gone", Status: domain.SubscriptionActive}, nil)
	connRepo.On("GetByID", mock.Anything, "conn-gone").
		Return(nil, domain.ErrConnectionNotFound)

	mode, err := svc.Resolve(t.Context(), "ghapp", "acme/widgets", "push")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryPolling, mode)
}
