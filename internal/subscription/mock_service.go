package subscription

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/triggerline/triggerline/internal/domain"
)

// MockService is a mock implementation of Service for testing
type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, userID, providerID, resourceRef string, eventTypes []string) ([]domain.WebhookSubscription, error) {
	args := m.Called(ctx, userID, providerID, resourceRef, eventTypes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WebhookSubscription), args.Error(1)
}

func (m *MockService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockService) List(ctx context.Context, userID, providerID, resourceRef string) ([]domain.WebhookSubscription, error) {
	args := m.Called(ctx, userID, providerID, resourceRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WebhookSubscription), args.Error(1)
}

func (m *MockService) FindByExternalID(ctx context.Context, providerID, externalID string) (*domain.WebhookSubscription, error) {
	args := m.Called(ctx, providerID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookSubscription), args.Error(1)
}

func (m *MockService) RecordEvent(ctx context.Context, providerID, externalID string, at time.Time) error {
	args := m.Called(ctx, providerID, externalID, at)
	return args.Error(0)
}

func (m *MockService) RetryPending(ctx context.Context, now time.Time) error {
	args := m.Called(ctx, now)
	return args.Error(0)
}

func (m *MockService) RenewExpiring(ctx context.Context, window time.Duration) error {
	args := m.Called(ctx, window)
	return args.Error(0)
}
