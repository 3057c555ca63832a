package repository

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/triggerline/triggerline/internal/domain"
)

// MockConnection implements Connection for testing
type MockConnection struct {
	mock.Mock
}

func (m *MockConnection) Upsert(ctx context.Context, conn domain.ServiceConnection) (*domain.ServiceConnection, bool, error) {
	args := m.Called(ctx, conn)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.ServiceConnection), args.Bool(1), args.Error(2)
}

func (m *MockConnection) Get(ctx context.Context, userID, provider string) (*domain.ServiceConnection, error) {
	args := m.Called(ctx, userID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ServiceConnection), args.Error(1)
}

func (m *MockConnection) GetByID(ctx context.Context, connectionID string) (*domain.ServiceConnection, error) {
	args := m.Called(ctx, connectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ServiceConnection), args.Error(1)
}

func (m *MockConnection) MarkExpired(ctx context.Context, userID, provider string) error {
	args := m.Called(ctx, userID, provider)
	return args.Error(0)
}

func (m *MockConnection) Delete(ctx context.Context, userID, provider string) error {
	args := m.Called(ctx, userID, provider)
	return args.Error(0)
}

// MockSubscription implements Subscription for testing
type MockSubscription struct {
	mock.Mock
}

func (m *MockSubscription) Insert(ctx context.Context, sub domain.WebhookSubscription) (*domain.WebhookSubscription, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookSubscription), args.Error(1)
}

func (m *MockSubscription) GetByID(ctx context.Context, id string) (*domain.WebhookSubscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookSubscription), args.Error(1)
}

func (m *MockSubscription) GetLiveTuple(ctx context.Context, provider, resourceRef, eventType string) (*domain.WebhookSubscription, error) {
	args := m.Called(ctx, provider, resourceRef, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookSubscription), args.Error(1)
}

func (m *MockSubscription) GetByExternalID(ctx context.Context, provider, externalID string) (*domain.WebhookSubscription, error) {
	args := m.Called(ctx, provider, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookSubscription), args.Error(1)
}

func (m *MockSubscription) ListByConnection(ctx context.Context, connectionID, resourceRef string) ([]domain.WebhookSubscription, error) {
	args := m.Called(ctx, connectionID, resourceRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WebhookSubscription), args.Error(1)
}

func (m *MockSubscription) UpdateRegistration(ctx context.Context, id string, status domain.SubscriptionStatus, externalID *string, expiresAt *time.Time) error {
	args := m.Called(ctx, id, status, externalID, expiresAt)
	return args.Error(0)
}

func (m *MockSubscription) MarkFailed(ctx context.Context, id, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockSubscription) ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time) error {
	args := m.Called(ctx, id, nextRetryAt)
	return args.Error(0)
}

func (m *MockSubscription) MarkDeleted(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSubscription) MarkDeletedByConnection(ctx context.Context, connectionID string) error {
	args := m.Called(ctx, connectionID)
	return args.Error(0)
}

func (m *MockSubscription) RecordEvent(ctx context.Context, provider, externalID string, at time.Time) error {
	args := m.Called(ctx, provider, externalID, at)
	return args.Error(0)
}

func (m *MockSubscription) ListRetryDue(ctx context.Context, now time.Time) ([]domain.WebhookSubscription, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WebhookSubscription), args.Error(1)
}

func (m *MockSubscription) ListExpiringBefore(ctx context.Context, before time.Time) ([]domain.WebhookSubscription, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WebhookSubscription), args.Error(1)
}

// MockPollCursor implements PollCursor for testing
type MockPollCursor struct {
	mock.Mock
}

func (m *MockPollCursor) Get(ctx context.Context, connectionID, resourceRef string) (time.Time, bool, error) {
	args := m.Called(ctx, connectionID, resourceRef)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

func (m *MockPollCursor) Set(ctx context.Context, connectionID, resourceRef string, cursor time.Time) error {
	args := m.Called(ctx, connectionID, resourceRef, cursor)
	return args.Error(0)
}

// MockTriggerBinding implements TriggerBinding for testing
type MockTriggerBinding struct {
	mock.Mock
}

func (m *MockTriggerBinding) ListEnabledByProvider(ctx context.Context, provider string) ([]domain.TriggerBinding, error) {
	args := m.Called(ctx, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TriggerBinding), args.Error(1)
}
