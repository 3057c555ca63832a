package connection

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/triggerline/triggerline/internal/domain"
)

// MockService is a mock implementation of Service for testing
type MockService struct {
	mock.Mock
}

func (m *MockService) Initiate(ctx context.Context, userID, providerID string) (string, string, error) {
	args := m.Called(ctx, userID, providerID)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockService) HandleCallback(ctx context.Context, providerID, state, code string) (*domain.ServiceConnection, bool, error) {
	args := m.Called(ctx, providerID, state, code)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.ServiceConnection), args.Bool(1), args.Error(2)
}

func (m *MockService) GetFresh(ctx context.Context, userID, providerID string) (*domain.ServiceConnection, error) {
	args := m.Called(ctx, userID, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ServiceConnection), args.Error(1)
}

func (m *MockService) Status(ctx context.Context, userID, providerID string) (*domain.ServiceConnection, error) {
	args := m.Called(ctx, userID, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ServiceConnection), args.Error(1)
}

func (m *MockService) Disconnect(ctx context.Context, userID, providerID string) error {
	args := m.Called(ctx, userID, providerID)
	return args.Error(0)
}
