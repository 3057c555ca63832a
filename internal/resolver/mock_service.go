package resolver

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/triggerline/triggerline/internal/domain"
)

// MockService is a mock implementation of Service for testing
type MockService struct {
	mock.Mock
}

func (m *MockService) Resolve(ctx context.Context, provider, resourceRef, eventType string) (domain.DeliveryMode, error) {
	args := m.Called(ctx, provider, resourceRef, eventType)
	return args.Get(0).(domain.DeliveryMode), args.Error(1)
}
