package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/triggerline/triggerline/internal/domain"
)

// MockAdapter implements Adapter for testing
type MockAdapter struct {
	mock.Mock
	ProviderName string
}

func (m *MockAdapter) Name() string { return m.ProviderName }

func (m *MockAdapter) BuildAuthorizationURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockAdapter) ExchangeCode(ctx context.Context, code string) (domain.TokenSet, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(domain.TokenSet), args.Error(1)
}

func (m *MockAdapter) RefreshToken(ctx context.Context, refreshToken string) (domain.TokenSet, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(domain.TokenSet), args.Error(1)
}

func (m *MockAdapter) RegisterWebhook(ctx context.Context, conn *domain.ServiceConnection, resourceRef string, eventTypes []string, callbackURL string) (*Registration, error) {
	args := m.Called(ctx, conn, resourceRef, eventTypes, callbackURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Registration), args.Error(1)
}

func (m *MockAdapter) UnregisterWebhook(ctx context.Context, conn *domain.ServiceConnection, externalID string) error {
	args := m.Called(ctx, conn, externalID)
	return args.Error(0)
}

func (m *MockAdapter) PollRecentEvents(ctx context.Context, conn *domain.ServiceConnection, resourceRef string, since time.Time) ([]domain.ProviderEvent, error) {
	args := m.Called(ctx, conn, resourceRef, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ProviderEvent), args.Error(1)
}

func (m *MockAdapter) VerifyWebhook(header http.Header, body []byte) (*WebhookDelivery, error) {
	args := m.Called(header, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*WebhookDelivery), args.Error(1)
}
