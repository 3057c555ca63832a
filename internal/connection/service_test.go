package connection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/event"
	"github.com/triggerline/triggerline/internal/provider"
	"github.com/triggerline/triggerline/internal/repository"
)

const testStateSecret = "test-state-secret"

func strPtr(s string) *string { return &s }

func newTestService(adapter *provider.MockAdapter) (*service, *repository.MockConnection, *repository.MockSubscription) {
	repo := new(repository.MockConnection)
	subRepo := new(repository.MockSubscription)
	svc := NewService(repo, subRepo, provider.NewRegistry(adapter), testStateSecret, event.NewMemoryBus()).(*service)
	return svc, repo, subRepo
}

func TestStateSignerRoundTrip(t *testing.T) {
	signer := newStateSigner(testStateSecret)

	token, err := signer.Issue("user-1")
	require.NoError(t, err)

	userID, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestStateSignerRejectsTampering(t *testing.T) {
	signer := newStateSigner(testStateSecret)

	token, err := signer.Issue("user-1")
	require.NoError(t, err)

	_, err = signer.Verify(token + "0")
	assert.ErrorIs(t, err, errStateSignature)

	_, err = signer.Verify("garbage")
	assert.ErrorIs(t, err, errStateMalformed)
}

func TestStateSignerRejectsExpired(t *testing.T) {
	signer := newStateSigner(testStateSecret)

	token, err := signer.Issue("user-1")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(stateTTL + time.Minute) }
	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, errStateExpired)
}

func TestStateSignerRejectsForeignSecret(t *testing.T) {
	token, err := newStateSigner("other-secret").Issue("user-1")
	require.NoError(t, err)

	_, err = newStateSigner(testStateSecret).Verify(token)
	assert.ErrorIs(t, err, errStateSignature)
}

func TestInitiateReturnsProviderURL(t *testing.T) {
	adapter := &provider.MockAdapter{ProviderName: "ghapp"}
	adapter.On("BuildAuthorizationURL", mock.AnythingOfType("string")).Return("https://auth.example.com/authorize?state=x")
	svc, _, _ := newTestService(adapter)

	url, state, err := svc.Initiate(t.Context(), "user-1", "ghapp")
	require.NoError(t, err)
	assert.Contains(t, url, "https://auth.example.com/authorize")
	assert.NotEmpty(t, state)
	adapter.AssertExpectations(t)
}

func TestInitiateUnknownProvider(t *testing.T) {
	svc, _, _ := newTestService(&provider.MockAdapter{ProviderName: "ghapp"})

	_, _, err := svc.Initiate(t.Context(), "user-1", "nonesuch")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestHandleCallbackStoresTokenSet(t *testing.T) {
	adapter := &provider.MockAdapter{ProviderName: "ghapp"}
	svc, repo, _ := newTestService(adapter)

	state, err := svc.signer.Issue("user-1")
	require.NoError(t, err)

	tokens := domain.TokenSet{
		AccessToken:  "at-1",
		RefreshToken: strPtr("rt-1"),
		ExpiresAt:    time.Now().Add(time.Hour),
		Scopes:       []string{"repo"},
	}
	adapter.On("ExchangeCode", mock.Anything, "code-1").Return(tokens, nil)

	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(c domain.ServiceConnection) bool {
		return c.UserID == "user-1" && c.Provider == "ghapp" &&
			c.AccessToken == "at-1" && c.Status == domain.ConnectionConnected
	})).Return(&domain.ServiceConnection{ID: "conn-1", UserID: "user-1", Provider: "ghapp"}, true, nil)

	conn, created, err := svc.HandleCallback(t.Context(), "ghapp", state, "code-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "conn-1", conn.ID)
	repo.AssertExpectations(t)
}

func TestHandleCallbackRejectsBadState(t *testing.T) {
	adapter := &provider.MockAdapter{ProviderName: "ghapp"}
	svc, _, _ := newTestService(adapter)

	_, _, err := svc.HandleCallback(t.Context(), "ghapp", "forged-state", "code-1")
	assert.ErrorIs(t, err, domain.ErrAuthExchangeFailed)
	adapter.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything)
}

func TestHandleCallbackReconnectOverwrites(t *testing.T) {
	adapter := &provider.MockAdapter{ProviderName: "ghapp"}
	svc, repo, _ := newTestService(adapter)

	state, err := svc.signer.Issue("user-1")
	require.NoError(t, err)

	adapter.On("ExchangeCode", mock.Anything, "code-2").
		Return(domain.TokenSet{AccessToken: "at-2", ExpiresAt: time.Now().Add(time.Hour)}, nil)
	repo.On("Upsert", mock.Anything, mock.Anything).
		Return(&domain.ServiceConnection{ID: "conn-1", AccessToken: "at-2"}, false, nil)

	conn, created, err := svc.HandleCallback(t.Context(), "ghapp", state, "code-2")
	require.NoError(t, err)
	assert.False(t, created, "reconnect must report the existing connection")
	assert.Equal(t, "at-2", conn.AccessToken)
}

func TestGetFreshReturnsValidTokenWithoutRefresh(t *testing.T) {
	adapter := &provider.MockAdapter{ProviderName: "ghapp"}
	svc, repo, _ := newTestService(adapter)

	repo.On("Get", mock.Anything, "user-1", "ghapp").Return(&domain.ServiceConnection{
		ID:          "conn-1",
		AccessToken: "at-1",
		ExpiresAt:   time.Now().Add(time.Hour),
		Status:      domain.ConnectionConnected,
	}, nil)

	conn, err := svc.GetFresh(t.Context(), "user-1", "ghapp")
	require.NoError(t, err)
	assert.Equal(t, "at-1", conn.AccessToken)
	adapter.AssertNotCalled(t, "RefreshToken", mock.Anything, mock.Anything)
}

func TestGetFreshRefreshesExpiredToken(t *testing.T) {
	adapter := &provider.MockAdapter{ProviderName: "ghapp"}
	svc, repo, _ := newTestService(adapter)

	repo.On("Get", mock.Anything, "user-1", "ghapp").Return(&domain.ServiceConnection{
		ID:           "conn-1",
		UserID:       "user-1",
		Provider:     "ghapp",
		AccessToken:  "at-old",
		RefreshToken: strPtr("rt-1"),
		ExpiresAt:    time.Now().Add(-time.Minute),
		Status:       domain.ConnectionConnected,
	}, nil)

	// Refresh response omits the refresh token; the stored one is kept.
	adapter.On("RefreshToken", mock.Anything, "rt-1").
		Return(domain.TokenSet{AccessToken: "at-new", ExpiresAt: time.Now().Add(time.Hour)}, nil)

	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(c domain.ServiceConnection) bool {
		return c.AccessToken == "at-new" && c.RefreshToken != nil && *c.RefreshToken == "rt-1"
	})).Return(&domain.ServiceConnection{ID: "conn-1", AccessToken: "at-new"}, false, nil)

	conn, err := svc.GetFresh(t.Context(), "user-1", "ghapp")
	require.NoError(t, err)
	assert.Equal(t, "at-new", conn.AccessToken)
	repo.AssertExpectations(t)
}

func TestGetFreshRefreshDeniedMarksExpired(t *testing.T) {
	adapter := &provider.MockAdapter{ProviderName: "ghapp"}
	svc, repo, _ := newTestService(adapter)

	repo.On("Get", mock.Anything, "user-1", "ghapp").Return(&domain.ServiceConnection{
		ID:           "conn-1",
		UserID:       "user-1",
		Provider:     "ghapp",
		RefreshToken: strPtr("rt-revoked"),
		ExpiresAt:    time.Now().Add(-time.Minute),
		Status:       domain.ConnectionConnected,
	}, nil)
	adapter.On("RefreshToken", mock.Anything, "rt-revoked").
		Return(domain.TokenSet{}, domain.ErrRefreshDenied)
	repo.On("MarkExpired", mock.Anything, "user-1", "ghapp").Return(nil)

	_, err := svc.GetFresh(t.Context(), "user-1", "ghapp")
	assert.ErrorIs(t, err, domain.ErrRefreshDenied)
	repo.AssertExpectations(t)
}

func TestGetFreshWithoutRefreshToken(t *testing.T) {
	adapter := &provider.MockAdapter{ProviderName: "ghapp"}
	svc, repo, _ := newTestService(adapter)

	repo.On("Get", mock.Anything, "user-1", "ghapp").Return(&domain.ServiceConnection{
		ID:        "conn-1",
		UserID:    "user-1",
		Provider:  "ghapp",
		ExpiresAt: time.Now().Add(-time.Minute),
		Status:    domain.ConnectionConnected,
	}, nil)
	repo.On("MarkExpired", mock.Anything, "user-1", "ghapp").Return(nil)

	_, err := svc.GetFresh(t.Context(), "user-1", "ghapp")
	assert.ErrorIs(t, err, domain.ErrRefreshDenied)
	adapter.AssertNotCalled(t, "RefreshToken", mock.Anything, mock.Anything)
}

func TestStatusComputesEffectiveStatus(t *testing.T) {
	adapter := &provider.MockAdapter{ProviderName: "ghapp"}
	svc, repo, _ := newTestService(adapter)

	repo.On("Get", mock.Anything, "user-1", "ghapp").Return(&domain.ServiceConnection{
		ID:        "conn-1",
		ExpiresAt: time.Now().Add(-time.Hour),
		Status:    domain.ConnectionConnected,
	}, nil)

	conn, err := svc.Status(t.Context(), "user-1", "ghapp")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionExpired, conn.Status,
		"expired token must read as expired without any background transition")
}

func TestDisconnectCascades(t *testing.T) {
	adapter := &provider.MockAdapter{ProviderName: "ghapp"}
	svc, repo, subRepo := newTestService(adapter)

	conn := &domain.ServiceConnection{ID: "conn-1", UserID: "user-1", Provider: "ghapp", AccessToken: "at-1"}
	repo.On("Get", mock.Anything, "user-1", "ghapp").Return(conn, nil)

	subRepo.On("ListByConnection", mock.Anything, "conn-1", "").Return([]domain.WebhookSubscription{
		{ID: "sub-1", Status: domain.SubscriptionActive, ExternalID: strPtr("ext-1")},
		{ID: "sub-2", Status: domain.SubscriptionFailed},
	}, nil)
	adapter.On("UnregisterWebhook", mock.Anything, conn, "ext-1").Return(nil)
	subRepo.On("MarkDeletedByConnection", mock.Anything, "conn-1").Return(nil)
	repo.On("Delete", mock.Anything, "user-1", "ghapp").Return(nil)

	require.NoError(t, svc.Disconnect(t.Context(), "user-1", "ghapp"))
	adapter.AssertNumberOfCalls(t, "UnregisterWebhook", 1)
	subRepo.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestDisconnectTombstonesDespiteProviderFailure(t *testing.T) {
	adapter := &provider.MockAdapter{ProviderName: "ghapp"}
	svc, repo, subRepo := newTestService(adapter)

	conn := &domain.ServiceConnection{ID: "conn-1", UserID: "user-1", Provider: "ghapp"}
	repo.On("Get", mock.Anything, "user-1", "ghapp").Return(conn, nil)
	subRepo.On("ListByConnection", mock.Anything, "conn-1", "").Return([]domain.WebhookSubscription{
		{ID: "sub-1", Status: domain.SubscriptionActive, ExternalID: strPtr("ext-1")},
	}, nil)
	adapter.On("UnregisterWebhook", mock.Anything, conn, "ext-1").Return(domain.ErrTransientFailure)
	subRepo.On("MarkDeletedByConnection", mock.Anything, "conn-1").Return(nil)
	repo.On("Delete", mock.Anything, "user-1", "ghapp").Return(nil)

	require.NoError(t, svc.Disconnect(t.Context(), "user-1", "ghapp"))
	subRepo.AssertExpectations(t)
}

func TestDisconnectUnknownConnection(t *testing.T) {
	adapter := &provider.MockAdapter{ProviderName: "ghapp"}
	svc, repo, _ := newTestService(adapter)

	repo.On("Get", mock.Anything, "user-1", "ghapp").Return(nil, domain.ErrConnectionNotFound)

	err := svc.Disconnect(t.Context(), "user-1", "ghapp")
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}
