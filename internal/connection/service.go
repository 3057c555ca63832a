// Package connection implements the credential store: one OAuth-backed
// connection per (user, provider), written whole on every connect and
// refresh so concurrent flows resolve to the last committed token set.
package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/event"
	"github.com/triggerline/triggerline/internal/logger"
	"github.com/triggerline/triggerline/internal/metrics"
	"github.com/triggerline/triggerline/internal/provider"
	"github.com/triggerline/triggerline/internal/repository"
)

// refreshSkew renews tokens slightly before their actual expiry so a
// token handed to a caller does not lapse mid-request.
const refreshSkew = 30 * time.Second

// Service defines the interface for connection lifecycle operations
type Service interface {
	// Initiate starts an authorization flow and returns the provider URL
	// to redirect the user to, plus the signed state embedded in it.
	Initiate(ctx context.Context, userID, providerID string) (authorizationURL, state string, err error)

	// HandleCallback completes the flow: verifies state, exchanges the
	// code and stores the token set. Returns created=false when the user
	// reconnected an existing provider link.
	HandleCallback(ctx context.Context, providerID, state, code string) (*domain.ServiceConnection, bool, error)

	// GetFresh returns a connection whose access token is valid right
	// now, refreshing lazily when the stored one has expired.
	GetFresh(ctx context.Context, userID, providerID string) (*domain.ServiceConnection, error)

	// Status returns the stored connection with its effective (lazily
	// computed) status. Never calls the provider.
	Status(ctx context.Context, userID, providerID string) (*domain.ServiceConnection, error)

	// Disconnect removes the connection and tombstones every subscription
	// it owns. Provider-side deregistration is best effort.
	Disconnect(ctx context.Context, userID, providerID string) error
}

type service struct {
	repo      repository.Connection
	subRepo   repository.Subscription
	providers *provider.Registry
	signer    *stateSigner
	bus       event.Bus
	now       func() time.Time
}

// NewService creates a new connection service
func NewService(repo repository.Connection, subRepo repository.Subscription, providers *provider.Registry, stateSecret string, bus event.Bus) Service {
	return &service{
		repo:      repo,
		subRepo:   subRepo,
		providers: providers,
		signer:    newStateSigner(stateSecret),
		bus:       bus,
		now:       time.Now,
	}
}

func (s *service) Initiate(ctx context.Context, userID, providerID string) (string, string, error) {
	adapter, err := s.providers.Get(providerID)
	if err != nil {
		return "", "", err
	}

	state, err := s.signer.Issue(userID)
	if err != nil {
		return "", "", err
	}

	logger.FromContext(ctx).Info("Authorization flow initiated", "user_id", userID, "provider", providerID)
	return adapter.BuildAuthorizationURL(state), state, nil
}

func (s *service) HandleCallback(ctx context.Context, providerID, state, code string) (*domain.ServiceConnection, bool, error) {
	log := logger.FromContext(ctx)

	adapter, err := s.providers.Get(providerID)
	if err != nil {
		return nil, false, err
	}

	userID, err := s.signer.Verify(state)
	if err != nil {
		log.Warn("Callback state rejected", "provider", providerID, "error", err)
		return nil, false, fmt.Errorf("%w: %v", domain.ErrAuthExchangeFailed, err)
	}

	tokens, err := adapter.ExchangeCode(ctx, code)
	if err != nil {
		log.Error("Code exchange failed", "provider", providerID, "error", err)
		return nil, false, err
	}

	stored, created, err := s.repo.Upsert(ctx, domain.ServiceConnection{
		ID:           uuid.NewString(),
		UserID:       userID,
		Provider:     providerID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		Scopes:       tokens.Scopes,
		Status:       domain.ConnectionConnected,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to store connection: %w", err)
	}

	if err := s.bus.Publish(ctx, event.NewConnectionEvent(event.ConnectionEstablished, userID, providerID)); err != nil {
		log.Error("Failed to publish connection event", "error", err)
	}
	log.Info("Connection established", "user_id", userID, "provider", providerID, "created", created)
	return stored, created, nil
}

func (s *service) GetFresh(ctx context.Context, userID, providerID string) (*domain.ServiceConnection, error) {
	conn, err := s.repo.Get(ctx, userID, providerID)
	if err != nil {
		return nil, err
	}
	if conn.Status != domain.ConnectionConnected {
		return nil, fmt.Errorf("%w: connection is %s", domain.ErrRefreshDenied, conn.Status)
	}

	now := s.now()
	if conn.ExpiresAt.IsZero() || conn.ExpiresAt.After(now.Add(refreshSkew)) {
		return conn, nil
	}

	return s.refresh(ctx, conn)
}

// refresh rotates the token set in place. A provider rejection means the
// grant was revoked; the row is marked expired so status reads agree with
// reality until the user reconnects.
func (s *service) refresh(ctx context.Context, conn *domain.ServiceConnection) (*domain.ServiceConnection, error) {
	log := logger.FromContext(ctx)

	if conn.RefreshToken == nil || *conn.RefreshToken == "" {
		if err := s.repo.MarkExpired(ctx, conn.UserID, conn.Provider); err != nil {
			log.Error("Failed to mark connection expired", "error", err)
		}
		return nil, fmt.Errorf("%w: no refresh token stored", domain.ErrRefreshDenied)
	}

	adapter, err := s.providers.Get(conn.Provider)
	if err != nil {
		return nil, err
	}

	tokens, err := adapter.RefreshToken(ctx, *conn.RefreshToken)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues(conn.Provider, "failure").Inc()
		if errors.Is(err, domain.ErrRefreshDenied) {
			log.Warn("Refresh token revoked", "user_id", conn.UserID, "provider", conn.Provider)
			if markErr := s.repo.MarkExpired(ctx, conn.UserID, conn.Provider); markErr != nil {
				log.Error("Failed to mark connection expired", "error", markErr)
			}
		}
		return nil, err
	}

	// Providers may rotate the refresh token or omit it; an omitted one
	// keeps the stored token.
	refreshToken := conn.RefreshToken
	if tokens.RefreshToken != nil {
		refreshToken = tokens.RefreshToken
	}
	scopes := conn.Scopes
	if len(tokens.Scopes) > 0 {
		scopes = tokens.Scopes
	}

	stored, _, err := s.repo.Upsert(ctx, domain.ServiceConnection{
		ID:           conn.ID,
		UserID:       conn.UserID,
		Provider:     conn.Provider,
		AccessToken:  tokens.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		Scopes:       scopes,
		Status:       domain.ConnectionConnected,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store refreshed tokens: %w", err)
	}

	metrics.TokenRefreshes.WithLabelValues(conn.Provider, "success").Inc()
	log.Info("Access token refreshed", "user_id", conn.UserID, "provider", conn.Provider)
	return stored, nil
}

func (s *service) Status(ctx context.Context, userID, providerID string) (*domain.ServiceConnection, error) {
	if _, err := s.providers.Get(providerID); err != nil {
		return nil, err
	}

	conn, err := s.repo.Get(ctx, userID, providerID)
	if err != nil {
		return nil, err
	}
	conn.Status = conn.EffectiveStatus(s.now())
	return conn, nil
}

func (s *service) Disconnect(ctx context.Context, userID, providerID string) error {
	log := logger.FromContext(ctx)

	conn, err := s.repo.Get(ctx, userID, providerID)
	if err != nil {
		return err
	}

	adapter, err := s.providers.Get(providerID)
	if err != nil {
		return err
	}

	// Best-effort provider cleanup. Failures are logged and skipped; the
	// local tombstones below are what actually stop event flow.
	subs, err := s.subRepo.ListByConnection(ctx, conn.ID, "")
	if err != nil {
		log.Error("Failed to list subscriptions for disconnect", "error", err)
	} else {
		for _, sub := range subs {
			if sub.Status != domain.SubscriptionActive || sub.ExternalID == nil {
				continue
			}
			if err := adapter.UnregisterWebhook(ctx, conn, *sub.ExternalID); err != nil {
				log.Warn("Provider-side deregistration failed",
					"subscription_id", sub.ID, "provider", providerID, "error", err)
			}
		}
	}

	if err := s.subRepo.MarkDeletedByConnection(ctx, conn.ID); err != nil {
		return fmt.Errorf("failed to tombstone subscriptions: %w", err)
	}
	if err := s.repo.Delete(ctx, userID, providerID); err != nil {
		return err
	}

	if err := s.bus.Publish(ctx, event.NewConnectionEvent(event.ConnectionRemoved, userID, providerID)); err != nil {
		log.Error("Failed to publish connection event", "error", err)
	}
	log.Info("Connection removed", "user_id", userID, "provider", providerID)
	return nil
}
