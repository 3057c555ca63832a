// Package calsync is the calendar provider adapter. Webhooks are push
// channels the orchestrator opens against a calendar; channels lapse at
// their expiration time and are re-opened by the renewal worker. Push
// notifications are authenticated by the channel token header rather than
// a body signature, since notification bodies are empty.
package calsync

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/provider"
)

const (
	Name = "calsync"

	defaultAPIBaseURL = "https://api.calsync.example.com/v3"
	authURL           = "https://accounts.calsync.example.com/oauth/authorize"
	tokenURL          = "https://accounts.calsync.example.com/oauth/token"

	headerChannelID     = "Calsync-Channel-Id"
	headerChannelToken  = "Calsync-Channel-Token"
	headerResourceState = "Calsync-Resource-State"
	headerMessageNumber = "Calsync-Message-Number"
	headerResourceRef   = "Calsync-Resource-Ref"
)

type Adapter struct {
	oauth         *oauth2.Config
	api           *provider.APIClient
	webhookSecret string
	httpClient    *http.Client
}

func New(opts provider.Options) *Adapter {
	baseURL := opts.APIBaseURL
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &Adapter{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
			Scopes: []string{"calendar.readonly"},
		},
		api:           provider.NewAPIClient(baseURL, opts.HTTPClient),
		webhookSecret: opts.WebhookSecret,
		httpClient:    opts.HTTPClient,
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) BuildAuthorizationURL(state string) string {
	return a.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (a *Adapter) ExchangeCode(ctx context.Context, code string) (domain.TokenSet, error) {
	tok, err := a.oauth.Exchange(a.oauthContext(ctx), code)
	if err != nil {
		return domain.TokenSet{}, provider.ClassifyExchangeError(err)
	}
	return provider.TokenSetFromOAuth2(tok), nil
}

func (a *Adapter) RefreshToken(ctx context.Context, refreshToken string) (domain.TokenSet, error) {
	src := a.oauth.TokenSource(a.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return domain.TokenSet{}, provider.ClassifyRefreshError(err)
	}
	return provider.TokenSetFromOAuth2(tok), nil
}

func (a *Adapter) RegisterWebhook(ctx context.Context, conn *domain.ServiceConnection, resourceRef string, eventTypes []string, callbackURL string) (*provider.Registration, error) {
	channelID := uuid.NewString()
	body := map[string]string{
		"id":      channelID,
		"type":    "web_hook",
		"address": callbackURL,
		"token":   a.webhookSecret,
	}

	var resp struct {
		ResourceID string `json:"resourceId"`
		Expiration int64  `json:"expiration"` // unix millis
	}
	path := "/calendars/" + url.PathEscape(resourceRef) + "/watch"
	if err := a.api.DoJSON(ctx, http.MethodPost, path, conn.AccessToken, body, &resp); err != nil {
		return nil, err
	}

	reg := &provider.Registration{ExternalID: channelID}
	if resp.Expiration > 0 {
		expires := time.UnixMilli(resp.Expiration).UTC()
		reg.ExpiresAt = &expires
	}
	return reg, nil
}

func (a *Adapter) UnregisterWebhook(ctx context.Context, conn *domain.ServiceConnection, externalID string) error {
	body := map[string]string{"id": externalID}
	return a.api.DoJSON(ctx, http.MethodPost, "/channels/stop", conn.AccessToken, body, nil)
}

func (a *Adapter) PollRecentEvents(ctx context.Context, conn *domain.ServiceConnection, resourceRef string, since time.Time) ([]domain.ProviderEvent, error) {
	path := fmt.Sprintf("/calendars/%s/events?updatedMin=%s",
		url.PathEscape(resourceRef), url.QueryEscape(since.UTC().Format(time.RFC3339)))

	var resp struct {
		Items []struct {
			ID      string          `json:"id"`
			Status  string          `json:"status"`
			Updated time.Time       `json:"updated"`
			Data    json.RawMessage `json:"data"`
		} `json:"items"`
	}
	if err := a.api.DoJSON(ctx, http.MethodGet, path, conn.AccessToken, nil, &resp); err != nil {
		return nil, err
	}

	events := make([]domain.ProviderEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		if !item.Updated.After(since) {
			continue
		}
		eventType := "event_updated"
		if item.Status == "cancelled" {
			eventType = "event_cancelled"
		}
		events = append(events, domain.ProviderEvent{
			Provider:    Name,
			ResourceRef: resourceRef,
			EventType:   eventType,
			// An event can be updated repeatedly; the delivery id has to
			// change each time or dedup would swallow later updates.
			DeliveryID: fmt.Sprintf("%s@%d", item.ID, item.Updated.UnixNano()),
			OccurredAt: item.Updated,
			Payload:    item.Data,
		})
	}
	return events, nil
}

func (a *Adapter) VerifyWebhook(header http.Header, body []byte) (*provider.WebhookDelivery, error) {
	token := header.Get(headerChannelToken)
	if token == "" || !hmac.Equal([]byte(token), []byte(a.webhookSecret)) {
		return nil, errors.New("channel token verification failed")
	}

	channelID := header.Get(headerChannelID)
	state := header.Get(headerResourceState)
	messageNumber := header.Get(headerMessageNumber)
	if channelID == "" || state == "" || messageNumber == "" {
		return nil, errors.New("missing push notification headers")
	}
	if _, err := strconv.ParseInt(messageNumber, 10, 64); err != nil {
		return nil, fmt.Errorf("malformed message number: %w", err)
	}

	// The initial sync message confirms the channel but carries no event.
	// It is token-verified and must be acked with 2xx or the provider
	// tears the channel down again.
	if state == "sync" {
		return nil, nil
	}

	eventType := "event_updated"
	if state == "not_exists" {
		eventType = "event_cancelled"
	}

	payload, err := json.Marshal(map[string]string{
		"channel_id":   channelID,
		"state":        state,
		"resource_ref": header.Get(headerResourceRef),
	})
	if err != nil {
		return nil, err
	}

	return &provider.WebhookDelivery{
		ExternalID: channelID,
		EventType:  eventType,
		DeliveryID: channelID + "@" + messageNumber,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}, nil
}

func (a *Adapter) oauthContext(ctx context.Context) context.Context {
	if a.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	return ctx
}
