// Package streamcast is the live-streaming provider adapter. Webhook
// registrations are server-side subscription objects; inbound deliveries
// are signed with HMAC-SHA256 over message id, timestamp and body, and
// stale timestamps are rejected to stop replays.
package streamcast

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/provider"
)

const (
	Name = "streamcast"

	defaultAPIBaseURL = "https://api.streamcast.example.com/v2"
	authURL           = "https://id.streamcast.example.com/oauth2/authorize"
	tokenURL          = "https://id.streamcast.example.com/oauth2/token"

	headerMessageID        = "Streamcast-Message-Id"
	headerMessageTimestamp = "Streamcast-Message-Timestamp"
	headerMessageSignature = "Streamcast-Message-Signature"

	// replayWindow bounds how old (or far in the future) a delivery
	// timestamp may be before the message is rejected.
	replayWindow = 10 * time.Minute
)

type Adapter struct {
	oauth         *oauth2.Config
	api           *provider.APIClient
	webhookSecret string
	httpClient    *http.Client
	now           func() time.Time
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
			Scopes: []string{"channel:read:events"},
		},
		api:           provider.NewAPIClient(baseURL, opts.HTTPClient),
		webhookSecret: opts.WebhookSecret,
		httpClient:    opts.HTTPClient,
		now:           time.Now,
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) BuildAuthorizationURL(state string) string {
	return a.oauth.AuthCodeURL(state)
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

// subscriptionObject is the provider's subscription wire format.
type subscriptionObject struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Condition struct {
		ChannelID string `json:"channel_id"`
	} `json:"condition"`
}

func (a *Adapter) RegisterWebhook(ctx context.Context, conn *domain.ServiceConnection, resourceRef string, eventTypes []string, callbackURL string) (*provider.Registration, error) {
	if len(eventTypes) != 1 {
		return nil, fmt.Errorf("%w: one subscription per event type", domain.ErrUnsupported)
	}

	body := map[string]interface{}{
		"type": eventTypes[0],
		"condition": map[string]string{
			"channel_id": resourceRef,
		},
		"transport": map[string]string{
			"method":   "webhook",
			"callback": callbackURL,
			"secret":   a.webhookSecret,
		},
	}

	var resp struct {
		Data []subscriptionObject `json:"data"`
	}
	if err := a.api.DoJSON(ctx, http.MethodPost, "/eventsub/subscriptions", conn.AccessToken, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: subscription response missing data", domain.ErrTransientFailure)
	}
	return &provider.Registration{ExternalID: resp.Data[0].ID}, nil
}

func (a *Adapter) UnregisterWebhook(ctx context.Context, conn *domain.ServiceConnection, externalID string) error {
	path := "/eventsub/subscriptions?id=" + url.QueryEscape(externalID)
	return a.api.DoJSON(ctx, http.MethodDelete, path, conn.AccessToken, nil, nil)
}

func (a *Adapter) PollRecentEvents(ctx context.Context, conn *domain.ServiceConnection, resourceRef string, since time.Time) ([]domain.ProviderEvent, error) {
	path := fmt.Sprintf("/channels/%s/events?after=%s",
		url.PathEscape(resourceRef), url.QueryEscape(since.UTC().Format(time.RFC3339)))

	var resp struct {
		Data []struct {
			ID        string          `json:"id"`
			Type      string          `json:"type"`
			Timestamp time.Time       `json:"timestamp"`
			Event     json.RawMessage `json:"event"`
		} `json:"data"`
	}
	if err := a.api.DoJSON(ctx, http.MethodGet, path, conn.AccessToken, nil, &resp); err != nil {
		return nil, err
	}

	events := make([]domain.ProviderEvent, 0, len(resp.Data))
	for _, item := range resp.Data {
		if !item.Timestamp.After(since) {
			continue
		}
		events = append(events, domain.ProviderEvent{
			Provider:    Name,
			ResourceRef: resourceRef,
			EventType:   item.Type,
			DeliveryID:  item.ID,
			OccurredAt:  item.Timestamp,
			Payload:     item.Event,
		})
	}
	return events, nil
}

func (a *Adapter) VerifyWebhook(header http.Header, body []byte) (*provider.WebhookDelivery, error) {
	messageID := header.Get(headerMessageID)
	timestamp := header.Get(headerMessageTimestamp)
	signature := header.Get(headerMessageSignature)
	if messageID == "" || timestamp == "" || signature == "" {
		return nil, errors.New("missing webhook signature headers")
	}

	sentAt, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return nil, fmt.Errorf("malformed message timestamp: %w", err)
	}
	if drift := a.now().Sub(sentAt); drift > replayWindow || drift < -replayWindow {
		return nil, errors.New("message timestamp outside accepted window")
	}

	if !a.validSignature(messageID, timestamp, body, signature) {
		return nil, errors.New("webhook signature verification failed")
	}

	var envelope struct {
		Subscription subscriptionObject `json:"subscription"`
		Event        json.RawMessage    `json:"event"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("malformed webhook payload: %w", err)
	}
	if envelope.Subscription.ID == "" {
		return nil, errors.New("webhook payload missing subscription id")
	}

	return &provider.WebhookDelivery{
		ExternalID: envelope.Subscription.ID,
		EventType:  envelope.Subscription.Type,
		DeliveryID: messageID,
		OccurredAt: sentAt,
		Payload:    envelope.Event,
	}, nil
}

// validSignature recomputes HMAC-SHA256 over id + timestamp + body and
// compares in constant time.
func (a *Adapter) validSignature(messageID, timestamp string, body []byte, signature string) bool {
	encoded, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return false
	}
	claimed, err := hex.DecodeString(encoded)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	mac.Write([]byte(messageID))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), claimed)
}

func (a *Adapter) oauthContext(ctx context.Context) context.Context {
	if a.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	return ctx
}
