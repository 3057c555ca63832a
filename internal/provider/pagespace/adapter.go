// Package pagespace is the productivity provider adapter. The provider
// exposes no webhook API at all, so RegisterWebhook always reports
// ErrUnsupported and every tuple is served by polling.
package pagespace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/provider"
)

const (
	Name = "pagespace"

	defaultAPIBaseURL = "https://api.pagespace.example.com/v1"
	authURL           = "https://auth.pagespace.example.com/oauth/authorize"
	tokenURL          = "https://auth.pagespace.example.com/oauth/token"
)

type Adapter struct {
	oauth      *oauth2.Config
	api        *provider.APIClient
	httpClient *http.Client
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
			Scopes: []string{"pages:read", "comments:read"},
		},
		api:        provider.NewAPIClient(baseURL, opts.HTTPClient),
		httpClient: opts.HTTPClient,
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

func (a *Adapter) RegisterWebhook(ctx context.Context, conn *domain.ServiceConnection, resourceRef string, eventTypes []string, callbackURL string) (*provider.Registration, error) {
	return nil, fmt.Errorf("%w: provider has no webhook API", domain.ErrUnsupported)
}

func (a *Adapter) UnregisterWebhook(ctx context.Context, conn *domain.ServiceConnection, externalID string) error {
	return fmt.Errorf("%w: provider has no webhook API", domain.ErrUnsupported)
}

// activityEntry is the provider's change-feed wire format.
type activityEntry struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Detail    json.RawMessage `json:"detail"`
}

func (a *Adapter) PollRecentEvents(ctx context.Context, conn *domain.ServiceConnection, resourceRef string, since time.Time) ([]domain.ProviderEvent, error) {
	path := fmt.Sprintf("/pages/%s/activity?since=%s",
		url.PathEscape(resourceRef), url.QueryEscape(since.UTC().Format(time.RFC3339)))

	var resp struct {
		Entries []activityEntry `json:"entries"`
	}
	if err := a.api.DoJSON(ctx, http.MethodGet, path, conn.AccessToken, nil, &resp); err != nil {
		return nil, err
	}

	events := make([]domain.ProviderEvent, 0, len(resp.Entries))
	for _, entry := range resp.Entries {
		if !entry.Timestamp.After(since) {
			continue
		}
		events = append(events, domain.ProviderEvent{
			Provider:    Name,
			ResourceRef: resourceRef,
			EventType:   entry.Type,
			DeliveryID:  entry.ID,
			OccurredAt:  entry.Timestamp,
			Payload:     entry.Detail,
		})
	}
	return events, nil
}

func (a *Adapter) VerifyWebhook(header http.Header, body []byte) (*provider.WebhookDelivery, error) {
	return nil, fmt.Errorf("%w: provider sends no webhooks", domain.ErrUnsupported)
}

func (a *Adapter) oauthContext(ctx context.Context) context.Context {
	if a.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	return ctx
}
