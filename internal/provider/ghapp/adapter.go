// Package ghapp is the code-hosting provider adapter. Webhooks are
// registered per repository through the provider's hook API; the external
// id carries both the repository and the hook id so unregistration needs
// no extra lookup.
package ghapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/provider"
)

const Name = "ghapp"

// hookEvents is the set of event types the adapter registers hooks for.
// Anything else falls back to polling via ErrUnsupported.
var hookEvents = map[string]bool{
	"push":         true,
	"pull_request": true,
	"issues":       true,
	"release":      true,
}

type Adapter struct {
	oauth         *oauth2.Config
	webhookSecret string
	apiBaseURL    string
	httpClient    *http.Client
}

func New(opts provider.Options) *Adapter {
	return &Adapter{
		webhookSecret: opts.WebhookSecret,
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint:     githuboauth.Endpoint,
			Scopes:       []string{"repo", "admin:repo_hook"},
		},
		apiBaseURL: opts.APIBaseURL,
		httpClient: opts.HTTPClient,
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) BuildAuthorizationURL(state string) string {
	return a.oauth.AuthCodeURL(state)
}

func (a *Adapter) ExchangeCode(ctx context.Context, code string) (domain.TokenSet, error) {
	ctx = a.oauthContext(ctx)
	tok, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return domain.TokenSet{}, provider.ClassifyExchangeError(err)
	}
	return provider.TokenSetFromOAuth2(tok), nil
}

func (a *Adapter) RefreshToken(ctx context.Context, refreshToken string) (domain.TokenSet, error) {
	ctx = a.oauthContext(ctx)
	src := a.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return domain.TokenSet{}, provider.ClassifyRefreshError(err)
	}
	return provider.TokenSetFromOAuth2(tok), nil
}

func (a *Adapter) RegisterWebhook(ctx context.Context, conn *domain.ServiceConnection, resourceRef string, eventTypes []string, callbackURL string) (*provider.Registration, error) {
	for _, et := range eventTypes {
		if !hookEvents[et] {
			return nil, fmt.Errorf("%w: event type %s has no hook support", domain.ErrUnsupported, et)
		}
	}

	owner, repo, err := splitResourceRef(resourceRef)
	if err != nil {
		return nil, err
	}

	client, err := a.client(ctx, conn.AccessToken)
	if err != nil {
		return nil, err
	}

	hook := &github.Hook{
		Active: github.Bool(true),
		Events: eventTypes,
		Config: map[string]interface{}{
			"url":          callbackURL,
			"content_type": "json",
			"secret":       a.webhookSecret,
		},
	}
	created, _, err := client.Repositories.CreateHook(ctx, owner, repo, hook)
	if err != nil {
		return nil, classifyAPIError(err)
	}

	return &provider.Registration{
		ExternalID: fmt.Sprintf("%s#%d", resourceRef, created.GetID()),
	}, nil
}

func (a *Adapter) UnregisterWebhook(ctx context.Context, conn *domain.ServiceConnection, externalID string) error {
	resourceRef, hookID, err := splitExternalID(externalID)
	if err != nil {
		return err
	}
	owner, repo, err := splitResourceRef(resourceRef)
	if err != nil {
		return err
	}

	client, err := a.client(ctx, conn.AccessToken)
	if err != nil {
		return err
	}
	if _, err := client.Repositories.DeleteHook(ctx, owner, repo, hookID); err != nil {
		return classifyAPIError(err)
	}
	return nil
}

func (a *Adapter) PollRecentEvents(ctx context.Context, conn *domain.ServiceConnection, resourceRef string, since time.Time) ([]domain.ProviderEvent, error) {
	owner, repo, err := splitResourceRef(resourceRef)
	if err != nil {
		return nil, err
	}

	client, err := a.client(ctx, conn.AccessToken)
	if err != nil {
		return nil, err
	}

	opts := &github.ListOptions{PerPage: 100}
	raw, _, err := client.Activity.ListRepositoryEvents(ctx, owner, repo, opts)
	if err != nil {
		return nil, classifyAPIError(err)
	}

	events := make([]domain.ProviderEvent, 0, len(raw))
	for _, ev := range raw {
		occurred := ev.GetCreatedAt().Time
		if !occurred.After(since) {
			continue
		}
		eventType, ok := normalizeEventType(ev.GetType())
		if !ok {
			continue
		}
		var payload json.RawMessage
		if ev.RawPayload != nil {
			payload = *ev.RawPayload
		}
		events = append(events, domain.ProviderEvent{
			Provider:    Name,
			ResourceRef: resourceRef,
			EventType:   eventType,
			DeliveryID:  ev.GetID(),
			OccurredAt:  occurred,
			Payload:     payload,
		})
	}
	return events, nil
}

func (a *Adapter) VerifyWebhook(header http.Header, body []byte) (*provider.WebhookDelivery, error) {
	signature := header.Get("X-Hub-Signature-256")
	if signature == "" {
		return nil, errors.New("missing webhook signature")
	}
	if err := github.ValidateSignature(signature, body, []byte(a.webhookSecret)); err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	deliveryID := header.Get("X-GitHub-Delivery")
	eventType := header.Get("X-GitHub-Event")
	hookID := header.Get("X-GitHub-Hook-ID")
	if deliveryID == "" || eventType == "" || hookID == "" {
		return nil, errors.New("missing webhook identification headers")
	}

	var envelope struct {
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("malformed webhook payload: %w", err)
	}
	if envelope.Repository.FullName == "" {
		return nil, errors.New("webhook payload missing repository reference")
	}

	return &provider.WebhookDelivery{
		ExternalID: fmt.Sprintf("%s#%s", envelope.Repository.FullName, hookID),
		EventType:  eventType,
		DeliveryID: deliveryID,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}, nil
}

// client builds an authenticated API client bound to the connection's
// access token.
func (a *Adapter) client(ctx context.Context, accessToken string) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	tc := oauth2.NewClient(a.oauthContext(ctx), ts)
	client := github.NewClient(tc)
	if a.apiBaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(a.apiBaseURL, a.apiBaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid API base URL: %w", err)
		}
	}
	return client, nil
}

// oauthContext injects the override HTTP client so tests can intercept
// token endpoints as well as API calls.
func (a *Adapter) oauthContext(ctx context.Context) context.Context {
	if a.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	return ctx
}

func splitResourceRef(resourceRef string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(resourceRef, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("%w: resource ref must be owner/repo, got %q", domain.ErrInvalidResource, resourceRef)
	}
	return owner, repo, nil
}

func splitExternalID(externalID string) (resourceRef string, hookID int64, err error) {
	resourceRef, rawID, ok := strings.Cut(externalID, "#")
	if !ok {
		return "", 0, fmt.Errorf("%w: malformed external id %q", domain.ErrInvalidResource, externalID)
	}
	hookID, err = strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: malformed hook id in %q", domain.ErrInvalidResource, externalID)
	}
	return resourceRef, hookID, nil
}

// normalizeEventType maps the event feed's type names to the hook event
// names used everywhere else in the system.
func normalizeEventType(feedType string) (string, bool) {
	switch feedType {
	case "PushEvent":
		return "push", true
	case "PullRequestEvent":
		return "pull_request", true
	case "IssuesEvent":
		return "issues", true
	case "ReleaseEvent":
		return "release", true
	default:
		return "", false
	}
}
