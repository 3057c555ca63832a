package ghapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/provider"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestSplitResourceRef(t *testing.T) {
	owner, repo, err := splitResourceRef("acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "widgets", repo)

	_, _, err = splitResourceRef("not-a-repo")
	assert.ErrorIs(t, err, domain.ErrInvalidResource)

	_, _, err = splitResourceRef("/widgets")
	assert.ErrorIs(t, err, domain.ErrInvalidResource)
}

func TestSplitExternalID(t *testing.T) {
	ref, hookID, err := splitExternalID("acme/widgets#12345")
	require.NoError(t, err)
	assert.Equal(t, "acme/widgets", ref)
	assert.Equal(t, int64(12345), hookID)

	_, _, err = splitExternalID("acme/widgets")
	assert.ErrorIs(t, err, domain.ErrInvalidResource)

	_, _, err = splitExternalID("acme/widgets#notanumber")
	assert.ErrorIs(t, err, domain.ErrInvalidResource)
}

func TestNormalizeEventType(t *testing.T) {
	et, ok := normalizeEventType("PushEvent")
	assert.True(t, ok)
	assert.Equal(t, "push", et)

	et, ok = normalizeEventType("PullRequestEvent")
	assert.True(t, ok)
	assert.Equal(t, "pull_request", et)

	_, ok = normalizeEventType("WatchEvent")
	assert.False(t, ok)
}

func TestRegisterWebhookRejectsUnsupportedEventType(t *testing.T) {
	a := New(provider.Options{ClientID: "id", ClientSecret: "secret"})

	conn := &domain.ServiceConnection{AccessToken: "tok"}
	_, err := a.RegisterWebhook(t.Context(), conn, "acme/widgets", []string{"star"}, "https://cb.example.com")
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}

func TestVerifyWebhook(t *testing.T) {
	a := New(provider.Options{WebhookSecret: "hook-secret"})
	body := []byte(`{"repository":{"full_name":"acme/widgets"},"ref":"refs/heads/main"}`)

	header := http.Header{}
	header.Set("X-Hub-Signature-256", signBody("hook-secret", body))
	header.Set("X-GitHub-Delivery", "delivery-1")
	header.Set("X-GitHub-Event", "push")
	header.Set("X-GitHub-Hook-ID", "777")

	delivery, err := a.VerifyWebhook(header, body)
	require.NoError(t, err)
	assert.Equal(t, "acme/widgets#777", delivery.ExternalID)
	assert.Equal(t, "push", delivery.EventType)
	assert.Equal(t, "delivery-1", delivery.DeliveryID)
	assert.JSONEq(t, string(body), string(delivery.Payload))
}

func TestVerifyWebhookRejectsBadSignature(t *testing.T) {
	a := New(provider.Options{WebhookSecret: "hook-secret"})
	body := []byte(`{"repository":{"full_name":"acme/widgets"}}`)

	header := http.Header{}
	header.Set("X-Hub-Signature-256", signBody("wrong-secret", body))
	header.Set("X-GitHub-Delivery", "delivery-1")
	header.Set("X-GitHub-Event", "push")
	header.Set("X-GitHub-Hook-ID", "777")

	_, err := a.VerifyWebhook(header, body)
	assert.Error(t, err)
}

func TestVerifyWebhookRejectsMissingHeaders(t *testing.T) {
	a := New(provider.Options{WebhookSecret: "hook-secret"})
	body := []byte(`{"repository":{"full_name":"acme/widgets"}}`)

	header := http.Header{}
	header.Set("X-Hub-Signature-256", signBody("hook-secret", body))

	_, err := a.VerifyWebhook(header, body)
	assert.Error(t, err)
}
