package streamcast

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/provider"
)

const testSecret = "sc-secret"

func signedHeaders(t *testing.T, messageID string, sentAt time.Time, body []byte) http.Header {
	t.Helper()
	timestamp := sentAt.UTC().Format(time.RFC3339)

	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(messageID))
	mac.Write([]byte(timestamp))
	mac.Write(body)

	header := http.Header{}
	header.Set(headerMessageID, messageID)
	header.Set(headerMessageTimestamp, timestamp)
	header.Set(headerMessageSignature, "sha256="+hex.EncodeToString(mac.Sum(nil)))
	return header
}

func newTestAdapter(now time.Time) *Adapter {
	a := New(provider.Options{WebhookSecret: testSecret})
	a.now = func() time.Time { return now }
	return a
}

func TestVerifyWebhook(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAdapter(now)

	body := []byte(`{"subscription":{"id":"sub-1","type":"stream.online"},"event":{"channel_id":"chan-9"}}`)
	header := signedHeaders(t, "msg-1", now.Add(-time.Minute), body)

	delivery, err := a.VerifyWebhook(header, body)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", delivery.ExternalID)
	assert.Equal(t, "stream.online", delivery.EventType)
	assert.Equal(t, "msg-1", delivery.DeliveryID)
	assert.JSONEq(t, `{"channel_id":"chan-9"}`, string(delivery.Payload))
}

func TestVerifyWebhookRejectsTamperedBody(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAdapter(now)

	body := []byte(`{"subscription":{"id":"sub-1","type":"stream.online"},"event":{}}`)
	header := signedHeaders(t, "msg-1", now, body)

	tampered := []byte(`{"subscription":{"id":"sub-2","type":"stream.online"},"event":{}}`)
	_, err := a.VerifyWebhook(header, tampered)
	assert.Error(t, err)
}

func TestVerifyWebhookRejectsStaleTimestamp(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAdapter(now)

	body := []byte(`{"subscription":{"id":"sub-1","type":"stream.online"},"event":{}}`)
	header := signedHeaders(t, "msg-1", now.Add(-replayWindow-time.Second), body)

	_, err := a.VerifyWebhook(header, body)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "window")
}

func TestVerifyWebhookRejectsMissingHeaders(t *testing.T) {
	a := newTestAdapter(time.Now())
	_, err := a.VerifyWebhook(http.Header{}, []byte(`{}`))
	assert.Error(t, err)
}

func TestRegisterWebhook(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/eventsub/subscriptions", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"sub-42","type":"stream.online","status":"enabled"}]}`))
	}))
	defer srv.Close()

	a := New(provider.Options{WebhookSecret: testSecret, APIBaseURL: srv.URL})
	conn := &domain.ServiceConnection{AccessToken: "tok"}

	reg, err := a.RegisterWebhook(t.Context(), conn, "chan-9", []string{"stream.online"}, "https://cb.example.com/hooks/streamcast")
	require.NoError(t, err)
	assert.Equal(t, "sub-42", reg.ExternalID)
	assert.Nil(t, reg.ExpiresAt)
	assert.Equal(t, "stream.online", captured["type"])
}

func TestRegisterWebhookMapsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := New(provider.Options{WebhookSecret: testSecret, APIBaseURL: srv.URL})
	conn := &domain.ServiceConnection{AccessToken: "tok"}

	_, err := a.RegisterWebhook(t.Context(), conn, "chan-9", []string{"stream.online"}, "https://cb.example.com")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestPollRecentEventsFiltersBySince(t *testing.T) {
	since := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"ev-1","type":"stream.online","timestamp":"2025-03-01T11:59:00Z","event":{}},
			{"id":"ev-2","type":"stream.online","timestamp":"2025-03-01T12:05:00Z","event":{}}
		]}`))
	}))
	defer srv.Close()

	a := New(provider.Options{WebhookSecret: testSecret, APIBaseURL: srv.URL})
	conn := &domain.ServiceConnection{AccessToken: "tok"}

	events, err := a.PollRecentEvents(t.Context(), conn, "chan-9", since)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev-2", events[0].DeliveryID)
	assert.Equal(t, Name, events[0].Provider)
}
