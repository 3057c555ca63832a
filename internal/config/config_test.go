package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_KEY", "test-key")
	t.Setenv("OAUTH_STATE_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.ProviderCallTimeout)
	assert.Equal(t, 2*time.Minute, cfg.SubscriptionRetryBackoff)
	assert.Equal(t, "triggerline", cfg.DBName)
}

func TestLoad_RequiresAPIKey(t *testing.T) {
	t.Setenv("API_KEY", "")
	t.Setenv("OAUTH_STATE_SECRET", "test-secret")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RequiresStateSecret(t *testing.T) {
	t.Setenv("API_KEY", "test-key")
	t.Setenv("OAUTH_STATE_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestPollIntervalFor_Override(t *testing.T) {
	t.Setenv("API_KEY", "test-key")
	t.Setenv("OAUTH_STATE_SECRET", "test-secret")
	t.Setenv("POLL_INTERVAL_GHAPP", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.PollIntervalFor("ghapp"))
	assert.Equal(t, 5*time.Minute, cfg.PollIntervalFor("streamcast"))
}

func TestLoad_InvalidPollInterval(t *testing.T) {
	t.Setenv("API_KEY", "test-key")
	t.Setenv("OAUTH_STATE_SECRET", "test-secret")
	t.Setenv("POLL_INTERVAL", "not-a-duration")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_EventRetryOverrides(t *testing.T) {
	t.Setenv("API_KEY", "test-key")
	t.Setenv("OAUTH_STATE_SECRET", "test-secret")
	t.Setenv("EVENT_MAX_RETRIES", "7")
	t.Setenv("EVENT_RETRY_DELAY", "3s")
	t.Setenv("EVENT_DEADLETTER_PATH", "/tmp/dl.jsonl")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.EventMaxRetries)
	assert.Equal(t, 3*time.Second, cfg.EventRetryDelay)
	assert.Equal(t, "/tmp/dl.jsonl", cfg.EventDeadLetterPath)
}

func TestLoad_TrustedProxies(t *testing.T) {
	t.Setenv("API_KEY", "test-key")
	t.Setenv("OAUTH_STATE_SECRET", "test-secret")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.TrustedProxies)
}

func TestLoad_ProviderCredentials(t *testing.T) {
	t.Setenv("API_KEY", "test-key")
	t.Setenv("OAUTH_STATE_SECRET", "test-secret")
	t.Setenv("GHAPP_CLIENT_ID", "cid")
	t.Setenv("GHAPP_CLIENT_SECRET", "csecret")
	t.Setenv("GHAPP_WEBHOOK_SECRET", "whsecret")

	cfg, err := Load()
	require.NoError(t, err)

	creds := cfg.Providers["ghapp"]
	assert.Equal(t, "cid", creds.ClientID)
	assert.Equal(t, "csecret", creds.ClientSecret)
	assert.Equal(t, "whsecret", creds.WebhookSecret)
}
