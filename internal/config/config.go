package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProviderCredentials holds OAuth client credentials and webhook secrets for
// one provider. WebhookSecret signs/verifies inbound webhook payloads.
type ProviderCredentials struct {
	ClientID      string
	ClientSecret  string
	WebhookSecret string
}

// Config holds the application configuration
type Config struct {
	Port        int
	LogLevel    string
	LogFormat   string
	LogDir      string
	ServiceName string
	Version     string
	Environment string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	DBMaxConns        int
	DBMaxConnIdleTime time.Duration
	DBMaxConnLifetime time.Duration

	APIKey string // API key for presentation-layer authentication

	// TrustedProxies are proxy IPs whose X-Forwarded-For header is honored.
	TrustedProxies []string

	// WebhookBaseURL is the externally reachable base URL providers call
	// back to, e.g. https://hooks.example.com
	WebhookBaseURL string

	// StateSecret signs OAuth state tokens so callbacks can be verified
	// without server-side session storage.
	StateSecret string

	// PollInterval is the default sweep period; per-provider overrides come
	// from POLL_INTERVAL_<PROVIDER>.
	PollInterval          time.Duration
	PollIntervalOverrides map[string]time.Duration

	// ProviderCallTimeout bounds each outbound provider call.
	ProviderCallTimeout time.Duration

	// SubscriptionRetryBackoff is the delay before the single deferred
	// retry of a rate-limited webhook registration.
	SubscriptionRetryBackoff time.Duration

	// Event publishing resilience settings. Zero values fall back to the
	// bootstrap defaults.
	EventMaxRetries     int
	EventRetryDelay     time.Duration
	EventDeadLetterPath string

	Providers map[string]ProviderCredentials
}

// KnownProviders are the provider ids this deployment ships adapters for.
var KnownProviders = []string{"ghapp", "pagespace", "streamcast", "calsync"}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists, but don't fail if it doesn't (could be real env vars)
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		LogDir:      getEnv("LOG_DIR", "logs"),
		ServiceName: getEnv("SERVICE_NAME", "triggerline"),
		Version:     getEnv("VERSION", "dev"),
		Environment: getEnv("ENVIRONMENT", "dev"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBName:      getEnv("DB_NAME", "triggerline"),
		APIKey:      getEnv("API_KEY", ""),

		WebhookBaseURL: getEnv("WEBHOOK_BASE_URL", "http://localhost:8080"),
		StateSecret:    getEnv("OAUTH_STATE_SECRET", ""),

		PollIntervalOverrides: make(map[string]time.Duration),
		Providers:             make(map[string]ProviderCredentials),
	}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT value: %w", err)
	}
	cfg.Port = port

	maxConnsStr := getEnv("DB_MAX_CONNS", "10")
	maxConns, err := strconv.Atoi(maxConnsStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS value: %w", err)
	}
	cfg.DBMaxConns = maxConns

	cfg.DBMaxConnIdleTime, err = getDurationEnv("DB_MAX_CONN_IDLE_TIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.DBMaxConnLifetime, err = getDurationEnv("DB_MAX_CONN_LIFETIME", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	if raw := getEnv("TRUSTED_PROXIES", ""); raw != "" {
		for _, proxy := range strings.Split(raw, ",") {
			cfg.TrustedProxies = append(cfg.TrustedProxies, strings.TrimSpace(proxy))
		}
	}

	cfg.PollInterval, err = getDurationEnv("POLL_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.ProviderCallTimeout, err = getDurationEnv("PROVIDER_CALL_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.SubscriptionRetryBackoff, err = getDurationEnv("SUBSCRIPTION_RETRY_BACKOFF", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.EventRetryDelay, err = getDurationEnv("EVENT_RETRY_DELAY", 0)
	if err != nil {
		return nil, err
	}
	if raw, exists := os.LookupEnv("EVENT_MAX_RETRIES"); exists {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid EVENT_MAX_RETRIES value: %w", err)
		}
		cfg.EventMaxRetries = n
	}
	cfg.EventDeadLetterPath = getEnv("EVENT_DEADLETTER_PATH", "")

	for _, provider := range KnownProviders {
		upper := strings.ToUpper(provider)

		if raw, exists := os.LookupEnv("POLL_INTERVAL_" + upper); exists {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid POLL_INTERVAL_%s value: %w", upper, err)
			}
			cfg.PollIntervalOverrides[provider] = d
		}

		cfg.Providers[provider] = ProviderCredentials{
			ClientID:      getEnv(upper+"_CLIENT_ID", ""),
			ClientSecret:  getEnv(upper+"_CLIENT_SECRET", ""),
			WebhookSecret: getEnv(upper+"_WEBHOOK_SECRET", ""),
		}
	}

	// Validate API key is set
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API_KEY environment variable must be set for security")
	}
	if cfg.StateSecret == "" {
		return nil, fmt.Errorf("OAUTH_STATE_SECRET environment variable must be set")
	}

	return cfg, nil
}

// PollIntervalFor returns the sweep period for a provider, falling back to
// the global default.
func (c *Config) PollIntervalFor(provider string) time.Duration {
	if d, ok := c.PollIntervalOverrides[provider]; ok {
		return d
	}
	return c.PollInterval
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return d, nil
}

// GetDBConnString returns the PostgreSQL connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
	)
}
