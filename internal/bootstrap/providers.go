package bootstrap

import (
	"log/slog"

	"github.com/triggerline/triggerline/internal/config"
	"github.com/triggerline/triggerline/internal/provider"
	"github.com/triggerline/triggerline/internal/provider/calsync"
	"github.com/triggerline/triggerline/internal/provider/ghapp"
	"github.com/triggerline/triggerline/internal/provider/pagespace"
	"github.com/triggerline/triggerline/internal/provider/streamcast"
)

// InitializeProviderRegistry constructs every shipped provider adapter from
// config credentials and returns the registry the services resolve against.
// Adapters with incomplete credentials are still registered so polling and
// status reads work, but a warning is logged since OAuth flows will fail.
func InitializeProviderRegistry(cfg *config.Config) *provider.Registry {
	adapters := []provider.Adapter{
		ghapp.New(options(cfg, "ghapp")),
		pagespace.New(options(cfg, "pagespace")),
		streamcast.New(options(cfg, "streamcast")),
		calsync.New(options(cfg, "calsync")),
	}

	for _, a := range adapters {
		creds := cfg.Providers[a.Name()]
		if creds.ClientID == "" || creds.ClientSecret == "" {
			slog.Warn(LogMsgProviderMissingCredential, "provider", a.Name())
			continue
		}
		slog.Info(LogMsgProviderConfigured, "provider", a.Name())
	}

	return provider.NewRegistry(adapters...)
}

func options(cfg *config.Config, providerID string) provider.Options {
	creds := cfg.Providers[providerID]
	return provider.Options{
		ClientID:      creds.ClientID,
		ClientSecret:  creds.ClientSecret,
		WebhookSecret: creds.WebhookSecret,
	}
}
