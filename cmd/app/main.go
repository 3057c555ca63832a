package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/triggerline/triggerline/internal/bootstrap"
	"github.com/triggerline/triggerline/internal/config"
	"github.com/triggerline/triggerline/internal/connection"
	"github.com/triggerline/triggerline/internal/database"
	"github.com/triggerline/triggerline/internal/handler"
	"github.com/triggerline/triggerline/internal/poller"
	"github.com/triggerline/triggerline/internal/resolver"
	"github.com/triggerline/triggerline/internal/scheduler"
	"github.com/triggerline/triggerline/internal/server"
	"github.com/triggerline/triggerline/internal/subscription"
	"github.com/triggerline/triggerline/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Dev gets session log files alongside stdout; everything else logs
	// structured to stdout only.
	if cfg.Environment == "dev" || cfg.Environment == "development" {
		logFile, err := bootstrap.SetupLogger(cfg)
		if err != nil {
			log.Fatalf("Failed to set up logging: %v", err)
		}
		defer logFile.Close()
	} else {
		initLogger(cfg)
	}

	dbPool, err := database.NewPool(cfg.GetDBConnString(), cfg.DBMaxConns, cfg.DBMaxConnIdleTime, cfg.DBMaxConnLifetime)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	eventBus, resilientPublisher, err := bootstrap.InitializeEventSystem(cfg)
	if err != nil {
		slog.Error("Failed to initialize event system", "error", err)
		os.Exit(1)
	}
	if err := bootstrap.RegisterEventHandlers(eventBus); err != nil {
		slog.Error("Failed to register event handlers", "error", err)
		os.Exit(1)
	}

	repos := bootstrap.InitializeRepositories(dbPool)
	providers := bootstrap.InitializeProviderRegistry(cfg)

	connectionService := connection.NewService(repos.Connection, repos.Subscription, providers, cfg.StateSecret, resilientPublisher)
	subscriptionService := subscription.NewService(repos.Subscription, repos.Connection, providers, connectionService, resilientPublisher, subscription.Config{
		WebhookBaseURL: cfg.WebhookBaseURL + "/webhooks",
		RetryBackoff:   cfg.SubscriptionRetryBackoff,
	})
	resolverService := resolver.NewService(repos.Connection, repos.Subscription)

	sweeper := poller.New(repos.TriggerBinding, connectionService, repos.PollCursor, resolverService, providers, resilientPublisher, cfg.ProviderCallTimeout, cfg.PollIntervalFor)

	webhookHandler, err := handler.NewWebhookHandler(providers, subscriptionService, resilientPublisher)
	if err != nil {
		slog.Error("Failed to initialize webhook handler", "error", err)
		os.Exit(1)
	}

	// Maintenance scheduling: one polling sweep per provider at its own
	// interval, plus the registration retry and renewal sweeps.
	pool := worker.NewPool(worker.DefaultWorkerCount, worker.DefaultQueueSize)
	pool.Start()
	sched := scheduler.New(pool)
	for _, providerID := range providers.Names() {
		sched.Schedule(cfg.PollIntervalFor(providerID), &worker.PollSweepJob{Poller: sweeper, Provider: providerID})
	}
	sched.Schedule(bootstrap.RetrySweepInterval, &worker.SubscriptionRetryJob{Subscriptions: subscriptionService})
	sched.Schedule(bootstrap.RenewalSweepInterval, &worker.RegistrationRenewalJob{
		Subscriptions: subscriptionService,
		Window:        bootstrap.RenewalWindow,
	})

	srv := server.NewServer(cfg.Port, cfg.APIKey, cfg.TrustedProxies, dbPool, connectionService, subscriptionService, resolverService, webhookHandler)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	bootstrap.GracefulShutdown(ctx, bootstrap.ShutdownComponents{
		Server:     srv,
		Scheduler:  sched,
		WorkerPool: pool,
		Publisher:  resilientPublisher,
	})
}
