package bootstrap

import (
	"context"
	"log/slog"

	"github.com/triggerline/triggerline/internal/event"
	"github.com/triggerline/triggerline/internal/scheduler"
	"github.com/triggerline/triggerline/internal/server"
	"github.com/triggerline/triggerline/internal/worker"
)

// ShutdownComponents holds all components that need graceful shutdown.
type ShutdownComponents struct {
	Server     *server.Server
	Scheduler  *scheduler.Scheduler
	WorkerPool *worker.Pool
	Publisher  *event.ResilientPublisher
}

// GracefulShutdown performs graceful shutdown of all application components.
// It shuts down in order:
// 1. HTTP server (stop accepting new requests and webhook deliveries)
// 2. Maintenance scheduler (stop enqueueing new sweeps)
// 3. Worker pool (drain in-flight sweep jobs)
// 4. Resilient publisher (flush the retry queue to the bus or dead-letter)
//
// Errors during shutdown are logged but do not stop the shutdown sequence.
func GracefulShutdown(ctx context.Context, components ShutdownComponents) {
	slog.Info(LogMsgShuttingDownServer)

	if err := components.Server.Stop(ctx); err != nil {
		slog.Error(LogMsgServerForcedShutdown, "error", err)
	}

	slog.Info(LogMsgShuttingDownScheduler)
	if components.Scheduler != nil {
		components.Scheduler.Stop()
	}
	if components.WorkerPool != nil {
		components.WorkerPool.Stop()
	}

	// Publisher goes last so events emitted by draining sweep jobs still
	// make it onto the bus or into dead-letter.
	if components.Publisher != nil {
		if err := components.Publisher.Shutdown(ctx); err != nil {
			slog.Error(LogMsgPublisherShutdownFailed, "error", err)
		}
	}

	slog.Info(LogMsgServerStopped)
}
