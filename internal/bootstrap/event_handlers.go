package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/triggerline/triggerline/internal/event"
	"github.com/triggerline/triggerline/internal/metrics"
)

// RegisterEventHandlers sets up the bus-wide subscribers: the metrics
// collector that counts published events by type. The trigger-matching
// collaborator subscribes to TriggerEventReceived through the same bus
// when it is wired in.
func RegisterEventHandlers(eventBus event.Bus) error {
	metricsCollector := metrics.NewEventMetricsCollector()
	if err := metricsCollector.Register(eventBus); err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedRegisterMetrics, err)
	}
	slog.Info(LogMsgMetricsCollectorRegistered)

	return nil
}
