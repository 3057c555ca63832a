package repository

import (
	"context"

	"github.com/triggerline/triggerline/internal/domain"
)

// TriggerBinding is the read-only view over the automation engine's trigger
// bindings. The orchestrator never writes this table.
type TriggerBinding interface {
	// ListEnabledByProvider returns one provider's enabled bindings, one
	// per (user, provider, resource_ref, event_type), for the sweep.
	ListEnabledByProvider(ctx context.Context, provider string) ([]domain.TriggerBinding, error)
}
