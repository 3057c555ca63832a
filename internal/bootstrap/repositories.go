package bootstrap

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triggerline/triggerline/internal/database/postgres"
	"github.com/triggerline/triggerline/internal/repository"
)

// Repositories holds all repository implementations used by the application.
// This provides a centralized location for repository initialization and
// makes dependency injection clearer.
type Repositories struct {
	Connection     repository.Connection
	Subscription   repository.Subscription
	PollCursor     repository.PollCursor
	TriggerBinding repository.TriggerBinding
}

// InitializeRepositories creates all repository implementations.
func InitializeRepositories(dbPool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Connection:     postgres.NewConnectionRepository(dbPool),
		Subscription:   postgres.NewSubscriptionRepository(dbPool),
		PollCursor:     postgres.NewPollCursorRepository(dbPool),
		TriggerBinding: postgres.NewTriggerBindingRepository(dbPool),
	}
}
