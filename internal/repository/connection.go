package repository

import (
	"context"

	"github.com/triggerline/triggerline/internal/domain"
)

// Connection defines the interface for service connection persistence.
// Every mutation is a single SQL statement so concurrent reconnect and
// disconnect on the same (user, provider) pair resolve by row locking:
// last committed write wins, never a field-by-field merge.
type Connection interface {
	// Upsert stores the whole token set for (user, provider), overwriting
	// any existing row. Returns created=false when a row already existed.
	Upsert(ctx context.Context, conn domain.ServiceConnection) (*domain.ServiceConnection, bool, error)

	// Get returns the stored connection. Pure state read, no network calls.
	Get(ctx context.Context, userID, provider string) (*domain.ServiceConnection, error)

	// GetByID looks a connection up by its primary key.
	GetByID(ctx context.Context, connectionID string) (*domain.ServiceConnection, error)

	// MarkExpired transitions the connection status to expired.
	MarkExpired(ctx context.Context, userID, provider string) error

	// Delete removes the connection; subscriptions cascade at the storage
	// layer.
	Delete(ctx context.Context, userID, provider string) error
}
