package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PollCursorRepository implements the poll cursor repository for PostgreSQL
type PollCursorRepository struct {
	db *pgxpool.Pool
}

// NewPollCursorRepository creates a new PollCursorRepository
func NewPollCursorRepository(db *pgxpool.Pool) *PollCursorRepository {
	return &PollCursorRepository{db: db}
}

// Get returns the last successful poll timestamp for (connection, resource).
// ok=false means the resource has never been polled.
func (r *PollCursorRepository) Get(ctx context.Context, connectionID, resourceRef string) (time.Time, bool, error) {
	query := `SELECT last_poll_at FROM poll_cursors WHERE connection_id = $1 AND resource_ref = $2`
	var at time.Time
	err := r.db.QueryRow(ctx, query, connectionID, resourceRef).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get poll cursor: %w", err)
	}
	return at, true, nil
}

// Set advances the cursor. Called only after a successful poll so a failed
// sweep re-reads the same window next tick.
func (r *PollCursorRepository) Set(ctx context.Context, connectionID, resourceRef string, at time.Time) error {
	query := `
		INSERT INTO poll_cursors (connection_id, resource_ref, last_poll_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (connection_id, resource_ref) DO UPDATE SET last_poll_at = EXCLUDED.last_poll_at
	`
	if _, err := r.db.Exec(ctx, query, connectionID, resourceRef, at); err != nil {
		return fmt.Errorf("failed to set poll cursor: %w", err)
	}
	return nil
}
