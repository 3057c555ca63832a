package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triggerline/triggerline/internal/domain"
)

// ConnectionRepository implements the connection repository for PostgreSQL
type ConnectionRepository struct {
	db *pgxpool.Pool
}

// NewConnectionRepository creates a new ConnectionRepository
func NewConnectionRepository(db *pgxpool.Pool) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `connection_id, user_id, provider, access_token, refresh_token,
       expires_at, scopes, status, created_at, updated_at`

// Upsert stores the whole token set for (user, provider). A single
// INSERT ... ON CONFLICT DO UPDATE keeps concurrent reconnects atomic:
// the row is replaced wholesale, never merged field by field.
func (r *ConnectionRepository) Upsert(ctx context.Context, conn domain.ServiceConnection) (*domain.ServiceConnection, bool, error) {
	query := `
		INSERT INTO service_connections (user_id, provider, access_token, refresh_token, expires_at, scopes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scopes = EXCLUDED.scopes,
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING ` + connectionColumns + `, (xmax = 0) AS inserted
	`
	rows := r.db.QueryRow(ctx, query,
		conn.UserID,
		conn.Provider,
		conn.AccessToken,
		conn.RefreshToken,
		nullableTime(conn.ExpiresAt),
		conn.Scopes,
		conn.Status,
	)

	var out domain.ServiceConnection
	var expiresAt *time.Time
	var inserted bool
	err := rows.Scan(
		&out.ID, &out.UserID, &out.Provider, &out.AccessToken, &out.RefreshToken,
		&expiresAt, &out.Scopes, &out.Status, &out.CreatedAt, &out.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert connection: %w", err)
	}
	if expiresAt != nil {
		out.ExpiresAt = *expiresAt
	}
	return &out, inserted, nil
}

// Get retrieves a connection by (user, provider)
func (r *ConnectionRepository) Get(ctx context.Context, userID, provider string) (*domain.ServiceConnection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM service_connections
		WHERE user_id = $1 AND provider = $2
	`
	return scanConnection(r.db.QueryRow(ctx, query, userID, provider))
}

// GetByID retrieves a connection by primary key
func (r *ConnectionRepository) GetByID(ctx context.Context, connectionID string) (*domain.ServiceConnection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM service_connections
		WHERE connection_id = $1
	`
	return scanConnection(r.db.QueryRow(ctx, query, connectionID))
}

// MarkExpired transitions a connection to expired status
func (r *ConnectionRepository) MarkExpired(ctx context.Context, userID, provider string) error {
	query := `
		UPDATE service_connections
		SET status = $3, updated_at = NOW()
		WHERE user_id = $1 AND provider = $2
	`
	tag, err := r.db.Exec(ctx, query, userID, provider, domain.ConnectionExpired)
	if err != nil {
		return fmt.Errorf("failed to mark connection expired: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConnectionNotFound
	}
	return nil
}

// Delete removes a connection. webhook_subscriptions and poll_cursors rows
// cascade via their foreign keys.
func (r *ConnectionRepository) Delete(ctx context.Context, userID, provider string) error {
	query := `DELETE FROM service_connections WHERE user_id = $1 AND provider = $2`
	tag, err := r.db.Exec(ctx, query, userID, provider)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConnectionNotFound
	}
	return nil
}

func scanConnection(row pgx.Row) (*domain.ServiceConnection, error) {
	var conn domain.ServiceConnection
	var expiresAt *time.Time
	err := row.Scan(
		&conn.ID, &conn.UserID, &conn.Provider, &conn.AccessToken, &conn.RefreshToken,
		&expiresAt, &conn.Scopes, &conn.Status, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if expiresAt != nil {
		conn.ExpiresAt = *expiresAt
	}
	return &conn, nil
}
