package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triggerline/triggerline/internal/domain"
)

// TriggerBindingRepository reads the automation engine's trigger bindings.
// This table is owned by the trigger engine; the orchestrator only reads it.
type TriggerBindingRepository struct {
	db *pgxpool.Pool
}

// NewTriggerBindingRepository creates a new TriggerBindingRepository
func NewTriggerBindingRepository(db *pgxpool.Pool) *TriggerBindingRepository {
	return &TriggerBindingRepository{db: db}
}

// ListEnabledByProvider narrows the enumeration to one provider
func (r *TriggerBindingRepository) ListEnabledByProvider(ctx context.Context, provider string) ([]domain.TriggerBinding, error) {
	query := `
		SELECT binding_id, user_id, provider, resource_ref, event_type, enabled
		FROM trigger_bindings
		WHERE enabled AND provider = $1
	`
	rows, err := r.db.Query(ctx, query, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to list trigger bindings for provider: %w", err)
	}
	defer rows.Close()
	return collectBindings(rows)
}

func collectBindings(rows pgx.Rows) ([]domain.TriggerBinding, error) {
	bindings := make([]domain.TriggerBinding, 0)
	for rows.Next() {
		var b domain.TriggerBinding
		if err := rows.Scan(&b.ID, &b.UserID, &b.Provider, &b.ResourceRef, &b.EventType, &b.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan trigger binding: %w", err)
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trigger bindings: %w", err)
	}
	return bindings, nil
}
