package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/wenwu/saas-platform/ipam-service/internal/db"
	"github.com/wenwu/saas-platform/ipam-service/internal/models"
)

type QuotaRepository struct {
	db *db.DB
}

func NewQuotaRepository(database *db.DB) *QuotaRepository {
	return &QuotaRepository{db: database}
}

// Get retrieves the counter for (user, kind)
func (r *QuotaRepository) Get(ctx context.Context, userID, kind string) (*models.QuotaCounter, error) {
	query := `
		SELECT user_id, kind, current, plan_limit, updated_at
		FROM ipam.quota_counters
		WHERE user_id = $1 AND kind = $2
	`

	c := &models.QuotaCounter{}
	err := r.db.Querier(ctx).QueryRow(ctx, query, userID, kind).Scan(
		&c.UserID, &c.Kind, &c.Current, &c.PlanLimit, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get quota counter: %w", err)
	}
	return c, nil
}

// Ensure creates the counter with the given plan limit if it does not
// exist yet. An existing counter keeps its limit.
func (r *QuotaRepository) Ensure(ctx context.Context, userID, kind string, planLimit int) error {
	query := `
		INSERT INTO ipam.quota_counters (user_id, kind, current, plan_limit)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (user_id, kind) DO NOTHING
	`

	_, err := r.db.Querier(ctx).Exec(ctx, query, userID, kind, planLimit)
	if err != nil {
		return fmt.Errorf("ensure quota counter: %w", err)
	}
	return nil
}

// Adjust applies delta atomically. The guard in the WHERE clause keeps
// the counter within [0, plan_limit]; a blocked adjustment returns
// ErrQuotaBound.
func (r *QuotaRepository) Adjust(ctx context.Context, userID, kind string, delta int) error {
	query := `
		UPDATE ipam.quota_counters
		SET current = current + $3, updated_at = now()
		WHERE user_id = $1 AND kind = $2
		  AND current + $3 >= 0
		  AND current + $3 <= plan_limit
	`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, userID, kind, delta)
	if err != nil {
		return fmt.Errorf("adjust quota counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrQuotaBound
	}
	return nil
}
