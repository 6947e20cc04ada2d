package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/wenwu/saas-platform/ipam-service/internal/db"
	"github.com/wenwu/saas-platform/ipam-service/internal/models"
)

type ReservationRepository struct {
	db *db.DB
}

func NewReservationRepository(database *db.DB) *ReservationRepository {
	return &ReservationRepository{db: database}
}

// Create inserts a reservation. The partial unique index on active
// reservations maps a concurrent duplicate hold to ErrDuplicate.
func (r *ReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	query := `
		INSERT INTO ipam.reservations (id, scope_type, scope_id, x, y, z, owner_id, state, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		res.ID, res.ScopeType, res.ScopeID, res.X, res.Y, res.Z,
		res.OwnerID, res.State, res.ExpiresAt,
	)
	if err != nil {
		if mapped := mapInsertError(err); errors.Is(mapped, ErrDuplicate) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert reservation: %w", err)
	}

	return nil
}

// GetByID retrieves a reservation by ID
func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	query := `
		SELECT id, scope_type, scope_id, x, y, z, owner_id, state, expires_at, created_at, updated_at
		FROM ipam.reservations
		WHERE id = $1
	`
	return r.scanReservation(r.db.Querier(ctx).QueryRow(ctx, query, id))
}

// ListActiveByScope retrieves reservations recorded active in a scope.
// Lazy expiry is the caller's concern: rows past expires_at still come
// back and are filtered by the service.
func (r *ReservationRepository) ListActiveByScope(ctx context.Context, scopeType, scopeID string) ([]*models.Reservation, error) {
	query := `
		SELECT id, scope_type, scope_id, x, y, z, owner_id, state, expires_at, created_at, updated_at
		FROM ipam.reservations
		WHERE scope_type = $1 AND scope_id = $2 AND state = 'active'
		ORDER BY created_at
	`

	rows, err := r.db.Querier(ctx).Query(ctx, query, scopeType, scopeID)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	return r.scanReservations(rows)
}

// ListByOwner retrieves all reservations of a user
func (r *ReservationRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Reservation, error) {
	query := `
		SELECT id, scope_type, scope_id, x, y, z, owner_id, state, expires_at, created_at, updated_at
		FROM ipam.reservations
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Querier(ctx).Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query reservations by owner: %w", err)
	}
	defer rows.Close()

	return r.scanReservations(rows)
}

// TransitionState moves a reservation from one state to another as a
// compare-and-swap; ErrNotFound means the reservation was not in the
// expected state.
func (r *ReservationRepository) TransitionState(ctx context.Context, id, fromState, toState string) error {
	query := `
		UPDATE ipam.reservations
		SET state = $3, updated_at = now()
		WHERE id = $1 AND state = $2
	`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, id, fromState, toState)
	if err != nil {
		return fmt.Errorf("transition reservation state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ReservationRepository) scanReservation(row pgx.Row) (*models.Reservation, error) {
	res := &models.Reservation{}
	err := row.Scan(
		&res.ID, &res.ScopeType, &res.ScopeID, &res.X, &res.Y, &res.Z,
		&res.OwnerID, &res.State, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan reservation: %w", err)
	}
	return res, nil
}

func (r *ReservationRepository) scanReservations(rows pgx.Rows) ([]*models.Reservation, error) {
	var reservations []*models.Reservation
	for rows.Next() {
		res := &models.Reservation{}
		err := rows.Scan(
			&res.ID, &res.ScopeType, &res.ScopeID, &res.X, &res.Y, &res.Z,
			&res.OwnerID, &res.State, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		reservations = append(reservations, res)
	}
	return reservations, rows.Err()
}
