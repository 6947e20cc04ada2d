package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/wenwu/saas-platform/ipam-service/internal/db"
	"github.com/wenwu/saas-platform/ipam-service/internal/ipam"
	"github.com/wenwu/saas-platform/ipam-service/internal/models"
)

type RegionRepository struct {
	db *db.DB
}

func NewRegionRepository(database *db.DB) *RegionRepository {
	return &RegionRepository{db: database}
}

// Create inserts a region. A uniqueness violation on (country, x, y)
// is returned as ErrDuplicate.
func (r *RegionRepository) Create(ctx context.Context, region *models.Region) error {
	query := `
		INSERT INTO ipam.regions (id, country_code, x, y, owner_id, label, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		region.ID, region.CountryCode, region.X, region.Y,
		region.OwnerID, region.Label, region.Tags,
	)
	if err != nil {
		if mapped := mapInsertError(err); errors.Is(mapped, ErrDuplicate) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert region: %w", err)
	}

	return nil
}

// GetByID retrieves a region by ID
func (r *RegionRepository) GetByID(ctx context.Context, id string) (*models.Region, error) {
	query := `
		SELECT id, country_code, x, y, owner_id, label, tags, created_at, updated_at
		FROM ipam.regions
		WHERE id = $1
	`
	return r.scanRegion(r.db.Querier(ctx).QueryRow(ctx, query, id))
}

// GetByCoordinate retrieves the active region at (x, y) in a country
func (r *RegionRepository) GetByCoordinate(ctx context.Context, countryCode string, x, y int) (*models.Region, error) {
	query := `
		SELECT id, country_code, x, y, owner_id, label, tags, created_at, updated_at
		FROM ipam.regions
		WHERE country_code = $1 AND x = $2 AND y = $3
	`
	return r.scanRegion(r.db.Querier(ctx).QueryRow(ctx, query, countryCode, x, y))
}

// ListByOwner retrieves all active regions owned by a user
func (r *RegionRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Region, error) {
	query := `
		SELECT id, country_code, x, y, owner_id, label, tags, created_at, updated_at
		FROM ipam.regions
		WHERE owner_id = $1
		ORDER BY country_code, x, y
	`

	rows, err := r.db.Querier(ctx).Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query regions by owner: %w", err)
	}
	defer rows.Close()

	return r.scanRegions(rows)
}

// UsedCoordinates returns the set of (x, y) pairs taken by active
// regions of a country. This is the snapshot the candidate scan skips.
func (r *RegionRepository) UsedCoordinates(ctx context.Context, countryCode string) (map[ipam.Coordinate]bool, error) {
	query := `SELECT x, y FROM ipam.regions WHERE country_code = $1`

	rows, err := r.db.Querier(ctx).Query(ctx, query, countryCode)
	if err != nil {
		return nil, fmt.Errorf("query used coordinates: %w", err)
	}
	defer rows.Close()

	used := make(map[ipam.Coordinate]bool)
	for rows.Next() {
		var x, y int
		if err := rows.Scan(&x, &y); err != nil {
			return nil, fmt.Errorf("scan coordinate: %w", err)
		}
		used[ipam.Coordinate{X: x, Y: y}] = true
	}

	return used, rows.Err()
}

// Update persists label and tags changes
func (r *RegionRepository) Update(ctx context.Context, region *models.Region) error {
	query := `
		UPDATE ipam.regions SET label = $1, tags = $2, updated_at = now()
		WHERE id = $3
	`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, region.Label, region.Tags, region.ID)
	if err != nil {
		return fmt.Errorf("update region: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete hard-deletes a region, releasing its coordinate immediately
func (r *RegionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Querier(ctx).Exec(ctx, `DELETE FROM ipam.regions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete region: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RegionRepository) scanRegion(row pgx.Row) (*models.Region, error) {
	region := &models.Region{}
	err := row.Scan(
		&region.ID, &region.CountryCode, &region.X, &region.Y,
		&region.OwnerID, &region.Label, &region.Tags,
		&region.CreatedAt, &region.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan region: %w", err)
	}
	return region, nil
}

func (r *RegionRepository) scanRegions(rows pgx.Rows) ([]*models.Region, error) {
	var regions []*models.Region
	for rows.Next() {
		region := &models.Region{}
		err := rows.Scan(
			&region.ID, &region.CountryCode, &region.X, &region.Y,
			&region.OwnerID, &region.Label, &region.Tags,
			&region.CreatedAt, &region.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan region row: %w", err)
		}
		regions = append(regions, region)
	}
	return regions, rows.Err()
}
