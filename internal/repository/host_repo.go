package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/wenwu/saas-platform/ipam-service/internal/db"
	"github.com/wenwu/saas-platform/ipam-service/internal/models"
)

type HostRepository struct {
	db *db.DB
}

func NewHostRepository(database *db.DB) *HostRepository {
	return &HostRepository{db: database}
}

// Create inserts a host. A uniqueness violation on (region_id, z) is
// returned as ErrDuplicate.
func (r *HostRepository) Create(ctx context.Context, host *models.Host) error {
	query := `
		INSERT INTO ipam.hosts (id, region_id, z, owner_id, label, tags)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		host.ID, host.RegionID, host.Z, host.OwnerID, host.Label, host.Tags,
	)
	if err != nil {
		if mapped := mapInsertError(err); errors.Is(mapped, ErrDuplicate) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert host: %w", err)
	}

	return nil
}

// GetByID retrieves a host by ID
func (r *HostRepository) GetByID(ctx context.Context, id string) (*models.Host, error) {
	query := `
		SELECT id, region_id, z, owner_id, label, tags, created_at
		FROM ipam.hosts
		WHERE id = $1
	`
	return r.scanHost(r.db.Querier(ctx).QueryRow(ctx, query, id))
}

// GetByOffset retrieves the active host at offset z in a region
func (r *HostRepository) GetByOffset(ctx context.Context, regionID string, z int) (*models.Host, error) {
	query := `
		SELECT id, region_id, z, owner_id, label, tags, created_at
		FROM ipam.hosts
		WHERE region_id = $1 AND z = $2
	`
	return r.scanHost(r.db.Querier(ctx).QueryRow(ctx, query, regionID, z))
}

// ListByRegion retrieves all active hosts of a region in offset order
func (r *HostRepository) ListByRegion(ctx context.Context, regionID string) ([]*models.Host, error) {
	query := `
		SELECT id, region_id, z, owner_id, label, tags, created_at
		FROM ipam.hosts
		WHERE region_id = $1
		ORDER BY z
	`

	rows, err := r.db.Querier(ctx).Query(ctx, query, regionID)
	if err != nil {
		return nil, fmt.Errorf("query hosts: %w", err)
	}
	defer rows.Close()

	return r.scanHosts(rows)
}

// UsedOffsets returns the set of Z offsets taken by active hosts of a
// region.
func (r *HostRepository) UsedOffsets(ctx context.Context, regionID string) (map[int]bool, error) {
	query := `SELECT z FROM ipam.hosts WHERE region_id = $1`

	rows, err := r.db.Querier(ctx).Query(ctx, query, regionID)
	if err != nil {
		return nil, fmt.Errorf("query used offsets: %w", err)
	}
	defer rows.Close()

	used := make(map[int]bool)
	for rows.Next() {
		var z int
		if err := rows.Scan(&z); err != nil {
			return nil, fmt.Errorf("scan offset: %w", err)
		}
		used[z] = true
	}

	return used, rows.Err()
}

// CountByRegion counts active hosts in a region
func (r *HostRepository) CountByRegion(ctx context.Context, regionID string) (int, error) {
	var count int
	err := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM ipam.hosts WHERE region_id = $1`, regionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count hosts: %w", err)
	}
	return count, nil
}

// Delete hard-deletes a host, releasing its offset immediately
func (r *HostRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Querier(ctx).Exec(ctx, `DELETE FROM ipam.hosts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete host: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *HostRepository) scanHost(row pgx.Row) (*models.Host, error) {
	host := &models.Host{}
	err := row.Scan(
		&host.ID, &host.RegionID, &host.Z,
		&host.OwnerID, &host.Label, &host.Tags, &host.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan host: %w", err)
	}
	return host, nil
}

func (r *HostRepository) scanHosts(rows pgx.Rows) ([]*models.Host, error) {
	var hosts []*models.Host
	for rows.Next() {
		host := &models.Host{}
		err := rows.Scan(
			&host.ID, &host.RegionID, &host.Z,
			&host.OwnerID, &host.Label, &host.Tags, &host.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan host row: %w", err)
		}
		hosts = append(hosts, host)
	}
	return hosts, rows.Err()
}
