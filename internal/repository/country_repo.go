package repository

import (
	"context"
	"fmt"

	"github.com/wenwu/saas-platform/ipam-service/internal/db"
	"github.com/wenwu/saas-platform/ipam-service/internal/models"
)

type CountryRepository struct {
	db *db.DB
}

func NewCountryRepository(database *db.DB) *CountryRepository {
	return &CountryRepository{db: database}
}

// GetAll retrieves all countries
func (r *CountryRepository) GetAll(ctx context.Context) ([]*models.Country, error) {
	query := `
		SELECT code, continent_code, name, max_x, max_y, max_z, created_at, updated_at
		FROM ipam.countries
		ORDER BY code
	`

	rows, err := r.db.Querier(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query countries: %w", err)
	}
	defer rows.Close()

	var countries []*models.Country
	for rows.Next() {
		c := &models.Country{}
		err := rows.Scan(
			&c.Code, &c.ContinentCode, &c.Name,
			&c.MaxX, &c.MaxY, &c.MaxZ, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		countries = append(countries, c)
	}

	return countries, rows.Err()
}

// Upsert creates or updates a country (seeding only; countries are
// read-only reference data at runtime)
func (r *CountryRepository) Upsert(ctx context.Context, c *models.Country) error {
	query := `
		INSERT INTO ipam.countries (code, continent_code, name, max_x, max_y, max_z)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE SET
			continent_code = EXCLUDED.continent_code,
			name = EXCLUDED.name,
			max_x = EXCLUDED.max_x,
			max_y = EXCLUDED.max_y,
			max_z = EXCLUDED.max_z,
			updated_at = now()
	`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		c.Code, c.ContinentCode, c.Name, c.MaxX, c.MaxY, c.MaxZ,
	)
	if err != nil {
		return fmt.Errorf("upsert country: %w", err)
	}

	return nil
}
