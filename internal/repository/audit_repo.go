package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wenwu/saas-platform/ipam-service/internal/db"
	"github.com/wenwu/saas-platform/ipam-service/internal/models"
)

type AuditRepository struct {
	db *db.DB
}

func NewAuditRepository(database *db.DB) *AuditRepository {
	return &AuditRepository{db: database}
}

// Insert appends an audit record. Records are never updated or deleted.
func (r *AuditRepository) Insert(ctx context.Context, rec *models.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	query := `
		INSERT INTO ipam.audit_records (id, resource_type, resource_id, event, actor_id, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		rec.ID, rec.ResourceType, rec.ResourceID, rec.Event,
		rec.ActorID, rec.Snapshot, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}

	return nil
}

// List queries audit records with optional filters, newest first.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditRecord, int, error) {
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	from := filter.From
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	to := filter.To
	if to.IsZero() {
		to = time.Now().Add(24 * time.Hour)
	}

	where := `
		WHERE ($1 = '' OR resource_type = $1)
		  AND ($2 = '' OR resource_id = $2)
		  AND ($3 = '' OR actor_id = $3)
		  AND created_at >= $4 AND created_at <= $5
	`

	var total int
	err := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM ipam.audit_records `+where,
		filter.ResourceType, filter.ResourceID, filter.ActorID, from, to,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count audit records: %w", err)
	}

	query := `
		SELECT id, resource_type, resource_id, event, actor_id, snapshot, created_at
		FROM ipam.audit_records ` + where + `
		ORDER BY created_at DESC
		LIMIT $6 OFFSET $7
	`

	rows, err := r.db.Querier(ctx).Query(ctx, query,
		filter.ResourceType, filter.ResourceID, filter.ActorID, from, to,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []*models.AuditRecord
	for rows.Next() {
		rec := &models.AuditRecord{}
		err := rows.Scan(
			&rec.ID, &rec.ResourceType, &rec.ResourceID, &rec.Event,
			&rec.ActorID, &rec.Snapshot, &rec.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, rec)
	}

	return records, total, rows.Err()
}
