package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wenwu/saas-platform/ipam-service/internal/models"
)

// AuditLedger is the append-only record of resource snapshots and
// mutation events. Records outlive the resources they describe and are
// the sole history once a region or host is hard-deleted.
type AuditLedger struct {
	store AuditStore
	now   func() time.Time
}

func NewAuditLedger(store AuditStore, now func() time.Time) *AuditLedger {
	if now == nil {
		now = time.Now
	}
	return &AuditLedger{store: store, now: now}
}

// Record appends one snapshot event and returns the stored record.
func (l *AuditLedger) Record(ctx context.Context, resourceType, resourceID, event, actorID string, snapshot map[string]interface{}) (*models.AuditRecord, error) {
	rec := &models.AuditRecord{
		ID:           uuid.New().String(),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Event:        event,
		ActorID:      actorID,
		Snapshot:     snapshot,
		CreatedAt:    l.now().UTC(),
	}

	if err := l.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("record audit event: %w", err)
	}
	return rec, nil
}

// History returns one page of audit records matching the filter.
func (l *AuditLedger) History(ctx context.Context, filter models.AuditFilter) (*models.AuditPage, error) {
	records, total, err := l.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("audit history: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	return &models.AuditPage{
		Records:  records,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}
