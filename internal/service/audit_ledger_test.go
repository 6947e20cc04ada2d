package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wenwu/saas-platform/ipam-service/internal/models"
)

func TestAuditLedger_RecordStampsIdentityAndTime(t *testing.T) {
	store := newMemAuditStore()
	ledger := NewAuditLedger(store, fixedClock)

	rec, err := ledger.Record(context.Background(), models.ResourceTypeRegion, "region-1",
		models.AuditEventAllocated, "user-1", map[string]interface{}{"x": 0, "y": 2})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, testTime, rec.CreatedAt)
	assert.Equal(t, "user-1", rec.ActorID)
	assert.Equal(t, 2, rec.Snapshot["y"])
}

func TestAuditLedger_HistoryFilters(t *testing.T) {
	store := newMemAuditStore()
	ledger := NewAuditLedger(store, fixedClock)
	ctx := context.Background()

	_, err := ledger.Record(ctx, models.ResourceTypeRegion, "region-1", models.AuditEventAllocated, "user-1", map[string]interface{}{})
	require.NoError(t, err)
	_, err = ledger.Record(ctx, models.ResourceTypeHost, "host-1", models.AuditEventAllocated, "user-1", map[string]interface{}{})
	require.NoError(t, err)
	_, err = ledger.Record(ctx, models.ResourceTypeRegion, "region-1", models.AuditEventRetired, "user-2", map[string]interface{}{})
	require.NoError(t, err)

	page, err := ledger.History(ctx, models.AuditFilter{ResourceID: "region-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = ledger.History(ctx, models.AuditFilter{ActorID: "user-2"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestAuditLedger_HistoryPagingDefaults(t *testing.T) {
	store := newMemAuditStore()
	ledger := NewAuditLedger(store, fixedClock)

	page, err := ledger.History(context.Background(), models.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.PageSize)
}
