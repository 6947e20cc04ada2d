package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wenwu/saas-platform/ipam-service/internal/ipam"
	"github.com/wenwu/saas-platform/ipam-service/internal/models"
	"github.com/wenwu/saas-platform/ipam-service/internal/repository"
)

func TestQuotaLedger_CheckCreatesCounterLazily(t *testing.T) {
	store := newMemQuotaStore()
	ledger := NewQuotaLedger(store, 10, 500, 80)

	info, err := ledger.Check(context.Background(), "user-1", models.QuotaKindRegion)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Current)
	assert.Equal(t, 10, info.Limit)
	assert.Equal(t, 10, info.Available)
	assert.False(t, info.Warning)
}

func TestQuotaLedger_CheckAtLimit(t *testing.T) {
	store := newMemQuotaStore()
	store.seed("user-1", models.QuotaKindRegion, 10, 10)
	ledger := NewQuotaLedger(store, 10, 500, 80)

	info, err := ledger.Check(context.Background(), "user-1", models.QuotaKindRegion)
	assert.True(t, ipam.IsKind(err, ipam.KindQuotaExceeded))
	require.NotNil(t, info, "usage view is returned even when exhausted")
	assert.Equal(t, 0, info.Available)
	assert.Equal(t, 100.0, info.UsagePercent)
}

func TestQuotaLedger_WarningThreshold(t *testing.T) {
	store := newMemQuotaStore()
	store.seed("user-1", models.QuotaKindHost, 8, 10)
	ledger := NewQuotaLedger(store, 10, 10, 80)

	info, err := ledger.Check(context.Background(), "user-1", models.QuotaKindHost)
	require.NoError(t, err)
	assert.True(t, info.Warning)
	assert.Equal(t, 80.0, info.UsagePercent)
}

func TestQuotaLedger_AdjustBounds(t *testing.T) {
	store := newMemQuotaStore()
	store.seed("user-1", models.QuotaKindRegion, 0, 2)
	ledger := NewQuotaLedger(store, 2, 500, 80)
	ctx := context.Background()

	require.NoError(t, ledger.Adjust(ctx, "user-1", models.QuotaKindRegion, +1))
	require.NoError(t, ledger.Adjust(ctx, "user-1", models.QuotaKindRegion, +1))

	err := ledger.Adjust(ctx, "user-1", models.QuotaKindRegion, +1)
	assert.ErrorIs(t, err, repository.ErrQuotaBound)
	assert.Equal(t, 2, store.current("user-1", models.QuotaKindRegion))

	require.NoError(t, ledger.Adjust(ctx, "user-1", models.QuotaKindRegion, -1))
	require.NoError(t, ledger.Adjust(ctx, "user-1", models.QuotaKindRegion, -1))

	err = ledger.Adjust(ctx, "user-1", models.QuotaKindRegion, -1)
	assert.ErrorIs(t, err, repository.ErrQuotaBound, "counter never goes below zero")
}
