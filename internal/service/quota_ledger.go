package service

import (
	"context"
	"fmt"

	"github.com/wenwu/saas-platform/ipam-service/internal/ipam"
	"github.com/wenwu/saas-platform/ipam-service/internal/models"
)

// QuotaLedger keeps per-user counters of active regions and hosts
// against plan limits. Check must pass before any slot is claimed;
// Adjust is called exactly once per successful allocation or
// retirement, under the same atomic unit as the resource write.
type QuotaLedger struct {
	store         QuotaStore
	regionLimit   int
	hostLimit     int
	warnThreshold float64 // usage percent at which the warning flag sets
}

func NewQuotaLedger(store QuotaStore, regionLimit, hostLimit int, warnThreshold float64) *QuotaLedger {
	return &QuotaLedger{
		store:         store,
		regionLimit:   regionLimit,
		hostLimit:     hostLimit,
		warnThreshold: warnThreshold,
	}
}

func (l *QuotaLedger) planLimit(kind string) int {
	if kind == models.QuotaKindRegion {
		return l.regionLimit
	}
	return l.hostLimit
}

// Check returns the current usage view and fails with QuotaExceeded when
// no headroom remains. The counter row is created lazily on first use.
func (l *QuotaLedger) Check(ctx context.Context, userID, kind string) (*models.QuotaInfo, error) {
	if err := l.store.Ensure(ctx, userID, kind, l.planLimit(kind)); err != nil {
		return nil, fmt.Errorf("ensure quota: %w", err)
	}

	counter, err := l.store.Get(ctx, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("get quota: %w", err)
	}

	info := InfoFromCounter(counter, l.warnThreshold)
	if counter.Current >= counter.PlanLimit {
		return info, ipam.E(ipam.KindQuotaExceeded, "quota_check",
			fmt.Sprintf("%s quota %d/%d", kind, counter.Current, counter.PlanLimit)).
			WithUser(userID)
	}

	return info, nil
}

// Adjust applies delta to the counter. Store-level guards keep the
// counter within [0, limit]; a blocked adjustment surfaces to the
// orchestrator, which owns the compensation policy.
func (l *QuotaLedger) Adjust(ctx context.Context, userID, kind string, delta int) error {
	if err := l.store.Ensure(ctx, userID, kind, l.planLimit(kind)); err != nil {
		return fmt.Errorf("ensure quota: %w", err)
	}
	return l.store.Adjust(ctx, userID, kind, delta)
}

// InfoFromCounter derives the read-side view from a raw counter.
func InfoFromCounter(c *models.QuotaCounter, warnThreshold float64) *models.QuotaInfo {
	percent := 0.0
	if c.PlanLimit > 0 {
		percent = float64(c.Current) / float64(c.PlanLimit) * 100
	}

	available := c.PlanLimit - c.Current
	if available < 0 {
		available = 0
	}

	return &models.QuotaInfo{
		UserID:       c.UserID,
		Kind:         c.Kind,
		Current:      c.Current,
		Limit:        c.PlanLimit,
		Available:    available,
		UsagePercent: percent,
		Warning:      percent >= warnThreshold,
	}
}
