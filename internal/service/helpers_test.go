package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wenwu/saas-platform/ipam-service/internal/ipam"
	"github.com/wenwu/saas-platform/ipam-service/internal/models"
	"github.com/wenwu/saas-platform/ipam-service/internal/repository"
)

// In-memory stores backing the service tests. Uniqueness is enforced
// the same way the Postgres repositories do: inserts on a taken
// coordinate return repository.ErrDuplicate, misses return
// repository.ErrNotFound.

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testTime }

func testCountries() []*models.Country {
	return []*models.Country{
		{Code: "DE", ContinentCode: models.ContinentEurope, Name: "Germany", MaxX: 2, MaxY: 2, MaxZ: 254},
		{Code: "SG", ContinentCode: models.ContinentAsia, Name: "Singapore", MaxX: 1, MaxY: 1, MaxZ: 4},
	}
}

func testIndex() *AddressSpaceIndex {
	return NewAddressSpaceIndex(testCountries())
}

// ==================== region store ====================

type memRegionStore struct {
	mu      sync.Mutex
	regions map[string]*models.Region
}

func newMemRegionStore() *memRegionStore {
	return &memRegionStore{regions: make(map[string]*models.Region)}
}

func (s *memRegionStore) Create(_ context.Context, region *models.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.regions {
		if r.CountryCode == region.CountryCode && r.X == region.X && r.Y == region.Y {
			return repository.ErrDuplicate
		}
	}
	cp := *region
	s.regions[region.ID] = &cp
	return nil
}

func (s *memRegionStore) GetByID(_ context.Context, id string) (*models.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memRegionStore) GetByCoordinate(_ context.Context, countryCode string, x, y int) (*models.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.regions {
		if r.CountryCode == countryCode && r.X == x && r.Y == y {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memRegionStore) ListByOwner(_ context.Context, ownerID string) ([]*models.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Region
	for _, r := range s.regions {
		if r.OwnerID == ownerID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memRegionStore) UsedCoordinates(_ context.Context, countryCode string) (map[ipam.Coordinate]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	used := make(map[ipam.Coordinate]bool)
	for _, r := range s.regions {
		if r.CountryCode == countryCode {
			used[ipam.Coordinate{X: r.X, Y: r.Y}] = true
		}
	}
	return used, nil
}

func (s *memRegionStore) Update(_ context.Context, region *models.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.regions[region.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *region
	s.regions[region.ID] = &cp
	return nil
}

func (s *memRegionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.regions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.regions, id)
	return nil
}

func (s *memRegionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.regions)
}

// ==================== host store ====================

type memHostStore struct {
	mu    sync.Mutex
	hosts map[string]*models.Host
}

func newMemHostStore() *memHostStore {
	return &memHostStore{hosts: make(map[string]*models.Host)}
}

func (s *memHostStore) Create(_ context.Context, host *models.Host) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.hosts {
		if h.RegionID == host.RegionID && h.Z == host.Z {
			return repository.ErrDuplicate
		}
	}
	cp := *host
	s.hosts[host.ID] = &cp
	return nil
}

func (s *memHostStore) GetByID(_ context.Context, id string) (*models.Host, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (s *memHostStore) GetByOffset(_ context.Context, regionID string, z int) (*models.Host, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.hosts {
		if h.RegionID == regionID && h.Z == z {
			cp := *h
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memHostStore) ListByRegion(_ context.Context, regionID string) ([]*models.Host, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Host
	for _, h := range s.hosts {
		if h.RegionID == regionID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memHostStore) UsedOffsets(_ context.Context, regionID string) (map[int]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	used := make(map[int]bool)
	for _, h := range s.hosts {
		if h.RegionID == regionID {
			used[h.Z] = true
		}
	}
	return used, nil
}

func (s *memHostStore) CountByRegion(_ context.Context, regionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.hosts {
		if h.RegionID == regionID {
			n++
		}
	}
	return n, nil
}

func (s *memHostStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hosts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.hosts, id)
	return nil
}

func (s *memHostStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hosts)
}

// ==================== quota store ====================

type memQuotaStore struct {
	mu       sync.Mutex
	counters map[string]*models.QuotaCounter
}

func newMemQuotaStore() *memQuotaStore {
	return &memQuotaStore{counters: make(map[string]*models.QuotaCounter)}
}

func quotaKey(userID, kind string) string { return userID + "|" + kind }

func (s *memQuotaStore) Get(_ context.Context, userID, kind string) (*models.QuotaCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[quotaKey(userID, kind)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memQuotaStore) Ensure(_ context.Context, userID, kind string, planLimit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := quotaKey(userID, kind)
	if _, ok := s.counters[key]; !ok {
		s.counters[key] = &models.QuotaCounter{UserID: userID, Kind: kind, PlanLimit: planLimit}
	}
	return nil
}

func (s *memQuotaStore) Adjust(_ context.Context, userID, kind string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[quotaKey(userID, kind)]
	if !ok {
		return repository.ErrNotFound
	}
	next := c.Current + delta
	if next < 0 || next > c.PlanLimit {
		return repository.ErrQuotaBound
	}
	c.Current = next
	return nil
}

func (s *memQuotaStore) current(userID, kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[quotaKey(userID, kind)]
	if !ok {
		return 0
	}
	return c.Current
}

func (s *memQuotaStore) seed(userID, kind string, current, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[quotaKey(userID, kind)] = &models.QuotaCounter{UserID: userID, Kind: kind, Current: current, PlanLimit: limit}
}

// ==================== audit store ====================

type memAuditStore struct {
	mu      sync.Mutex
	records []*models.AuditRecord
	failErr error // when set, Insert fails
}

func newMemAuditStore() *memAuditStore {
	return &memAuditStore{}
}

func (s *memAuditStore) Insert(_ context.Context, rec *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	cp := *rec
	s.records = append(s.records, &cp)
	return nil
}

func (s *memAuditStore) List(_ context.Context, filter models.AuditFilter) ([]*models.AuditRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AuditRecord
	for _, r := range s.records {
		if filter.ResourceType != "" && r.ResourceType != filter.ResourceType {
			continue
		}
		if filter.ResourceID != "" && r.ResourceID != filter.ResourceID {
			continue
		}
		if filter.ActorID != "" && r.ActorID != filter.ActorID {
			continue
		}
		if !filter.From.IsZero() && r.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && r.CreatedAt.After(filter.To) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (s *memAuditStore) byEvent(event string) []*models.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AuditRecord
	for _, r := range s.records {
		if r.Event == event {
			out = append(out, r)
		}
	}
	return out
}

// ==================== reservation store ====================

type memReservationStore struct {
	mu           sync.Mutex
	reservations map[string]*models.Reservation
}

func newMemReservationStore() *memReservationStore {
	return &memReservationStore{reservations: make(map[string]*models.Reservation)}
}

func (s *memReservationStore) Create(_ context.Context, res *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reservations {
		if r.State == models.ReservationActive &&
			r.ScopeType == res.ScopeType && r.ScopeID == res.ScopeID &&
			r.X == res.X && r.Y == res.Y && r.Z == res.Z {
			return repository.ErrDuplicate
		}
	}
	cp := *res
	s.reservations[res.ID] = &cp
	return nil
}

func (s *memReservationStore) GetByID(_ context.Context, id string) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memReservationStore) ListActiveByScope(_ context.Context, scopeType, scopeID string) ([]*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Reservation
	for _, r := range s.reservations {
		if r.State == models.ReservationActive && r.ScopeType == scopeType && r.ScopeID == scopeID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memReservationStore) ListByOwner(_ context.Context, ownerID string) ([]*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Reservation
	for _, r := range s.reservations {
		if r.OwnerID == ownerID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memReservationStore) TransitionState(_ context.Context, id, fromState, toState string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok || r.State != fromState {
		return repository.ErrNotFound
	}
	r.State = toState
	r.UpdatedAt = testTime
	return nil
}

func (s *memReservationStore) state(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return ""
	}
	return r.State
}

// ==================== wrappers and doubles ====================

// conflictingRegionStore injects n duplicate errors before delegating,
// simulating concurrent writers claiming the same candidates.
type conflictingRegionStore struct {
	RegionStore
	mu        sync.Mutex
	conflicts int
}

func (s *conflictingRegionStore) Create(ctx context.Context, region *models.Region) error {
	s.mu.Lock()
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return repository.ErrDuplicate
	}
	s.mu.Unlock()
	return s.RegionStore.Create(ctx, region)
}

// brokenDeleteRegionStore fails Delete, for rollback-failure paths.
type brokenDeleteRegionStore struct {
	RegionStore
}

func (s *brokenDeleteRegionStore) Delete(context.Context, string) error {
	return fmt.Errorf("connection reset")
}

// passthroughTx reports transaction support and counts units. The
// in-memory stores cannot actually roll back, so tests using it only
// exercise the success path of the transactional mode.
type passthroughTx struct {
	mu    sync.Mutex
	units int
}

func (t *passthroughTx) Supported() bool { return true }

func (t *passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.units++
	t.mu.Unlock()
	return fn(ctx)
}

type captureSink struct {
	mu     sync.Mutex
	events []string
}

func (s *captureSink) Publish(kind string, _ map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, kind)
}

func (s *captureSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// denyAuthorizer refuses every action, standing in for an external
// policy engine that does not reduce to owner matching.
type denyAuthorizer struct{}

func (denyAuthorizer) Authorize(context.Context, string, string, ResourceRef) bool { return false }

// ==================== fixture ====================

type fixture struct {
	index        *AddressSpaceIndex
	regions      *memRegionStore
	hosts        *memHostStore
	quota        *memQuotaStore
	audit        *memAuditStore
	reservations *memReservationStore
	sink         *captureSink

	quotaLedger *QuotaLedger
	auditLedger *AuditLedger
	alloc       *AllocationService
	retire      *RetirementService
	reserve     *ReservationService
}

// newFixture wires the services over in-memory stores without
// transaction support, exercising the compensation paths.
func newFixture(regionLimit, hostLimit int) *fixture {
	f := &fixture{
		index:        testIndex(),
		regions:      newMemRegionStore(),
		hosts:        newMemHostStore(),
		quota:        newMemQuotaStore(),
		audit:        newMemAuditStore(),
		reservations: newMemReservationStore(),
		sink:         &captureSink{},
	}
	f.quotaLedger = NewQuotaLedger(f.quota, regionLimit, hostLimit, 80)
	f.auditLedger = NewAuditLedger(f.audit, fixedClock)
	f.wire(f.regions, f.hosts)
	return f
}

func (f *fixture) wire(regions RegionStore, hosts HostStore) {
	f.rebuild(regions, hosts, NoTx{}, OwnerAuthorizer{})
}

func (f *fixture) wireWithTx(regions RegionStore, hosts HostStore, tx TxRunner) {
	f.rebuild(regions, hosts, tx, OwnerAuthorizer{})
}

func (f *fixture) wireWithAuthz(authz PermissionProvider) {
	f.rebuild(f.regions, f.hosts, NoTx{}, authz)
}

func (f *fixture) rebuild(regions RegionStore, hosts HostStore, tx TxRunner, authz PermissionProvider) {
	allocator := NewSlotAllocator(DefaultMaxConflictAttempts)
	f.alloc = NewAllocationService(f.index, regions, hosts, f.quotaLedger, f.auditLedger, allocator, tx, authz, f.sink, fixedClock)
	f.retire = NewRetirementService(regions, hosts, f.quotaLedger, f.auditLedger, tx, authz, f.sink)
	f.reserve = NewReservationService(f.index, regions, hosts, f.reservations, f.alloc, authz, f.sink, 30*time.Minute, 24*time.Hour, fixedClock)
}
