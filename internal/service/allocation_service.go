package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/wenwu/saas-platform/ipam-service/internal/ipam"
	"github.com/wenwu/saas-platform/ipam-service/internal/models"
	"github.com/wenwu/saas-platform/ipam-service/internal/repository"
)

// MaxBatchSize bounds a single batch allocation call.
const MaxBatchSize = 100

// AllocationService composes the slot allocator, the quota ledger and
// the audit ledger into one logical unit of work per allocation. When
// the store supports transactions every write of an allocation is
// wrapped atomically; otherwise the service compensates by deleting the
// just-created resource when a later write fails, so address space is
// never silently leaked.
type AllocationService struct {
	index     *AddressSpaceIndex
	regions   RegionStore
	hosts     HostStore
	quota     *QuotaLedger
	audit     *AuditLedger
	allocator *SlotAllocator
	tx        TxRunner
	authz     PermissionProvider
	events    EventSink
	now       func() time.Time
}

func NewAllocationService(
	index *AddressSpaceIndex,
	regions RegionStore,
	hosts HostStore,
	quota *QuotaLedger,
	audit *AuditLedger,
	allocator *SlotAllocator,
	tx TxRunner,
	authz PermissionProvider,
	events EventSink,
	now func() time.Time,
) *AllocationService {
	if now == nil {
		now = time.Now
	}
	return &AllocationService{
		index:     index,
		regions:   regions,
		hosts:     hosts,
		quota:     quota,
		audit:     audit,
		allocator: allocator,
		tx:        tx,
		authz:     authz,
		events:    events,
		now:       now,
	}
}

// ==================== Region allocation ====================

// AllocateRegion claims the lowest free (X,Y) slot in the country's
// address space for the user.
func (s *AllocationService) AllocateRegion(ctx context.Context, userID string, req *models.AllocateRegionRequest) (*models.Region, error) {
	const op = "allocate_region"

	country, ok := s.index.Country(req.CountryCode)
	if !ok {
		return nil, ipam.E(ipam.KindValidation, op, fmt.Sprintf("unknown country %q", req.CountryCode)).WithUser(userID)
	}

	if !s.authz.Authorize(ctx, userID, ActionAllocateRegion, ResourceRef{Type: "country", ID: country.Code}) {
		return nil, ipam.E(ipam.KindPermission, op, "not authorized").WithUser(userID).WithResource(country.Code)
	}

	if _, err := s.quota.Check(ctx, userID, models.QuotaKindRegion); err != nil {
		return nil, err
	}

	used, err := s.regions.UsedCoordinates(ctx, country.Code)
	if err != nil {
		return nil, fmt.Errorf("scan used coordinates: %w", err)
	}

	var region *models.Region
	coord, err := s.allocator.Claim(ctx, op, ipam.RegionCandidates(country.Bounds(), used),
		func(ctx context.Context, c ipam.Coordinate) error {
			region = s.newRegion(userID, country.Code, c.X, c.Y, req.Label, req.Tags)
			return s.insertRegionUnit(ctx, userID, region)
		})
	if err != nil {
		return nil, s.mapQuotaErr(op, userID, err)
	}

	if err := s.completeRegion(ctx, op, userID, region); err != nil {
		return nil, err
	}

	log.Printf("[Alloc] Region allocated: user=%s country=%s coord=(%d,%d)", userID, country.Code, coord.X, coord.Y)
	s.events.Publish(EventRegionAllocated, map[string]interface{}{
		"region_id":    region.ID,
		"country_code": region.CountryCode,
		"x":            region.X,
		"y":            region.Y,
		"owner_id":     region.OwnerID,
	})
	return region, nil
}

// AllocateRegionAt claims an exact (X,Y) slot, used when converting a
// reservation that already holds the coordinate. A taken slot is a
// conflict, not contention: there is no candidate to advance to.
func (s *AllocationService) AllocateRegionAt(ctx context.Context, userID, countryCode string, x, y int, label string, tags []string) (*models.Region, error) {
	const op = "allocate_region_at"

	country, ok := s.index.Country(countryCode)
	if !ok {
		return nil, ipam.E(ipam.KindValidation, op, fmt.Sprintf("unknown country %q", countryCode)).WithUser(userID)
	}
	if !country.Bounds().ContainsRegion(x, y) {
		return nil, ipam.E(ipam.KindValidation, op, fmt.Sprintf("coordinate (%d,%d) outside bounds", x, y)).WithUser(userID)
	}

	if !s.authz.Authorize(ctx, userID, ActionAllocateRegion, ResourceRef{Type: "country", ID: country.Code}) {
		return nil, ipam.E(ipam.KindPermission, op, "not authorized").WithUser(userID).WithResource(country.Code)
	}

	if _, err := s.quota.Check(ctx, userID, models.QuotaKindRegion); err != nil {
		return nil, err
	}

	region := s.newRegion(userID, country.Code, x, y, label, tags)
	if err := s.insertRegionUnit(ctx, userID, region); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ipam.E(ipam.KindConflict, op, fmt.Sprintf("coordinate (%d,%d) already active", x, y)).
				WithUser(userID).WithResource(country.Code)
		}
		return nil, s.mapQuotaErr(op, userID, err)
	}

	if err := s.completeRegion(ctx, op, userID, region); err != nil {
		return nil, err
	}

	s.events.Publish(EventRegionAllocated, map[string]interface{}{
		"region_id":    region.ID,
		"country_code": region.CountryCode,
		"x":            region.X,
		"y":            region.Y,
		"owner_id":     region.OwnerID,
	})
	return region, nil
}

func (s *AllocationService) newRegion(userID, countryCode string, x, y int, label string, tags []string) *models.Region {
	now := s.now().UTC()
	return &models.Region{
		ID:          uuid.New().String(),
		CountryCode: countryCode,
		X:           x,
		Y:           y,
		OwnerID:     userID,
		Label:       label,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// insertRegionUnit performs one claim attempt. In transactional mode the
// region insert, quota increment and audit write commit or roll back
// together; a uniqueness conflict aborts the transaction and surfaces as
// repository.ErrDuplicate for the retry loop.
func (s *AllocationService) insertRegionUnit(ctx context.Context, userID string, region *models.Region) error {
	if !s.tx.Supported() {
		return s.regions.Create(ctx, region)
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.regions.Create(ctx, region); err != nil {
			return err
		}
		if err := s.quota.Adjust(ctx, userID, models.QuotaKindRegion, +1); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, models.ResourceTypeRegion, region.ID, models.AuditEventAllocated, userID, region.Snapshot())
		return err
	})
}

// completeRegion is the compensating tail for stores without
// transactions: quota and audit follow the already-committed region
// write, and any failure deletes the region again so the slot is not
// leaked. A failed rollback is fatal and surfaces as a transaction
// error.
func (s *AllocationService) completeRegion(ctx context.Context, op, userID string, region *models.Region) error {
	if s.tx.Supported() {
		return nil
	}

	if err := s.quota.Adjust(ctx, userID, models.QuotaKindRegion, +1); err != nil {
		if delErr := s.regions.Delete(ctx, region.ID); delErr != nil {
			return ipam.Wrap(ipam.KindTransaction, op,
				fmt.Errorf("rollback region after quota failure: %v (original: %w)", delErr, err)).
				WithUser(userID).WithResource(region.ID)
		}
		return s.mapQuotaErr(op, userID, err)
	}

	if _, err := s.audit.Record(ctx, models.ResourceTypeRegion, region.ID, models.AuditEventAllocated, userID, region.Snapshot()); err != nil {
		rbErr := s.regions.Delete(ctx, region.ID)
		if rbErr == nil {
			rbErr = s.quota.Adjust(ctx, userID, models.QuotaKindRegion, -1)
		}
		if rbErr != nil {
			return ipam.Wrap(ipam.KindTransaction, op,
				fmt.Errorf("rollback region after audit failure: %v (original: %w)", rbErr, err)).
				WithUser(userID).WithResource(region.ID)
		}
		return err
	}

	return nil
}

// ==================== Host allocation ====================

// AllocateHost claims the lowest free Z offset in the region.
func (s *AllocationService) AllocateHost(ctx context.Context, userID string, req *models.AllocateHostRequest) (*models.Host, error) {
	const op = "allocate_host"

	region, country, err := s.hostTarget(ctx, op, userID, req.RegionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.quota.Check(ctx, userID, models.QuotaKindHost); err != nil {
		return nil, err
	}

	count, err := s.hosts.CountByRegion(ctx, region.ID)
	if err != nil {
		return nil, fmt.Errorf("count hosts: %w", err)
	}
	if count >= country.MaxZ {
		return nil, ipam.E(ipam.KindCapacityExhausted, op, fmt.Sprintf("region at %d-host capacity", country.MaxZ)).
			WithUser(userID).WithResource(region.ID)
	}

	used, err := s.hosts.UsedOffsets(ctx, region.ID)
	if err != nil {
		return nil, fmt.Errorf("scan used offsets: %w", err)
	}

	var host *models.Host
	coord, err := s.allocator.Claim(ctx, op, ipam.HostCandidates(country.MaxZ, used),
		func(ctx context.Context, c ipam.Coordinate) error {
			host = s.newHost(userID, region.ID, c.Z, req.Label, req.Tags)
			return s.insertHostUnit(ctx, userID, host)
		})
	if err != nil {
		if tagged, ok := err.(*ipam.Error); ok {
			tagged.Resource = region.ID
		}
		return nil, s.mapQuotaErr(op, userID, err)
	}

	if err := s.completeHost(ctx, op, userID, host); err != nil {
		return nil, err
	}

	log.Printf("[Alloc] Host allocated: user=%s region=%s z=%d", userID, region.ID, coord.Z)
	s.events.Publish(EventHostAllocated, map[string]interface{}{
		"host_id":   host.ID,
		"region_id": host.RegionID,
		"z":         host.Z,
		"owner_id":  host.OwnerID,
	})
	return host, nil
}

// AllocateHostAt claims an exact Z offset, used for reservation
// conversion.
func (s *AllocationService) AllocateHostAt(ctx context.Context, userID, regionID string, z int, label string, tags []string) (*models.Host, error) {
	const op = "allocate_host_at"

	region, country, err := s.hostTarget(ctx, op, userID, regionID)
	if err != nil {
		return nil, err
	}
	if !country.Bounds().ContainsHost(z) {
		return nil, ipam.E(ipam.KindValidation, op, fmt.Sprintf("offset %d outside [%d,%d]", z, ipam.MinHostOffset, country.MaxZ)).
			WithUser(userID).WithResource(region.ID)
	}

	if _, err := s.quota.Check(ctx, userID, models.QuotaKindHost); err != nil {
		return nil, err
	}

	host := s.newHost(userID, region.ID, z, label, tags)
	if err := s.insertHostUnit(ctx, userID, host); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ipam.E(ipam.KindConflict, op, fmt.Sprintf("offset %d already active", z)).
				WithUser(userID).WithResource(region.ID)
		}
		return nil, s.mapQuotaErr(op, userID, err)
	}

	if err := s.completeHost(ctx, op, userID, host); err != nil {
		return nil, err
	}

	s.events.Publish(EventHostAllocated, map[string]interface{}{
		"host_id":   host.ID,
		"region_id": host.RegionID,
		"z":         host.Z,
		"owner_id":  host.OwnerID,
	})
	return host, nil
}

// AllocateHostsBatch allocates up to MaxBatchSize hosts, best effort.
// Each item goes through the single-host path independently; a failed
// item is reported in its outcome and never aborts the rest.
func (s *AllocationService) AllocateHostsBatch(ctx context.Context, userID string, req *models.AllocateHostsBatchRequest) (*models.BatchResult, error) {
	const op = "allocate_hosts_batch"

	if req.Count < 1 || req.Count > MaxBatchSize {
		return nil, ipam.E(ipam.KindValidation, op, fmt.Sprintf("count must be in [1,%d]", MaxBatchSize)).
			WithUser(userID).WithResource(req.RegionID)
	}

	result := &models.BatchResult{Requested: req.Count}
	for i := 0; i < req.Count; i++ {
		host, err := s.AllocateHost(ctx, userID, &models.AllocateHostRequest{
			RegionID: req.RegionID,
			Label:    req.Label,
		})

		item := models.BatchItem{Index: i}
		if err != nil {
			item.ErrorKind = string(ipam.KindOf(err))
			item.Error = err.Error()
			result.Failed++
		} else {
			item.Host = host
			result.Succeeded++
		}
		result.Items = append(result.Items, item)
	}

	log.Printf("[Alloc] Batch complete: user=%s region=%s requested=%d ok=%d failed=%d",
		userID, req.RegionID, result.Requested, result.Succeeded, result.Failed)
	return result, nil
}

func (s *AllocationService) hostTarget(ctx context.Context, op, userID, regionID string) (*models.Region, *models.Country, error) {
	region, err := s.regions.GetByID(ctx, regionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ipam.E(ipam.KindNotFound, op, "region not found").WithUser(userID).WithResource(regionID)
		}
		return nil, nil, fmt.Errorf("get region: %w", err)
	}

	country, ok := s.index.Country(region.CountryCode)
	if !ok {
		return nil, nil, ipam.E(ipam.KindValidation, op, fmt.Sprintf("region references unknown country %q", region.CountryCode)).
			WithResource(region.ID)
	}

	if !s.authz.Authorize(ctx, userID, ActionAllocateHost, ResourceRef{Type: models.ResourceTypeRegion, ID: region.ID, OwnerID: region.OwnerID}) {
		return nil, nil, ipam.E(ipam.KindPermission, op, "not region owner").WithUser(userID).WithResource(region.ID)
	}

	return region, country, nil
}

func (s *AllocationService) newHost(userID, regionID string, z int, label string, tags []string) *models.Host {
	return &models.Host{
		ID:        uuid.New().String(),
		RegionID:  regionID,
		Z:         z,
		OwnerID:   userID,
		Label:     label,
		Tags:      tags,
		CreatedAt: s.now().UTC(),
	}
}

func (s *AllocationService) insertHostUnit(ctx context.Context, userID string, host *models.Host) error {
	if !s.tx.Supported() {
		return s.hosts.Create(ctx, host)
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.hosts.Create(ctx, host); err != nil {
			return err
		}
		if err := s.quota.Adjust(ctx, userID, models.QuotaKindHost, +1); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, models.ResourceTypeHost, host.ID, models.AuditEventAllocated, userID, host.Snapshot())
		return err
	})
}

func (s *AllocationService) completeHost(ctx context.Context, op, userID string, host *models.Host) error {
	if s.tx.Supported() {
		return nil
	}

	if err := s.quota.Adjust(ctx, userID, models.QuotaKindHost, +1); err != nil {
		if delErr := s.hosts.Delete(ctx, host.ID); delErr != nil {
			return ipam.Wrap(ipam.KindTransaction, op,
				fmt.Errorf("rollback host after quota failure: %v (original: %w)", delErr, err)).
				WithUser(userID).WithResource(host.ID)
		}
		return s.mapQuotaErr(op, userID, err)
	}

	if _, err := s.audit.Record(ctx, models.ResourceTypeHost, host.ID, models.AuditEventAllocated, userID, host.Snapshot()); err != nil {
		rbErr := s.hosts.Delete(ctx, host.ID)
		if rbErr == nil {
			rbErr = s.quota.Adjust(ctx, userID, models.QuotaKindHost, -1)
		}
		if rbErr != nil {
			return ipam.Wrap(ipam.KindTransaction, op,
				fmt.Errorf("rollback host after audit failure: %v (original: %w)", rbErr, err)).
				WithUser(userID).WithResource(host.ID)
		}
		return err
	}

	return nil
}

func (s *AllocationService) mapQuotaErr(op, userID string, err error) error {
	if errors.Is(err, repository.ErrQuotaBound) {
		return ipam.E(ipam.KindQuotaExceeded, op, "plan limit reached").WithUser(userID)
	}
	return err
}

// ==================== Region updates ====================

// UpdateRegion changes the label and tags of a region the user owns and
// records an "updated" audit snapshot.
func (s *AllocationService) UpdateRegion(ctx context.Context, userID, regionID, label string, tags []string) (*models.Region, error) {
	const op = "update_region"

	region, err := s.regions.GetByID(ctx, regionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ipam.E(ipam.KindNotFound, op, "region not found").WithUser(userID).WithResource(regionID)
		}
		return nil, fmt.Errorf("get region: %w", err)
	}

	if !s.authz.Authorize(ctx, userID, ActionUpdate, ResourceRef{Type: models.ResourceTypeRegion, ID: region.ID, OwnerID: region.OwnerID}) {
		return nil, ipam.E(ipam.KindPermission, op, "not region owner").WithUser(userID).WithResource(region.ID)
	}

	region.Label = label
	region.Tags = tags
	region.UpdatedAt = s.now().UTC()

	if err := s.regions.Update(ctx, region); err != nil {
		return nil, fmt.Errorf("update region: %w", err)
	}
	if _, err := s.audit.Record(ctx, models.ResourceTypeRegion, region.ID, models.AuditEventUpdated, userID, region.Snapshot()); err != nil {
		return nil, err
	}

	s.events.Publish(EventRegionUpdated, map[string]interface{}{
		"region_id": region.ID,
		"owner_id":  region.OwnerID,
	})
	return region, nil
}

// ==================== Read side ====================

// ListRegions returns all regions the user owns, across countries.
func (s *AllocationService) ListRegions(ctx context.Context, userID string) ([]*models.Region, error) {
	regions, err := s.regions.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list regions by owner: %w", err)
	}
	return regions, nil
}

// Interpret parses a dotted address and resolves the live resources at
// that coordinate, if any. Pure read, no mutation.
func (s *AllocationService) Interpret(ctx context.Context, address string) (*models.AddressInfo, error) {
	const op = "interpret"

	addr, err := ipam.ParseAddress(address)
	if err != nil {
		return nil, ipam.Wrap(ipam.KindValidation, op, err)
	}

	country, ok := s.index.Country(addr.CountryCode)
	if !ok {
		return nil, ipam.E(ipam.KindNotFound, op, fmt.Sprintf("unknown country %q", addr.CountryCode))
	}
	if !country.Bounds().ContainsRegion(addr.Coord.X, addr.Coord.Y) {
		return nil, ipam.E(ipam.KindValidation, op, "coordinate outside country bounds")
	}

	info := &models.AddressInfo{
		Address:     addr.String(),
		CountryCode: country.Code,
		X:           addr.Coord.X,
		Y:           addr.Coord.Y,
		Z:           addr.Coord.Z,
	}

	region, err := s.regions.GetByCoordinate(ctx, country.Code, addr.Coord.X, addr.Coord.Y)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return info, nil
		}
		return nil, fmt.Errorf("get region by coordinate: %w", err)
	}
	info.Region = region

	if addr.IsHost() {
		host, err := s.hosts.GetByOffset(ctx, region.ID, addr.Coord.Z)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return info, nil
			}
			return nil, fmt.Errorf("get host by offset: %w", err)
		}
		info.Host = host
	}

	return info, nil
}

// Lookup renders the address form of a region, or of the host at offset
// z when z is non-zero.
func (s *AllocationService) Lookup(ctx context.Context, regionID string, z int) (*models.AddressInfo, error) {
	const op = "lookup"

	region, err := s.regions.GetByID(ctx, regionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ipam.E(ipam.KindNotFound, op, "region not found").WithResource(regionID)
		}
		return nil, fmt.Errorf("get region: %w", err)
	}

	if z != 0 && (z < ipam.MinHostOffset || z > ipam.MaxHostOffset) {
		return nil, ipam.E(ipam.KindValidation, op, fmt.Sprintf("offset %d out of range", z)).WithResource(regionID)
	}

	info := &models.AddressInfo{
		Address:     ipam.FormatHostAddress(region.CountryCode, region.X, region.Y, z),
		CountryCode: region.CountryCode,
		X:           region.X,
		Y:           region.Y,
		Z:           z,
		Region:      region,
	}

	if z != 0 {
		host, err := s.hosts.GetByOffset(ctx, region.ID, z)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("get host by offset: %w", err)
		}
		info.Host = host
	}

	return info, nil
}

// Quota returns the usage view for both resource kinds. A kind at its
// limit is still just reported, not an error here.
func (s *AllocationService) Quota(ctx context.Context, userID string) ([]*models.QuotaInfo, error) {
	var infos []*models.QuotaInfo
	for _, kind := range []string{models.QuotaKindRegion, models.QuotaKindHost} {
		info, err := s.quota.Check(ctx, userID, kind)
		if err != nil && !ipam.IsKind(err, ipam.KindQuotaExceeded) {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}
