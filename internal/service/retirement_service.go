package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/wenwu/saas-platform/ipam-service/internal/ipam"
	"github.com/wenwu/saas-platform/ipam-service/internal/models"
	"github.com/wenwu/saas-platform/ipam-service/internal/repository"
)

// RetirementService hard-deletes regions and hosts, writing an audit
// snapshot and releasing quota and address space atomically with the
// deletion. Without transactions the audit write is sequenced strictly
// before the delete: a crash leaves a trail for a still-existing
// resource, never a deleted resource without a trail. Freed coordinates
// are visible to the very next allocation scan.
type RetirementService struct {
	regions RegionStore
	hosts   HostStore
	quota   *QuotaLedger
	audit   *AuditLedger
	tx      TxRunner
	authz   PermissionProvider
	events  EventSink
}

func NewRetirementService(
	regions RegionStore,
	hosts HostStore,
	quota *QuotaLedger,
	audit *AuditLedger,
	tx TxRunner,
	authz PermissionProvider,
	events EventSink,
) *RetirementService {
	return &RetirementService{
		regions: regions,
		hosts:   hosts,
		quota:   quota,
		audit:   audit,
		tx:      tx,
		authz:   authz,
		events:  events,
	}
}

// Retire deletes a region or host. The caller must own the resource and
// give a non-empty reason. A region with active hosts requires
// cascade=true; the cascade retires every child host with its own audit
// record before the region itself. The returned record is the audit
// snapshot of the named resource.
func (s *RetirementService) Retire(ctx context.Context, userID, resourceType, resourceID, reason string, cascade bool) (*models.AuditRecord, error) {
	const op = "retire"

	if strings.TrimSpace(reason) == "" {
		return nil, ipam.E(ipam.KindValidation, op, "reason is required").WithUser(userID).WithResource(resourceID)
	}

	switch resourceType {
	case models.ResourceTypeHost:
		return s.retireHost(ctx, userID, resourceID, reason)
	case models.ResourceTypeRegion:
		return s.retireRegion(ctx, userID, resourceID, reason, cascade)
	default:
		return nil, ipam.E(ipam.KindValidation, op, fmt.Sprintf("unknown resource type %q", resourceType)).WithUser(userID)
	}
}

func (s *RetirementService) retireHost(ctx context.Context, userID, hostID, reason string) (*models.AuditRecord, error) {
	const op = "retire_host"

	host, err := s.hosts.GetByID(ctx, hostID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ipam.E(ipam.KindNotFound, op, "host not found").WithUser(userID).WithResource(hostID)
		}
		return nil, fmt.Errorf("get host: %w", err)
	}

	if !s.authz.Authorize(ctx, userID, ActionRetire, ResourceRef{Type: models.ResourceTypeHost, ID: host.ID, OwnerID: host.OwnerID}) {
		return nil, ipam.E(ipam.KindPermission, op, "not host owner").WithUser(userID).WithResource(host.ID)
	}

	var rec *models.AuditRecord
	unit := func(ctx context.Context) error {
		var err error
		rec, err = s.deleteHostUnit(ctx, op, userID, host, reason)
		return err
	}

	if s.tx.Supported() {
		err = s.tx.WithinTx(ctx, unit)
	} else {
		err = unit(ctx)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("[Retire] Host retired: user=%s host=%s region=%s z=%d reason=%q", userID, host.ID, host.RegionID, host.Z, reason)
	s.events.Publish(EventHostRetired, map[string]interface{}{
		"host_id":   host.ID,
		"region_id": host.RegionID,
		"z":         host.Z,
		"owner_id":  host.OwnerID,
		"reason":    reason,
	})
	return rec, nil
}

func (s *RetirementService) retireRegion(ctx context.Context, userID, regionID, reason string, cascade bool) (*models.AuditRecord, error) {
	const op = "retire_region"

	region, err := s.regions.GetByID(ctx, regionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ipam.E(ipam.KindNotFound, op, "region not found").WithUser(userID).WithResource(regionID)
		}
		return nil, fmt.Errorf("get region: %w", err)
	}

	if !s.authz.Authorize(ctx, userID, ActionRetire, ResourceRef{Type: models.ResourceTypeRegion, ID: region.ID, OwnerID: region.OwnerID}) {
		return nil, ipam.E(ipam.KindPermission, op, "not region owner").WithUser(userID).WithResource(region.ID)
	}

	children, err := s.hosts.ListByRegion(ctx, region.ID)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	if len(children) > 0 && !cascade {
		return nil, ipam.E(ipam.KindValidation, op, fmt.Sprintf("region not empty: %d active hosts, cascade required", len(children))).
			WithUser(userID).WithResource(region.ID)
	}

	var rec *models.AuditRecord
	unit := func(ctx context.Context) error {
		for _, child := range children {
			if _, err := s.deleteHostUnit(ctx, op, userID, child, reason); err != nil {
				return err
			}
		}

		var err error
		rec, err = s.audit.Record(ctx, models.ResourceTypeRegion, region.ID, models.AuditEventRetired, userID, snapshotWithReason(region.Snapshot(), reason))
		if err != nil {
			return err
		}
		if err := s.regions.Delete(ctx, region.ID); err != nil {
			return fmt.Errorf("delete region: %w", err)
		}
		if err := s.quota.Adjust(ctx, userID, models.QuotaKindRegion, -1); err != nil {
			return ipam.Wrap(ipam.KindTransaction, op,
				fmt.Errorf("release region quota after delete: %w", err)).
				WithUser(userID).WithResource(region.ID)
		}
		return nil
	}

	if s.tx.Supported() {
		err = s.tx.WithinTx(ctx, unit)
	} else {
		err = unit(ctx)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("[Retire] Region retired: user=%s region=%s country=%s coord=(%d,%d) hosts=%d reason=%q",
		userID, region.ID, region.CountryCode, region.X, region.Y, len(children), reason)

	for _, child := range children {
		s.events.Publish(EventHostRetired, map[string]interface{}{
			"host_id":   child.ID,
			"region_id": child.RegionID,
			"z":         child.Z,
			"owner_id":  child.OwnerID,
			"reason":    reason,
		})
	}
	s.events.Publish(EventRegionRetired, map[string]interface{}{
		"region_id":    region.ID,
		"country_code": region.CountryCode,
		"x":            region.X,
		"y":            region.Y,
		"owner_id":     region.OwnerID,
		"reason":       reason,
	})
	return rec, nil
}

// deleteHostUnit writes the audit snapshot, deletes the host and
// releases its quota, in that order. A quota release failing after the
// delete has committed is a potential leak and surfaces as a
// transaction error rather than being masked.
func (s *RetirementService) deleteHostUnit(ctx context.Context, op, userID string, host *models.Host, reason string) (*models.AuditRecord, error) {
	rec, err := s.audit.Record(ctx, models.ResourceTypeHost, host.ID, models.AuditEventRetired, userID, snapshotWithReason(host.Snapshot(), reason))
	if err != nil {
		return nil, err
	}
	if err := s.hosts.Delete(ctx, host.ID); err != nil {
		return nil, fmt.Errorf("delete host: %w", err)
	}
	if err := s.quota.Adjust(ctx, host.OwnerID, models.QuotaKindHost, -1); err != nil {
		return nil, ipam.Wrap(ipam.KindTransaction, op,
			fmt.Errorf("release host quota after delete: %w", err)).
			WithUser(userID).WithResource(host.ID)
	}
	return rec, nil
}

func snapshotWithReason(snapshot map[string]interface{}, reason string) map[string]interface{} {
	snapshot["retire_reason"] = reason
	return snapshot
}
