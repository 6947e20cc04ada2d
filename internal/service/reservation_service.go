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

// ReservationService manages time-bounded holds on coordinates prior to
// permanent allocation. Expiry is lazy: nothing sweeps reservations in
// the background; every conflict check and listing simply ignores holds
// past their deadline and reports them as expired.
type ReservationService struct {
	index        *AddressSpaceIndex
	regions      RegionStore
	hosts        HostStore
	reservations ReservationStore
	alloc        *AllocationService
	authz        PermissionProvider
	events       EventSink
	defaultTTL   time.Duration
	maxTTL       time.Duration
	now          func() time.Time
}

func NewReservationService(
	index *AddressSpaceIndex,
	regions RegionStore,
	hosts HostStore,
	reservations ReservationStore,
	alloc *AllocationService,
	authz PermissionProvider,
	events EventSink,
	defaultTTL, maxTTL time.Duration,
	now func() time.Time,
) *ReservationService {
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		index:        index,
		regions:      regions,
		hosts:        hosts,
		reservations: reservations,
		alloc:        alloc,
		authz:        authz,
		events:       events,
		defaultTTL:   defaultTTL,
		maxTTL:       maxTTL,
		now:          now,
	}
}

// Create places a hold on a coordinate. A coordinate held by another
// active, unexpired reservation or occupied by a live resource is a
// conflict.
func (s *ReservationService) Create(ctx context.Context, userID string, req *models.CreateReservationRequest) (*models.Reservation, error) {
	const op = "create_reservation"

	ttl := s.defaultTTL
	if req.TTLMinutes > 0 {
		ttl = time.Duration(req.TTLMinutes) * time.Minute
	}
	if ttl > s.maxTTL {
		return nil, ipam.E(ipam.KindValidation, op, fmt.Sprintf("ttl exceeds maximum of %s", s.maxTTL)).WithUser(userID)
	}

	if !s.authz.Authorize(ctx, userID, ActionReserve, ResourceRef{Type: req.ScopeType, ID: req.ScopeID}) {
		return nil, ipam.E(ipam.KindPermission, op, "not authorized").WithUser(userID).WithResource(req.ScopeID)
	}

	res := &models.Reservation{
		ID:        uuid.New().String(),
		ScopeType: req.ScopeType,
		ScopeID:   req.ScopeID,
		X:         req.X,
		Y:         req.Y,
		Z:         req.Z,
		OwnerID:   userID,
		State:     models.ReservationActive,
		ExpiresAt: s.now().UTC().Add(ttl),
		CreatedAt: s.now().UTC(),
		UpdatedAt: s.now().UTC(),
	}

	switch req.ScopeType {
	case models.ScopeRegionInCountry:
		if err := s.checkRegionScope(ctx, op, userID, res); err != nil {
			return nil, err
		}
	case models.ScopeHostInRegion:
		if err := s.checkHostScope(ctx, op, userID, res); err != nil {
			return nil, err
		}
	default:
		return nil, ipam.E(ipam.KindValidation, op, fmt.Sprintf("unknown scope type %q", req.ScopeType)).WithUser(userID)
	}

	if err := s.reservations.Create(ctx, res); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ipam.E(ipam.KindConflict, op, "coordinate already reserved").WithUser(userID).WithResource(res.ScopeID)
		}
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	log.Printf("[Reserve] Reservation created: user=%s scope=%s/%s coord=(%d,%d,%d) expires=%s",
		userID, res.ScopeType, res.ScopeID, res.X, res.Y, res.Z, res.ExpiresAt.Format(time.RFC3339))
	s.events.Publish(EventReservationCreated, map[string]interface{}{
		"reservation_id": res.ID,
		"scope_type":     res.ScopeType,
		"scope_id":       res.ScopeID,
		"owner_id":       res.OwnerID,
		"expires_at":     res.ExpiresAt.Format(time.RFC3339),
	})
	return res, nil
}

func (s *ReservationService) checkRegionScope(ctx context.Context, op, userID string, res *models.Reservation) error {
	country, ok := s.index.Country(res.ScopeID)
	if !ok {
		return ipam.E(ipam.KindValidation, op, fmt.Sprintf("unknown country %q", res.ScopeID)).WithUser(userID)
	}
	res.ScopeID = country.Code

	if res.Z != 0 {
		return ipam.E(ipam.KindValidation, op, "region reservation must not set z").WithUser(userID)
	}
	if !country.Bounds().ContainsRegion(res.X, res.Y) {
		return ipam.E(ipam.KindValidation, op, fmt.Sprintf("coordinate (%d,%d) outside bounds", res.X, res.Y)).WithUser(userID)
	}

	if _, err := s.regions.GetByCoordinate(ctx, country.Code, res.X, res.Y); err == nil {
		return ipam.E(ipam.KindConflict, op, fmt.Sprintf("coordinate (%d,%d) occupied by a live region", res.X, res.Y)).
			WithUser(userID).WithResource(country.Code)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("check live region: %w", err)
	}

	return s.checkBlockingReservation(ctx, op, userID, res)
}

func (s *ReservationService) checkHostScope(ctx context.Context, op, userID string, res *models.Reservation) error {
	region, err := s.regions.GetByID(ctx, res.ScopeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ipam.E(ipam.KindNotFound, op, "region not found").WithUser(userID).WithResource(res.ScopeID)
		}
		return fmt.Errorf("get region: %w", err)
	}

	country, ok := s.index.Country(region.CountryCode)
	if !ok {
		return ipam.E(ipam.KindValidation, op, fmt.Sprintf("region references unknown country %q", region.CountryCode)).WithResource(region.ID)
	}
	if res.X != 0 || res.Y != 0 {
		return ipam.E(ipam.KindValidation, op, "host reservation must not set x/y").WithUser(userID)
	}
	if !country.Bounds().ContainsHost(res.Z) {
		return ipam.E(ipam.KindValidation, op, fmt.Sprintf("offset %d outside [%d,%d]", res.Z, ipam.MinHostOffset, country.MaxZ)).WithUser(userID)
	}

	if _, err := s.hosts.GetByOffset(ctx, region.ID, res.Z); err == nil {
		return ipam.E(ipam.KindConflict, op, fmt.Sprintf("offset %d occupied by a live host", res.Z)).
			WithUser(userID).WithResource(region.ID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("check live host: %w", err)
	}

	return s.checkBlockingReservation(ctx, op, userID, res)
}

// checkBlockingReservation enforces lazy expiry: only active holds that
// have not passed their deadline conflict.
func (s *ReservationService) checkBlockingReservation(ctx context.Context, op, userID string, res *models.Reservation) error {
	existing, err := s.reservations.ListActiveByScope(ctx, res.ScopeType, res.ScopeID)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}

	now := s.now()
	for _, e := range existing {
		if e.Coord() != res.Coord() {
			continue
		}
		if e.Blocking(now) {
			return ipam.E(ipam.KindConflict, op, "coordinate held by an active reservation").
				WithUser(userID).WithResource(e.ID)
		}
		// stale active row: record the lazy expiry so the storage
		// uniqueness on active holds releases the coordinate
		_ = s.reservations.TransitionState(ctx, e.ID, models.ReservationActive, models.ReservationExpired)
	}
	return nil
}

// Convert turns an active reservation into a permanent allocation,
// reusing the held coordinate directly instead of re-scanning. The
// state transition is a compare-and-swap so concurrent converts produce
// exactly one winner; if the allocation then fails the reservation is
// restored to active.
func (s *ReservationService) Convert(ctx context.Context, userID, reservationID string) (*models.ConvertResult, error) {
	const op = "convert_reservation"

	res, err := s.getOwned(ctx, op, userID, ActionConvert, reservationID)
	if err != nil {
		return nil, err
	}

	switch res.EffectiveState(s.now()) {
	case models.ReservationActive:
	case models.ReservationExpired:
		// record the lazy observation, best effort
		_ = s.reservations.TransitionState(ctx, res.ID, models.ReservationActive, models.ReservationExpired)
		return nil, ipam.E(ipam.KindValidation, op, "reservation expired").WithUser(userID).WithResource(res.ID)
	default:
		return nil, ipam.E(ipam.KindValidation, op, fmt.Sprintf("reservation is %s", res.State)).WithUser(userID).WithResource(res.ID)
	}

	if err := s.reservations.TransitionState(ctx, res.ID, models.ReservationActive, models.ReservationConverted); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ipam.E(ipam.KindConflict, op, "reservation no longer active").WithUser(userID).WithResource(res.ID)
		}
		return nil, fmt.Errorf("transition reservation: %w", err)
	}

	result := &models.ConvertResult{Reservation: res}
	var allocErr error
	switch res.ScopeType {
	case models.ScopeRegionInCountry:
		result.Region, allocErr = s.alloc.AllocateRegionAt(ctx, userID, res.ScopeID, res.X, res.Y, "", nil)
	case models.ScopeHostInRegion:
		result.Host, allocErr = s.alloc.AllocateHostAt(ctx, userID, res.ScopeID, res.Z, "", nil)
	default:
		allocErr = ipam.E(ipam.KindValidation, op, fmt.Sprintf("unknown scope type %q", res.ScopeType))
	}

	if allocErr != nil {
		if rbErr := s.reservations.TransitionState(ctx, res.ID, models.ReservationConverted, models.ReservationActive); rbErr != nil {
			return nil, ipam.Wrap(ipam.KindTransaction, op,
				fmt.Errorf("restore reservation after failed allocation: %v (original: %w)", rbErr, allocErr)).
				WithUser(userID).WithResource(res.ID)
		}
		return nil, allocErr
	}

	res.State = models.ReservationConverted
	log.Printf("[Reserve] Reservation converted: user=%s reservation=%s scope=%s/%s", userID, res.ID, res.ScopeType, res.ScopeID)
	s.events.Publish(EventReservationConverted, map[string]interface{}{
		"reservation_id": res.ID,
		"scope_type":     res.ScopeType,
		"scope_id":       res.ScopeID,
		"owner_id":       res.OwnerID,
	})
	return result, nil
}

// Cancel explicitly releases an active reservation.
func (s *ReservationService) Cancel(ctx context.Context, userID, reservationID string) (*models.Reservation, error) {
	const op = "cancel_reservation"

	res, err := s.getOwned(ctx, op, userID, ActionCancel, reservationID)
	if err != nil {
		return nil, err
	}

	switch res.EffectiveState(s.now()) {
	case models.ReservationActive:
	case models.ReservationExpired:
		_ = s.reservations.TransitionState(ctx, res.ID, models.ReservationActive, models.ReservationExpired)
		return nil, ipam.E(ipam.KindValidation, op, "reservation expired").WithUser(userID).WithResource(res.ID)
	default:
		return nil, ipam.E(ipam.KindValidation, op, fmt.Sprintf("reservation is %s", res.State)).WithUser(userID).WithResource(res.ID)
	}

	if err := s.reservations.TransitionState(ctx, res.ID, models.ReservationActive, models.ReservationCancelled); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ipam.E(ipam.KindConflict, op, "reservation no longer active").WithUser(userID).WithResource(res.ID)
		}
		return nil, fmt.Errorf("transition reservation: %w", err)
	}

	res.State = models.ReservationCancelled
	log.Printf("[Reserve] Reservation cancelled: user=%s reservation=%s", userID, res.ID)
	s.events.Publish(EventReservationCancelled, map[string]interface{}{
		"reservation_id": res.ID,
		"owner_id":       res.OwnerID,
	})
	return res, nil
}

// List returns the user's reservations with lazily evaluated states.
func (s *ReservationService) List(ctx context.Context, userID string) ([]*models.Reservation, error) {
	reservations, err := s.reservations.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	now := s.now()
	for _, res := range reservations {
		res.State = res.EffectiveState(now)
	}
	return reservations, nil
}

func (s *ReservationService) getOwned(ctx context.Context, op, userID, action, reservationID string) (*models.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ipam.E(ipam.KindNotFound, op, "reservation not found").WithUser(userID).WithResource(reservationID)
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}

	if !s.authz.Authorize(ctx, userID, action, ResourceRef{Type: "reservation", ID: res.ID, OwnerID: res.OwnerID}) {
		return nil, ipam.E(ipam.KindPermission, op, "not reservation owner").WithUser(userID).WithResource(res.ID)
	}
	return res, nil
}
