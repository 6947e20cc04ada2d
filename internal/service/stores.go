package service

import (
	"context"

	"github.com/wenwu/saas-platform/ipam-service/internal/ipam"
	"github.com/wenwu/saas-platform/ipam-service/internal/models"
)

// Store interfaces consumed by the services. The Postgres
// implementations live in internal/repository; tests supply in-memory
// ones. Insert methods signal a uniqueness conflict with
// repository.ErrDuplicate and lookups miss with repository.ErrNotFound.

type CountryStore interface {
	GetAll(ctx context.Context) ([]*models.Country, error)
	Upsert(ctx context.Context, c *models.Country) error
}

type RegionStore interface {
	Create(ctx context.Context, region *models.Region) error
	GetByID(ctx context.Context, id string) (*models.Region, error)
	GetByCoordinate(ctx context.Context, countryCode string, x, y int) (*models.Region, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Region, error)
	UsedCoordinates(ctx context.Context, countryCode string) (map[ipam.Coordinate]bool, error)
	Update(ctx context.Context, region *models.Region) error
	Delete(ctx context.Context, id string) error
}

type HostStore interface {
	Create(ctx context.Context, host *models.Host) error
	GetByID(ctx context.Context, id string) (*models.Host, error)
	GetByOffset(ctx context.Context, regionID string, z int) (*models.Host, error)
	ListByRegion(ctx context.Context, regionID string) ([]*models.Host, error)
	UsedOffsets(ctx context.Context, regionID string) (map[int]bool, error)
	CountByRegion(ctx context.Context, regionID string) (int, error)
	Delete(ctx context.Context, id string) error
}

type QuotaStore interface {
	Get(ctx context.Context, userID, kind string) (*models.QuotaCounter, error)
	Ensure(ctx context.Context, userID, kind string, planLimit int) error
	Adjust(ctx context.Context, userID, kind string, delta int) error
}

type AuditStore interface {
	Insert(ctx context.Context, rec *models.AuditRecord) error
	List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditRecord, int, error)
}

type ReservationStore interface {
	Create(ctx context.Context, res *models.Reservation) error
	GetByID(ctx context.Context, id string) (*models.Reservation, error)
	ListActiveByScope(ctx context.Context, scopeType, scopeID string) ([]*models.Reservation, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Reservation, error)
	TransitionState(ctx context.Context, id, fromState, toState string) error
}

// TxRunner is the persistence provider's transaction capability.
// Supported reports whether multi-statement transactions are available;
// when it is false the orchestrator falls back to compensating
// rollbacks, which is then the only atomicity guarantee.
type TxRunner interface {
	Supported() bool
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoTx is the TxRunner for stores without transaction support.
type NoTx struct{}

func (NoTx) Supported() bool { return false }

func (NoTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
