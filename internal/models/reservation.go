package models

import (
	"time"

	"github.com/wenwu/saas-platform/ipam-service/internal/ipam"
)

// Reservation states
const (
	ReservationActive    = "active"
	ReservationConverted = "converted"
	ReservationExpired   = "expired"
	ReservationCancelled = "cancelled"
)

// Reservation scope types
const (
	ScopeRegionInCountry = "region_in_country"
	ScopeHostInRegion    = "host_in_region"
)

// Reservation is a time-bounded hold on a coordinate prior to permanent
// allocation. Expiry is evaluated lazily: an active reservation past
// ExpiresAt no longer blocks conflict checks and reports as expired.
type Reservation struct {
	ID        string    `json:"id"`
	ScopeType string    `json:"scope_type"` // region_in_country | host_in_region
	ScopeID   string    `json:"scope_id"`   // country code or region id
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Z         int       `json:"z"`
	OwnerID   string    `json:"owner_id"`
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Coord returns the held coordinate.
func (r *Reservation) Coord() ipam.Coordinate {
	return ipam.Coordinate{X: r.X, Y: r.Y, Z: r.Z}
}

// ExpiredAt reports whether the reservation is past its deadline at t.
func (r *Reservation) ExpiredAt(t time.Time) bool {
	return t.After(r.ExpiresAt)
}

// Blocking reports whether the reservation still holds its coordinate at
// t: only active, unexpired reservations block.
func (r *Reservation) Blocking(t time.Time) bool {
	return r.State == ReservationActive && !r.ExpiredAt(t)
}

// EffectiveState is the lazily evaluated state at t.
func (r *Reservation) EffectiveState(t time.Time) string {
	if r.State == ReservationActive && r.ExpiredAt(t) {
		return ReservationExpired
	}
	return r.State
}
