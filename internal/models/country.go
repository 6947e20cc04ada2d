package models

import (
	"time"

	"github.com/wenwu/saas-platform/ipam-service/internal/ipam"
)

// Continent codes used by the static address-space index
const (
	ContinentAfrica       = "AF"
	ContinentAsia         = "AS"
	ContinentEurope       = "EU"
	ContinentNorthAmerica = "NA"
	ContinentOceania      = "OC"
	ContinentSouthAmerica = "SA"
)

// Continent is static reference data.
type Continent struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Country is static reference data: a country and the fixed coordinate
// bounds its address space supports. Never mutated at runtime.
type Country struct {
	Code          string    `json:"code"`
	ContinentCode string    `json:"continent_code"`
	Name          string    `json:"name"`
	MaxX          int       `json:"max_x"`
	MaxY          int       `json:"max_y"`
	MaxZ          int       `json:"max_z"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Bounds returns the coordinate space of the country.
func (c *Country) Bounds() ipam.Bounds {
	return ipam.Bounds{MaxX: c.MaxX, MaxY: c.MaxY, MaxZ: c.MaxZ}
}
