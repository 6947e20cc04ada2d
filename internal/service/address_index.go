package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/wenwu/saas-platform/ipam-service/internal/ipam"
	"github.com/wenwu/saas-platform/ipam-service/internal/models"
)

var continents = []models.Continent{
	{Code: models.ContinentAfrica, Name: "Africa"},
	{Code: models.ContinentAsia, Name: "Asia"},
	{Code: models.ContinentEurope, Name: "Europe"},
	{Code: models.ContinentNorthAmerica, Name: "North America"},
	{Code: models.ContinentOceania, Name: "Oceania"},
	{Code: models.ContinentSouthAmerica, Name: "South America"},
}

// seedCountries is the static address-space reference data. Bounds are
// inclusive maxima; every region carries 254 usable host offsets.
var seedCountries = []models.Country{
	{Code: "DE", ContinentCode: models.ContinentEurope, Name: "Germany", MaxX: 15, MaxY: 15, MaxZ: ipam.MaxHostOffset},
	{Code: "FR", ContinentCode: models.ContinentEurope, Name: "France", MaxX: 15, MaxY: 15, MaxZ: ipam.MaxHostOffset},
	{Code: "GB", ContinentCode: models.ContinentEurope, Name: "United Kingdom", MaxX: 15, MaxY: 15, MaxZ: ipam.MaxHostOffset},
	{Code: "NL", ContinentCode: models.ContinentEurope, Name: "Netherlands", MaxX: 7, MaxY: 7, MaxZ: ipam.MaxHostOffset},
	{Code: "PL", ContinentCode: models.ContinentEurope, Name: "Poland", MaxX: 7, MaxY: 7, MaxZ: ipam.MaxHostOffset},
	{Code: "US", ContinentCode: models.ContinentNorthAmerica, Name: "United States", MaxX: 31, MaxY: 31, MaxZ: ipam.MaxHostOffset},
	{Code: "CA", ContinentCode: models.ContinentNorthAmerica, Name: "Canada", MaxX: 15, MaxY: 15, MaxZ: ipam.MaxHostOffset},
	{Code: "MX", ContinentCode: models.ContinentNorthAmerica, Name: "Mexico", MaxX: 15, MaxY: 15, MaxZ: ipam.MaxHostOffset},
	{Code: "BR", ContinentCode: models.ContinentSouthAmerica, Name: "Brazil", MaxX: 15, MaxY: 15, MaxZ: ipam.MaxHostOffset},
	{Code: "AR", ContinentCode: models.ContinentSouthAmerica, Name: "Argentina", MaxX: 7, MaxY: 7, MaxZ: ipam.MaxHostOffset},
	{Code: "JP", ContinentCode: models.ContinentAsia, Name: "Japan", MaxX: 15, MaxY: 15, MaxZ: ipam.MaxHostOffset},
	{Code: "SG", ContinentCode: models.ContinentAsia, Name: "Singapore", MaxX: 3, MaxY: 3, MaxZ: ipam.MaxHostOffset},
	{Code: "IN", ContinentCode: models.ContinentAsia, Name: "India", MaxX: 31, MaxY: 31, MaxZ: ipam.MaxHostOffset},
	{Code: "AU", ContinentCode: models.ContinentOceania, Name: "Australia", MaxX: 15, MaxY: 15, MaxZ: ipam.MaxHostOffset},
	{Code: "ZA", ContinentCode: models.ContinentAfrica, Name: "South Africa", MaxX: 7, MaxY: 7, MaxZ: ipam.MaxHostOffset},
	{Code: "EG", ContinentCode: models.ContinentAfrica, Name: "Egypt", MaxX: 7, MaxY: 7, MaxZ: ipam.MaxHostOffset},
}

// AddressSpaceIndex is the static reference data: continents, countries
// and the coordinate bounds each country supports. Loaded once at
// startup and never mutated afterwards.
type AddressSpaceIndex struct {
	countries map[string]*models.Country
	ordered   []*models.Country
}

// LoadAddressSpaceIndex seeds the country table and caches it. Existing
// rows are refreshed from the seed list; the cache then serves all
// lookups without touching the store again.
func LoadAddressSpaceIndex(ctx context.Context, store CountryStore) (*AddressSpaceIndex, error) {
	for i := range seedCountries {
		c := seedCountries[i]
		if err := store.Upsert(ctx, &c); err != nil {
			return nil, fmt.Errorf("seed country %s: %w", c.Code, err)
		}
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load countries: %w", err)
	}

	idx := &AddressSpaceIndex{countries: make(map[string]*models.Country, len(all))}
	for _, c := range all {
		idx.countries[c.Code] = c
		idx.ordered = append(idx.ordered, c)
	}

	log.Printf("[index] Address space index loaded: %d countries", len(all))
	return idx, nil
}

// NewAddressSpaceIndex builds an index directly from country data,
// bypassing any store. Used by tests.
func NewAddressSpaceIndex(countries []*models.Country) *AddressSpaceIndex {
	idx := &AddressSpaceIndex{countries: make(map[string]*models.Country, len(countries))}
	for _, c := range countries {
		idx.countries[c.Code] = c
		idx.ordered = append(idx.ordered, c)
	}
	return idx
}

// Country resolves a country code. The boolean follows map-lookup
// convention.
func (idx *AddressSpaceIndex) Country(code string) (*models.Country, bool) {
	c, ok := idx.countries[strings.ToUpper(code)]
	return c, ok
}

// Countries returns all countries in load order.
func (idx *AddressSpaceIndex) Countries() []*models.Country {
	return idx.ordered
}

// Continents returns the static continent list.
func (idx *AddressSpaceIndex) Continents() []models.Continent {
	return continents
}
