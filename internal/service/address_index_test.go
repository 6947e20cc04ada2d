package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wenwu/saas-platform/ipam-service/internal/models"
)

type memCountryStore struct {
	countries map[string]*models.Country
	order     []string
}

func newMemCountryStore() *memCountryStore {
	return &memCountryStore{countries: make(map[string]*models.Country)}
}

func (s *memCountryStore) GetAll(_ context.Context) ([]*models.Country, error) {
	out := make([]*models.Country, 0, len(s.order))
	for _, code := range s.order {
		out = append(out, s.countries[code])
	}
	return out, nil
}

func (s *memCountryStore) Upsert(_ context.Context, c *models.Country) error {
	if _, ok := s.countries[c.Code]; !ok {
		s.order = append(s.order, c.Code)
	}
	cp := *c
	s.countries[c.Code] = &cp
	return nil
}

func TestLoadAddressSpaceIndex_SeedsStore(t *testing.T) {
	store := newMemCountryStore()

	idx, err := LoadAddressSpaceIndex(context.Background(), store)
	require.NoError(t, err)

	assert.Len(t, idx.Countries(), 16)
	assert.Len(t, store.countries, 16)

	de, ok := idx.Country("DE")
	require.True(t, ok)
	assert.Equal(t, models.ContinentEurope, de.ContinentCode)
	assert.Equal(t, 15, de.MaxX)
	assert.Equal(t, 254, de.MaxZ)
	assert.Equal(t, 256, de.Bounds().RegionCapacity())
}

func TestLoadAddressSpaceIndex_Idempotent(t *testing.T) {
	store := newMemCountryStore()
	ctx := context.Background()

	_, err := LoadAddressSpaceIndex(ctx, store)
	require.NoError(t, err)
	idx, err := LoadAddressSpaceIndex(ctx, store)
	require.NoError(t, err)

	assert.Len(t, idx.Countries(), 16)
}

func TestAddressSpaceIndex_CountryLookupIsCaseInsensitive(t *testing.T) {
	idx := testIndex()

	c, ok := idx.Country("de")
	require.True(t, ok)
	assert.Equal(t, "DE", c.Code)

	_, ok = idx.Country("XX")
	assert.False(t, ok)
}

func TestAddressSpaceIndex_Continents(t *testing.T) {
	idx := testIndex()

	continents := idx.Continents()
	require.Len(t, continents, 6)
	assert.Equal(t, models.ContinentAfrica, continents[0].Code)
}
