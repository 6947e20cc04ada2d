package ipam

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is the external dotted form of a coordinate:
//
//	DE.0.1.42  host at offset 42 in region (0,1) of country DE
//	DE.0.1.0   the region (0,1) itself (offset 0 is reserved)
type Address struct {
	CountryCode string
	Coord       Coordinate
}

// IsHost reports whether the address names a host rather than a region.
func (a Address) IsHost() bool { return a.Coord.Z != 0 }

func (a Address) String() string {
	return fmt.Sprintf("%s.%d.%d.%d", a.CountryCode, a.Coord.X, a.Coord.Y, a.Coord.Z)
}

// FormatRegionAddress renders the region form of a coordinate.
func FormatRegionAddress(countryCode string, x, y int) string {
	return Address{CountryCode: countryCode, Coord: Coordinate{X: x, Y: y}}.String()
}

// FormatHostAddress renders the host form of a coordinate.
func FormatHostAddress(countryCode string, x, y, z int) string {
	return Address{CountryCode: countryCode, Coord: Coordinate{X: x, Y: y, Z: z}}.String()
}

// ParseAddress parses the dotted form. The country code is not resolved
// against the index here; callers validate it against known countries.
func ParseAddress(s string) (Address, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 4 {
		return Address{}, fmt.Errorf("address %q: want CC.X.Y.Z", s)
	}
	code := strings.ToUpper(parts[0])
	if code == "" {
		return Address{}, fmt.Errorf("address %q: empty country code", s)
	}
	nums := make([]int, 3)
	for i, p := range parts[1:] {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Address{}, fmt.Errorf("address %q: bad component %q", s, p)
		}
		nums[i] = n
	}
	if nums[2] > MaxHostOffset {
		return Address{}, fmt.Errorf("address %q: host offset %d out of range", s, nums[2])
	}
	return Address{
		CountryCode: code,
		Coord:       Coordinate{X: nums[0], Y: nums[1], Z: nums[2]},
	}, nil
}
