// Package ipam holds the coordinate model of the address space: a closed,
// finite space of (X,Y) region slots per country and Z host offsets per
// region. It knows nothing about storage; candidate generators produce
// the deterministic ascending scan the slot allocator claims against.
package ipam

// Host offsets 0 and 255 are reserved boundary offsets; 254 usable
// offsets remain per region.
const (
	MinHostOffset = 1
	MaxHostOffset = 254
)

// Coordinate identifies a slot in a namespace. For a region slot X and Y
// are set and Z is zero; for a host slot only Z is set.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Less orders coordinates lexicographically by (X, Y, Z).
func (c Coordinate) Less(o Coordinate) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.Z < o.Z
}

// Bounds describes the coordinate space a country supports.
type Bounds struct {
	MaxX int // highest valid X, inclusive
	MaxY int // highest valid Y, inclusive
	MaxZ int // usable host offsets per region, normally 254
}

// RegionCapacity returns the number of region slots in the space.
func (b Bounds) RegionCapacity() int {
	return (b.MaxX + 1) * (b.MaxY + 1)
}

// ContainsRegion reports whether (x, y) lies inside the space.
func (b Bounds) ContainsRegion(x, y int) bool {
	return x >= 0 && x <= b.MaxX && y >= 0 && y <= b.MaxY
}

// ContainsHost reports whether z is a usable host offset.
func (b Bounds) ContainsHost(z int) bool {
	return z >= MinHostOffset && z <= b.MaxZ
}

// CandidateFunc yields the next free candidate in ascending order, or
// false when the namespace snapshot is exhausted.
type CandidateFunc func() (Coordinate, bool)

// RegionCandidates scans the (X,Y) space of bounds lowest-first, skipping
// coordinates present in used. The used set is a snapshot: a candidate
// claimed concurrently after the snapshot still surfaces as an insert
// conflict, not an error.
func RegionCandidates(bounds Bounds, used map[Coordinate]bool) CandidateFunc {
	x, y := 0, 0
	return func() (Coordinate, bool) {
		for x <= bounds.MaxX {
			c := Coordinate{X: x, Y: y}
			y++
			if y > bounds.MaxY {
				y = 0
				x++
			}
			if !used[c] {
				return c, true
			}
		}
		return Coordinate{}, false
	}
}

// HostCandidates scans Z offsets from MinHostOffset up to maxZ, skipping
// offsets present in used.
func HostCandidates(maxZ int, used map[int]bool) CandidateFunc {
	z := MinHostOffset
	return func() (Coordinate, bool) {
		for z <= maxZ {
			c := Coordinate{Z: z}
			z++
			if !used[c.Z] {
				return c, true
			}
		}
		return Coordinate{}, false
	}
}
