package ownmap

import (
	"fmt"
	"math"

	"github.com/jamesrr39/goutil/errorsx"
)

const (
	// MapUnitBits is the precision of a coordinate. A full circle is 1<<MapUnitBits map units.
	MapUnitBits = 24

	mapUnitsPerCircle = 1 << MapUnitBits
)

// ZoomLevel is a discrete detail tier. Level 0 is the most detailed.
type ZoomLevel uint8

func ToMapUnits(degrees float64) int32 {
	return int32(math.Round(degrees * mapUnitsPerCircle / 360))
}

func ToDegrees(mapUnits int32) float64 {
	return float64(mapUnits) * 360 / mapUnitsPerCircle
}

// Coord is a point in map units
type Coord struct {
	Lat int32
	Lon int32
}

func NewCoordFromDegrees(lat, lon float64) Coord {
	return Coord{
		Lat: ToMapUnits(lat),
		Lon: ToMapUnits(lon),
	}
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Lat, c.Lon)
}

// Region is an axis-aligned rectangle in map units. The edges are inclusive.
type Region struct {
	MinLat int32
	MinLon int32
	MaxLat int32
	MaxLon int32
}

func NewRegion(minLat, minLon, maxLat, maxLon int32) (Region, errorsx.Error) {
	if minLat > maxLat {
		return Region{}, errorsx.Errorf("min lat (%d) is greater than max lat (%d)", minLat, maxLat)
	}

	if minLon > maxLon {
		return Region{}, errorsx.Errorf("min lon (%d) is greater than max lon (%d)", minLon, maxLon)
	}

	return Region{minLat, minLon, maxLat, maxLon}, nil
}

// RegionFromCoord returns a zero-sized region containing only c
func RegionFromCoord(c Coord) Region {
	return Region{c.Lat, c.Lon, c.Lat, c.Lon}
}

func (r Region) Width() int32 {
	return r.MaxLon - r.MinLon
}

func (r Region) Height() int32 {
	return r.MaxLat - r.MinLat
}

func (r Region) Centre() Coord {
	return Coord{
		Lat: r.MinLat + r.Height()/2,
		Lon: r.MinLon + r.Width()/2,
	}
}

func (r Region) Contains(c Coord) bool {
	return c.Lat >= r.MinLat && c.Lat <= r.MaxLat && c.Lon >= r.MinLon && c.Lon <= r.MaxLon
}

// Extend returns the smallest region covering both r and other
func (r Region) Extend(other Region) Region {
	extended := r
	if other.MinLat < extended.MinLat {
		extended.MinLat = other.MinLat
	}
	if other.MinLon < extended.MinLon {
		extended.MinLon = other.MinLon
	}
	if other.MaxLat > extended.MaxLat {
		extended.MaxLat = other.MaxLat
	}
	if other.MaxLon > extended.MaxLon {
		extended.MaxLon = other.MaxLon
	}
	return extended
}

func (r Region) ExtendCoord(c Coord) Region {
	return r.Extend(RegionFromCoord(c))
}

func (r Region) String() string {
	return fmt.Sprintf("[lat %d..%d, lon %d..%d]", r.MinLat, r.MaxLat, r.MinLon, r.MaxLon)
}

// Split divides the region into nx columns (longitude) and ny rows (latitude).
// The region at index x*ny+y is column x, row y.
// Cell sizes are floor(width/nx) and floor(height/ny); the last column and the last row absorb the remainder,
// so the cells cover the region with no gaps, and neighbouring cells only share edges.
func (r Region) Split(nx, ny int) ([]Region, errorsx.Error) {
	if nx < 1 || ny < 1 {
		return nil, errorsx.Errorf("cannot split region into %dx%d cells", nx, ny)
	}

	dx := r.Width() / int32(nx)
	dy := r.Height() / int32(ny)

	if (nx > 1 && dx == 0) || (ny > 1 && dy == 0) {
		return nil, errorsx.Errorf("region %s is too small to split into %dx%d cells", r, nx, ny)
	}

	regions := make([]Region, 0, nx*ny)
	for x := 0; x < nx; x++ {
		minLon := r.MinLon + int32(x)*dx
		maxLon := minLon + dx
		if x == nx-1 {
			maxLon = r.MaxLon
		}

		for y := 0; y < ny; y++ {
			minLat := r.MinLat + int32(y)*dy
			maxLat := minLat + dy
			if y == ny-1 {
				maxLat = r.MaxLat
			}

			regions = append(regions, Region{minLat, minLon, maxLat, maxLon})
		}
	}

	return regions, nil
}

// WholeWorldRegion covers every representable coordinate
func WholeWorldRegion() Region {
	return Region{
		MinLat: ToMapUnits(-90),
		MinLon: ToMapUnits(-180),
		MaxLat: ToMapUnits(90),
		MaxLon: ToMapUnits(180),
	}
}
