package ownmap

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// Overlaps checks whether an item is at least partially inside a container
func Overlaps(container Region, item Region) bool {
	if container.MinLat > item.MaxLat {
		// container is wholly above item
		return false
	}

	if container.MaxLat < item.MinLat {
		// container is wholly below item
		return false
	}

	if container.MinLon > item.MaxLon {
		// container is wholly to the right of item
		return false
	}

	if container.MaxLon < item.MinLon {
		// container is wholly to the left of item
		return false
	}

	return true
}

func IsTotallyInside(container Region, item Region) bool {
	return item.MaxLat <= container.MaxLat && item.MaxLon <= container.MaxLon && item.MinLat >= container.MinLat && item.MinLon >= container.MinLon
}

func RegionFromOSMBounds(bounds osm.Bounds) Region {
	return Region{
		MinLat: ToMapUnits(bounds.MinLat),
		MinLon: ToMapUnits(bounds.MinLon),
		MaxLat: ToMapUnits(bounds.MaxLat),
		MaxLon: ToMapUnits(bounds.MaxLon),
	}
}

func (r Region) ToOSMBounds() osm.Bounds {
	return osm.Bounds{
		MinLat: ToDegrees(r.MinLat),
		MaxLat: ToDegrees(r.MaxLat),
		MinLon: ToDegrees(r.MinLon),
		MaxLon: ToDegrees(r.MaxLon),
	}
}

// RegionFromOrbBound converts a bound in degrees (x = lon, y = lat)
func RegionFromOrbBound(bound orb.Bound) Region {
	return Region{
		MinLat: ToMapUnits(bound.Min.Lat()),
		MinLon: ToMapUnits(bound.Min.Lon()),
		MaxLat: ToMapUnits(bound.Max.Lat()),
		MaxLon: ToMapUnits(bound.Max.Lon()),
	}
}

// ToLineString converts map unit coordinates to an orb line string, still in map units (x = lon, y = lat)
func ToLineString(coords []Coord) orb.LineString {
	ls := make(orb.LineString, 0, len(coords))
	for _, c := range coords {
		ls = append(ls, orb.Point{float64(c.Lon), float64(c.Lat)})
	}
	return ls
}

func FromLineString(ls orb.LineString) []Coord {
	coords := make([]Coord, 0, len(ls))
	for _, p := range ls {
		coords = append(coords, Coord{
			Lat: int32(p.Y()),
			Lon: int32(p.X()),
		})
	}
	return coords
}

func boundsOfCoords(coords []Coord) Region {
	if len(coords) == 0 {
		return Region{}
	}

	bounds := RegionFromCoord(coords[0])
	for _, c := range coords[1:] {
		bounds = bounds.ExtendCoord(c)
	}
	return bounds
}
