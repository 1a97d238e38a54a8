package ownmap

// MapElement is anything that can be drawn on the map.
// Location is the anchor point used to decide which tile the element belongs to.
type MapElement interface {
	Location() Coord
	Bounds() Region
}

var (
	_ MapElement = &MapPoint{}
	_ MapElement = &MapLine{}
	_ MapElement = &MapShape{}
)

type MapPoint struct {
	ID           int64
	Type         uint8
	Name         string
	Coord        Coord
	MaxZoomLevel ZoomLevel
}

func (p *MapPoint) Location() Coord {
	return p.Coord
}

func (p *MapPoint) Bounds() Region {
	return RegionFromCoord(p.Coord)
}

type MapLine struct {
	ID     int64
	Type   uint8
	Name   string
	Points []Coord
	// RoadID references a Road in the RoadMap. 0 means the line is not a road.
	RoadID       int64
	MaxZoomLevel ZoomLevel
}

// Location is the middle point of the line
func (l *MapLine) Location() Coord {
	return l.Points[len(l.Points)/2]
}

func (l *MapLine) Bounds() Region {
	return boundsOfCoords(l.Points)
}

func (l *MapLine) IsRoad() bool {
	return l.RoadID != 0
}

type MapShape struct {
	ID           int64
	Type         uint8
	Name         string
	Points       []Coord
	MaxZoomLevel ZoomLevel
}

// Location is the centre of the shape's bounds
func (s *MapShape) Location() Coord {
	return s.Bounds().Centre()
}

func (s *MapShape) Bounds() Region {
	return boundsOfCoords(s.Points)
}
