package ownmapsplit

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
)

// MapArea is a tile: a nominal region and the elements anchored inside it.
// Elements may reach outside the nominal region, so the full bounds are tracked separately.
type MapArea struct {
	region     ownmap.Region
	fullBounds ownmap.Region
	points     []*ownmap.MapPoint
	lines      []*ownmap.MapLine
	shapes     []*ownmap.MapShape
}

func NewMapArea(region ownmap.Region, points []*ownmap.MapPoint, lines []*ownmap.MapLine, shapes []*ownmap.MapShape) *MapArea {
	area := newEmptyMapArea(region)
	for _, p := range points {
		area.addPoint(p)
	}
	for _, l := range lines {
		area.addLine(l)
	}
	for _, s := range shapes {
		area.addShape(s)
	}
	return area
}

func newEmptyMapArea(region ownmap.Region) *MapArea {
	return &MapArea{region: region, fullBounds: region}
}

func (a *MapArea) addPoint(p *ownmap.MapPoint) {
	a.points = append(a.points, p)
	a.fullBounds = a.fullBounds.Extend(p.Bounds())
}

func (a *MapArea) addLine(l *ownmap.MapLine) {
	a.lines = append(a.lines, l)
	a.fullBounds = a.fullBounds.Extend(l.Bounds())
}

func (a *MapArea) addShape(s *ownmap.MapShape) {
	a.shapes = append(a.shapes, s)
	a.fullBounds = a.fullBounds.Extend(s.Bounds())
}

// Bounds is the nominal region of the area
func (a *MapArea) Bounds() ownmap.Region {
	return a.region
}

// FullBounds covers the nominal region and every element in the area
func (a *MapArea) FullBounds() ownmap.Region {
	return a.fullBounds
}

func (a *MapArea) Points() []*ownmap.MapPoint {
	return a.points
}

func (a *MapArea) Lines() []*ownmap.MapLine {
	return a.lines
}

func (a *MapArea) Shapes() []*ownmap.MapShape {
	return a.shapes
}

func (a *MapArea) FeatureCount() int {
	return len(a.points) + len(a.lines) + len(a.shapes)
}

// Split divides the area into nx*ny areas, laid out as ownmap.Region.Split lays out its cells.
// Every element is placed in exactly one child, chosen by its anchor location.
// Elements anchored outside the grid are clamped into the nearest edge cell.
func (a *MapArea) Split(nx, ny int) ([]*MapArea, errorsx.Error) {
	regions, err := a.region.Split(nx, ny)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	areas := make([]*MapArea, len(regions))
	for i, region := range regions {
		areas[i] = newEmptyMapArea(region)
	}

	grid := gridFromCell(regions[0], nx, ny)

	for _, p := range a.points {
		areas[grid.cellIndex(p.Location())].addPoint(p)
	}
	for _, l := range a.lines {
		areas[grid.cellIndex(l.Location())].addLine(l)
	}
	for _, s := range a.shapes {
		areas[grid.cellIndex(s.Location())].addShape(s)
	}

	return areas, nil
}

type grid struct {
	baseLat, baseLon int32
	dx, dy           int32
	nx, ny           int
}

func gridFromCell(first ownmap.Region, nx, ny int) grid {
	return grid{
		baseLat: first.MinLat,
		baseLon: first.MinLon,
		dx:      first.Width(),
		dy:      first.Height(),
		nx:      nx,
		ny:      ny,
	}
}

func (g grid) cellIndex(c ownmap.Coord) int {
	xcell := cellNumber(int64(c.Lon)-int64(g.baseLon), g.dx, g.nx)
	ycell := cellNumber(int64(c.Lat)-int64(g.baseLat), g.dy, g.ny)
	return xcell*g.ny + ycell
}

func cellNumber(offset int64, size int32, n int) int {
	if n == 1 || size == 0 {
		return 0
	}

	if offset < 0 {
		return 0
	}

	cell := offset / int64(size)
	if cell > int64(n-1) {
		return n - 1
	}
	return int(cell)
}
