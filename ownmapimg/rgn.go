package ownmapimg

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
)

// record kinds in the geometry section
const (
	RecordKindPoint    byte = 0x10
	RecordKindPolyline byte = 0x20
	RecordKindShape    byte = 0x30
)

const (
	// slot flag bits of a polyline label field
	PolylineFlagNetOffset uint32 = 0x800000
	PolylineFlagOneWay    uint32 = 0x400000

	maxPolylinesPerSubdivision = 0xff
	maxSubdivisionNumber       = 0xffff
	maxPointsPerRecord         = 0xffff
)

// Subdivision is a group of geometry records of one tile at one zoom level.
// Coordinates inside it are stored relative to its centre, shifted right by the zoom level.
type Subdivision struct {
	number    uint16
	level     ownmap.ZoomLevel
	centre    ownmap.Coord
	rgnOffset int
	rgnSize   int

	polylineCount int
}

func (s *Subdivision) Number() uint16 {
	return s.number
}

func (s *Subdivision) Level() ownmap.ZoomLevel {
	return s.level
}

func (s *Subdivision) Centre() ownmap.Coord {
	return s.centre
}

// RgnOffset is the position of the first record of the subdivision in the geometry section
func (s *Subdivision) RgnOffset() int {
	return s.rgnOffset
}

func (s *Subdivision) RgnSize() int {
	return s.rgnSize
}

func (s *Subdivision) isFull() bool {
	return s.polylineCount >= maxPolylinesPerSubdivision
}

// Polyline is a line written to a subdivision. Polylines are numbered from 1 within their subdivision.
type Polyline struct {
	number      uint8
	subdivision *Subdivision
}

func (p *Polyline) Number() uint8 {
	return p.number
}

func (p *Polyline) Subdivision() *Subdivision {
	return p.subdivision
}

// RgnWriter writes the geometry section of one tile
type RgnWriter struct {
	writer       *SectionWriter
	subdivisions []*Subdivision
	current      *Subdivision
}

func NewRgnWriter() *RgnWriter {
	return &RgnWriter{writer: NewSectionWriter(SectionNameRGN)}
}

func (rw *RgnWriter) Section() *SectionWriter {
	return rw.writer
}

func (rw *RgnWriter) Subdivisions() []*Subdivision {
	return rw.subdivisions
}

// StartSubdivision closes the current subdivision and starts a new one
func (rw *RgnWriter) StartSubdivision(level ownmap.ZoomLevel, centre ownmap.Coord) (*Subdivision, errorsx.Error) {
	rw.closeSubdivision()

	number := len(rw.subdivisions) + 1
	if number > maxSubdivisionNumber {
		return nil, errorsx.Errorf("too many subdivisions in tile (%d)", number)
	}

	rw.writer.SeekToEnd()
	subdivision := &Subdivision{
		number:    uint16(number),
		level:     level,
		centre:    centre,
		rgnOffset: rw.writer.Position(),
	}

	rw.subdivisions = append(rw.subdivisions, subdivision)
	rw.current = subdivision
	return subdivision, nil
}

// Finish closes the last subdivision
func (rw *RgnWriter) Finish() {
	rw.closeSubdivision()
}

func (rw *RgnWriter) closeSubdivision() {
	if rw.current == nil {
		return
	}
	rw.writer.SeekToEnd()
	rw.current.rgnSize = rw.writer.Position() - rw.current.rgnOffset
	rw.current = nil
}

// CurrentSubdivisionIsFull reports whether another polyline can be written to the current subdivision
func (rw *RgnWriter) CurrentSubdivisionIsFull() bool {
	return rw.current != nil && rw.current.isFull()
}

func (rw *RgnWriter) putCoords(coords []ownmap.Coord) errorsx.Error {
	shift := uint(rw.current.level)
	for _, c := range coords {
		err := rw.writer.PutSigned3((c.Lon - rw.current.centre.Lon) >> shift)
		if err != nil {
			return errorsx.Wrap(err, "coord", c.String())
		}
		err = rw.writer.PutSigned3((c.Lat - rw.current.centre.Lat) >> shift)
		if err != nil {
			return errorsx.Wrap(err, "coord", c.String())
		}
	}
	return nil
}

// WritePoint writes: kind(1) type(1) label offset(3) lon(3) lat(3)
func (rw *RgnWriter) WritePoint(point *ownmap.MapPoint, label *Label) errorsx.Error {
	if rw.current == nil {
		return errorsx.Errorf("no subdivision started")
	}

	rw.writer.SeekToEnd()
	rw.writer.Put(RecordKindPoint)
	rw.writer.Put(point.Type)
	err := rw.writer.Put3(label.Offset())
	if err != nil {
		return errorsx.Wrap(err)
	}

	return rw.putCoords([]ownmap.Coord{point.Coord})
}

// WritePolyline writes: kind(1) type(1) label field(3) point count(2) points(3+3 each).
// For roads, the label field is reserved as a back-reference slot on the road and left for the road to patch.
func (rw *RgnWriter) WritePolyline(line *ownmap.MapLine, coords []ownmap.Coord, label *Label, road *RoadDef) (*Polyline, errorsx.Error) {
	if rw.current == nil {
		return nil, errorsx.Errorf("no subdivision started")
	}

	if rw.current.isFull() {
		return nil, errorsx.Errorf("subdivision %d already has %d polylines", rw.current.number, rw.current.polylineCount)
	}

	if len(coords) < 2 || len(coords) > maxPointsPerRecord {
		return nil, errorsx.Errorf("cannot write a polyline with %d points", len(coords))
	}

	rw.writer.SeekToEnd()
	rw.writer.Put(RecordKindPolyline)
	rw.writer.Put(line.Type)

	var err errorsx.Error
	if road != nil {
		orMask := PolylineFlagNetOffset
		if road.IsOneWay() {
			orMask |= PolylineFlagOneWay
		}

		err = road.AddOffsetTarget(rw.writer, orMask)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}

		// placeholder until the network section has been written
		err = rw.writer.Put3(0)
	} else {
		err = rw.writer.Put3(label.Offset())
	}
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	rw.writer.PutChar(uint16(len(coords)))
	err = rw.putCoords(coords)
	if err != nil {
		return nil, errorsx.Wrap(err, "lineID", line.ID)
	}

	rw.current.polylineCount++
	return &Polyline{uint8(rw.current.polylineCount), rw.current}, nil
}

// WriteShape writes: kind(1) type(1) label offset(3) point count(2) points(3+3 each)
func (rw *RgnWriter) WriteShape(shape *ownmap.MapShape, coords []ownmap.Coord, label *Label) errorsx.Error {
	if rw.current == nil {
		return errorsx.Errorf("no subdivision started")
	}

	if len(coords) < 3 || len(coords) > maxPointsPerRecord {
		return errorsx.Errorf("cannot write a shape with %d points", len(coords))
	}

	rw.writer.SeekToEnd()
	rw.writer.Put(RecordKindShape)
	rw.writer.Put(shape.Type)
	err := rw.writer.Put3(label.Offset())
	if err != nil {
		return errorsx.Wrap(err)
	}

	rw.writer.PutChar(uint16(len(coords)))
	err = rw.putCoords(coords)
	if err != nil {
		return errorsx.Wrap(err, "shapeID", shape.ID)
	}
	return nil
}
