package ownmapimg

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/jamesrr39/ownmap-compiler/ownmapsplit"
	"github.com/paulmach/orb/simplify"
)

const (
	MaxZoomLevelLimit ownmap.ZoomLevel = 8
)

type EncoderOptions struct {
	LabelLimit   int
	MaxZoomLevel ownmap.ZoomLevel
	Route        bool
	Charset      string
	ForceUpper   bool
}

func DefaultEncoderOptions() EncoderOptions {
	return EncoderOptions{
		LabelLimit:   DefaultLabelLimit,
		MaxZoomLevel: 2,
		Route:        true,
		Charset:      CharsetASCII,
		ForceUpper:   true,
	}
}

func (o EncoderOptions) Validate() errorsx.Error {
	if o.LabelLimit < 0 || o.LabelLimit > MaxLabels {
		return errorsx.Errorf("label limit must be between 0 and %d, but was %d", MaxLabels, o.LabelLimit)
	}

	if o.MaxZoomLevel > MaxZoomLevelLimit {
		return errorsx.Errorf("max zoom level must be at most %d, but was %d", MaxZoomLevelLimit, o.MaxZoomLevel)
	}

	if !IsValidCharset(o.Charset) {
		return errorsx.Errorf("unknown charset: %q", o.Charset)
	}

	return nil
}

// TileEncoder encodes one tile at a time. It keeps no state between tiles, so tiles can be encoded in parallel.
type TileEncoder struct {
	logger *logpkg.Logger
	opts   EncoderOptions
}

func NewTileEncoder(logger *logpkg.Logger, opts EncoderOptions) (*TileEncoder, errorsx.Error) {
	err := opts.Validate()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return &TileEncoder{logger, opts}, nil
}

type tileEncodeRun struct {
	encoder  *TileEncoder
	index    int
	area     *ownmapsplit.MapArea
	roads    ownmap.RoadMap
	labels   *LabelTable
	rgn      *RgnWriter
	roadDefs *RoadDefs
	nodes    *RouteNodes
}

// Encode writes the sections of one tile.
// The geometry is written first, then the routing nodes, the road routing records and the network records.
// Finally the geometry back-references and routing arcs are patched with the network offsets.
func (e *TileEncoder) Encode(index int, area *ownmapsplit.MapArea, roads ownmap.RoadMap) (*EncodedTile, errorsx.Error) {
	labels, err := NewLabelTable(e.opts.Charset, e.opts.ForceUpper)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	run := &tileEncodeRun{
		encoder:  e,
		index:    index,
		area:     area,
		roads:    roads,
		labels:   labels,
		rgn:      NewRgnWriter(),
		roadDefs: NewRoadDefs(),
		nodes:    NewRouteNodes(),
	}

	err = run.writeGeometry()
	if err != nil {
		return nil, errorsx.Wrap(err, "tileIndex", index)
	}

	nod1 := NewSectionWriter(SectionNameNOD1)
	nod2 := NewSectionWriter(SectionNameNOD2)
	net := NewSectionWriter(SectionNameNET)

	if e.opts.Route {
		err = run.nodes.WriteNod1(nod1, run.roadDefs)
		if err != nil {
			return nil, errorsx.Wrap(err, "tileIndex", index)
		}
	}

	for _, rd := range run.roadDefs.All() {
		if !rd.HasNodInfo() {
			continue
		}
		err = rd.WriteNod2(nod2, run.nodes)
		if err != nil {
			return nil, errorsx.Wrap(err, "tileIndex", index, "roadID", rd.ID(), "roadName", rd.Name())
		}
	}

	for _, rd := range run.roadDefs.All() {
		err = rd.WriteNet1(net)
		if err != nil {
			return nil, errorsx.Wrap(err, "tileIndex", index, "roadID", rd.ID(), "roadName", rd.Name())
		}
	}

	for _, rd := range run.roadDefs.All() {
		err = rd.WriteRgnOffsets(run.rgn.Section())
		if err != nil {
			return nil, errorsx.Wrap(err, "tileIndex", index, "roadID", rd.ID(), "roadName", rd.Name())
		}
	}

	_, unresolvedArcs, err := nod1.ApplyPatches()
	if err != nil {
		return nil, errorsx.Wrap(err, "tileIndex", index)
	}

	if unresolvedArcs != 0 {
		e.logger.Debug("tile %d: %d routing arcs reference roads without a network record", index, unresolvedArcs)
	}

	sections := []*EncodedSection{
		{SectionNameLBL, labels.Section().Bytes()},
		{SectionNameRGN, run.rgn.Section().Bytes()},
		{SectionNameNET, net.Bytes()},
		{SectionNameNOD1, nod1.Bytes()},
		{SectionNameNOD2, nod2.Bytes()},
	}

	return &EncodedTile{
		Index:          index,
		Bounds:         area.Bounds(),
		FullBounds:     area.FullBounds(),
		FeatureCount:   area.FeatureCount(),
		RoadCount:      run.roadDefs.Len(),
		NodeCount:      run.nodes.Len(),
		LabelCount:     labels.Count(),
		UnresolvedArcs: unresolvedArcs,
		Sections:       sections,
		Subdivisions:   run.rgn.Subdivisions(),
	}, nil
}

func (run *tileEncodeRun) writeGeometry() errorsx.Error {
	centre := run.area.Bounds().Centre()

	for level := ownmap.ZoomLevel(0); level <= run.encoder.opts.MaxZoomLevel; level++ {
		_, err := run.rgn.StartSubdivision(level, centre)
		if err != nil {
			return errorsx.Wrap(err)
		}

		for _, point := range run.area.Points() {
			if point.MaxZoomLevel < level {
				continue
			}

			label, err := run.labels.Add(point.Name)
			if err != nil {
				return errorsx.Wrap(err, "pointID", point.ID)
			}

			err = run.rgn.WritePoint(point, label)
			if err != nil {
				return errorsx.Wrap(err, "pointID", point.ID)
			}
		}

		for _, line := range run.area.Lines() {
			if line.MaxZoomLevel < level {
				continue
			}

			coords := coordsAtLevel(line.Points, level)
			if len(coords) < 2 {
				continue
			}

			if run.rgn.CurrentSubdivisionIsFull() {
				_, err = run.rgn.StartSubdivision(level, centre)
				if err != nil {
					return errorsx.Wrap(err)
				}
			}

			err = run.writeLine(line, coords, level)
			if err != nil {
				return errorsx.Wrap(err, "lineID", line.ID)
			}
		}

		for _, shape := range run.area.Shapes() {
			if shape.MaxZoomLevel < level {
				continue
			}

			coords := coordsAtLevel(shape.Points, level)
			if len(coords) < 3 {
				continue
			}

			label, err := run.labels.Add(shape.Name)
			if err != nil {
				return errorsx.Wrap(err, "shapeID", shape.ID)
			}

			err = run.rgn.WriteShape(shape, coords, label)
			if err != nil {
				return errorsx.Wrap(err, "shapeID", shape.ID)
			}
		}
	}

	run.rgn.Finish()
	return nil
}

func (run *tileEncodeRun) writeLine(line *ownmap.MapLine, coords []ownmap.Coord, level ownmap.ZoomLevel) errorsx.Error {
	if !line.IsRoad() {
		label, err := run.labels.Add(line.Name)
		if err != nil {
			return errorsx.Wrap(err)
		}

		_, err = run.rgn.WritePolyline(line, coords, label, nil)
		if err != nil {
			return errorsx.Wrap(err)
		}
		return nil
	}

	rd, err := run.roadDefFor(line.RoadID)
	if err != nil {
		return errorsx.Wrap(err)
	}

	polyline, err := run.rgn.WritePolyline(line, coords, nil, rd)
	if err != nil {
		return errorsx.Wrap(err, "roadID", rd.ID(), "roadName", rd.Name())
	}

	rd.AddPolylineRef(level, polyline)

	_, hasNode := rd.Node()
	if run.encoder.opts.Route && !hasNode {
		node := run.nodes.NodeAt(line.Points[0])
		node.AddRoad(rd.ID())
		rd.SetNode(node.ID())
	}

	return nil
}

func (run *tileEncodeRun) roadDefFor(roadID int64) (*RoadDef, errorsx.Error) {
	rd, err := run.roadDefs.Get(roadID)
	if err == nil {
		return rd, nil
	}
	if errorsx.Cause(err) != errorsx.ObjectNotFound {
		return nil, errorsx.Wrap(err)
	}

	road, ok := run.roads[roadID]
	if !ok {
		return nil, errorsx.Errorf("road %d not found", roadID)
	}

	rd, err = NewRoadDef(run.encoder.logger, road, run.encoder.opts.LabelLimit)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	for _, text := range road.Labels {
		label, err := run.labels.Add(text)
		if err != nil {
			return nil, errorsx.Wrap(err, "roadID", roadID)
		}
		rd.AddLabel(label)
	}

	err = run.roadDefs.Add(rd)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return rd, nil
}

// coordsAtLevel simplifies the geometry for less detailed zoom levels
func coordsAtLevel(coords []ownmap.Coord, level ownmap.ZoomLevel) []ownmap.Coord {
	if level == 0 || len(coords) < 3 {
		return coords
	}

	threshold := float64(int64(1) << (uint(level) + 2))
	simplified := simplify.DouglasPeucker(threshold).LineString(ownmap.ToLineString(coords))
	return ownmap.FromLineString(simplified)
}
