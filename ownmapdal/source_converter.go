package ownmapdal

import (
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
)

const (
	// map units either side of 0 that a 3-byte signed coordinate can hold
	maxCoordValue = 1<<(ownmap.MapUnitBits-1) - 1

	progressLogInterval = 1000 * 1000
)

// SourceData is the map content read from an OSM extract
type SourceData struct {
	Bounds               ownmap.Region
	Points               []*ownmap.MapPoint
	Lines                []*ownmap.MapLine
	Shapes               []*ownmap.MapShape
	Roads                ownmap.RoadMap
	ReplicationTimestamp time.Time
}

func (d *SourceData) FeatureCount() int {
	return len(d.Points) + len(d.Lines) + len(d.Shapes)
}

type ConvertOptions struct {
	IgnoreOSMBounds        bool
	IgnoreTurnRestrictions bool
}

type converter struct {
	logger *logpkg.Logger
	opts   ConvertOptions

	// coordinates of the nodes used by ways, in degrees
	requiredNodesMap map[osm.NodeID]*orb.Point

	data           *SourceData
	missingNodes   int
	relationsCount int
}

// ConvertPBF reads the extract in two passes. The first pass finds the nodes that ways need,
// the second creates the map elements. The extract must list nodes before ways, as PBF extracts do.
func ConvertPBF(logger *logpkg.Logger, pbfReader PBFReader, opts ConvertOptions) (*SourceData, errorsx.Error) {
	header, err := pbfReader.Header()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	c := &converter{
		logger:           logger,
		opts:             opts,
		requiredNodesMap: make(map[osm.NodeID]*orb.Point),
		data: &SourceData{
			Roads:                make(ownmap.RoadMap),
			ReplicationTimestamp: header.ReplicationTimestamp,
		},
	}

	err = c.scanRequiredNodes(pbfReader)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	err = pbfReader.Reset()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	err = c.scanElements(pbfReader)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	if c.data.FeatureCount() == 0 {
		return nil, errorsx.Errorf("no map elements found in the extract")
	}

	if header.Bounds != nil && !opts.IgnoreOSMBounds {
		c.data.Bounds = ownmap.RegionFromOSMBounds(*header.Bounds)
	} else {
		c.data.Bounds = c.boundsOfElements()
	}

	if c.missingNodes != 0 {
		logger.Warn("%d way nodes were not found in the extract and have been skipped", c.missingNodes)
	}

	if c.relationsCount != 0 && !opts.IgnoreTurnRestrictions {
		logger.Info("%d relations were skipped. Turn restrictions are not written to the map", c.relationsCount)
	}

	logger.Info("converted %d points, %d lines (%d roads) and %d shapes. Bounds: %s",
		len(c.data.Points), len(c.data.Lines), len(c.data.Roads), len(c.data.Shapes), c.data.Bounds)

	return c.data, nil
}

func (c *converter) scanRequiredNodes(pbfReader PBFReader) errorsx.Error {
	for pbfReader.Scan() {
		way, ok := pbfReader.Object().(*osm.Way)
		if !ok {
			continue
		}

		if classifyWay(way.Tags) == nil {
			continue
		}

		for _, wayNode := range way.Nodes {
			c.requiredNodesMap[wayNode.ID] = nil
		}
	}

	err := pbfReader.Err()
	if err != nil {
		return errorsx.Wrap(err)
	}

	c.logger.Debug("%d nodes are needed by ways", len(c.requiredNodesMap))
	return nil
}

func (c *converter) scanElements(pbfReader PBFReader) errorsx.Error {
	var scanned int
	for pbfReader.Scan() {
		scanned++
		if scanned%progressLogInterval == 0 {
			c.logger.Info("scanned %d objects (%.1f%%)", scanned, scanProgressPercent(pbfReader))
		}

		switch obj := pbfReader.Object().(type) {
		case *osm.Node:
			c.onNode(obj)
		case *osm.Way:
			err := c.onWay(obj)
			if err != nil {
				return errorsx.Wrap(err, "wayID", obj.ID)
			}
		case *osm.Relation:
			c.relationsCount++
		default:
			return errorsx.Errorf("unknown object type: %v. ID: %v", obj.ObjectID().Type(), obj.ObjectID().Ref())
		}
	}

	err := pbfReader.Err()
	if err != nil {
		return errorsx.Wrap(err)
	}

	return nil
}

func (c *converter) onNode(node *osm.Node) {
	_, required := c.requiredNodesMap[node.ID]
	if required {
		c.requiredNodesMap[node.ID] = &orb.Point{node.Lon, node.Lat}
	}

	rule := classifyNode(node.Tags)
	if rule == nil {
		return
	}

	c.data.Points = append(c.data.Points, &ownmap.MapPoint{
		ID:           int64(node.ID),
		Type:         rule.Type,
		Name:         node.Tags.Find("name"),
		Coord:        coordFromDegrees(orb.Point{node.Lon, node.Lat}),
		MaxZoomLevel: rule.MaxZoomLevel,
	})
}

func (c *converter) onWay(way *osm.Way) errorsx.Error {
	rule := classifyWay(way.Tags)
	if rule == nil {
		return nil
	}

	var lineString orb.LineString
	for _, wayNode := range way.Nodes {
		point := c.requiredNodesMap[wayNode.ID]
		if point == nil {
			c.missingNodes++
			continue
		}
		lineString = append(lineString, *point)
	}

	name := way.Tags.Find("name")

	if rule.Kind == elementKindShape {
		if len(lineString) < 4 || !isClosedWay(way) {
			return nil
		}

		c.data.Shapes = append(c.data.Shapes, &ownmap.MapShape{
			ID:           int64(way.ID),
			Type:         rule.Type,
			Name:         name,
			Points:       coordsFromLineString(lineString),
			MaxZoomLevel: rule.MaxZoomLevel,
		})
		return nil
	}

	if len(lineString) < 2 {
		return nil
	}

	line := &ownmap.MapLine{
		ID:           int64(way.ID),
		Type:         rule.Type,
		Name:         name,
		MaxZoomLevel: rule.MaxZoomLevel,
	}

	if rule.Road != nil {
		road, err := newRoadFromWay(way, rule.Road, lineString)
		if err != nil {
			return errorsx.Wrap(err)
		}

		if isReversedOneWay(way.Tags) {
			lineString.Reverse()
		}

		c.data.Roads[road.ID] = road
		line.RoadID = road.ID
	}

	line.Points = coordsFromLineString(lineString)
	c.data.Lines = append(c.data.Lines, line)
	return nil
}

func newRoadFromWay(way *osm.Way, rule *roadRule, lineString orb.LineString) (*ownmap.Road, errorsx.Error) {
	name := way.Tags.Find("name")
	ref := way.Tags.Find("ref")
	if name == "" {
		name, ref = ref, ""
	}

	road := ownmap.NewRoad(int64(way.ID), name)
	if ref != "" {
		road.Labels = append(road.Labels, ref)
	}

	road.Class = rule.Class
	road.Speed = rule.Speed
	road.Toll = way.Tags.Find("toll") == "yes"
	road.NoBike = way.Tags.Find("bicycle") == "no"
	road.NoFoot = way.Tags.Find("foot") == "no"
	road.OneWay = isOneWay(way.Tags)

	length := geo.Length(lineString)
	if length > maxRoadLengthMetres {
		return nil, errorsx.Errorf("road is too long (%.0f metres)", length)
	}
	road.LengthMetres = uint32(length)

	return road, nil
}

func isOneWay(tags osm.Tags) bool {
	switch tags.Find("oneway") {
	case "yes", "true", "1", "-1":
		return true
	}

	return tags.Find("junction") == "roundabout"
}

func isReversedOneWay(tags osm.Tags) bool {
	return tags.Find("oneway") == "-1"
}

func isClosedWay(way *osm.Way) bool {
	nodes := way.Nodes
	return len(nodes) > 2 && nodes[0].ID == nodes[len(nodes)-1].ID
}

// coordFromDegrees converts to map units. Longitudes of exactly 180 degrees are moved in by one unit
// so that every coordinate fits in 3 signed bytes.
func coordFromDegrees(point orb.Point) ownmap.Coord {
	coord := ownmap.NewCoordFromDegrees(point.Lat(), point.Lon())
	coord.Lat = clampCoordValue(coord.Lat)
	coord.Lon = clampCoordValue(coord.Lon)
	return coord
}

func clampCoordValue(value int32) int32 {
	if value > maxCoordValue {
		return maxCoordValue
	}
	if value < -maxCoordValue {
		return -maxCoordValue
	}
	return value
}

func coordsFromLineString(lineString orb.LineString) []ownmap.Coord {
	coords := make([]ownmap.Coord, 0, len(lineString))
	for _, point := range lineString {
		coords = append(coords, coordFromDegrees(point))
	}
	return coords
}

func (c *converter) boundsOfElements() ownmap.Region {
	var bounds ownmap.Region
	var boundsSet bool

	extend := func(region ownmap.Region) {
		if !boundsSet {
			bounds = region
			boundsSet = true
			return
		}
		bounds = bounds.Extend(region)
	}

	for _, point := range c.data.Points {
		extend(point.Bounds())
	}
	for _, line := range c.data.Lines {
		extend(line.Bounds())
	}
	for _, shape := range c.data.Shapes {
		extend(shape.Bounds())
	}

	return bounds
}
