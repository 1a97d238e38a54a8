package ownmapdal

import (
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/paulmach/osm"
)

const maxRoadLengthMetres = 0xffffff

type elementKind int

const (
	elementKindPoint elementKind = iota
	elementKindLine
	elementKindShape
)

type roadRule struct {
	Class ownmap.RoadClass
	Speed ownmap.RoadSpeed
}

// elementRule says what map element an OSM object becomes
type elementRule struct {
	Kind         elementKind
	Type         uint8
	MaxZoomLevel ownmap.ZoomLevel
	// Road is set for lines that are part of the road network
	Road *roadRule
}

var highwayRules = map[string]*elementRule{
	"motorway":       {elementKindLine, ownmap.LineTypeMotorway, 4, &roadRule{4, 7}},
	"motorway_link":  {elementKindLine, ownmap.LineTypeMotorway, 1, &roadRule{4, 6}},
	"trunk":          {elementKindLine, ownmap.LineTypePrincipal, 4, &roadRule{4, 6}},
	"trunk_link":     {elementKindLine, ownmap.LineTypePrincipal, 1, &roadRule{4, 5}},
	"primary":        {elementKindLine, ownmap.LineTypePrincipal, 3, &roadRule{3, 5}},
	"primary_link":   {elementKindLine, ownmap.LineTypePrincipal, 1, &roadRule{3, 4}},
	"secondary":      {elementKindLine, ownmap.LineTypeArterial, 2, &roadRule{2, 4}},
	"tertiary":       {elementKindLine, ownmap.LineTypeArterial, 1, &roadRule{1, 3}},
	"unclassified":   {elementKindLine, ownmap.LineTypeResidential, 0, &roadRule{0, 3}},
	"residential":    {elementKindLine, ownmap.LineTypeResidential, 0, &roadRule{0, 2}},
	"living_street":  {elementKindLine, ownmap.LineTypeResidential, 0, &roadRule{0, 1}},
	"service":        {elementKindLine, ownmap.LineTypeResidential, 0, &roadRule{0, 1}},
	"track":          {elementKindLine, ownmap.LineTypeTrack, 0, &roadRule{0, 1}},
	"pedestrian":     {elementKindLine, ownmap.LineTypeFootway, 0, &roadRule{0, 0}},
	"footway":        {elementKindLine, ownmap.LineTypeFootway, 0, &roadRule{0, 0}},
	"path":           {elementKindLine, ownmap.LineTypeFootway, 0, &roadRule{0, 0}},
	"cycleway":       {elementKindLine, ownmap.LineTypeFootway, 0, &roadRule{0, 0}},
	"bridleway":      {elementKindLine, ownmap.LineTypeFootway, 0, &roadRule{0, 0}},
	"steps":          {elementKindLine, ownmap.LineTypeFootway, 0, &roadRule{0, 0}},
	"road":           {elementKindLine, ownmap.LineTypeResidential, 0, &roadRule{ownmap.DefaultRoadClass, ownmap.DefaultRoadSpeed}},
	"raceway":        {elementKindLine, ownmap.LineTypeTrack, 0, nil},
	"bus_guideway":   {elementKindLine, ownmap.LineTypeTrack, 0, nil},
	"proposed":       nil,
	"construction":   nil,
	"abandoned":      nil,
	"platform":       nil,
	"corridor":       nil,
	"elevator":       nil,
	"emergency_bay":  nil,
	"rest_area":      nil,
	"services":       nil,
	"turning_circle": nil,
}

var (
	ferryRule = &elementRule{elementKindLine, ownmap.LineTypeFerry, 1, &roadRule{0, 1}}

	otherHighwayRule = &elementRule{elementKindLine, ownmap.LineTypeResidential, 0, &roadRule{ownmap.DefaultRoadClass, ownmap.DefaultRoadSpeed}}

	buildingRule = &elementRule{elementKindShape, ownmap.ShapeTypeBuilding, 0, nil}
	waterRule    = &elementRule{elementKindShape, ownmap.ShapeTypeWater, 2, nil}
	parkRule     = &elementRule{elementKindShape, ownmap.ShapeTypePark, 1, nil}
	landRule     = &elementRule{elementKindShape, ownmap.ShapeTypeLand, 1, nil}

	cityRule       = &elementRule{elementKindPoint, ownmap.PointTypeCity, 4, nil}
	smallPlaceRule = &elementRule{elementKindPoint, ownmap.PointTypeCity, 1, nil}
	amenityRule    = &elementRule{elementKindPoint, ownmap.PointTypeAmenity, 0, nil}
	shopRule       = &elementRule{elementKindPoint, ownmap.PointTypeShop, 0, nil}
	tourismRule    = &elementRule{elementKindPoint, ownmap.PointTypeAttraction, 0, nil}
)

// classifyWay returns nil for ways that are not drawn
func classifyWay(tags osm.Tags) *elementRule {
	highway := tags.Find("highway")
	if highway != "" {
		rule, ok := highwayRules[highway]
		if !ok {
			return otherHighwayRule
		}
		return rule
	}

	if tags.Find("route") == "ferry" {
		return ferryRule
	}

	switch {
	case tags.HasTag("building"):
		return buildingRule
	case tags.Find("natural") == "water":
		return waterRule
	case tags.HasTag("leisure"):
		return parkRule
	case tags.HasTag("landuse"), tags.Find("area") == "yes":
		return landRule
	}

	return nil
}

// classifyNode returns nil for nodes that are not drawn
func classifyNode(tags osm.Tags) *elementRule {
	switch tags.Find("place") {
	case "":
	case "city", "town":
		return cityRule
	default:
		return smallPlaceRule
	}

	switch {
	case tags.HasTag("amenity"):
		return amenityRule
	case tags.HasTag("shop"):
		return shopRule
	case tags.HasTag("tourism"):
		return tourismRule
	}

	return nil
}
