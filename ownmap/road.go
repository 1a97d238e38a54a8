package ownmap

type RoadClass uint8
type RoadSpeed uint8

const (
	DefaultRoadClass RoadClass = 4
	DefaultRoadSpeed RoadSpeed = 6

	MaxRoadClass RoadClass = 7
	MaxRoadSpeed RoadSpeed = 7
)

// Road holds the network-wide attributes of a routable way.
// Map lines reference a road by its ID.
type Road struct {
	ID     int64
	Name   string
	Labels []string
	Class  RoadClass
	Speed  RoadSpeed
	Toll   bool
	OneWay bool
	NoBike bool
	NoFoot bool
	// LengthMetres is 0 if not known
	LengthMetres uint32
}

func NewRoad(id int64, name string) *Road {
	var labels []string
	if name != "" {
		labels = append(labels, name)
	}

	return &Road{
		ID:     id,
		Name:   name,
		Labels: labels,
		Class:  DefaultRoadClass,
		Speed:  DefaultRoadSpeed,
	}
}

type RoadMap map[int64]*Road
