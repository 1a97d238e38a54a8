package ownmapimg

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
)

const (
	nod1FlagNode byte = 0x01

	maxRoadsPerNode = 0xff
)

// RouteNodeID is the index of a node in its RouteNodes collection
type RouteNodeID int

// RouteNode is a routing graph node. Roads are referenced by ID, and resolved through a RoadDefs collection.
type RouteNode struct {
	id      RouteNodeID
	coord   ownmap.Coord
	roadIDs []int64

	offsetNod1    int
	offsetNod1Set bool
}

func (n *RouteNode) ID() RouteNodeID {
	return n.id
}

func (n *RouteNode) Coord() ownmap.Coord {
	return n.coord
}

func (n *RouteNode) RoadIDs() []int64 {
	return n.roadIDs
}

func (n *RouteNode) AddRoad(roadID int64) {
	for _, id := range n.roadIDs {
		if id == roadID {
			return
		}
	}
	n.roadIDs = append(n.roadIDs, roadID)
}

// OffsetNod1 is the position of the node's record in the NOD1 section, once written
func (n *RouteNode) OffsetNod1() (int, bool) {
	return n.offsetNod1, n.offsetNod1Set
}

// RouteNodes holds the routing nodes of one tile. Nodes on the same coordinate are shared.
type RouteNodes struct {
	nodes   []*RouteNode
	byCoord map[ownmap.Coord]RouteNodeID
}

func NewRouteNodes() *RouteNodes {
	return &RouteNodes{byCoord: make(map[ownmap.Coord]RouteNodeID)}
}

// NodeAt returns the node at coord, creating it if necessary
func (rn *RouteNodes) NodeAt(coord ownmap.Coord) *RouteNode {
	id, ok := rn.byCoord[coord]
	if ok {
		return rn.nodes[id]
	}

	node := &RouteNode{id: RouteNodeID(len(rn.nodes)), coord: coord}
	rn.nodes = append(rn.nodes, node)
	rn.byCoord[coord] = node.id
	return node
}

func (rn *RouteNodes) Get(id RouteNodeID) (*RouteNode, errorsx.Error) {
	if id < 0 || int(id) >= len(rn.nodes) {
		return nil, errorsx.Wrap(errorsx.ObjectNotFound, "routeNodeID", id)
	}
	return rn.nodes[id], nil
}

func (rn *RouteNodes) Len() int {
	return len(rn.nodes)
}

func (rn *RouteNodes) Nodes() []*RouteNode {
	return rn.nodes
}

// WriteNod1 writes every node: flags(1) lon(3) lat(3) road count(1), then for each road
// Table A info(1) Table A restrictions(1) network offset(3).
// Network offsets don't exist yet, so they are requested as patches on nod1 and filled in by nod1.ApplyPatches.
func (rn *RouteNodes) WriteNod1(nod1 *SectionWriter, roads *RoadDefs) errorsx.Error {
	for _, node := range rn.nodes {
		if node.offsetNod1Set {
			return errorsx.Errorf("routing node %d has already been written at 0x%x", node.id, node.offsetNod1)
		}

		if len(node.roadIDs) > maxRoadsPerNode {
			return errorsx.Errorf("routing node %d has too many roads (%d)", node.id, len(node.roadIDs))
		}

		nod1.SeekToEnd()
		node.offsetNod1 = nod1.Position()
		node.offsetNod1Set = true

		nod1.Put(nod1FlagNode)
		err := nod1.PutSigned3(node.coord.Lon)
		if err != nil {
			return errorsx.Wrap(err, "routeNodeID", node.id)
		}
		err = nod1.PutSigned3(node.coord.Lat)
		if err != nil {
			return errorsx.Wrap(err, "routeNodeID", node.id)
		}

		nod1.Put(byte(len(node.roadIDs)))
		for _, roadID := range node.roadIDs {
			road, err := roads.Get(roadID)
			if err != nil {
				return errorsx.Wrap(err, "routeNodeID", node.id, "roadID", roadID)
			}

			nod1.Put(road.TabAInfo())
			nod1.Put(road.TabARestrictions())

			slotPosition := nod1.Position()
			err = nod1.Put3(0)
			if err != nil {
				return errorsx.Wrap(err)
			}
			err = nod1.RequestPatch3(slotPosition, road.netOffsetResolver())
			if err != nil {
				return errorsx.Wrap(err)
			}
		}
	}

	return nil
}
