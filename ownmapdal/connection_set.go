package ownmapdal

import (
	"sync"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
)

// MapConnSet is the set of compiled maps being served
type MapConnSet struct {
	logger *logpkg.Logger
	conns  []CompiledMapConn
	mu     *sync.RWMutex
}

func NewMapConnSet(logger *logpkg.Logger, conns []CompiledMapConn) *MapConnSet {
	return &MapConnSet{logger, conns, new(sync.RWMutex)}
}

func (cs *MapConnSet) GetConns() []CompiledMapConn {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.conns
}

func (cs *MapConnSet) AddConn(conn CompiledMapConn) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.conns = append(cs.conns, conn)
}

func (cs *MapConnSet) GetConnByName(name string) (CompiledMapConn, errorsx.Error) {
	for _, conn := range cs.GetConns() {
		if conn.Name() == name {
			return conn, nil
		}
	}
	return nil, errorsx.Wrap(errorsx.ObjectNotFound, "mapName", name)
}

func (cs *MapConnSet) Close() errorsx.Error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for _, conn := range cs.conns {
		err := conn.Close()
		if err != nil {
			return errorsx.Wrap(err, "mapName", conn.Name())
		}
	}
	cs.conns = nil
	return nil
}

type MatchLevel int

const (
	MatchLevelNone MatchLevel = iota
	MatchLevelPartial
	MatchLevelFull
)

func (l MatchLevel) String() string {
	switch l {
	case MatchLevelNone:
		return "none"
	case MatchLevelPartial:
		return "partial"
	case MatchLevelFull:
		return "full"
	default:
		return "unknown"
	}
}

// ChosenTile is a tile of a served map that covers part of a requested region
type ChosenTile struct {
	MatchLevel MatchLevel
	Conn       CompiledMapConn
	Tile       *TileInfo
}

func getMatchLevel(tileBounds, bounds ownmap.Region) MatchLevel {
	if !ownmap.Overlaps(tileBounds, bounds) {
		return MatchLevelNone
	}

	if ownmap.IsTotallyInside(tileBounds, bounds) {
		return MatchLevelFull
	}

	return MatchLevelPartial
}

// GetTilesForBounds selects the tiles, from all maps, whose content overlaps bounds.
// A full match means the tile's content covers the whole of bounds.
func (cs *MapConnSet) GetTilesForBounds(bounds ownmap.Region) ([]*ChosenTile, errorsx.Error) {
	conns := cs.GetConns()
	if len(conns) == 0 {
		return nil, errorsx.Wrap(ErrNoDataAvailable)
	}

	var chosen []*ChosenTile
	for _, conn := range conns {
		mapInfo := conn.MapInfo()
		if getMatchLevel(fullBoundsOfTiles(mapInfo), bounds) == MatchLevelNone {
			continue
		}

		for _, tile := range mapInfo.Tiles {
			matchLevel := getMatchLevel(tile.FullBounds, bounds)
			if matchLevel == MatchLevelNone {
				continue
			}

			cs.logger.Debug("matchlevel: %s, map: %v, tile: %d", matchLevel, conn.Name(), tile.Index)

			chosen = append(chosen, &ChosenTile{
				MatchLevel: matchLevel,
				Conn:       conn,
				Tile:       tile,
			})
		}
	}

	return chosen, nil
}

func fullBoundsOfTiles(mapInfo *MapInfo) ownmap.Region {
	bounds := mapInfo.Bounds
	for _, tile := range mapInfo.Tiles {
		bounds = bounds.Extend(tile.FullBounds)
	}
	return bounds
}
