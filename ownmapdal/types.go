package ownmapdal

import (
	"errors"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/jamesrr39/ownmap-compiler/ownmapimg"
)

var (
	ErrNoDataAvailable = errors.New("no data available")
)

// FinalStorage receives the encoded tiles of a compile run
type FinalStorage interface {
	ImportTile(tile *ownmapimg.EncodedTile) errorsx.Error
	Commit(sourceInfo SourceInfo) (CompiledMapConn, errorsx.Error)
	Rollback() errorsx.Error
}

// SourceInfo describes the extract the map was compiled from
type SourceInfo struct {
	Bounds               ownmap.Region
	ReplicationTimestamp time.Time
}

// CompiledMapConn reads a compiled map
type CompiledMapConn interface {
	Name() string
	MapInfo() *MapInfo
	SectionBytes(tileIndex int, sectionName string) ([]byte, errorsx.Error)
	Close() errorsx.Error
}

type MapInfo struct {
	Version              uint32        `json:"version"`
	MapName              string        `json:"mapName"`
	Description          string        `json:"description"`
	BuildID              string        `json:"buildId"`
	BuildTime            time.Time     `json:"buildTime"`
	ReplicationTimestamp time.Time     `json:"replicationTimestamp"`
	Bounds               ownmap.Region `json:"bounds"`
	Tiles                []*TileInfo   `json:"tiles"`
}

func (info *MapInfo) Tile(index int) (*TileInfo, errorsx.Error) {
	for _, tile := range info.Tiles {
		if tile.Index == index {
			return tile, nil
		}
	}
	return nil, errorsx.Wrap(errorsx.ObjectNotFound, "tileIndex", index)
}

// FeatureCount is the total over all tiles
func (info *MapInfo) FeatureCount() int {
	var count int
	for _, tile := range info.Tiles {
		count += tile.FeatureCount
	}
	return count
}

type TileInfo struct {
	Index        int            `json:"index"`
	Bounds       ownmap.Region  `json:"bounds"`
	FullBounds   ownmap.Region  `json:"fullBounds"`
	FeatureCount int            `json:"featureCount"`
	RoadCount    int            `json:"roadCount"`
	NodeCount    int            `json:"nodeCount"`
	LabelCount   int            `json:"labelCount"`
	Subdivisions int            `json:"subdivisions"`
	Sections     []*SectionInfo `json:"sections"`
}

func (t *TileInfo) Section(name string) (*SectionInfo, errorsx.Error) {
	for _, section := range t.Sections {
		if section.Name == name {
			return section, nil
		}
	}
	return nil, errorsx.Wrap(errorsx.ObjectNotFound, "tileIndex", t.Index, "section", name)
}

func (t *TileInfo) TotalSize() int64 {
	var size int64
	for _, section := range t.Sections {
		size += section.Size
	}
	return size
}

// SectionInfo locates a section of a tile. Offset is relative to the start of the data area of the map file.
type SectionInfo struct {
	Name   string `json:"name"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}
