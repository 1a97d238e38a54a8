package imgfile

import (
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
)

// The messages below are kept by hand in step with header.proto; they are not generated.
// A change to a field number or wire type in one must be made in the other.
// TestHeader_wireFormat pins the encoding of every field.

type RegionBounds struct {
	MinLat int32 `protobuf:"zigzag32,1,opt,name=min_lat,json=minLat,proto3" json:"min_lat,omitempty"`
	MinLon int32 `protobuf:"zigzag32,2,opt,name=min_lon,json=minLon,proto3" json:"min_lon,omitempty"`
	MaxLat int32 `protobuf:"zigzag32,3,opt,name=max_lat,json=maxLat,proto3" json:"max_lat,omitempty"`
	MaxLon int32 `protobuf:"zigzag32,4,opt,name=max_lon,json=maxLon,proto3" json:"max_lon,omitempty"`
}

func (m *RegionBounds) Reset()         { *m = RegionBounds{} }
func (m *RegionBounds) String() string { return proto.CompactTextString(m) }
func (*RegionBounds) ProtoMessage()    {}

type SectionMetadata struct {
	Name   string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Offset uint64 `protobuf:"varint,2,opt,name=offset,proto3" json:"offset,omitempty"`
	Size   uint64 `protobuf:"varint,3,opt,name=size,proto3" json:"size,omitempty"`
}

func (m *SectionMetadata) Reset()         { *m = SectionMetadata{} }
func (m *SectionMetadata) String() string { return proto.CompactTextString(m) }
func (*SectionMetadata) ProtoMessage()    {}

type SubdivisionMetadata struct {
	Number    uint32 `protobuf:"varint,1,opt,name=number,proto3" json:"number,omitempty"`
	Level     uint32 `protobuf:"varint,2,opt,name=level,proto3" json:"level,omitempty"`
	CentreLat int32  `protobuf:"zigzag32,3,opt,name=centre_lat,json=centreLat,proto3" json:"centre_lat,omitempty"`
	CentreLon int32  `protobuf:"zigzag32,4,opt,name=centre_lon,json=centreLon,proto3" json:"centre_lon,omitempty"`
	RgnOffset uint32 `protobuf:"varint,5,opt,name=rgn_offset,json=rgnOffset,proto3" json:"rgn_offset,omitempty"`
	RgnSize   uint32 `protobuf:"varint,6,opt,name=rgn_size,json=rgnSize,proto3" json:"rgn_size,omitempty"`
}

func (m *SubdivisionMetadata) Reset()         { *m = SubdivisionMetadata{} }
func (m *SubdivisionMetadata) String() string { return proto.CompactTextString(m) }
func (*SubdivisionMetadata) ProtoMessage()    {}

type TileMetadata struct {
	Index        uint32                 `protobuf:"varint,1,opt,name=index,proto3" json:"index,omitempty"`
	Bounds       *RegionBounds          `protobuf:"bytes,2,opt,name=bounds,proto3" json:"bounds,omitempty"`
	FullBounds   *RegionBounds          `protobuf:"bytes,3,opt,name=full_bounds,json=fullBounds,proto3" json:"full_bounds,omitempty"`
	FeatureCount uint32                 `protobuf:"varint,4,opt,name=feature_count,json=featureCount,proto3" json:"feature_count,omitempty"`
	RoadCount    uint32                 `protobuf:"varint,5,opt,name=road_count,json=roadCount,proto3" json:"road_count,omitempty"`
	NodeCount    uint32                 `protobuf:"varint,6,opt,name=node_count,json=nodeCount,proto3" json:"node_count,omitempty"`
	LabelCount   uint32                 `protobuf:"varint,7,opt,name=label_count,json=labelCount,proto3" json:"label_count,omitempty"`
	DataOffset   uint64                 `protobuf:"varint,8,opt,name=data_offset,json=dataOffset,proto3" json:"data_offset,omitempty"`
	Sections     []*SectionMetadata     `protobuf:"bytes,9,rep,name=sections,proto3" json:"sections,omitempty"`
	Subdivisions []*SubdivisionMetadata `protobuf:"bytes,10,rep,name=subdivisions,proto3" json:"subdivisions,omitempty"`
}

func (m *TileMetadata) Reset()         { *m = TileMetadata{} }
func (m *TileMetadata) String() string { return proto.CompactTextString(m) }
func (*TileMetadata) ProtoMessage()    {}

type Header struct {
	Version           uint32          `protobuf:"varint,1,opt,name=version,proto3" json:"version,omitempty"`
	MapName           string          `protobuf:"bytes,2,opt,name=map_name,json=mapName,proto3" json:"map_name,omitempty"`
	Description       string          `protobuf:"bytes,3,opt,name=description,proto3" json:"description,omitempty"`
	BuildID           string          `protobuf:"bytes,4,opt,name=build_id,json=buildId,proto3" json:"build_id,omitempty"`
	BuildTimeMs       int64           `protobuf:"varint,5,opt,name=build_time_ms,json=buildTimeMs,proto3" json:"build_time_ms,omitempty"`
	ReplicationTimeMs int64           `protobuf:"varint,6,opt,name=replication_time_ms,json=replicationTimeMs,proto3" json:"replication_time_ms,omitempty"`
	Bounds            *RegionBounds   `protobuf:"bytes,7,opt,name=bounds,proto3" json:"bounds,omitempty"`
	BlockSize         uint32          `protobuf:"varint,8,opt,name=block_size,json=blockSize,proto3" json:"block_size,omitempty"`
	Tiles             []*TileMetadata `protobuf:"bytes,9,rep,name=tiles,proto3" json:"tiles,omitempty"`
}

func (m *Header) Reset()         { *m = Header{} }
func (m *Header) String() string { return proto.CompactTextString(m) }
func (*Header) ProtoMessage()    {}

func newRegionBounds(region ownmap.Region) *RegionBounds {
	return &RegionBounds{
		MinLat: region.MinLat,
		MinLon: region.MinLon,
		MaxLat: region.MaxLat,
		MaxLon: region.MaxLon,
	}
}

func (m *RegionBounds) toRegion() ownmap.Region {
	if m == nil {
		return ownmap.Region{}
	}
	return ownmap.Region{
		MinLat: m.MinLat,
		MinLon: m.MinLon,
		MaxLat: m.MaxLat,
		MaxLon: m.MaxLon,
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano() / int64(time.Millisecond)
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond)).UTC()
}

func (h *Header) toMapInfo() *ownmapdal.MapInfo {
	info := &ownmapdal.MapInfo{
		Version:              h.Version,
		MapName:              h.MapName,
		Description:          h.Description,
		BuildID:              h.BuildID,
		BuildTime:            fromMillis(h.BuildTimeMs),
		ReplicationTimestamp: fromMillis(h.ReplicationTimeMs),
		Bounds:               h.Bounds.toRegion(),
	}

	for _, tile := range h.Tiles {
		tileInfo := &ownmapdal.TileInfo{
			Index:        int(tile.Index),
			Bounds:       tile.Bounds.toRegion(),
			FullBounds:   tile.FullBounds.toRegion(),
			FeatureCount: int(tile.FeatureCount),
			RoadCount:    int(tile.RoadCount),
			NodeCount:    int(tile.NodeCount),
			LabelCount:   int(tile.LabelCount),
			Subdivisions: len(tile.Subdivisions),
		}
		for _, section := range tile.Sections {
			tileInfo.Sections = append(tileInfo.Sections, &ownmapdal.SectionInfo{
				Name:   section.Name,
				Offset: int64(section.Offset),
				Size:   int64(section.Size),
			})
		}
		info.Tiles = append(info.Tiles, tileInfo)
	}

	return info
}
