package imgfile

import (
	"testing"

	"github.com/gogo/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_wireFormat(t *testing.T) {
	bounds := &RegionBounds{MinLat: -1, MinLon: 1, MaxLat: 2, MaxLon: -2}
	boundsBytes := []byte{0x08, 0x01, 0x10, 0x02, 0x18, 0x04, 0x20, 0x03}

	tests := []struct {
		name    string
		message proto.Message
		want    []byte
	}{
		{"region bounds", bounds, boundsBytes},
		{
			"section",
			&SectionMetadata{Name: "RGN", Offset: 5, Size: 300},
			[]byte{0x0a, 0x03, 'R', 'G', 'N', 0x10, 0x05, 0x18, 0xac, 0x02},
		},
		{
			"subdivision",
			&SubdivisionMetadata{Number: 1, Level: 2, CentreLat: -3, CentreLon: 3, RgnOffset: 7, RgnSize: 8},
			[]byte{0x08, 0x01, 0x10, 0x02, 0x18, 0x05, 0x20, 0x06, 0x28, 0x07, 0x30, 0x08},
		},
		{
			"tile",
			&TileMetadata{
				Index:        2,
				FullBounds:   bounds,
				FeatureCount: 3,
				RoadCount:    4,
				NodeCount:    5,
				LabelCount:   6,
				DataOffset:   16,
				Subdivisions: []*SubdivisionMetadata{{Number: 1}},
			},
			append(append([]byte{0x08, 0x02, 0x1a, 0x08}, boundsBytes...),
				0x20, 0x03, 0x28, 0x04, 0x30, 0x05, 0x38, 0x06, 0x40, 0x10, 0x52, 0x02, 0x08, 0x01),
		},
		{
			"header",
			&Header{
				Version:           1,
				MapName:           "63240001",
				Description:       "d",
				BuildID:           "b",
				BuildTimeMs:       1000,
				ReplicationTimeMs: 1,
				Bounds:            bounds,
				BlockSize:         512,
				Tiles: []*TileMetadata{{
					Index:    2,
					Sections: []*SectionMetadata{{Name: "LBL", Size: 1}},
				}},
			},
			append(append([]byte{
				0x08, 0x01,
				0x12, 0x08, '6', '3', '2', '4', '0', '0', '0', '1',
				0x1a, 0x01, 'd',
				0x22, 0x01, 'b',
				0x28, 0xe8, 0x07,
				0x30, 0x01,
				0x3a, 0x08,
			}, boundsBytes...),
				0x40, 0x80, 0x04,
				0x4a, 0x0b, 0x08, 0x02, 0x4a, 0x07, 0x0a, 0x03, 'L', 'B', 'L', 0x18, 0x01,
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := proto.Marshal(tt.message)
			require.NoError(t, err)
			assert.Equal(t, tt.want, b)
		})
	}
}
