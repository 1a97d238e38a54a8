package ownmapsplit

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitToLimit(t *testing.T) {
	logger := logpkg.NewLogger(new(bytes.Buffer), logpkg.LogLevelDebug)

	region := ownmap.Region{MinLat: 0, MinLon: 0, MaxLat: 1 << 16, MaxLon: 1 << 16}
	points := randomPoints(rand.New(rand.NewSource(3)), region, 5000)

	opts := DefaultSplitOptions()
	opts.MaxFeatures = 100

	areas, err := SplitToLimit(logger, NewMapArea(region, points, nil, nil), opts)
	require.NoError(t, err)

	var total int
	for _, area := range areas {
		assert.LessOrEqual(t, area.FeatureCount(), 100)
		assert.NotZero(t, area.FeatureCount())
		total += area.FeatureCount()
	}
	assert.Equal(t, 5000, total)
}

func TestSplitToLimit_coincidentElements(t *testing.T) {
	logBuffer := new(bytes.Buffer)
	logger := logpkg.NewLogger(logBuffer, logpkg.LogLevelInfo)

	region := ownmap.Region{MinLat: 0, MinLon: 0, MaxLat: 1 << 20, MaxLon: 1 << 20}
	var points []*ownmap.MapPoint
	for i := 0; i < 50; i++ {
		points = append(points, &ownmap.MapPoint{ID: int64(i), Coord: ownmap.Coord{Lat: 1234, Lon: 5678}})
	}

	tests := []struct {
		name string
		opts SplitOptions
	}{
		{
			"stopped by minimum cell size",
			SplitOptions{MaxFeatures: 10, SplitX: 2, SplitY: 2, MaxDepth: 100, MinCellSize: 1 << 10},
		}, {
			"stopped by maximum depth",
			SplitOptions{MaxFeatures: 10, SplitX: 2, SplitY: 2, MaxDepth: 3, MinCellSize: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			areas, err := SplitToLimit(logger, NewMapArea(region, points, nil, nil), tt.opts)
			require.NoError(t, err)
			require.Len(t, areas, 1)
			assert.Equal(t, 50, areas[0].FeatureCount())
			assert.Contains(t, logBuffer.String(), "Keeping it as one area")
		})
	}
}

func TestSplitOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    SplitOptions
		wantErr bool
	}{
		{"default", DefaultSplitOptions(), false},
		{"no features allowed", SplitOptions{MaxFeatures: 0, SplitX: 2, SplitY: 2, MaxDepth: 1, MinCellSize: 1}, true},
		{"1x1 split", SplitOptions{MaxFeatures: 1, SplitX: 1, SplitY: 1, MaxDepth: 1, MinCellSize: 1}, true},
		{"zero cell size", SplitOptions{MaxFeatures: 1, SplitX: 2, SplitY: 1, MaxDepth: 1, MinCellSize: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
