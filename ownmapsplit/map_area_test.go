package ownmapsplit

import (
	"math/rand"
	"testing"

	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomPoints(r *rand.Rand, region ownmap.Region, count int) []*ownmap.MapPoint {
	var points []*ownmap.MapPoint
	for i := 0; i < count; i++ {
		points = append(points, &ownmap.MapPoint{
			ID: int64(i + 1),
			Coord: ownmap.Coord{
				Lat: region.MinLat + r.Int31n(region.Height()+1),
				Lon: region.MinLon + r.Int31n(region.Width()+1),
			},
		})
	}
	return points
}

func TestMapArea_Split_quadrants(t *testing.T) {
	region := ownmap.Region{MinLat: -1000, MinLon: -2000, MaxLat: 1000, MaxLon: 2000}
	points := randomPoints(rand.New(rand.NewSource(1)), region, 1000)

	area := NewMapArea(region, points, nil, nil)
	require.Equal(t, 1000, area.FeatureCount())

	children, err := area.Split(2, 2)
	require.NoError(t, err)
	require.Len(t, children, 4)

	seen := make(map[int64]int)
	for i, child := range children {
		for _, p := range child.Points() {
			seen[p.ID]++
			assert.True(t, ownmap.IsTotallyInside(child.FullBounds(), p.Bounds()), "point %d in child %d", p.ID, i)
		}
		assert.True(t, ownmap.IsTotallyInside(child.FullBounds(), child.Bounds()))
		assert.True(t, ownmap.IsTotallyInside(region, child.Bounds()))
	}

	require.Len(t, seen, 1000)
	for id, count := range seen {
		assert.Equal(t, 1, count, "point %d", id)
	}
}

func TestMapArea_Split_clampsOutsideElements(t *testing.T) {
	region := ownmap.Region{MinLat: 0, MinLon: 0, MaxLat: 100, MaxLon: 100}

	farAway := &ownmap.MapPoint{ID: 1, Coord: ownmap.Coord{Lat: 500, Lon: -500}}
	onMaxEdge := &ownmap.MapPoint{ID: 2, Coord: ownmap.Coord{Lat: 100, Lon: 100}}
	// the middle point of this line is below and right of the region
	line := &ownmap.MapLine{ID: 3, Points: []ownmap.Coord{{Lat: 10, Lon: 10}, {Lat: -20, Lon: 300}, {Lat: -30, Lon: 400}}}
	shape := &ownmap.MapShape{ID: 4, Points: []ownmap.Coord{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 10}, {Lat: 10, Lon: 10}}}

	area := NewMapArea(region, []*ownmap.MapPoint{farAway, onMaxEdge}, []*ownmap.MapLine{line}, []*ownmap.MapShape{shape})
	assert.Equal(t, ownmap.Region{MinLat: -30, MinLon: -500, MaxLat: 500, MaxLon: 400}, area.FullBounds())

	children, err := area.Split(2, 2)
	require.NoError(t, err)

	// index is x*ny+y: x is the longitude column, y is the latitude row
	assert.Equal(t, []*ownmap.MapPoint{farAway}, children[0*2+1].Points())
	assert.Equal(t, []*ownmap.MapPoint{onMaxEdge}, children[1*2+1].Points())
	assert.Equal(t, []*ownmap.MapLine{line}, children[1*2+0].Lines())
	assert.Equal(t, []*ownmap.MapShape{shape}, children[0].Shapes())

	assert.Equal(t, ownmap.Region{MinLat: 50, MinLon: -500, MaxLat: 500, MaxLon: 50}, children[1].FullBounds())
	assert.Equal(t, ownmap.Region{MinLat: -30, MinLon: 10, MaxLat: 50, MaxLon: 400}, children[2].FullBounds())
}

func TestMapArea_Split_isReinvokable(t *testing.T) {
	region := ownmap.Region{MinLat: 0, MinLon: 0, MaxLat: 999, MaxLon: 999}
	points := randomPoints(rand.New(rand.NewSource(2)), region, 300)

	area := NewMapArea(region, points, nil, nil)
	children, err := area.Split(3, 2)
	require.NoError(t, err)

	var total int
	for _, child := range children {
		grandChildren, err := child.Split(2, 3)
		require.NoError(t, err)
		for _, grandChild := range grandChildren {
			total += grandChild.FeatureCount()
			assert.True(t, ownmap.IsTotallyInside(child.Bounds(), grandChild.Bounds()))
		}
	}

	assert.Equal(t, 300, total)
}

func TestMapArea_Split_tooSmall(t *testing.T) {
	area := NewMapArea(ownmap.Region{MinLat: 0, MinLon: 0, MaxLat: 1, MaxLon: 1}, nil, nil, nil)

	_, err := area.Split(2, 2)
	require.Error(t, err)
}
