package ownmap

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
)

// 1: item above container: false
// 2: item below container: false
// 3: item to the left of container: false
// 4: item to the right of container: false
// 5: item fully inside container: true
// 6: item paritially inside container (top side): true
// 7: item paritially inside container (bottom-right side): true
// 8: item == container: true
func TestOverlaps(t *testing.T) {
	containerBounds := Region{MinLat: -100, MinLon: -100, MaxLat: 100, MaxLon: 100}

	type args struct {
		container Region
		item      Region
	}
	tests := []struct {
		name string
		args args
		want bool
	}{
		{
			"item above container",
			args{
				containerBounds,
				Region{MinLat: 8900, MinLon: -100, MaxLat: 9000, MaxLon: 100},
			},
			false,
		},
		{
			"item below container",
			args{
				containerBounds,
				Region{MinLat: -5100, MinLon: -100, MaxLat: -5000, MaxLon: 100},
			},
			false,
		},
		{
			"item to the left of container",
			args{
				containerBounds,
				Region{MinLat: -100, MinLon: -300, MaxLat: 100, MaxLon: -200},
			},
			false,
		},
		{
			"item to the right of container",
			args{
				containerBounds,
				Region{MinLat: -100, MinLon: 200, MaxLat: 100, MaxLon: 300},
			},
			false,
		}, {
			"item fully inside container",
			args{
				containerBounds,
				Region{MinLat: -50, MinLon: -50, MaxLat: 50, MaxLon: 50},
			},
			true,
		}, {
			"item paritially inside container (top side)",
			args{
				containerBounds,
				Region{MinLat: 100, MinLon: 20, MaxLat: 200, MaxLon: 80},
			},
			true,
		}, {
			"item paritially inside container (bottom-right side)",
			args{
				containerBounds,
				Region{MinLat: -150, MinLon: 50, MaxLat: -50, MaxLon: 150},
			},
			true,
		},
		{
			"item == container",
			args{
				containerBounds,
				containerBounds,
			},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.args.container, tt.args.item); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTotallyInside(t *testing.T) {
	container := Region{MinLat: -100, MinLon: -100, MaxLat: 100, MaxLon: 100}

	type args struct {
		container Region
		item      Region
	}
	tests := []struct {
		name string
		args args
		want bool
	}{
		{
			"is totally inside",
			args{
				container: container,
				item:      Region{MinLat: -50, MinLon: -50, MaxLat: 50, MaxLon: 50},
			},
			true,
		}, {
			"is the same as the container",
			args{
				container: container,
				item:      container,
			},
			true,
		}, {
			"is out to the west",
			args{
				container: container,
				item:      Region{MinLat: -100, MinLon: -110, MaxLat: 100, MaxLon: 100},
			},
			false,
		}, {
			"is out to the north",
			args{
				container: container,
				item:      Region{MinLat: -100, MinLon: -100, MaxLat: 110, MaxLon: 100},
			},
			false,
		}, {
			"is totally outside",
			args{
				container: container,
				item:      Region{MinLat: 200, MinLon: 200, MaxLat: 300, MaxLon: 300},
			},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTotallyInside(tt.args.container, tt.args.item); got != tt.want {
				t.Errorf("IsTotallyInside() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegionFromOSMBounds(t *testing.T) {
	bounds := osm.Bounds{MinLat: -45, MaxLat: 45, MinLon: -90, MaxLon: 90}

	region := RegionFromOSMBounds(bounds)
	assert.Equal(t, Region{MinLat: -1 << 21, MinLon: -1 << 22, MaxLat: 1 << 21, MaxLon: 1 << 22}, region)
	assert.Equal(t, bounds, region.ToOSMBounds())
}

func TestRegionFromOrbBound(t *testing.T) {
	bound := orb.Bound{Min: orb.Point{-90, -45}, Max: orb.Point{90, 45}}

	region := RegionFromOrbBound(bound)
	assert.Equal(t, Region{MinLat: -1 << 21, MinLon: -1 << 22, MaxLat: 1 << 21, MaxLon: 1 << 22}, region)
}

func TestLineStringRoundTrip(t *testing.T) {
	coords := []Coord{{Lat: 1, Lon: 2}, {Lat: -3, Lon: 4}}

	ls := ToLineString(coords)
	assert.Equal(t, orb.LineString{{2, 1}, {4, -3}}, ls)
	assert.Equal(t, coords, FromLineString(ls))
}
