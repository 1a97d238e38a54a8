package styling

import (
	"image/color"

	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
)

const (
	OutlineStyleID = "outline"

	zindexTile      = 1
	zindexMapBounds = 2
)

// DensityStyle shades each tile by how many features it holds. Empty tiles are outlined only.
type DensityStyle struct{}

func (_ *DensityStyle) GetBackground() color.Color {
	return color.White
}

func (_ *DensityStyle) GetStyleID() string {
	return BUILTIN_STYLEID
}

func (_ *DensityStyle) GetTileStyle(tile *ownmapdal.TileInfo, density float64) *WayStyle {
	wayStyle := &WayStyle{
		LineColor: color.RGBA{0x80, 0x80, 0x80, 0xff},
		LineWidth: 1,
		ZIndex:    zindexTile,
	}

	if tile.FeatureCount == 0 {
		wayStyle.LineDashPolicy = []float64{4, 2}
		return wayStyle
	}

	if density < 0 {
		density = 0
	}
	if density > 1 {
		density = 1
	}

	// always visible, even for the sparsest tile
	alpha := 0x20 + uint8(density*0xdf)

	wayStyle.FillColor = color.NRGBA{0x1f, 0x6f, 0xb4, alpha}
	return wayStyle
}

func (_ *DensityStyle) GetMapBoundsStyle(mapInfo *ownmapdal.MapInfo) *WayStyle {
	return &WayStyle{
		LineColor: color.RGBA{0xd0, 0x30, 0x30, 0xff},
		LineWidth: 2,
		ZIndex:    zindexMapBounds,
	}
}

// OutlineStyle draws the outline of every tile, without fill
type OutlineStyle struct{}

func (_ *OutlineStyle) GetBackground() color.Color {
	return color.White
}

func (_ *OutlineStyle) GetStyleID() string {
	return OutlineStyleID
}

func (_ *OutlineStyle) GetTileStyle(tile *ownmapdal.TileInfo, density float64) *WayStyle {
	return &WayStyle{
		LineColor: color.Black,
		LineWidth: 1,
		ZIndex:    zindexTile,
	}
}

func (_ *OutlineStyle) GetMapBoundsStyle(mapInfo *ownmapdal.MapInfo) *WayStyle {
	return nil
}
