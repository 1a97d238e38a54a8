package ownmaprenderer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/jamesrr39/ownmap-compiler/ownmap/maprenderer"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
	"github.com/jamesrr39/ownmap-compiler/styling"
	"github.com/llgcode/draw2d/draw2dimg"
)

var _ maprenderer.LayoutRenderer = &LayoutRenderer{}

var fullBoundsStyle = &styling.WayStyle{
	LineColor:      color.RGBA{0x30, 0x30, 0x30, 0xff},
	LineDashPolicy: []float64{2, 2},
	LineWidth:      1,
}

type LayoutRenderer struct{}

// newCanvas is an image of the given size, filled with the background colour
func newCanvas(size image.Rectangle, background color.Color) *image.RGBA {
	img := image.NewRGBA(size)
	draw.Draw(img, size, &image.Uniform{C: background}, size.Min, draw.Src)
	return img
}

func NewLayoutRenderer() *LayoutRenderer {
	return &LayoutRenderer{}
}

type regionToDraw struct {
	region ownmap.Region
	style  *styling.WayStyle
}

func (lr *LayoutRenderer) RenderLayout(ctx context.Context, size image.Rectangle, bounds ownmap.Region, maps []*ownmapdal.MapInfo, style styling.Style) (image.Image, errorsx.Error) {
	if bounds.Width() <= 0 || bounds.Height() <= 0 {
		return nil, errorsx.Errorf("bounds %s have no area", bounds)
	}

	span := tracing.StartSpan(ctx, fmt.Sprintf("render layout of %d maps", len(maps)))
	defer span.End(ctx)

	var maxFeatureCount int
	for _, mapInfo := range maps {
		for _, tile := range mapInfo.Tiles {
			if ownmap.Overlaps(bounds, tile.Bounds) && tile.FeatureCount > maxFeatureCount {
				maxFeatureCount = tile.FeatureCount
			}
		}
	}

	var regions []*regionToDraw
	for _, mapInfo := range maps {
		if !ownmap.Overlaps(bounds, mapInfo.Bounds) {
			continue
		}

		for _, tile := range mapInfo.Tiles {
			if !ownmap.Overlaps(bounds, tile.FullBounds) {
				continue
			}

			var density float64
			if maxFeatureCount != 0 {
				density = float64(tile.FeatureCount) / float64(maxFeatureCount)
			}

			tileStyle := style.GetTileStyle(tile, density)
			if tileStyle != nil {
				regions = append(regions, &regionToDraw{tile.Bounds, tileStyle})
			}

			if tile.FullBounds != tile.Bounds {
				regions = append(regions, &regionToDraw{tile.FullBounds, fullBoundsStyle})
			}
		}

		mapBoundsStyle := style.GetMapBoundsStyle(mapInfo)
		if mapBoundsStyle != nil {
			regions = append(regions, &regionToDraw{mapInfo.Bounds, mapBoundsStyle})
		}
	}

	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].style.GetZIndex() < regions[j].style.GetZIndex()
	})

	img := newCanvas(size, style.GetBackground())
	for _, r := range regions {
		err := drawRegion(img, bounds, r.region, r.style)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
	}

	return img, nil
}

// drawRegion draws the region as a closed path. bounds is the area the whole image covers.
func drawRegion(img *image.RGBA, bounds ownmap.Region, region ownmap.Region, lineStyle *styling.WayStyle) errorsx.Error {
	corners := []ownmap.Coord{
		{Lat: region.MinLat, Lon: region.MinLon},
		{Lat: region.MaxLat, Lon: region.MinLon},
		{Lat: region.MaxLat, Lon: region.MaxLon},
		{Lat: region.MinLat, Lon: region.MaxLon},
		{Lat: region.MinLat, Lon: region.MinLon},
	}

	lonBetweenMinAndMax := float64(bounds.Width())
	latBetweenMinAndMax := float64(bounds.Height())

	var points []*Point
	for _, corner := range corners {
		points = append(points, &Point{
			X: float64(corner.Lon-bounds.MinLon) / lonBetweenMinAndMax,
			Y: float64(corner.Lat-bounds.MinLat) / latBetweenMinAndMax,
		})
	}

	gc := draw2dimg.NewGraphicContext(img)
	defer gc.Close()

	return drawLine(gc, img, points, lineStyle)
}

type Point struct {
	X float64 // between 0 and 1. 0 = left of image, 1 = right of image
	Y float64 // between 0 and 1. 0 = bottom of image, 1 = top of image
}

func drawLine(gc *draw2dimg.GraphicContext, img draw.Image, points []*Point, lineStyle *styling.WayStyle) errorsx.Error {
	if len(points) < 2 {
		return errorsx.Errorf("a line needs at least 2 points, got %d", len(points))
	}

	if lineStyle.FillColor != nil {
		gc.SetFillColor(lineStyle.FillColor)
	}
	if lineStyle.LineColor != nil {
		gc.SetStrokeColor(lineStyle.LineColor)
	}
	if lineStyle.LineWidth != 0 {
		gc.SetLineWidth(lineStyle.LineWidth)
	}
	if lineStyle.LineDashPolicy != nil {
		gc.SetLineDash(lineStyle.LineDashPolicy, 0)
	}
	gc.BeginPath()

	imgWidth := float64(img.Bounds().Dx())
	imgHeight := float64(img.Bounds().Dy())

	for i, point := range points {
		pointX := point.X * imgWidth
		pointY := (1 - point.Y) * imgHeight

		if i == 0 {
			gc.MoveTo(pointX, pointY)
		} else {
			gc.LineTo(pointX, pointY)
		}
	}

	switch {
	case lineStyle.FillColor != nil && lineStyle.LineColor != nil:
		gc.FillStroke()
	case lineStyle.FillColor != nil:
		gc.Fill()
	default:
		gc.Stroke()
	}

	return nil
}
