package maprenderer

import (
	"context"
	"image"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
	"github.com/jamesrr39/ownmap-compiler/styling"
)

// LayoutRenderer draws where the tiles of compiled maps lie
type LayoutRenderer interface {
	RenderLayout(ctx context.Context, size image.Rectangle, bounds ownmap.Region, maps []*ownmapdal.MapInfo, style styling.Style) (image.Image, errorsx.Error)
}
