package ownmapsplit

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
)

type SplitOptions struct {
	MaxFeatures int
	SplitX      int
	SplitY      int
	// MaxDepth and MinCellSize stop the subdivision of areas whose elements cannot be separated,
	// for example many elements on the same coordinate
	MaxDepth    int
	MinCellSize int32
}

func DefaultSplitOptions() SplitOptions {
	return SplitOptions{
		MaxFeatures: 200,
		SplitX:      2,
		SplitY:      2,
		MaxDepth:    16,
		MinCellSize: 1 << 6,
	}
}

func (o SplitOptions) Validate() errorsx.Error {
	if o.MaxFeatures < 1 {
		return errorsx.Errorf("MaxFeatures must be at least 1, but was %d", o.MaxFeatures)
	}

	if o.SplitX < 1 || o.SplitY < 1 || o.SplitX*o.SplitY < 2 {
		return errorsx.Errorf("a split must produce at least 2 areas, but split was %dx%d", o.SplitX, o.SplitY)
	}

	if o.MaxDepth < 0 {
		return errorsx.Errorf("MaxDepth cannot be negative")
	}

	if o.MinCellSize < 1 {
		return errorsx.Errorf("MinCellSize must be at least 1, but was %d", o.MinCellSize)
	}

	return nil
}

// SplitToLimit splits the area until each resulting area has at most MaxFeatures features,
// or cannot be split any further. Empty areas are dropped.
// Areas are returned depth-first, in child index order.
func SplitToLimit(logger *logpkg.Logger, area *MapArea, opts SplitOptions) ([]*MapArea, errorsx.Error) {
	err := opts.Validate()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	var areas []*MapArea
	err = splitToLimit(logger, area, opts, 0, &areas)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return areas, nil
}

func splitToLimit(logger *logpkg.Logger, area *MapArea, opts SplitOptions, depth int, areas *[]*MapArea) errorsx.Error {
	featureCount := area.FeatureCount()
	if featureCount == 0 {
		return nil
	}

	if featureCount <= opts.MaxFeatures {
		*areas = append(*areas, area)
		return nil
	}

	if depth >= opts.MaxDepth {
		logger.Warn("area %s has %d features, but the maximum split depth (%d) has been reached. Keeping it as one area.", area.Bounds(), featureCount, opts.MaxDepth)
		*areas = append(*areas, area)
		return nil
	}

	region := area.Bounds()
	if region.Width()/int32(opts.SplitX) < opts.MinCellSize || region.Height()/int32(opts.SplitY) < opts.MinCellSize {
		logger.Warn("area %s has %d features, but is too small to split further. Keeping it as one area.", region, featureCount)
		*areas = append(*areas, area)
		return nil
	}

	children, err := area.Split(opts.SplitX, opts.SplitY)
	if err != nil {
		return errorsx.Wrap(err, "region", region.String(), "depth", depth)
	}

	logger.Debug("split area %s with %d features at depth %d", region, featureCount, depth)

	for _, child := range children {
		err = splitToLimit(logger, child, opts, depth+1, areas)
		if err != nil {
			return errorsx.Wrap(err)
		}
	}

	return nil
}
