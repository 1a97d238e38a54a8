package ownmapdal

import (
	"context"
	"fmt"

	"github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-compiler/ownmapimg"
	"github.com/jamesrr39/ownmap-compiler/ownmapsplit"
	"github.com/jamesrr39/semaphore"
)

// OnTileEncodedFunc is called once for every tile that has been encoded, from the encoding goroutine
type OnTileEncodedFunc func(tile *ownmapimg.EncodedTile)

type Compiler struct {
	logger        *logpkg.Logger
	tracer        *tracing.Tracer
	metrics       *CompileMetrics
	opts          CompileOptions
	onTileEncoded OnTileEncodedFunc
}

func NewCompiler(logger *logpkg.Logger, tracer *tracing.Tracer, metrics *CompileMetrics, opts CompileOptions, onTileEncoded OnTileEncodedFunc) (*Compiler, errorsx.Error) {
	err := opts.Validate()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	if onTileEncoded == nil {
		onTileEncoded = func(tile *ownmapimg.EncodedTile) {}
	}

	return &Compiler{logger, tracer, metrics, opts, onTileEncoded}, nil
}

// Compile reads the extract, splits it into tiles, encodes the tiles and hands them to finalStorage.
// If anything fails, finalStorage is rolled back.
func (c *Compiler) Compile(pbfReader PBFReader, finalStorage FinalStorage) (CompiledMapConn, errorsx.Error) {
	var successful bool

	defer func() {
		if !successful {
			err := finalStorage.Rollback()
			if err != nil {
				c.logger.Error("couldn't rollback. Error: %s\nStack trace:\n%s\n", err.Error(), err.Stack())
			}
		}
	}()

	trace := tracing.StartTrace(c.tracer, fmt.Sprintf("compile %s", c.opts.MapName))
	ctx := context.Background()
	ctx = context.WithValue(ctx, tracing.TraceCtxKey, trace)
	ctx = context.WithValue(ctx, tracing.TracerCtxKey, c.tracer)

	defer func() {
		err := c.tracer.EndTrace(trace, fmt.Sprintf("successful: %v", successful))
		if err != nil {
			c.logger.Warn("couldn't write trace. Error: %q", err)
		}
	}()

	span := tracing.StartSpan(ctx, "convert extract")
	sourceData, err := ConvertPBF(c.logger, pbfReader, c.opts.ConvertOptions())
	span.End(ctx)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	c.metrics.observeSource(sourceData)

	span = tracing.StartSpan(ctx, "split")
	rootArea := ownmapsplit.NewMapArea(sourceData.Bounds, sourceData.Points, sourceData.Lines, sourceData.Shapes)
	areas, err := ownmapsplit.SplitToLimit(c.logger, rootArea, c.opts.SplitOptions())
	span.End(ctx)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	c.logger.Info("split %d map elements into %d tiles", rootArea.FeatureCount(), len(areas))

	tiles, err := c.encodeTiles(ctx, areas, sourceData)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	span = tracing.StartSpan(ctx, "import tiles")
	for _, tile := range tiles {
		err = finalStorage.ImportTile(tile)
		if err != nil {
			span.End(ctx)
			return nil, errorsx.Wrap(err, "tileIndex", tile.Index)
		}
	}
	span.End(ctx)

	span = tracing.StartSpan(ctx, "commit")
	conn, err := finalStorage.Commit(SourceInfo{
		Bounds:               sourceData.Bounds,
		ReplicationTimestamp: sourceData.ReplicationTimestamp,
	})
	span.End(ctx)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	successful = true

	return conn, nil
}

// encodeTiles encodes the areas in parallel. The tiles are returned in area order.
func (c *Compiler) encodeTiles(ctx context.Context, areas []*ownmapsplit.MapArea, sourceData *SourceData) ([]*ownmapimg.EncodedTile, errorsx.Error) {
	encoder, err := ownmapimg.NewTileEncoder(c.logger, c.opts.EncoderOptions())
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	tiles := make([]*ownmapimg.EncodedTile, len(areas))
	errs := make([]errorsx.Error, len(areas))

	sema := semaphore.NewSemaphore(uint(c.opts.Workers))

	for i, area := range areas {
		sema.Add()
		go func(index int, area *ownmapsplit.MapArea) {
			defer sema.Done()

			span := tracing.StartSpan(ctx, fmt.Sprintf("encode tile %d (%d elements)", index, area.FeatureCount()))
			defer span.End(ctx)

			tile, err := encoder.Encode(index, area, sourceData.Roads)
			if err != nil {
				c.metrics.observeTileError()
				errs[index] = err
				return
			}

			c.metrics.observeTile(tile)
			tiles[index] = tile
			c.onTileEncoded(tile)
		}(i, area)
	}

	sema.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
	}

	return tiles, nil
}
