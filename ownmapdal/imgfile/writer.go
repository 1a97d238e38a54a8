package imgfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/google/hilbert"
	"github.com/google/uuid"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/humanise"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
	"github.com/jamesrr39/ownmap-compiler/ownmapimg"
)

const (
	// HeaderSizeContainerSize is the size of the container that holds the amount of bytes that must be read to read the header
	HeaderSizeContainerSize = 4

	FormatVersion = 1

	MapFileSuffix = ".img"

	DefaultFileHandlerLimit = 4

	// tiles are ordered along a hilbert curve over a grid of this many cells per side
	hilbertGridBits = 16
)

var _ ownmapdal.FinalStorage = &Writer{}

type WriterOptions struct {
	MapName          string
	Description      string
	BlockSize        int
	KeepWorkDir      bool
	FileHandlerLimit uint
}

func WriterOptionsFromCompileOptions(opts ownmapdal.CompileOptions) WriterOptions {
	return WriterOptions{
		MapName:          opts.MapName,
		Description:      opts.Description,
		BlockSize:        opts.BlockSize,
		KeepWorkDir:      opts.KeepWorkDir,
		FileHandlerLimit: DefaultFileHandlerLimit,
	}
}

type stagedTile struct {
	metadata *TileMetadata
	centre   ownmap.Coord
	filePath string
	size     int64
}

// Writer stages each tile's sections in a file in the work directory.
// On Commit the staged files are joined behind the header into the map file.
type Writer struct {
	logger               *logpkg.Logger
	fs                   gofs.Fs
	workDir, outFilePath string
	opts                 WriterOptions
	tiles                []*stagedTile
	nowFunc              func() time.Time
}

func NewWriter(logger *logpkg.Logger, fs gofs.Fs, workDir, outFilePath string, opts WriterOptions) (*Writer, errorsx.Error) {
	if opts.BlockSize < 1 {
		return nil, errorsx.Errorf("block size must be at least 1, but was %d", opts.BlockSize)
	}

	if opts.FileHandlerLimit < 1 {
		return nil, errorsx.Errorf("file handler limit must be at least 1")
	}

	err := fs.MkdirAll(workDir, 0700)
	if err != nil {
		return nil, errorsx.Wrap(err, "workDir", workDir)
	}

	return &Writer{logger, fs, workDir, outFilePath, opts, nil, time.Now}, nil
}

func (w *Writer) ImportTile(tile *ownmapimg.EncodedTile) errorsx.Error {
	filePath := filepath.Join(w.workDir, fmt.Sprintf("tile_%06d.sections", tile.Index))
	file, err := w.fs.Create(filePath)
	if err != nil {
		return errorsx.Wrap(err, "filePath", filePath)
	}
	defer file.Close()

	metadata := &TileMetadata{
		Index:        uint32(tile.Index),
		Bounds:       newRegionBounds(tile.Bounds),
		FullBounds:   newRegionBounds(tile.FullBounds),
		FeatureCount: uint32(tile.FeatureCount),
		RoadCount:    uint32(tile.RoadCount),
		NodeCount:    uint32(tile.NodeCount),
		LabelCount:   uint32(tile.LabelCount),
	}

	var size int64
	for _, name := range ownmapimg.SectionNames {
		data, ok := tile.Section(name)
		if !ok {
			return errorsx.Errorf("tile %d has no %s section", tile.Index, name)
		}

		_, err = file.Write(data)
		if err != nil {
			return errorsx.Wrap(err, "filePath", filePath)
		}

		// offsets are relative to the tile until Commit places the tile
		metadata.Sections = append(metadata.Sections, &SectionMetadata{
			Name:   name,
			Offset: uint64(size),
			Size:   uint64(len(data)),
		})
		size += int64(len(data))
	}

	for _, subdivision := range tile.Subdivisions {
		centre := subdivision.Centre()
		metadata.Subdivisions = append(metadata.Subdivisions, &SubdivisionMetadata{
			Number:    uint32(subdivision.Number()),
			Level:     uint32(subdivision.Level()),
			CentreLat: centre.Lat,
			CentreLon: centre.Lon,
			RgnOffset: uint32(subdivision.RgnOffset()),
			RgnSize:   uint32(subdivision.RgnSize()),
		})
	}

	w.tiles = append(w.tiles, &stagedTile{metadata, tile.Bounds.Centre(), filePath, size})

	return nil
}

func (w *Writer) Rollback() errorsx.Error {
	if w.opts.KeepWorkDir {
		return nil
	}

	err := w.fs.RemoveAll(w.workDir)
	if err != nil {
		return errorsx.Wrap(err)
	}

	return nil
}

func (w *Writer) Commit(sourceInfo ownmapdal.SourceInfo) (ownmapdal.CompiledMapConn, errorsx.Error) {
	if len(w.tiles) == 0 {
		return nil, errorsx.Errorf("no tiles to write")
	}

	var err error
	err = sortTilesAlongHilbertCurve(w.tiles)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	header := &Header{
		Version:           FormatVersion,
		MapName:           w.opts.MapName,
		Description:       w.opts.Description,
		BuildID:           uuid.New().String(),
		BuildTimeMs:       toMillis(w.nowFunc()),
		ReplicationTimeMs: toMillis(sourceInfo.ReplicationTimestamp),
		Bounds:            newRegionBounds(sourceInfo.Bounds),
		BlockSize:         uint32(w.opts.BlockSize),
	}

	// place the tiles in the data area, each starting on a block boundary
	var dataOffset int64
	paddings := make([]int64, len(w.tiles))
	for i, tile := range w.tiles {
		tile.metadata.DataOffset = uint64(dataOffset)
		for _, section := range tile.metadata.Sections {
			section.Offset += uint64(dataOffset)
		}
		header.Tiles = append(header.Tiles, tile.metadata)

		dataOffset += tile.size
		paddings[i] = paddingToBlockSize(dataOffset, int64(w.opts.BlockSize))
		dataOffset += paddings[i]
	}

	headerBytes, err := proto.Marshal(header)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	headerSizeContainer := make([]byte, HeaderSizeContainerSize)
	binary.LittleEndian.PutUint32(headerSizeContainer, uint32(len(headerBytes)))

	finalBuildFilePath := filepath.Join(w.workDir, "final_build.img")
	finalBuildFile, err := w.fs.Create(finalBuildFilePath)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	defer finalBuildFile.Close()

	var totalBytesWritten int64
	for _, part := range []struct {
		name string
		data []byte
	}{
		{"Header Size Container", headerSizeContainer},
		{"Header", headerBytes},
	} {
		bytesWritten, err := finalBuildFile.Write(part.data)
		if err != nil {
			return nil, errorsx.Wrap(err, "section", part.name)
		}
		totalBytesWritten += int64(bytesWritten)
	}

	for i, tile := range w.tiles {
		bytesWritten, copyErr := w.copyTileFile(finalBuildFile, tile)
		if copyErr != nil {
			return nil, errorsx.Wrap(copyErr)
		}

		w.logger.Debug("tile %d, bytes written: %s:: %d", tile.metadata.Index, humanise.HumaniseBytes(bytesWritten), bytesWritten)
		totalBytesWritten += bytesWritten

		if paddings[i] != 0 {
			_, err = finalBuildFile.Write(make([]byte, paddings[i]))
			if err != nil {
				return nil, errorsx.Wrap(err, "tileIndex", tile.metadata.Index)
			}
			totalBytesWritten += paddings[i]
		}
	}

	err = finalBuildFile.Sync()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	err = w.fs.Rename(finalBuildFilePath, w.outFilePath)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	w.logger.Info("wrote %d tiles to %q (%s)", len(w.tiles), w.outFilePath, humanise.HumaniseBytes(totalBytesWritten))

	if !w.opts.KeepWorkDir {
		err = w.fs.RemoveAll(w.workDir)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
	}

	conn, err := OpenMapFile(w.fs, w.outFilePath, w.opts.FileHandlerLimit)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return conn, nil
}

// copyTileFile appends the staged sections of a tile to dst. The staged file is closed before returning.
func (w *Writer) copyTileFile(dst io.Writer, tile *stagedTile) (int64, errorsx.Error) {
	tileFile, err := w.fs.Open(tile.filePath)
	if err != nil {
		return 0, errorsx.Wrap(err, "tileIndex", tile.metadata.Index)
	}
	defer tileFile.Close()

	bytesWritten, err := io.Copy(dst, tileFile)
	if err != nil {
		return bytesWritten, errorsx.Wrap(err, "tileIndex", tile.metadata.Index)
	}

	return bytesWritten, nil
}

func paddingToBlockSize(offset, blockSize int64) int64 {
	remainder := offset % blockSize
	if remainder == 0 {
		return 0
	}
	return blockSize - remainder
}

// hilbertIndex maps a coordinate onto the hilbert curve that covers the whole world
func hilbertIndex(h *hilbert.Hilbert, c ownmap.Coord) (int, errorsx.Error) {
	shift := uint(ownmap.MapUnitBits - hilbertGridBits)
	offset := int64(1) << (ownmap.MapUnitBits - 1)
	maxCell := int64(1)<<hilbertGridBits - 1

	toCell := func(value int32) int {
		cell := (int64(value) + offset) >> shift
		if cell < 0 {
			return 0
		}
		if cell > maxCell {
			return int(maxCell)
		}
		return int(cell)
	}

	index, err := h.MapInverse(toCell(c.Lon), toCell(c.Lat))
	if err != nil {
		return 0, errorsx.Wrap(err, "coord", c.String())
	}
	return index, nil
}

// sortTilesAlongHilbertCurve orders the tiles so that tiles near each other on the map are near each other in the file
func sortTilesAlongHilbertCurve(tiles []*stagedTile) errorsx.Error {
	h, err := hilbert.NewHilbert(1 << hilbertGridBits)
	if err != nil {
		return errorsx.Wrap(err)
	}

	indexes := make(map[*stagedTile]int, len(tiles))
	for _, tile := range tiles {
		index, err := hilbertIndex(h, tile.centre)
		if err != nil {
			return errorsx.Wrap(err, "tileIndex", tile.metadata.Index)
		}
		indexes[tile] = index
	}

	sort.SliceStable(tiles, func(i, j int) bool {
		return indexes[tiles[i]] < indexes[tiles[j]]
	})

	return nil
}
