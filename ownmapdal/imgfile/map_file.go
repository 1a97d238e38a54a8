package imgfile

import (
	"encoding/binary"
	"io"
	"path/filepath"
	"strings"

	"github.com/gogo/protobuf/proto"
	"github.com/jamesrr39/goutil/algorithms"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
)

type OpenFileFunc func() (gofs.File, errorsx.Error)

type FileHandlerPool struct {
	freeHandlers chan gofs.File
	limit        uint
}

func NewFileHandlerPool(openFileFunc OpenFileFunc, limit uint) (*FileHandlerPool, errorsx.Error) {
	if limit == 0 {
		return nil, errorsx.Errorf("file handler limit must be at least 1")
	}

	freeHandlersChan := make(chan gofs.File, limit)
	for i := 0; i < int(limit); i++ {
		handler, err := openFileFunc()
		if err != nil {
			close(freeHandlersChan)
			for opened := range freeHandlersChan {
				opened.Close()
			}
			return nil, errorsx.Wrap(err)
		}
		freeHandlersChan <- handler
	}
	return &FileHandlerPool{freeHandlersChan, limit}, nil
}

func (p *FileHandlerPool) Get() gofs.File {
	return <-p.freeHandlers
}

func (p *FileHandlerPool) Release(handler gofs.File) {
	p.freeHandlers <- handler
}

// Close waits for every handler to be released, then closes them all
func (p *FileHandlerPool) Close() errorsx.Error {
	var firstErr error
	for i := 0; i < int(p.limit); i++ {
		handler := <-p.freeHandlers
		err := handler.Close()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		return errorsx.Wrap(firstErr)
	}
	return nil
}

var _ ownmapdal.CompiledMapConn = &MapFileConn{}

type MapFileConn struct {
	name            string
	header          *Header
	mapInfo         *ownmapdal.MapInfo
	dataOffset      int64
	fileHandlerPool *FileHandlerPool
}

func OpenMapFile(fs gofs.Fs, filePath string, fileHandlerLimit uint) (*MapFileConn, errorsx.Error) {
	openFileFunc := func() (gofs.File, errorsx.Error) {
		file, err := fs.Open(filePath)
		if err != nil {
			return nil, errorsx.Wrap(err, "filePath", filePath)
		}
		return file, nil
	}

	name := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))

	return NewMapFileConn(openFileFunc, name, fileHandlerLimit)
}

func NewMapFileConn(openFileFunc OpenFileFunc, name string, fileHandlerLimit uint) (*MapFileConn, errorsx.Error) {
	var err error
	fileHandlerPool, err := NewFileHandlerPool(openFileFunc, fileHandlerLimit)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	file := fileHandlerPool.Get()
	header, headerSize, err := readHeader(file, name)
	fileHandlerPool.Release(file)
	if err != nil {
		closeErr := fileHandlerPool.Close()
		if closeErr != nil {
			return nil, errorsx.Wrap(err, "closeErr", closeErr.Error())
		}
		return nil, errorsx.Wrap(err)
	}

	dataOffset := int64(HeaderSizeContainerSize) + int64(headerSize)

	return &MapFileConn{name, header, header.toMapInfo(), dataOffset, fileHandlerPool}, nil
}

func readHeader(file gofs.File, name string) (*Header, uint32, errorsx.Error) {
	headerSizeBuffer := make([]byte, HeaderSizeContainerSize)
	_, err := io.ReadFull(file, headerSizeBuffer)
	if err != nil {
		return nil, 0, errorsx.Wrap(err, "name", name)
	}
	headerSize := binary.LittleEndian.Uint32(headerSizeBuffer)

	headerBuffer := make([]byte, headerSize)
	_, err = io.ReadFull(file, headerBuffer)
	if err != nil {
		return nil, 0, errorsx.Wrap(err, "name", name, "headerSize", headerSize)
	}

	header := new(Header)
	err = proto.Unmarshal(headerBuffer, header)
	if err != nil {
		return nil, 0, errorsx.Wrap(err, "name", name)
	}

	if header.Version != FormatVersion {
		return nil, 0, errorsx.Errorf("unsupported map file version %d (expected %d)", header.Version, FormatVersion)
	}

	return header, headerSize, nil
}

func (c *MapFileConn) Name() string {
	return c.name
}

func (c *MapFileConn) MapInfo() *ownmapdal.MapInfo {
	return c.mapInfo
}

func (c *MapFileConn) Header() *Header {
	return c.header
}

// DataOffset is the position in the file that section offsets are relative to
func (c *MapFileConn) DataOffset() int64 {
	return c.dataOffset
}

func (c *MapFileConn) SectionBytes(tileIndex int, sectionName string) ([]byte, errorsx.Error) {
	tile, err := c.mapInfo.Tile(tileIndex)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	section, err := tile.Section(sectionName)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	data := make([]byte, section.Size)
	if section.Size == 0 {
		return data, nil
	}

	file := c.fileHandlerPool.Get()
	defer c.fileHandlerPool.Release(file)

	_, readErr := file.ReadAt(data, c.dataOffset+section.Offset)
	if readErr != nil {
		return nil, errorsx.Wrap(readErr, "tileIndex", tileIndex, "section", sectionName)
	}

	return data, nil
}

// TileAtOffset finds the tile whose data contains the given offset of the data area
func (c *MapFileConn) TileAtOffset(offset int64) (*TileMetadata, errorsx.Error) {
	tiles := c.header.Tiles
	blockSize := int64(c.header.BlockSize)

	idx, result := algorithms.BinarySearch(len(tiles), func(i int) algorithms.SearchResult {
		start := int64(tiles[i].DataOffset)
		if offset < start {
			return algorithms.SearchResultGoLower
		}

		end := start + tileSize(tiles[i])
		end += paddingToBlockSize(end, blockSize)
		if offset >= end {
			return algorithms.SearchResultGoHigher
		}

		return algorithms.SearchResultFound
	})

	if result != algorithms.SearchResultFound {
		return nil, errorsx.Wrap(errorsx.ObjectNotFound, "offset", offset)
	}

	return tiles[idx], nil
}

func tileSize(tile *TileMetadata) int64 {
	var size int64
	for _, section := range tile.Sections {
		size += int64(section.Size)
	}
	return size
}

func (c *MapFileConn) Close() errorsx.Error {
	return c.fileHandlerPool.Close()
}

// OpenMapFilesInDir opens every map file in dirPath. Files that cannot be read are logged and skipped.
func OpenMapFilesInDir(logger *logpkg.Logger, fs gofs.Fs, dirPath string, fileHandlerLimit uint) ([]*MapFileConn, errorsx.Error) {
	dirEntries, err := fs.ReadDir(dirPath)
	if err != nil {
		return nil, errorsx.Wrap(err, "dirPath", dirPath)
	}

	var conns []*MapFileConn
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || filepath.Ext(dirEntry.Name()) != MapFileSuffix {
			continue
		}

		filePath := filepath.Join(dirPath, dirEntry.Name())
		conn, err := OpenMapFile(fs, filePath, fileHandlerLimit)
		if err != nil {
			logger.Warn("skipping map file %q: %s", filePath, err.Error())
			continue
		}

		logger.Info("opened map %q (%d tiles)", conn.Name(), len(conn.MapInfo().Tiles))
		conns = append(conns, conn)
	}

	return conns, nil
}
