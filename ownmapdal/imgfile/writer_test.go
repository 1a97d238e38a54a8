package imgfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/google/hilbert"
	"github.com/google/uuid"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/gofs/mockfs"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
	"github.com/jamesrr39/ownmap-compiler/ownmapimg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWorkDir     = "/work/63240001"
	testOutFilePath = "/maps/63240001.img"
)

// openFilesCountingFs counts the files opened through it that have not been closed yet
type openFilesCountingFs struct {
	gofs.Fs
	open    int
	maxOpen int
}

type openFilesCountingFile struct {
	gofs.File
	fs *openFilesCountingFs
}

func (f *openFilesCountingFile) Close() error {
	f.fs.open--
	return f.File.Close()
}

func (fs *openFilesCountingFs) track(file gofs.File, err error) (gofs.File, error) {
	if err != nil {
		return nil, err
	}
	fs.open++
	if fs.open > fs.maxOpen {
		fs.maxOpen = fs.open
	}
	return &openFilesCountingFile{file, fs}, nil
}

func (fs *openFilesCountingFs) Open(path string) (gofs.File, error) {
	return fs.track(fs.Fs.Open(path))
}

func (fs *openFilesCountingFs) Create(path string) (gofs.File, error) {
	return fs.track(fs.Fs.Create(path))
}

func newTestEncodedTile(index int, bounds ownmap.Region, sectionData map[string]string) *ownmapimg.EncodedTile {
	tile := &ownmapimg.EncodedTile{
		Index:        index,
		Bounds:       bounds,
		FullBounds:   bounds,
		FeatureCount: 10 + index,
		RoadCount:    index,
		NodeCount:    2,
		LabelCount:   3,
	}
	for _, name := range ownmapimg.SectionNames {
		tile.Sections = append(tile.Sections, &ownmapimg.EncodedSection{
			Name: name,
			Data: []byte(sectionData[name]),
		})
	}
	return tile
}

func newTestWriter(t *testing.T, fs gofs.Fs, keepWorkDir bool) *Writer {
	t.Helper()

	logger := logpkg.NewLogger(new(bytes.Buffer), logpkg.LogLevelDebug)

	err := fs.MkdirAll("/maps", 0700)
	require.NoError(t, err)

	writer, err := NewWriter(logger, fs, testWorkDir, testOutFilePath, WriterOptions{
		MapName:          "63240001",
		Description:      "test map",
		BlockSize:        16,
		KeepWorkDir:      keepWorkDir,
		FileHandlerLimit: 2,
	})
	require.NoError(t, err)

	writer.nowFunc = func() time.Time {
		return time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	}

	return writer
}

func TestWriter_Commit(t *testing.T) {
	fs := mockfs.NewMockFs()
	writer := newTestWriter(t, fs, false)

	var err error
	tiles := []*ownmapimg.EncodedTile{
		newTestEncodedTile(0, ownmap.Region{MinLat: -2000, MinLon: -2000, MaxLat: -1000, MaxLon: -1000}, map[string]string{
			ownmapimg.SectionNameLBL: "\x00LABEL\x00",
			ownmapimg.SectionNameRGN: "rgn-data-0",
			ownmapimg.SectionNameNET: "net",
		}),
		newTestEncodedTile(1, ownmap.Region{MinLat: 3000000, MinLon: 3000000, MaxLat: 3001000, MaxLon: 3001000}, map[string]string{
			ownmapimg.SectionNameLBL:  "\x00",
			ownmapimg.SectionNameRGN:  "rgn-data-1-longer-than-a-block",
			ownmapimg.SectionNameNET:  "net-1",
			ownmapimg.SectionNameNOD1: "nod1",
			ownmapimg.SectionNameNOD2: "nod2",
		}),
		newTestEncodedTile(2, ownmap.Region{MinLat: -3001000, MinLon: 3000000, MaxLat: -3000000, MaxLon: 3001000}, map[string]string{
			ownmapimg.SectionNameRGN: "r",
		}),
	}

	for _, tile := range tiles {
		err = writer.ImportTile(tile)
		require.NoError(t, err)
	}

	replicationTime := time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC)
	bounds := ownmap.Region{MinLat: -3001000, MinLon: -2000, MaxLat: 3001000, MaxLon: 3001000}

	conn, err := writer.Commit(ownmapdal.SourceInfo{
		Bounds:               bounds,
		ReplicationTimestamp: replicationTime,
	})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "63240001", conn.Name())

	mapInfo := conn.MapInfo()
	assert.Equal(t, uint32(FormatVersion), mapInfo.Version)
	assert.Equal(t, "63240001", mapInfo.MapName)
	assert.Equal(t, "test map", mapInfo.Description)
	assert.Equal(t, bounds, mapInfo.Bounds)
	assert.Equal(t, replicationTime, mapInfo.ReplicationTimestamp)
	assert.Equal(t, time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC), mapInfo.BuildTime)
	assert.Equal(t, 33, mapInfo.FeatureCount())
	require.Len(t, mapInfo.Tiles, 3)

	_, err = uuid.Parse(mapInfo.BuildID)
	assert.NoError(t, err)

	for _, tile := range tiles {
		for _, section := range tile.Sections {
			data, err := conn.SectionBytes(tile.Index, section.Name)
			require.NoError(t, err)
			assert.Equal(t, section.Data, data, "tile %d, section %s", tile.Index, section.Name)
		}
	}

	header := conn.(*MapFileConn).Header()
	assert.Equal(t, uint32(16), header.BlockSize)

	h, err := hilbert.NewHilbert(1 << hilbertGridBits)
	require.NoError(t, err)

	previousCurveIndex := -1
	var previousDataOffset uint64
	for i, tile := range header.Tiles {
		assert.Equal(t, uint64(0), tile.DataOffset%16, "tile %d is not block aligned", tile.Index)
		if i > 0 {
			assert.True(t, tile.DataOffset > previousDataOffset)
		}
		previousDataOffset = tile.DataOffset

		curveIndex, err := hilbertIndex(h, tile.Bounds.toRegion().Centre())
		require.NoError(t, err)
		assert.True(t, curveIndex >= previousCurveIndex, "tiles are not in curve order")
		previousCurveIndex = curveIndex

		// sections of a tile are contiguous
		offset := tile.DataOffset
		for _, section := range tile.Sections {
			assert.Equal(t, offset, section.Offset)
			offset += section.Size
		}
	}

	_, err = fs.Stat(testWorkDir)
	assert.True(t, os.IsNotExist(err))

	fileBytes, err := fs.ReadFile(testOutFilePath)
	require.NoError(t, err)
	headerSize := binary.LittleEndian.Uint32(fileBytes[:HeaderSizeContainerSize])
	assert.Equal(t, uint32(proto.Size(header)), headerSize)
	assert.Equal(t, 0, (len(fileBytes)-HeaderSizeContainerSize-int(headerSize))%16)
}

func TestWriter_Commit_manyTiles(t *testing.T) {
	var err error

	fs := &openFilesCountingFs{Fs: mockfs.NewMockFs()}
	writer := newTestWriter(t, fs, false)

	const tileCount = 60
	for i := 0; i < tileCount; i++ {
		minLat := int32(i/10) * 1000
		minLon := int32(i%10) * 1000
		err = writer.ImportTile(newTestEncodedTile(i, ownmap.Region{MinLat: minLat, MinLon: minLon, MaxLat: minLat + 1000, MaxLon: minLon + 1000}, map[string]string{
			ownmapimg.SectionNameRGN: fmt.Sprintf("rgn-%d", i),
		}))
		require.NoError(t, err)
	}

	conn, err := writer.Commit(ownmapdal.SourceInfo{})
	require.NoError(t, err)

	// the final build file, one staged tile, and the handlers of the returned conn
	assert.LessOrEqual(t, fs.maxOpen, 2+int(writer.opts.FileHandlerLimit))
	assert.Len(t, conn.MapInfo().Tiles, tileCount)

	data, err := conn.SectionBytes(42, ownmapimg.SectionNameRGN)
	require.NoError(t, err)
	assert.Equal(t, "rgn-42", string(data))

	err = conn.Close()
	require.NoError(t, err)
	assert.Equal(t, 0, fs.open)
}

func TestWriter_Commit_keepWorkDir(t *testing.T) {
	fs := mockfs.NewMockFs()
	writer := newTestWriter(t, fs, true)

	var err error
	err = writer.ImportTile(newTestEncodedTile(0, ownmap.Region{MaxLat: 10, MaxLon: 10}, map[string]string{
		ownmapimg.SectionNameRGN: "rgn",
	}))
	require.NoError(t, err)

	conn, err := writer.Commit(ownmapdal.SourceInfo{})
	require.NoError(t, err)
	defer conn.Close()

	_, err = fs.Stat(testWorkDir + "/tile_000000.sections")
	assert.NoError(t, err)
}

func TestWriter_Commit_noTiles(t *testing.T) {
	fs := mockfs.NewMockFs()
	writer := newTestWriter(t, fs, false)

	var err error
	_, err = writer.Commit(ownmapdal.SourceInfo{})
	require.Error(t, err)

	_, err = fs.Stat(testOutFilePath)
	assert.True(t, os.IsNotExist(err))
}

func TestWriter_ImportTile_missingSection(t *testing.T) {
	fs := mockfs.NewMockFs()
	writer := newTestWriter(t, fs, false)

	tile := newTestEncodedTile(0, ownmap.Region{MaxLat: 10, MaxLon: 10}, nil)
	tile.Sections = tile.Sections[:2]

	err := writer.ImportTile(tile)
	assert.Error(t, err)
}

func TestWriter_Rollback(t *testing.T) {
	fs := mockfs.NewMockFs()
	writer := newTestWriter(t, fs, false)

	var err error
	err = writer.ImportTile(newTestEncodedTile(0, ownmap.Region{MaxLat: 10, MaxLon: 10}, nil))
	require.NoError(t, err)

	err = writer.Rollback()
	require.NoError(t, err)

	_, err = fs.Stat(testWorkDir)
	assert.True(t, os.IsNotExist(err))
}

func TestNewWriter_badOptions(t *testing.T) {
	logger := logpkg.NewLogger(new(bytes.Buffer), logpkg.LogLevelDebug)

	tests := []struct {
		name string
		opts WriterOptions
	}{
		{"zero block size", WriterOptions{BlockSize: 0, FileHandlerLimit: 1}},
		{"no file handlers", WriterOptions{BlockSize: 512, FileHandlerLimit: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWriter(logger, mockfs.NewMockFs(), testWorkDir, testOutFilePath, tt.opts)
			assert.Error(t, err)
		})
	}
}

func Test_paddingToBlockSize(t *testing.T) {
	tests := []struct {
		offset, blockSize, want int64
	}{
		{0, 512, 0},
		{1, 512, 511},
		{511, 512, 1},
		{512, 512, 0},
		{513, 512, 511},
		{7, 1, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, paddingToBlockSize(tt.offset, tt.blockSize), "offset %d, block size %d", tt.offset, tt.blockSize)
	}
}

func TestMapFileConn_TileAtOffset(t *testing.T) {
	fs := mockfs.NewMockFs()
	writer := newTestWriter(t, fs, false)

	for i := 0; i < 4; i++ {
		err := writer.ImportTile(newTestEncodedTile(i, ownmap.Region{MinLat: int32(i) * 100000, MaxLat: int32(i)*100000 + 10, MaxLon: 10}, map[string]string{
			ownmapimg.SectionNameRGN: "twenty bytes of data",
		}))
		require.NoError(t, err)
	}

	conn, err := writer.Commit(ownmapdal.SourceInfo{})
	require.NoError(t, err)
	defer conn.Close()

	mapFileConn := conn.(*MapFileConn)
	for _, tile := range mapFileConn.Header().Tiles {
		// each tile is 20 bytes padded to 32
		for _, offset := range []uint64{tile.DataOffset, tile.DataOffset + 19, tile.DataOffset + 31} {
			found, err := mapFileConn.TileAtOffset(int64(offset))
			require.NoError(t, err)
			assert.Equal(t, tile.Index, found.Index)
		}
	}

	_, err = mapFileConn.TileAtOffset(4 * 32)
	assert.Equal(t, errorsx.ObjectNotFound, errorsx.Cause(err))
}

func TestNewMapFileConn_badVersion(t *testing.T) {
	headerBytes, err := proto.Marshal(&Header{Version: FormatVersion + 1})
	require.NoError(t, err)

	fileBytes := make([]byte, HeaderSizeContainerSize)
	binary.LittleEndian.PutUint32(fileBytes, uint32(len(headerBytes)))
	fileBytes = append(fileBytes, headerBytes...)

	fs := mockfs.NewMockFs()
	err = fs.WriteFile("/maps/bad.img", fileBytes, 0600)
	require.NoError(t, err)

	_, err = OpenMapFile(fs, "/maps/bad.img", 1)
	assert.Error(t, err)
}

func TestNewMapFileConn_truncatedHeader(t *testing.T) {
	fs := mockfs.NewMockFs()
	err := fs.WriteFile("/maps/truncated.img", []byte{0xff, 0x00, 0x00, 0x00, 0x08}, 0600)
	require.NoError(t, err)

	_, err = OpenMapFile(fs, "/maps/truncated.img", 1)
	assert.Error(t, err)
}

func TestOpenMapFile_badFileClosesHandlers(t *testing.T) {
	badVersionHeader, err := proto.Marshal(&Header{Version: FormatVersion + 1})
	require.NoError(t, err)

	badVersionFile := make([]byte, HeaderSizeContainerSize)
	binary.LittleEndian.PutUint32(badVersionFile, uint32(len(badVersionHeader)))
	badVersionFile = append(badVersionFile, badVersionHeader...)

	tests := []struct {
		name     string
		fileData []byte
	}{
		{"empty file", nil},
		{"truncated header", []byte{0xff, 0x00, 0x00, 0x00, 0x08}},
		{"header is not a proto message", []byte{0x03, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff}},
		{"unsupported version", badVersionFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &openFilesCountingFs{Fs: mockfs.NewMockFs()}
			err := fs.WriteFile("/maps/bad.img", tt.fileData, 0600)
			require.NoError(t, err)

			_, err = OpenMapFile(fs, "/maps/bad.img", 3)
			require.Error(t, err)

			assert.Equal(t, 3, fs.maxOpen)
			assert.Equal(t, 0, fs.open)
		})
	}
}

func TestMapFileConn_SectionBytes_notFound(t *testing.T) {
	fs := mockfs.NewMockFs()
	writer := newTestWriter(t, fs, false)

	err := writer.ImportTile(newTestEncodedTile(0, ownmap.Region{MaxLat: 10, MaxLon: 10}, nil))
	require.NoError(t, err)

	conn, err := writer.Commit(ownmapdal.SourceInfo{})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.SectionBytes(5, ownmapimg.SectionNameRGN)
	assert.Equal(t, errorsx.ObjectNotFound, errorsx.Cause(err))

	_, err = conn.SectionBytes(0, "TRE")
	assert.Equal(t, errorsx.ObjectNotFound, errorsx.Cause(err))

	data, err := conn.SectionBytes(0, ownmapimg.SectionNameNOD1)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestOpenMapFilesInDir(t *testing.T) {
	var err error

	fs := mockfs.NewMockFs()
	writer := newTestWriter(t, fs, false)

	err = writer.ImportTile(newTestEncodedTile(0, ownmap.Region{MaxLat: 10, MaxLon: 10}, map[string]string{
		ownmapimg.SectionNameRGN: "rgn",
	}))
	require.NoError(t, err)

	conn, err := writer.Commit(ownmapdal.SourceInfo{})
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	err = fs.WriteFile("/maps/notes.txt", []byte("not a map"), 0644)
	require.NoError(t, err)
	err = fs.WriteFile("/maps/broken.img", []byte{1, 2}, 0644)
	require.NoError(t, err)

	logBuffer := new(bytes.Buffer)
	logger := logpkg.NewLogger(logBuffer, logpkg.LogLevelDebug)

	conns, err := OpenMapFilesInDir(logger, fs, "/maps", 1)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	defer conns[0].Close()

	assert.Equal(t, "63240001", conns[0].Name())
	assert.Contains(t, logBuffer.String(), "broken.img")
}
