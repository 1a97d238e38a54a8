package imgfile

import (
	"bytes"
	"os"
	"testing"

	"github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/gofs/mockfs"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/jamesrr39/ownmap-compiler/ownmap/testmocks"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
	"github.com/jamesrr39/ownmap-compiler/ownmapimg"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtract() *testmocks.MockPBFReader {
	node := func(id osm.NodeID, lat, lon int32, tags ...osm.Tag) *osm.Node {
		return &osm.Node{ID: id, Lat: ownmap.ToDegrees(lat), Lon: ownmap.ToDegrees(lon), Tags: tags}
	}
	way := func(id osm.WayID, tags osm.Tags, nodeIDs ...osm.NodeID) *osm.Way {
		var wayNodes osm.WayNodes
		for _, nodeID := range nodeIDs {
			wayNodes = append(wayNodes, osm.WayNode{ID: nodeID})
		}
		return &osm.Way{ID: id, Nodes: wayNodes, Tags: tags}
	}

	return testmocks.NewMockPBFReaderFromObjects(
		nil,
		node(1, 50, 50, osm.Tag{Key: "place", Value: "town"}, osm.Tag{Key: "name", Value: "Lillehammer"}),
		node(2, 0, 0),
		node(3, 0, 400),
		node(4, 400, 400),
		node(5, 100, 100),
		node(6, 100, 200),
		node(7, 200, 200),
		way(100, osm.Tags{{Key: "highway", Value: "secondary"}, {Key: "name", Value: "Storgata"}}, 2, 3, 4),
		way(101, osm.Tags{{Key: "building", Value: "yes"}}, 5, 6, 7, 5),
	)
}

func TestCompileMapFile(t *testing.T) {
	var err error

	fs := mockfs.NewMockFs()
	logger := logpkg.NewLogger(new(bytes.Buffer), logpkg.LogLevelDebug)
	metrics := ownmapdal.NewCompileMetrics()

	opts := ownmapdal.DefaultCompileOptions()
	opts.MapName = "63240002"
	opts.OutputDir = "/maps"
	opts.Workers = 1

	conn, err := CompileMapFile(logger, fs, tracing.NewTracer(new(bytes.Buffer)), metrics, opts, "/tmp/compile", newTestExtract(), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "63240002", conn.Name())

	mapInfo := conn.MapInfo()
	assert.Equal(t, "63240002", mapInfo.MapName)
	assert.Equal(t, 3, mapInfo.FeatureCount())
	require.NotEmpty(t, mapInfo.Tiles)

	rgnBytes, err := conn.SectionBytes(mapInfo.Tiles[0].Index, ownmapimg.SectionNameRGN)
	require.NoError(t, err)
	assert.NotEmpty(t, rgnBytes)

	_, err = fs.Stat("/maps/63240002.img")
	require.NoError(t, err)

	_, err = fs.Stat("/tmp/compile")
	assert.True(t, os.IsNotExist(err))
}

func TestCompileMapFile_invalidOptions(t *testing.T) {
	var err error

	fs := mockfs.NewMockFs()
	logger := logpkg.NewLogger(new(bytes.Buffer), logpkg.LogLevelDebug)

	opts := ownmapdal.DefaultCompileOptions()
	opts.MapName = "norway"
	opts.OutputDir = "/maps"

	_, err = CompileMapFile(logger, fs, tracing.NewTracer(new(bytes.Buffer)), ownmapdal.NewCompileMetrics(), opts, "/tmp/compile", newTestExtract(), nil)
	require.Error(t, err)

	_, err = fs.Stat("/maps/norway.img")
	assert.True(t, os.IsNotExist(err))
}
