package webservices

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/gofs/mockfs"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/jamesrr39/ownmap-compiler/ownmap/testmocks"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestExtract(file gofs.File) (ownmapdal.PBFReader, errorsx.Error) {
	node := func(id osm.NodeID, lat, lon int32) *osm.Node {
		return &osm.Node{ID: id, Lat: ownmap.ToDegrees(lat), Lon: ownmap.ToDegrees(lon)}
	}

	return testmocks.NewMockPBFReaderFromObjects(
		nil,
		node(1, 0, 0),
		node(2, 100, 100),
		&osm.Way{
			ID:    10,
			Nodes: osm.WayNodes{{ID: 1}, {ID: 2}},
			Tags:  osm.Tags{{Key: "highway", Value: "track"}},
		},
	), nil
}

func newTestAdminService(t *testing.T) (*AdminService, *ownmapdal.MapConnSet, *ownmapdal.CompileQueue) {
	t.Helper()

	fs := mockfs.NewMockFs()
	logger := newTestLogger()

	pathsConfig := ownmapdal.NewPathsConfigFromBaseDir("/ownmap")
	err := pathsConfig.EnsurePaths(fs)
	require.NoError(t, err)

	connSet := newTestConnSet()
	compileQueue := ownmapdal.NewCompileQueue(logger, fs, pathsConfig.RawDataFilesDir, openTestExtract)

	opts := ownmapdal.DefaultCompileOptions()
	opts.Workers = 1

	service := NewAdminService(
		logger,
		fs,
		pathsConfig,
		connSet,
		compileQueue,
		tracing.NewTracer(new(bytes.Buffer)),
		ownmapdal.NewCompileMetrics(),
		opts,
		"admin",
	)

	return service, connSet, compileQueue
}

func newUploadRequest(t *testing.T, mapName string) *http.Request {
	t.Helper()

	body := new(bytes.Buffer)
	multipartWriter := multipart.NewWriter(body)

	if mapName != "" {
		err := multipartWriter.WriteField("mapName", mapName)
		require.NoError(t, err)
	}

	fileWriter, err := multipartWriter.CreateFormFile("rawDataFile", "trondheim.pbf")
	require.NoError(t, err)
	_, err = fileWriter.Write([]byte("pbf data"))
	require.NoError(t, err)

	err = multipartWriter.Close()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/rawDataFile", body)
	req.Header.Set("Content-Type", multipartWriter.FormDataContentType())
	return req
}

func TestAdminService_handlePostRawDataFile(t *testing.T) {
	service, connSet, compileQueue := newTestAdminService(t)
	defer connSet.Close()

	rec := httptest.NewRecorder()
	service.ServeHTTP(rec, newUploadRequest(t, "63240002"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	compileQueue.Wait()

	items := compileQueue.GetItems()
	require.Len(t, items, 1)
	assert.Equal(t, ownmapdal.CompileStatusDone, items[0].Status, items[0].Error)
	assert.Equal(t, "/ownmap/raw_data_files/trondheim.pbf", items[0].RawDataFilePath)

	conn, err := connSet.GetConnByName("63240002")
	require.NoError(t, err)
	assert.Equal(t, 1, conn.MapInfo().FeatureCount())

	rec = serve(service, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "63240002")
	assert.Contains(t, rec.Body.String(), "trondheim.pbf")
	assert.Contains(t, rec.Body.String(), "Done")
}

func TestAdminService_handlePostRawDataFile_badRequests(t *testing.T) {
	tests := []struct {
		name       string
		mapName    string
		wantStatus int
	}{
		{"invalid map name", "trondheim", http.StatusBadRequest},
		{"map already loaded", "63240001", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _, compileQueue := newTestAdminService(t)

			rec := httptest.NewRecorder()
			service.ServeHTTP(rec, newUploadRequest(t, tt.mapName))
			assert.Equal(t, tt.wantStatus, rec.Code)

			assert.Empty(t, compileQueue.GetItems())
		})
	}
}
