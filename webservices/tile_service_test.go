package webservices

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"testing"

	"github.com/go-chi/chi"
	"github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/ownmap-compiler/ownmaprenderer"
	"github.com/jamesrr39/ownmap-compiler/styling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileService(t *testing.T) {
	traceBuffer := new(bytes.Buffer)

	router := chi.NewRouter()
	router.Use(tracing.Middleware(tracing.NewTracer(traceBuffer)))
	router.Mount("/tiles", NewTileService(newTestLogger(), newTestConnSet(), ownmaprenderer.NewLayoutRenderer(), styling.NewBuiltinStyleSet(), false))

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"whole world", "/tiles/raster/0/0/0", http.StatusOK},
		{"zoomed in on the map", "/tiles/raster/8/128/127", http.StatusOK},
		{"outline style", "/tiles/raster/8/128/127?styleId=" + styling.OutlineStyleID, http.StatusOK},
		{"unknown style", "/tiles/raster/0/0/0?styleId=mapbox", http.StatusBadRequest},
		{"x out of range", "/tiles/raster/1/2/0", http.StatusBadRequest},
		{"negative zoom level", "/tiles/raster/-1/0/0", http.StatusBadRequest},
		{"not a number", "/tiles/raster/z/0/0", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, http.MethodGet, tt.target)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

			img, err := png.Decode(rec.Body)
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, tileSizePixels, tileSizePixels), img.Bounds())
		})
	}

	assert.NotZero(t, traceBuffer.Len())
}

func Test_isValidTileXYZ(t *testing.T) {
	tests := []struct {
		name    string
		x, y, z int
		want    bool
	}{
		{"only tile at zoom 0", 0, 0, 0, true},
		{"last tile at zoom 2", 3, 3, 2, true},
		{"x past the edge", 4, 0, 2, false},
		{"negative y", 0, -1, 2, false},
		{"zoom too deep", 0, 0, maxTileZoomLevel + 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isValidTileXYZ(tt.x, tt.y, tt.z))
		})
	}
}

func TestXYZToBounds(t *testing.T) {
	bounds := XYZToBounds(0, 0, 0)
	assert.Equal(t, -180.0, bounds.MinLon)
	assert.Equal(t, 180.0, bounds.MaxLon)
	assert.InDelta(t, 85.0511, bounds.MaxLat, 0.0001)
	assert.InDelta(t, -85.0511, bounds.MinLat, 0.0001)

	x, y := Deg2num(59.91, 10.75, 10)
	lat, lon := Num2deg(x, y, 10)
	assert.InDelta(t, 59.91, lat, 0.3)
	assert.InDelta(t, 10.75, lon, 0.36)
}
