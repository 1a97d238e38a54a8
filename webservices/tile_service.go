package webservices

import (
	"image"
	"image/png"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/jamesrr39/ownmap-compiler/ownmap/maprenderer"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
	"github.com/jamesrr39/ownmap-compiler/styling"
	"github.com/jamesrr39/semaphore"
	"github.com/pkg/profile"
)

const (
	tileSizePixels       = 256
	maxConcurrentRenders = 4
)

// TileService serves slippy map tiles showing the layout of the served maps' tiles
type TileService struct {
	logger        *logpkg.Logger
	connSet       *ownmapdal.MapConnSet
	sema          *semaphore.Semaphore
	renderer      maprenderer.LayoutRenderer
	styleSet      *styling.StyleSet
	shouldProfile bool
	chi.Router
}

func NewTileService(logger *logpkg.Logger, connSet *ownmapdal.MapConnSet, renderer maprenderer.LayoutRenderer, styleSet *styling.StyleSet, shouldProfile bool) *TileService {
	ts := &TileService{logger, connSet, semaphore.NewSemaphore(maxConcurrentRenders), renderer, styleSet, shouldProfile, chi.NewRouter()}

	ts.Get("/raster/{z}/{x}/{y}", ts.handleGetTile)

	return ts
}

func (ts *TileService) getStyle(styleID string) (styling.Style, errorsx.Error) {
	if styleID == "" {
		return ts.styleSet.GetDefaultStyle(), nil
	}

	style := ts.styleSet.GetStyleByID(styleID)
	if style == nil {
		return nil, errorsx.Errorf("couldn't get requested style %q (style not loaded)", styleID)
	}

	return style, nil
}

func (ts *TileService) handleGetTile(w http.ResponseWriter, r *http.Request) {
	if ts.shouldProfile {
		defer profile.Start(profile.Quiet).Stop()
	}
	x := chi.URLParam(r, "x")
	y := chi.URLParam(r, "y")
	zStr := chi.URLParam(r, "z")
	styleID := r.URL.Query().Get("styleId")

	var err error
	ints, err := stringsToInts(x, y, zStr)
	if err != nil {
		errorsx.HTTPError(w, ts.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	if !isValidTileXYZ(ints[0], ints[1], ints[2]) {
		errorsx.HTTPError(w, ts.logger, errorsx.Errorf("tile %s/%s/%s does not exist", zStr, x, y), http.StatusBadRequest)
		return
	}

	style, err := ts.getStyle(styleID)
	if err != nil {
		errorsx.HTTPError(w, ts.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	size := image.Rect(0, 0, tileSizePixels, tileSizePixels)

	osmBounds := XYZToBounds(ints[0], ints[1], ints[2])
	ts.logger.Debug("serving x, y, z: %s %s %s. Bounds (NW, SE): [%f %f, %f %f]", x, y, zStr, osmBounds.MaxLat, osmBounds.MinLon, osmBounds.MinLat, osmBounds.MaxLon)

	var maps []*ownmapdal.MapInfo
	for _, conn := range ts.connSet.GetConns() {
		maps = append(maps, conn.MapInfo())
	}

	ts.sema.Add()
	defer ts.sema.Done()

	img, err := ts.renderer.RenderLayout(r.Context(), size, ownmap.RegionFromOSMBounds(osmBounds), maps, style)
	if err != nil {
		errorsx.HTTPError(w, ts.logger, errorsx.Wrap(err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	err = png.Encode(w, img)
	if err != nil {
		switch err.(type) {
		case *net.OpError:
			// broken pipe (request cancelled). Do nothing
		default:
			errorsx.HTTPError(w, ts.logger, errorsx.Wrap(err), http.StatusInternalServerError)
		}
		return
	}
}

func stringsToInts(s ...string) ([]int, error) {
	var ints []int
	for _, str := range s {
		i, err := strconv.Atoi(str)
		if err != nil {
			return nil, err
		}
		ints = append(ints, i)
	}

	return ints, nil
}
