package webservices

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
	"github.com/paulmach/osm"
)

// TilesForBoundsService finds the tiles, over all served maps, that cover a region
type TilesForBoundsService struct {
	logger  *logpkg.Logger
	connSet *ownmapdal.MapConnSet
	chi.Router
}

func NewTilesForBoundsService(logger *logpkg.Logger, connSet *ownmapdal.MapConnSet) *TilesForBoundsService {
	router := chi.NewRouter()
	service := &TilesForBoundsService{logger, connSet, router}

	router.Get("/", service.handleGet)
	return service
}

type chosenTileType struct {
	MapName    string              `json:"mapName"`
	MatchLevel string              `json:"matchLevel"`
	Tile       *ownmapdal.TileInfo `json:"tile"`
}

type getTilesForBoundsResponseType struct {
	Bounds ownmap.Region     `json:"bounds"`
	Tiles  []*chosenTileType `json:"tiles"`
}

func (s *TilesForBoundsService) handleGet(w http.ResponseWriter, r *http.Request) {
	osmBounds, err := parseBoundsString(r.URL.Query().Get("bounds"))
	if err != nil {
		errorsx.HTTPError(w, s.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	bounds := ownmap.RegionFromOSMBounds(*osmBounds)
	response := getTilesForBoundsResponseType{
		Bounds: bounds,
		Tiles:  []*chosenTileType{},
	}

	chosenTiles, err := s.connSet.GetTilesForBounds(bounds)
	if err != nil {
		if errorsx.Cause(err) == ownmapdal.ErrNoDataAvailable {
			render.JSON(w, r, response)
			return
		}
		errorsx.HTTPError(w, s.logger, errorsx.Wrap(err), http.StatusInternalServerError)
		return
	}

	for _, chosenTile := range chosenTiles {
		response.Tiles = append(response.Tiles, &chosenTileType{
			MapName:    chosenTile.Conn.Name(),
			MatchLevel: chosenTile.MatchLevel.String(),
			Tile:       chosenTile.Tile,
		})
	}

	render.JSON(w, r, response)
}

// (S,W,N,E)
// (52.533251,-1.394072,52.800548,-0.898208)
func parseBoundsString(boundsString string) (*osm.Bounds, errorsx.Error) {
	bounds := &osm.Bounds{}

	withoutBrackets := strings.TrimPrefix(strings.TrimSuffix(boundsString, ")"), "(")
	fragments := strings.Split(withoutBrackets, ",")
	if len(fragments) != 4 {
		return nil, errorsx.Errorf("expected 4 bounds, but got %d. A bounds URL parameter should be in the format 'bounds=(S,W,N,E)'", len(fragments))
	}

	for index, fragment := range fragments {
		trimmedFragment := strings.TrimSpace(fragment)
		coordinate, err := strconv.ParseFloat(trimmedFragment, 64)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}

		switch index {
		case 0:
			bounds.MinLat = coordinate
		case 1:
			bounds.MinLon = coordinate
		case 2:
			bounds.MaxLat = coordinate
		case 3:
			bounds.MaxLon = coordinate
		}
	}

	if bounds.MinLat > bounds.MaxLat || bounds.MinLon > bounds.MaxLon {
		return nil, errorsx.Errorf("south and west must not be greater than north and east, got %q", boundsString)
	}

	return bounds, nil
}
