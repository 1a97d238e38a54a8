package webservices

import (
	"encoding/hex"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
	"github.com/jamesrr39/ownmap-compiler/styling"
)

func NewMapsService(logger *logpkg.Logger, connSet *ownmapdal.MapConnSet, styleSet *styling.StyleSet) *MapsService {
	ws := &MapsService{logger, connSet, styleSet, chi.NewRouter()}
	ws.Get("/", ws.handleGet)
	ws.Get("/{mapName}", ws.handleGetMap)
	ws.Get("/{mapName}/tiles/{tileIndex}/sections/{sectionName}", ws.handleGetSection)

	return ws
}

type MapsService struct {
	logger   *logpkg.Logger
	connSet  *ownmapdal.MapConnSet
	styleSet *styling.StyleSet
	chi.Router
}

type stylesType struct {
	DefaultStyleID string   `json:"defaultStyleId"`
	StyleIDs       []string `json:"styleIds"`
}

type mapsType struct {
	Style stylesType           `json:"style"`
	Maps  []*ownmapdal.MapInfo `json:"maps"`
}

func (ws *MapsService) handleGet(w http.ResponseWriter, r *http.Request) {
	infos := []*ownmapdal.MapInfo{}

	for _, conn := range ws.connSet.GetConns() {
		infos = append(infos, conn.MapInfo())
	}

	// make deterministic
	sort.Slice(infos, func(a, b int) bool {
		return infos[a].MapName < infos[b].MapName
	})

	style := stylesType{
		ws.styleSet.GetDefaultStyle().GetStyleID(),
		ws.styleSet.GetAllStyleIDs(),
	}

	render.JSON(w, r, mapsType{style, infos})
}

func (ws *MapsService) getConn(w http.ResponseWriter, r *http.Request) (ownmapdal.CompiledMapConn, bool) {
	conn, err := ws.connSet.GetConnByName(chi.URLParam(r, "mapName"))
	if err != nil {
		writeLookupError(w, ws.logger, err)
		return nil, false
	}

	return conn, true
}

func (ws *MapsService) handleGetMap(w http.ResponseWriter, r *http.Request) {
	conn, ok := ws.getConn(w, r)
	if !ok {
		return
	}

	render.JSON(w, r, conn.MapInfo())
}

// handleGetSection writes the raw bytes of one section of a tile. With ?format=hex the bytes are written as a hex dump.
func (ws *MapsService) handleGetSection(w http.ResponseWriter, r *http.Request) {
	conn, ok := ws.getConn(w, r)
	if !ok {
		return
	}

	tileIndex, err := strconv.Atoi(chi.URLParam(r, "tileIndex"))
	if err != nil {
		errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	data, lookupErr := conn.SectionBytes(tileIndex, chi.URLParam(r, "sectionName"))
	if lookupErr != nil {
		writeLookupError(w, ws.logger, lookupErr)
		return
	}

	switch r.URL.Query().Get("format") {
	case "":
		w.Header().Set("Content-Type", "application/octet-stream")
		_, err = w.Write(data)
	case "hex":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, err = w.Write([]byte(hex.Dump(data)))
	default:
		errorsx.HTTPError(w, ws.logger, errorsx.Errorf("unknown format %q", r.URL.Query().Get("format")), http.StatusBadRequest)
		return
	}

	if err != nil {
		ws.logger.Warn("couldn't write section. Error: %q", err)
	}
}

func writeLookupError(w http.ResponseWriter, logger *logpkg.Logger, err errorsx.Error) {
	if errorsx.Cause(err) == errorsx.ObjectNotFound {
		errorsx.HTTPError(w, logger, err, http.StatusNotFound)
		return
	}

	errorsx.HTTPError(w, logger, err, http.StatusInternalServerError)
}
