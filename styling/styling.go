package styling

import (
	"image/color"
	"sort"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
)

const BUILTIN_STYLEID = "__ownmap_builtin"

type ItemStyle interface {
	GetZIndex() int
}

type WayStyle struct {
	FillColor      color.Color
	LineColor      color.Color
	LineDashPolicy []float64
	LineWidth      float64
	ZIndex         int
}

func (ws *WayStyle) GetZIndex() int {
	return ws.ZIndex
}

// Style decides how a layout of compiled maps is drawn
type Style interface {
	// GetTileStyle returns nil if the tile should not be drawn.
	// density is the feature count of the tile relative to the densest tile being drawn, from 0 to 1.
	GetTileStyle(tile *ownmapdal.TileInfo, density float64) *WayStyle
	GetMapBoundsStyle(mapInfo *ownmapdal.MapInfo) *WayStyle
	GetBackground() color.Color
	GetStyleID() string
}

type StyleSet struct {
	stylesMap      map[string]Style // map[Style ID]Style
	defaultStyleID string
}

func NewStyleSet(styles []Style, defaultStyleID string) (*StyleSet, errorsx.Error) {
	styleSet := &StyleSet{
		stylesMap:      make(map[string]Style),
		defaultStyleID: defaultStyleID,
	}

	defaultIDFound := false

	for _, style := range styles {
		styleID := style.GetStyleID()
		_, ok := styleSet.stylesMap[styleID]
		if ok {
			return nil, errorsx.Errorf("duplicate style ID found: %q", styleID)
		}

		styleSet.stylesMap[styleID] = style

		if defaultStyleID == styleID {
			defaultIDFound = true
		}
	}

	if !defaultIDFound {
		return nil, errorsx.Errorf("default ID %q not found in any supplied styles", defaultStyleID)
	}

	return styleSet, nil
}

// NewBuiltinStyleSet contains the density style (default) and the outline style
func NewBuiltinStyleSet() *StyleSet {
	styleSet, err := NewStyleSet([]Style{&DensityStyle{}, &OutlineStyle{}}, BUILTIN_STYLEID)
	if err != nil {
		panic(err)
	}
	return styleSet
}

// GetStyleByID returns nil if there is no style with the given ID
func (s *StyleSet) GetStyleByID(id string) Style {
	return s.stylesMap[id]
}

func (s *StyleSet) GetDefaultStyle() Style {
	return s.stylesMap[s.defaultStyleID]
}

func (s *StyleSet) GetAllStyleIDs() []string {
	var styleIDs []string

	for id := range s.stylesMap {
		styleIDs = append(styleIDs, id)
	}

	sort.Strings(styleIDs)

	return styleIDs
}
