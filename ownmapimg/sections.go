package ownmapimg

import (
	"github.com/jamesrr39/ownmap-compiler/ownmap"
)

const (
	SectionNameLBL  = "LBL"
	SectionNameRGN  = "RGN"
	SectionNameNET  = "NET"
	SectionNameNOD1 = "NOD1"
	SectionNameNOD2 = "NOD2"
)

// SectionNames lists the sections of a tile in the order they are stored
var SectionNames = []string{
	SectionNameLBL,
	SectionNameRGN,
	SectionNameNET,
	SectionNameNOD1,
	SectionNameNOD2,
}

type EncodedSection struct {
	Name string
	Data []byte
}

// EncodedTile is the finished output of one tile
type EncodedTile struct {
	Index        int
	Bounds       ownmap.Region
	FullBounds   ownmap.Region
	FeatureCount int
	RoadCount    int
	NodeCount    int
	LabelCount   int
	// UnresolvedArcs counts routing arcs to roads without a network record
	UnresolvedArcs int
	Sections       []*EncodedSection
	Subdivisions   []*Subdivision
}

func (t *EncodedTile) Section(name string) ([]byte, bool) {
	for _, section := range t.Sections {
		if section.Name == name {
			return section.Data, true
		}
	}
	return nil, false
}

func (t *EncodedTile) TotalSize() int {
	var size int
	for _, section := range t.Sections {
		size += len(section.Data)
	}
	return size
}
