package ownmapimg

import (
	"github.com/jamesrr39/goutil/errorsx"
)

// RoadDefs holds the road records of one tile, in creation order
type RoadDefs struct {
	defs []*RoadDef
	byID map[int64]*RoadDef
}

func NewRoadDefs() *RoadDefs {
	return &RoadDefs{byID: make(map[int64]*RoadDef)}
}

func (r *RoadDefs) Add(rd *RoadDef) errorsx.Error {
	_, ok := r.byID[rd.ID()]
	if ok {
		return errorsx.Errorf("%s has already been added", rd)
	}

	r.defs = append(r.defs, rd)
	r.byID[rd.ID()] = rd
	return nil
}

func (r *RoadDefs) Get(id int64) (*RoadDef, errorsx.Error) {
	rd, ok := r.byID[id]
	if !ok {
		return nil, errorsx.Wrap(errorsx.ObjectNotFound, "roadID", id)
	}
	return rd, nil
}

func (r *RoadDefs) All() []*RoadDef {
	return r.defs
}

func (r *RoadDefs) Len() int {
	return len(r.defs)
}

// netOffsetResolver resolves to the road's network offset. Roads without one are left unresolved.
func (rd *RoadDef) netOffsetResolver() PatchResolver {
	return func() (uint32, bool, errorsx.Error) {
		offset, ok := rd.OffsetNet1()
		if !ok {
			return 0, false, nil
		}
		if offset > max3ByteValue {
			return 0, false, errorsx.Errorf("network offset 0x%x of %s does not fit in 3 bytes", offset, rd)
		}
		return uint32(offset), true, nil
	}
}
