package ownmapimg

import (
	"fmt"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
)

const (
	netFlagUnknown1   byte = 0x04
	netFlagHasNodInfo byte = 0x40

	// MaxLabels is the number of label slots a road has in the network section
	MaxLabels         = 4
	DefaultLabelLimit = 1

	defaultRoadLength   uint32 = 300
	labelTerminatorBit  uint32 = 0x800000
	levelTerminatorBit  byte   = 0x80
	maxLevelRefCount           = 0x7f
	maxRgnSlotPosition         = 0x3fffff
	rgnSlotFlagMask     uint32 = 0xc00000
	shortNodOffsetLimit        = 0x7fff

	nodOffsetShort byte = 1
	nodOffsetLong  byte = 2

	defaultNod2RoadClass byte = 0x4d
	nod2BitCount              = 3
)

// Table A bits
const (
	TabAToll    byte = 0x80
	TabAClass   byte = 0x70
	TabAOneWay  byte = 0x08
	TabASpeed   byte = 0x07
	TabANoBike  byte = 0x20
	TabANoFoot  byte = 0x10
	tabAClassShift   = 4
)

type SlotState int

const (
	SlotPending SlotState = iota
	SlotPatched
	SlotAbandoned
)

func (s SlotState) String() string {
	switch s {
	case SlotPending:
		return "pending"
	case SlotPatched:
		return "patched"
	case SlotAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("unknown slot state (%d)", int(s))
	}
}

// OffsetSlot is a 3-byte field in the geometry section that will hold the road's network section offset.
// FlagBits are ORed into the value and are never part of the offset.
type OffsetSlot struct {
	Position int
	FlagBits uint32
	State    SlotState
}

// RoadIndex is one drawn representation of a road
type RoadIndex struct {
	ZoomLevel ownmap.ZoomLevel
	Polyline  *Polyline
}

// RoadDef is the per-tile record of a road. It links the road's polylines in the geometry section,
// its network section record and its routing records.
type RoadDef struct {
	logger     *logpkg.Logger
	id         int64
	name       string
	labelLimit int

	labels      []*Label
	netFlags    byte
	roadLength  uint32
	roadIndexes []*RoadIndex
	slots       []*OffsetSlot
	oneWay      bool

	node    RouteNodeID
	hasNode bool

	tabAInfo         byte
	tabARestrictions byte
	nod2RoadClass    byte

	offsetNet1    int
	offsetNet1Set bool
	offsetNod2    int
	offsetNod2Set bool
}

// NewRoadDef creates the record for road. Labels beyond labelLimit are dropped with a warning.
func NewRoadDef(logger *logpkg.Logger, road *ownmap.Road, labelLimit int) (*RoadDef, errorsx.Error) {
	if labelLimit < 0 || labelLimit > MaxLabels {
		return nil, errorsx.Errorf("label limit must be between 0 and %d, but was %d", MaxLabels, labelLimit)
	}

	if road.Class > ownmap.MaxRoadClass || road.Speed > ownmap.MaxRoadSpeed {
		return nil, errorsx.Errorf("road class (%d) or speed (%d) out of range for road %d", road.Class, road.Speed, road.ID)
	}

	roadLength := defaultRoadLength
	if road.LengthMetres != 0 {
		roadLength = road.LengthMetres
	}

	return &RoadDef{
		logger:           logger,
		id:               road.ID,
		name:             road.Name,
		labelLimit:       labelLimit,
		netFlags:         netFlagUnknown1,
		roadLength:       roadLength,
		oneWay:           road.OneWay,
		tabAInfo:         tabAInfoForRoad(road),
		tabARestrictions: tabARestrictionsForRoad(road),
		nod2RoadClass:    defaultNod2RoadClass,
	}, nil
}

func tabAInfoForRoad(road *ownmap.Road) byte {
	info := byte(road.Class)<<tabAClassShift&TabAClass | byte(road.Speed)&TabASpeed
	if road.Toll {
		info |= TabAToll
	}
	if road.OneWay {
		info |= TabAOneWay
	}
	return info
}

func tabARestrictionsForRoad(road *ownmap.Road) byte {
	var restrictions byte
	if road.NoBike {
		restrictions |= TabANoBike
	}
	if road.NoFoot {
		restrictions |= TabANoFoot
	}
	return restrictions
}

func (rd *RoadDef) ID() int64 {
	return rd.id
}

func (rd *RoadDef) Name() string {
	return rd.name
}

func (rd *RoadDef) String() string {
	return fmt.Sprintf("RoadDef(%s, %d)", rd.name, rd.id)
}

func (rd *RoadDef) IsOneWay() bool {
	return rd.oneWay
}

func (rd *RoadDef) Labels() []*Label {
	return rd.labels
}

// AddLabel adds a label, unless the label limit has been reached, in which case it is discarded with a warning
func (rd *RoadDef) AddLabel(label *Label) {
	if len(rd.labels) >= rd.labelLimit {
		rd.logger.Warn("discarding extra label %q for %s: only %d label(s) allowed", label.Text(), rd, rd.labelLimit)
		return
	}

	rd.labels = append(rd.labels, label)
}

// AddPolylineRef records that polyline draws this road at zoom level
func (rd *RoadDef) AddPolylineRef(level ownmap.ZoomLevel, polyline *Polyline) {
	rd.roadIndexes = append(rd.roadIndexes, &RoadIndex{level, polyline})
}

func (rd *RoadDef) RoadIndexes() []*RoadIndex {
	return rd.roadIndexes
}

// AddOffsetTarget reserves the 3 bytes at the current position of rgn for the road's network offset.
// orMask holds the flag bits of the field and must only use the top 2 bits.
func (rd *RoadDef) AddOffsetTarget(rgn *SectionWriter, orMask uint32) errorsx.Error {
	position := rgn.Position()
	if position > maxRgnSlotPosition {
		return errorsx.Errorf("geometry section position 0x%x is too large for a back-reference slot of %s", position, rd)
	}

	if orMask&^rgnSlotFlagMask != 0 {
		return errorsx.Errorf("or-mask 0x%x uses offset bits for %s", orMask, rd)
	}

	rd.slots = append(rd.slots, &OffsetSlot{position, orMask, SlotPending})
	return nil
}

func (rd *RoadDef) Slots() []*OffsetSlot {
	return rd.slots
}

// PatchedSlots returns only the slots that hold the road's network offset
func (rd *RoadDef) PatchedSlots() []*OffsetSlot {
	var patched []*OffsetSlot
	for _, slot := range rd.slots {
		if slot.State == SlotPatched {
			patched = append(patched, slot)
		}
	}
	return patched
}

// SetNode links the road to its routing node
func (rd *RoadDef) SetNode(id RouteNodeID) {
	rd.node = id
	rd.hasNode = true
	rd.netFlags |= netFlagHasNodInfo
}

func (rd *RoadDef) Node() (RouteNodeID, bool) {
	return rd.node, rd.hasNode
}

func (rd *RoadDef) HasNodInfo() bool {
	return rd.netFlags&netFlagHasNodInfo != 0
}

func (rd *RoadDef) TabAInfo() byte {
	return rd.tabAInfo
}

func (rd *RoadDef) TabARestrictions() byte {
	return rd.tabARestrictions
}

func (rd *RoadDef) OffsetNet1() (int, bool) {
	return rd.offsetNet1, rd.offsetNet1Set
}

func (rd *RoadDef) setOffsetNet1(offset int) errorsx.Error {
	if rd.offsetNet1Set {
		return errorsx.Errorf("network offset of %s already set to 0x%x", rd, rd.offsetNet1)
	}
	rd.offsetNet1 = offset
	rd.offsetNet1Set = true
	return nil
}

func (rd *RoadDef) OffsetNod2() (int, bool) {
	return rd.offsetNod2, rd.offsetNod2Set
}

func (rd *RoadDef) setOffsetNod2(offset int) errorsx.Error {
	if rd.offsetNod2Set {
		return errorsx.Errorf("routing offset of %s already set to 0x%x", rd, rd.offsetNod2)
	}
	rd.offsetNod2 = offset
	rd.offsetNod2Set = true
	return nil
}

func (rd *RoadDef) maxZoomLevel() ownmap.ZoomLevel {
	var max ownmap.ZoomLevel
	for _, ri := range rd.roadIndexes {
		if ri.ZoomLevel > max {
			max = ri.ZoomLevel
		}
	}
	return max
}

// WriteNet1 writes the road's network section record.
// Roads without labels are not written, and their back-reference slots are abandoned.
func (rd *RoadDef) WriteNet1(net *SectionWriter) errorsx.Error {
	if len(rd.labels) == 0 {
		for _, slot := range rd.slots {
			slot.State = SlotAbandoned
		}
		return nil
	}

	if len(rd.roadIndexes) == 0 {
		return errorsx.Errorf("%s has no polylines", rd)
	}

	if rd.HasNodInfo() && !rd.offsetNod2Set {
		return errorsx.Errorf("%s has routing info, but its routing record has not been written", rd)
	}

	net.SeekToEnd()
	err := rd.setOffsetNet1(net.Position())
	if err != nil {
		return errorsx.Wrap(err)
	}

	for i, label := range rd.labels {
		offset := label.Offset()
		if offset > maxLabelOffset {
			return errorsx.Errorf("label offset 0x%x of %s is too large", offset, rd)
		}
		if i == len(rd.labels)-1 {
			offset |= labelTerminatorBit
		}
		err = net.Put3(offset)
		if err != nil {
			return errorsx.Wrap(err)
		}
	}

	net.Put(rd.netFlags)
	err = net.Put3(rd.roadLength)
	if err != nil {
		return errorsx.Wrap(err, "road", rd.String())
	}

	maxLevel := rd.maxZoomLevel()
	refsByLevel := make([][]*RoadIndex, int(maxLevel)+1)
	for _, ri := range rd.roadIndexes {
		refsByLevel[ri.ZoomLevel] = append(refsByLevel[ri.ZoomLevel], ri)
	}

	for level, refs := range refsByLevel {
		if len(refs) > maxLevelRefCount {
			return errorsx.Errorf("%s has %d polylines at level %d, the maximum is %d", rd, len(refs), level, maxLevelRefCount)
		}
		count := byte(len(refs))
		if level == int(maxLevel) {
			count |= levelTerminatorBit
		}
		net.Put(count)
	}

	for _, refs := range refsByLevel {
		for _, ri := range refs {
			net.Put(ri.Polyline.Number())
			net.PutChar(ri.Polyline.Subdivision().Number())
		}
	}

	if rd.HasNodInfo() {
		if rd.offsetNod2 < shortNodOffsetLimit {
			net.Put(nodOffsetShort)
			net.PutChar(uint16(rd.offsetNod2))
		} else {
			net.Put(nodOffsetLong)
			err = net.Put3(uint32(rd.offsetNod2))
			if err != nil {
				return errorsx.Wrap(err, "road", rd.String())
			}
		}
	}

	return nil
}

// WriteRgnOffsets writes the network offset into every pending back-reference slot,
// then returns the cursor to the end of the section.
func (rd *RoadDef) WriteRgnOffsets(rgn *SectionWriter) errorsx.Error {
	if !rd.offsetNet1Set {
		for _, slot := range rd.slots {
			if slot.State == SlotPending {
				return errorsx.Errorf("%s has pending back-reference slots, but no network offset", rd)
			}
		}
		return nil
	}

	if uint32(rd.offsetNet1)&rgnSlotFlagMask != 0 {
		return errorsx.Errorf("network offset 0x%x of %s overlaps the slot flag bits", rd.offsetNet1, rd)
	}

	defer rgn.SeekToEnd()

	for _, slot := range rd.slots {
		if slot.State != SlotPending {
			continue
		}

		err := rgn.SetPosition(slot.Position)
		if err != nil {
			return errorsx.Wrap(err, "road", rd.String())
		}

		err = rgn.Put3(uint32(rd.offsetNet1) | slot.FlagBits)
		if err != nil {
			return errorsx.Wrap(err, "road", rd.String())
		}

		slot.State = SlotPatched
	}

	return nil
}

// WriteNod2 writes the road's routing record: class(1) node offset(3) bit count(2) bit mask(1)
func (rd *RoadDef) WriteNod2(nod2 *SectionWriter, nodes *RouteNodes) errorsx.Error {
	if !rd.HasNodInfo() || !rd.hasNode {
		return errorsx.Errorf("%s has no routing node", rd)
	}

	node, err := nodes.Get(rd.node)
	if err != nil {
		return errorsx.Wrap(err, "road", rd.String())
	}

	nod1Offset, ok := node.OffsetNod1()
	if !ok {
		return errorsx.Errorf("routing node %d of %s has not been written", rd.node, rd)
	}

	nod2.SeekToEnd()
	err = rd.setOffsetNod2(nod2.Position())
	if err != nil {
		return errorsx.Wrap(err)
	}

	nod2.Put(rd.nod2RoadClass)
	err = nod2.Put3(uint32(nod1Offset))
	if err != nil {
		return errorsx.Wrap(err, "road", rd.String())
	}
	nod2.PutChar(nod2BitCount)
	nod2.Put(byte(1<<nod2BitCount) - 1)

	return nil
}
