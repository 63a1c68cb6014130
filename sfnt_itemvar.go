package varfont

import (
	"fmt"
	"io"

	"github.com/tdewolff/parse/v2"
)

const itemVariationLongWords = 0x8000

// noVariationIndex marks a value that has no variation data.
const noVariationIndex = 0xFFFF

type varRegionAxis struct {
	Start, Peak, End float64
}

// varRegion is a region in normalized design space with a tent per axis.
type varRegion []varRegionAxis

// regionScalar returns the contribution of a region at the given normalized coordinates. It is zero outside the region and one at its peak. Axes with a zero peak or an invalid tent do not constrain the region.
func regionScalar(region varRegion, coords []float64) float64 {
	scalar := 1.0
	for i, axis := range region {
		if axis.Peak == 0.0 || axis.Peak < axis.Start || axis.End < axis.Peak || axis.Start < 0.0 && 0.0 < axis.End {
			continue
		}

		v := 0.0
		if i < len(coords) {
			v = coords[i]
		}
		if v < axis.Start || axis.End < v {
			return 0.0
		} else if v == axis.Peak {
			continue
		} else if v < axis.Peak {
			scalar *= (v - axis.Start) / (axis.Peak - axis.Start)
		} else {
			scalar *= (axis.End - v) / (axis.End - axis.Peak)
		}
	}
	return scalar
}

type itemVariationData struct {
	RegionIndices []uint16
	Deltas        [][]int32 // [item][region]
}

type itemVariationStore struct {
	AxisCount int
	Regions   []varRegion
	Data      []itemVariationData
}

// RegionScalars returns the scalar of every region at the given coordinates.
func (store *itemVariationStore) RegionScalars(coords []float64) []float64 {
	scalars := make([]float64, len(store.Regions))
	for i, region := range store.Regions {
		scalars[i] = regionScalar(region, coords)
	}
	return scalars
}

// DataScalars returns the scalars of the regions referenced by an ItemVariationData, in its region index order.
func (store *itemVariationStore) DataScalars(outer uint16, scalars []float64) ([]float64, error) {
	if len(store.Data) <= int(outer) {
		return nil, fmt.Errorf("bad ItemVariationData index %d", outer)
	}
	data := store.Data[outer]
	dataScalars := make([]float64, len(data.RegionIndices))
	for i, index := range data.RegionIndices {
		dataScalars[i] = scalars[index]
	}
	return dataScalars, nil
}

// NetDelta returns the interpolated delta of an item, given the scalars of all regions.
func (store *itemVariationStore) NetDelta(outer, inner uint16, scalars []float64) (float64, error) {
	if outer == noVariationIndex && inner == noVariationIndex {
		return 0.0, nil
	} else if len(store.Data) <= int(outer) {
		return 0.0, fmt.Errorf("bad ItemVariationData index %d", outer)
	}
	data := store.Data[outer]
	if len(data.Deltas) <= int(inner) {
		return 0.0, fmt.Errorf("bad delta set index %d for ItemVariationData %d", inner, outer)
	}

	delta := 0.0
	for i, index := range data.RegionIndices {
		if scalar := scalars[index]; scalar != 0.0 {
			delta += scalar * float64(data.Deltas[inner][i])
		}
	}
	return delta, nil
}

func parseItemVariationStore(b []byte, axisCount int) (*itemVariationStore, error) {
	r := parse.NewBinaryReaderBytes(b)
	if r.Len() < 8 {
		return nil, fmt.Errorf("ItemVariationStore: bad table")
	}
	format := r.ReadUint16()
	if format != 1 {
		return nil, fmt.Errorf("ItemVariationStore: bad format")
	}
	regionListOffset := r.ReadUint32()
	itemVariationDataCount := r.ReadUint16()
	if r.Len() < 4*int64(itemVariationDataCount) {
		return nil, fmt.Errorf("ItemVariationStore: bad table")
	}
	itemVariationDataOffsets := make([]uint32, itemVariationDataCount)
	for i := range itemVariationDataOffsets {
		itemVariationDataOffsets[i] = r.ReadUint32()
	}

	store := &itemVariationStore{
		AxisCount: axisCount,
		Data:      make([]itemVariationData, itemVariationDataCount),
	}

	// region list
	if uint32(len(b)) < regionListOffset || uint32(len(b))-regionListOffset < 4 {
		return nil, fmt.Errorf("ItemVariationStore: bad region list offset")
	}
	_, _ = r.Seek(int64(regionListOffset), io.SeekStart)
	regionAxisCount := r.ReadUint16()
	regionCount := r.ReadUint16()
	if int(regionAxisCount) != axisCount {
		return nil, fmt.Errorf("ItemVariationStore: axisCount does not match fvar")
	} else if r.Len() < 6*int64(regionAxisCount)*int64(regionCount) {
		return nil, fmt.Errorf("ItemVariationStore: bad region list")
	}
	store.Regions = make([]varRegion, regionCount)
	for i := range store.Regions {
		region := make(varRegion, regionAxisCount)
		for j := range region {
			region[j].Start = f2dot14ToFloat(r.ReadInt16())
			region[j].Peak = f2dot14ToFloat(r.ReadInt16())
			region[j].End = f2dot14ToFloat(r.ReadInt16())
		}
		store.Regions[i] = region
	}

	// item variation data
	for i, offset := range itemVariationDataOffsets {
		if offset == 0 {
			continue
		} else if uint32(len(b)) < offset || uint32(len(b))-offset < 6 {
			return nil, fmt.Errorf("ItemVariationStore: bad ItemVariationData offset")
		}
		_, _ = r.Seek(int64(offset), io.SeekStart)
		itemCount := r.ReadUint16()
		wordDeltaCount := r.ReadUint16()
		regionIndexCount := r.ReadUint16()
		longWords := wordDeltaCount&itemVariationLongWords != 0
		wordCount := wordDeltaCount &^ itemVariationLongWords
		if regionIndexCount < wordCount {
			return nil, fmt.Errorf("ItemVariationStore: bad wordDeltaCount")
		} else if r.Len() < 2*int64(regionIndexCount) {
			return nil, fmt.Errorf("ItemVariationStore: bad ItemVariationData")
		}

		data := itemVariationData{}
		data.RegionIndices = make([]uint16, regionIndexCount)
		for j := range data.RegionIndices {
			data.RegionIndices[j] = r.ReadUint16()
			if regionCount <= data.RegionIndices[j] {
				return nil, fmt.Errorf("ItemVariationStore: bad region index %d", data.RegionIndices[j])
			}
		}

		wordSize, byteSize := int64(2), int64(1)
		if longWords {
			wordSize, byteSize = 4, 2
		}
		rowSize := int64(wordCount)*wordSize + int64(regionIndexCount-wordCount)*byteSize
		if r.Len() < int64(itemCount)*rowSize {
			return nil, fmt.Errorf("ItemVariationStore: bad delta sets")
		}
		data.Deltas = make([][]int32, itemCount)
		for j := range data.Deltas {
			deltas := make([]int32, regionIndexCount)
			for k := 0; k < int(regionIndexCount); k++ {
				if k < int(wordCount) {
					if longWords {
						deltas[k] = r.ReadInt32()
					} else {
						deltas[k] = int32(r.ReadInt16())
					}
				} else if longWords {
					deltas[k] = int32(r.ReadInt16())
				} else {
					deltas[k] = int32(r.ReadInt8())
				}
			}
			data.Deltas[j] = deltas
		}
		store.Data[i] = data
	}
	return store, nil
}

////////////////////////////////////////////////////////////////

// deltaSetIndexMap maps glyph IDs or other indices to (outer, inner) delta set indices. A nil map is the identity with outer index zero.
type deltaSetIndexMap struct {
	Outer []uint16
	Inner []uint16
}

// Map returns the delta set index of an entry. Indices past the end use the last entry.
func (m *deltaSetIndexMap) Map(index uint32) (uint16, uint16) {
	if m == nil || len(m.Outer) == 0 {
		return 0, uint16(index)
	} else if uint32(len(m.Outer)) <= index {
		index = uint32(len(m.Outer)) - 1
	}
	return m.Outer[index], m.Inner[index]
}

func parseDeltaSetIndexMap(b []byte) (*deltaSetIndexMap, error) {
	r := parse.NewBinaryReaderBytes(b)
	if r.Len() < 4 {
		return nil, fmt.Errorf("DeltaSetIndexMap: bad table")
	}
	format := r.ReadUint8()
	entryFormat := r.ReadUint8()
	var mapCount uint32
	if format == 0 {
		mapCount = uint32(r.ReadUint16())
	} else if format == 1 {
		if r.Len() < 4 {
			return nil, fmt.Errorf("DeltaSetIndexMap: bad table")
		}
		mapCount = r.ReadUint32()
	} else {
		return nil, fmt.Errorf("DeltaSetIndexMap: bad format")
	}

	innerBits := uint(entryFormat&0x0F) + 1
	entrySize := int64(entryFormat&0x30>>4) + 1
	if r.Len() < int64(mapCount)*entrySize {
		return nil, fmt.Errorf("DeltaSetIndexMap: bad table")
	} else if uint64(MaxMemory) < 4*uint64(mapCount) {
		return nil, ErrExceedsMemory
	}

	m := &deltaSetIndexMap{
		Outer: make([]uint16, mapCount),
		Inner: make([]uint16, mapCount),
	}
	for i := 0; i < int(mapCount); i++ {
		var entry uint32
		switch entrySize {
		case 1:
			entry = uint32(r.ReadUint8())
		case 2:
			entry = uint32(r.ReadUint16())
		case 3:
			entry = r.ReadUint24()
		case 4:
			entry = r.ReadUint32()
		}
		m.Outer[i] = uint16(entry >> innerBits)
		m.Inner[i] = uint16(entry & (1<<innerBits - 1))
	}
	return m, nil
}
