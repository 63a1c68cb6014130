package varfont

import (
	"fmt"

	"github.com/tdewolff/parse/v2"
)

const gvarLongOffsets = 0x0001

type gvarTable struct {
	AxisCount    int
	SharedTuples [][]float64
	offsets      []uint32 // per glyph plus one, relative to data
	data         []byte   // glyph variation data array
}

// HasVariations returns true if the glyph has variation data.
func (gvar *gvarTable) HasVariations(glyphID uint16) bool {
	return int(glyphID)+1 < len(gvar.offsets) && gvar.offsets[glyphID] < gvar.offsets[glyphID+1]
}

// Glyph parses the tuple variation headers of a glyph. It returns nil if the glyph has no variation data.
func (gvar *gvarTable) Glyph(glyphID uint16) (*tupleVariationStore, error) {
	if len(gvar.offsets) <= int(glyphID)+1 {
		return nil, fmt.Errorf("gvar: bad glyphID %v", glyphID)
	} else if !gvar.HasVariations(glyphID) {
		return nil, nil
	}
	b := gvar.data[gvar.offsets[glyphID]:gvar.offsets[glyphID+1]]
	store, err := parseTupleVariationStore(b, 0, gvar.AxisCount, gvar.SharedTuples, false)
	if err != nil {
		return nil, fmt.Errorf("gvar: glyphID %v: %w", glyphID, err)
	}
	return store, nil
}

func parseGvar(b []byte, axisCount int, numGlyphs uint16) (*gvarTable, error) {
	if len(b) < 20 {
		return nil, errInvalidFont("gvar", "bad table")
	}

	r := parse.NewBinaryReaderBytes(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16() // minorVersion
	if majorVersion != 1 {
		return nil, errInvalidFont("gvar", "bad version")
	}
	gvarAxisCount := r.ReadUint16()
	sharedTupleCount := r.ReadUint16()
	sharedTuplesOffset := r.ReadUint32()
	glyphCount := r.ReadUint16()
	flags := r.ReadUint16()
	glyphVariationDataArrayOffset := r.ReadUint32()
	if int(gvarAxisCount) != axisCount {
		return nil, errInvalidFont("gvar", "axisCount does not match fvar")
	} else if glyphCount != numGlyphs {
		return nil, errInvalidFont("gvar", "glyphCount does not match maxp")
	} else if uint32(len(b)) < glyphVariationDataArrayOffset {
		return nil, errInvalidFont("gvar", "bad glyph variation data array offset")
	}

	gvar := &gvarTable{
		AxisCount: axisCount,
		offsets:   make([]uint32, int(glyphCount)+1),
		data:      b[glyphVariationDataArrayOffset:],
	}
	if flags&gvarLongOffsets != 0 {
		if r.Len() < 4*(int64(glyphCount)+1) {
			return nil, errInvalidFont("gvar", "bad offsets")
		}
		for i := range gvar.offsets {
			gvar.offsets[i] = r.ReadUint32()
		}
	} else {
		if r.Len() < 2*(int64(glyphCount)+1) {
			return nil, errInvalidFont("gvar", "bad offsets")
		}
		for i := range gvar.offsets {
			gvar.offsets[i] = 2 * uint32(r.ReadUint16())
		}
	}
	for i := 1; i < len(gvar.offsets); i++ {
		if gvar.offsets[i] < gvar.offsets[i-1] {
			return nil, errInvalidFont("gvar", "offsets not monotonic")
		}
	}
	if uint32(len(gvar.data)) < gvar.offsets[glyphCount] {
		return nil, errInvalidFont("gvar", "offsets beyond table")
	}

	if uint32(len(b)) < sharedTuplesOffset || uint64(len(b))-uint64(sharedTuplesOffset) < 2*uint64(sharedTupleCount)*uint64(axisCount) {
		return nil, errInvalidFont("gvar", "bad shared tuples")
	}
	rs := parse.NewBinaryReaderBytes(b[sharedTuplesOffset:])
	gvar.SharedTuples = make([][]float64, sharedTupleCount)
	for i := range gvar.SharedTuples {
		gvar.SharedTuples[i] = readTuple(rs, axisCount)
	}
	return gvar, nil
}
