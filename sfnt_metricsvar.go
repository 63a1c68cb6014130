package varfont

import (
	"encoding/binary"
	"fmt"

	"github.com/tdewolff/parse/v2"
)

// metricsVarTable is a parsed HVAR or VVAR table. The start side is the left or top side bearing and the end side is the right or bottom side bearing.
type metricsVarTable struct {
	store     *itemVariationStore
	advance   *deltaSetIndexMap // nil is the identity mapping
	startSide *deltaSetIndexMap // nil if absent
	endSide   *deltaSetIndexMap // nil if absent
	origin    *deltaSetIndexMap // VVAR only, nil if absent
}

func parseMetricsVar(table string, b []byte, axisCount int) (*metricsVarTable, error) {
	vertical := table == "VVAR"
	headerSize := 20
	if vertical {
		headerSize = 24
	}
	if len(b) < headerSize {
		return nil, errInvalidFont(table, "bad table")
	}

	r := parse.NewBinaryReaderBytes(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16() // minorVersion
	if majorVersion != 1 {
		return nil, errInvalidFont(table, "bad version")
	}
	storeOffset := r.ReadUint32()
	offsets := []uint32{r.ReadUint32(), r.ReadUint32(), r.ReadUint32()}
	if vertical {
		offsets = append(offsets, r.ReadUint32())
	}

	if storeOffset == 0 || uint32(len(b)) <= storeOffset {
		return nil, errInvalidFont(table, "bad ItemVariationStore offset")
	}
	store, err := parseItemVariationStore(b[storeOffset:], axisCount)
	if err != nil {
		return nil, wrapInvalidFont(table, err)
	}

	maps := make([]*deltaSetIndexMap, len(offsets))
	for i, offset := range offsets {
		if offset == 0 {
			continue
		} else if uint32(len(b)) <= offset {
			return nil, errInvalidFont(table, "bad DeltaSetIndexMap offset")
		}
		if maps[i], err = parseDeltaSetIndexMap(b[offset:]); err != nil {
			return nil, wrapInvalidFont(table, err)
		}
	}

	t := &metricsVarTable{
		store:     store,
		advance:   maps[0],
		startSide: maps[1],
		endSide:   maps[2],
	}
	if vertical {
		t.origin = maps[3]
	}
	return t, nil
}

// AdvanceDelta returns the advance width or height delta of a glyph.
func (t *metricsVarTable) AdvanceDelta(glyphID uint16, scalars []float64) (float64, error) {
	outer, inner := t.advance.Map(uint32(glyphID))
	return t.store.NetDelta(outer, inner, scalars)
}

// StartSideDelta returns the left or top side bearing delta of a glyph. It returns false if the table has no mapping for it.
func (t *metricsVarTable) StartSideDelta(glyphID uint16, scalars []float64) (float64, bool, error) {
	if t.startSide == nil {
		return 0.0, false, nil
	}
	outer, inner := t.startSide.Map(uint32(glyphID))
	delta, err := t.store.NetDelta(outer, inner, scalars)
	return delta, true, err
}

// EndSideDelta returns the right or bottom side bearing delta of a glyph. It returns false if the table has no mapping for it.
func (t *metricsVarTable) EndSideDelta(glyphID uint16, scalars []float64) (float64, bool, error) {
	if t.endSide == nil {
		return 0.0, false, nil
	}
	outer, inner := t.endSide.Map(uint32(glyphID))
	delta, err := t.store.NetDelta(outer, inner, scalars)
	return delta, true, err
}

////////////////////////////////////////////////////////////////

type mvarField struct {
	Table  string
	Offset int
	Signed bool
}

// mvarFields maps MVAR value tags to the fields they vary.
var mvarFields = map[Tag]mvarField{
	MustParseTag("hasc"): {"OS/2", 68, true},
	MustParseTag("hdsc"): {"OS/2", 70, true},
	MustParseTag("hlgp"): {"OS/2", 72, true},
	MustParseTag("hcla"): {"OS/2", 74, false},
	MustParseTag("hcld"): {"OS/2", 76, false},
	MustParseTag("xhgt"): {"OS/2", 86, true},
	MustParseTag("cpht"): {"OS/2", 88, true},
	MustParseTag("sbxs"): {"OS/2", 10, true},
	MustParseTag("sbys"): {"OS/2", 12, true},
	MustParseTag("sbxo"): {"OS/2", 14, true},
	MustParseTag("sbyo"): {"OS/2", 16, true},
	MustParseTag("spxs"): {"OS/2", 18, true},
	MustParseTag("spys"): {"OS/2", 20, true},
	MustParseTag("spxo"): {"OS/2", 22, true},
	MustParseTag("spyo"): {"OS/2", 24, true},
	MustParseTag("strs"): {"OS/2", 26, true},
	MustParseTag("stro"): {"OS/2", 28, true},
	MustParseTag("hcrs"): {"hhea", 18, true},
	MustParseTag("hcrn"): {"hhea", 20, true},
	MustParseTag("hcof"): {"hhea", 22, true},
	MustParseTag("vasc"): {"vhea", 4, true},
	MustParseTag("vdsc"): {"vhea", 6, true},
	MustParseTag("vlgp"): {"vhea", 8, true},
	MustParseTag("vcrs"): {"vhea", 18, true},
	MustParseTag("vcrn"): {"vhea", 20, true},
	MustParseTag("vcof"): {"vhea", 22, true},
	MustParseTag("undo"): {"post", 8, true},
	MustParseTag("unds"): {"post", 10, true},
}

type mvarRecord struct {
	Tag          Tag
	Outer, Inner uint16
}

type mvarTable struct {
	store   *itemVariationStore // nil if there are no records
	records []mvarRecord
}

func parseMvar(b []byte, axisCount int) (*mvarTable, error) {
	if len(b) < 12 {
		return nil, errInvalidFont("MVAR", "bad table")
	}

	r := parse.NewBinaryReaderBytes(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16() // minorVersion
	if majorVersion != 1 {
		return nil, errInvalidFont("MVAR", "bad version")
	}
	_ = r.ReadUint16() // reserved
	valueRecordSize := r.ReadUint16()
	valueRecordCount := r.ReadUint16()
	storeOffset := r.ReadUint16()
	if valueRecordCount == 0 {
		return &mvarTable{}, nil
	} else if valueRecordSize < 8 {
		return nil, errInvalidFont("MVAR", "bad valueRecordSize")
	} else if r.Len() < int64(valueRecordCount)*int64(valueRecordSize) {
		return nil, errInvalidFont("MVAR", "bad table")
	} else if storeOffset == 0 || len(b) <= int(storeOffset) {
		return nil, errInvalidFont("MVAR", "bad ItemVariationStore offset")
	}

	t := &mvarTable{}
	t.records = make([]mvarRecord, valueRecordCount)
	for i := range t.records {
		copy(t.records[i].Tag[:], r.ReadBytes(4))
		t.records[i].Outer = r.ReadUint16()
		t.records[i].Inner = r.ReadUint16()
		_ = r.ReadBytes(int64(valueRecordSize) - 8)
	}

	var err error
	if t.store, err = parseItemVariationStore(b[storeOffset:], axisCount); err != nil {
		return nil, wrapInvalidFont("MVAR", err)
	}
	return t, nil
}

// Apply adjusts the fields of the tables in place. Tables are copied before they are modified for the first time, so that the original font data is never changed. Unknown tags and fields beyond the end of a table are skipped.
func (t *mvarTable) Apply(tables map[string][]byte, scalars []float64) error {
	copied := map[string]bool{}
	for _, record := range t.records {
		field, ok := mvarFields[record.Tag]
		if !ok {
			tracer().Debugf("MVAR: skipping unknown value tag %s", record.Tag)
			continue
		}
		b, ok := tables[field.Table]
		if !ok || len(b) < field.Offset+2 {
			tracer().Debugf("MVAR: skipping value tag %s, %s field not present", record.Tag, field.Table)
			continue
		}

		delta, err := t.store.NetDelta(record.Outer, record.Inner, scalars)
		if err != nil {
			return wrapInvalidFont("MVAR", fmt.Errorf("value tag %s: %w", record.Tag, err))
		}
		if !copied[field.Table] {
			b = append([]byte{}, b...)
			tables[field.Table] = b
			copied[field.Table] = true
		}

		v := binary.BigEndian.Uint16(b[field.Offset:])
		if field.Signed {
			v = uint16(saturateInt16(int64(int16(v)) + roundHalfAway(delta)))
		} else {
			v = saturateUint16(int64(v) + roundHalfAway(delta))
		}
		binary.BigEndian.PutUint16(b[field.Offset:], v)
	}
	return nil
}
