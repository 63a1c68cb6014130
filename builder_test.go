package varfont

import (
	"math"
	"sort"
	"testing"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/test"
	"golang.org/x/text/encoding/unicode"
)

// testFont describes a synthetic TrueType variable font. Tables are written in binary form so that the production parsers are exercised.
type testFont struct {
	Axes      []testAxis
	Instances []testInstance
	Glyphs    []testGlyph

	HVAR *testMetricsVar // advance deltas, items are glyph IDs
	VVAR *testMetricsVar // also adds vhea and vmtx with advance height 1000 and top side bearing 100
	MVAR []testMVARRecord

	CFF2 []byte // replaces glyf, loca and gvar

	// cvt values with their tuples, no cvt table when empty
	CVT       []int16
	CVTTuples []testTuple

	Avar  [][]avarAxisValueMap
	Extra map[string][]byte
}

type testAxis struct {
	Tag               string
	Min, Default, Max float64
}

type testInstance struct {
	Name   string
	Coords []float64
}

type testTuple struct {
	Peak       []float64
	Start, End []float64 // intermediate region, optional
	Points     []uint16  // nil for all points
	X, Y       []int32
}

type testGlyph struct {
	EndPoints  []uint16
	X, Y       []int16
	Components []glyfComponent
	Advance    uint16
	Tuples     []testTuple
	Broken     bool // write variation data that cannot be decoded
}

type testMetricsVar struct {
	Regions   []varRegion
	Deltas    [][]int16 // per item, per region
	StartSide []int16   // side bearing deltas per region shared by all glyphs, no mapping when nil
}

type testMVARRecord struct {
	Tag    string
	Deltas []int16 // per region of Regions
}

var testRegions = []varRegion{
	{{0.0, 1.0, 1.0}, {0.0, 0.0, 0.0}},  // wght max
	{{-1.0, -1.0, 0.0}, {0.0, 0.0, 0.0}}, // wght min
	{{0.0, 0.0, 0.0}, {0.0, 1.0, 1.0}},  // wdth max
}

// newTestFont returns a font with a wght axis 100-400-900, a wdth axis 50-100-200, a Bold instance at [700,100] and n square glyphs. At the wght maximum each glyph moves its right edge by 100, its top edge by 50 and widens its advance by 100. At the wdth maximum its top edge moves by -20.
func newTestFont(n int) *testFont {
	f := &testFont{
		Axes: []testAxis{
			{"wght", 100.0, 400.0, 900.0},
			{"wdth", 50.0, 100.0, 200.0},
		},
		Instances: []testInstance{
			{"Bold", []float64{700.0, 100.0}},
			{"Condensed", []float64{400.0, 50.0}},
		},
	}
	for i := 0; i < n; i++ {
		f.Glyphs = append(f.Glyphs, testGlyph{
			EndPoints: []uint16{3},
			X:         []int16{50, 50, 450, 450},
			Y:         []int16{0, 700, 700, 0},
			Advance:   500,
			Tuples: []testTuple{{
				Peak:   []float64{1.0, 0.0},
				Points: []uint16{0, 1, 2, 3, 5},
				X:      []int32{0, 0, 100, 100, 100},
				Y:      []int32{0, 50, 50, 0, 0},
			}, {
				Peak: []float64{0.0, 1.0},
				X:    []int32{0, 0, 0, 0, 0, 0, 0, 0},
				Y:    []int32{0, -20, -20, 0, 0, 0, 0, 0},
			}},
		})
	}
	return f
}

func (f *testFont) axisCount() int {
	return len(f.Axes)
}

func writeFixed(w *parse.BinaryWriter, v float64) {
	w.WriteInt32(int32(math.Round(v * (1 << 16))))
}

func writeF2dot14(w *parse.BinaryWriter, v float64) {
	w.WriteInt16(floatToF2dot14(v))
}

func (f *testFont) glyfGlyphs() []*glyfGlyph {
	glyphs := make([]*glyfGlyph, len(f.Glyphs))
	for i, g := range f.Glyphs {
		glyph := &glyfGlyph{
			GlyphID:      uint16(i),
			EndPoints:    g.EndPoints,
			XCoordinates: g.X,
			YCoordinates: g.Y,
			Components:   g.Components,
		}
		glyph.OnCurve = make([]bool, len(g.X))
		glyph.OverlapSimple = make([]bool, len(g.X))
		for j := range glyph.OnCurve {
			glyph.OnCurve[j] = true
		}
		glyph.calcBounds()
		glyphs[i] = glyph
	}
	return glyphs
}

// Tables returns the binary tables of the font.
func (f *testFont) Tables(t *testing.T) map[string][]byte {
	t.Helper()
	tables := map[string][]byte{}

	glyphs := f.glyfGlyphs()
	// composites take the bounds of their first component
	for _, glyph := range glyphs {
		if glyph.IsComposite() {
			comp := glyph.Components[0]
			base := glyphs[comp.GlyphID]
			glyph.XMin, glyph.XMax = base.XMin+comp.Arg1, base.XMax+comp.Arg1
			glyph.YMin, glyph.YMax = base.YMin+comp.Arg2, base.YMax+comp.Arg2
		}
	}
	data := make([][]byte, len(glyphs))
	for i, glyph := range glyphs {
		data[i] = glyph.Write()
	}
	glyf, loca, indexToLocFormat, err := writeGlyfLoca(data)
	test.Error(t, err)
	if f.CFF2 == nil {
		tables["glyf"] = glyf
		tables["loca"] = loca
	} else {
		tables["CFF2"] = f.CFF2
	}

	// head
	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint32(0x00010000) // version
	w.WriteUint32(0x00010000) // fontRevision
	w.WriteUint32(0)          // checksumAdjustment
	w.WriteUint32(0x5F0F3CF5) // magicNumber
	w.WriteUint16(0x0003)     // flags
	w.WriteUint16(1000)       // unitsPerEm
	w.WriteUint64(0)          // created
	w.WriteUint64(0)          // modified
	w.WriteInt16(0)           // xMin
	w.WriteInt16(0)           // yMin
	w.WriteInt16(500)         // xMax
	w.WriteInt16(700)         // yMax
	w.WriteUint16(0)          // macStyle
	w.WriteUint16(8)          // lowestRecPPEM
	w.WriteInt16(2)           // fontDirectionHint
	w.WriteInt16(indexToLocFormat)
	w.WriteInt16(0) // glyphDataFormat
	tables["head"] = w.Bytes()

	// hhea
	w = parse.NewBinaryWriter([]byte{})
	w.WriteUint32(0x00010000) // version
	w.WriteInt16(800)         // ascender
	w.WriteInt16(-200)        // descender
	w.WriteInt16(0)           // lineGap
	w.WriteUint16(500)        // advanceWidthMax
	w.WriteInt16(50)          // minLeftSideBearing
	w.WriteInt16(50)          // minRightSideBearing
	w.WriteInt16(450)         // xMaxExtent
	w.WriteInt16(1)           // caretSlopeRise
	w.WriteInt16(0)           // caretSlopeRun
	w.WriteInt16(0)           // caretOffset
	w.WriteBytes(make([]byte, 8))
	w.WriteInt16(0) // metricDataFormat
	w.WriteUint16(uint16(len(glyphs)))
	tables["hhea"] = w.Bytes()

	// hmtx
	w = parse.NewBinaryWriter([]byte{})
	for i, glyph := range glyphs {
		w.WriteUint16(f.Glyphs[i].Advance)
		w.WriteInt16(glyph.XMin)
	}
	tables["hmtx"] = w.Bytes()

	// maxp
	w = parse.NewBinaryWriter([]byte{})
	if f.CFF2 == nil {
		w.WriteUint32(0x00010000)
		w.WriteUint16(uint16(len(glyphs)))
		w.WriteBytes(make([]byte, 26))
	} else {
		w.WriteUint32(0x00005000)
		w.WriteUint16(uint16(len(glyphs)))
	}
	tables["maxp"] = w.Bytes()

	if f.VVAR != nil {
		w = parse.NewBinaryWriter([]byte{})
		w.WriteUint32(0x00011000) // version
		w.WriteInt16(500)         // vertTypoAscender
		w.WriteInt16(-500)        // vertTypoDescender
		w.WriteInt16(0)           // vertTypoLineGap
		w.WriteUint16(1000)       // advanceHeightMax
		w.WriteInt16(100)         // minTopSideBearing
		w.WriteInt16(200)         // minBottomSideBearing
		w.WriteInt16(800)         // yMaxExtent
		w.WriteInt16(0)           // caretSlopeRise
		w.WriteInt16(1)           // caretSlopeRun
		w.WriteInt16(0)           // caretOffset
		w.WriteBytes(make([]byte, 8))
		w.WriteInt16(0) // metricDataFormat
		w.WriteUint16(uint16(len(glyphs)))
		tables["vhea"] = w.Bytes()

		w = parse.NewBinaryWriter([]byte{})
		for range glyphs {
			w.WriteUint16(1000)
			w.WriteInt16(100)
		}
		tables["vmtx"] = w.Bytes()
		tables["VVAR"] = f.VVAR.table(true)
	}

	// OS/2
	os2 := make([]byte, 96)
	os2[1] = 4              // version
	os2[4], os2[5] = 1, 144 // usWeightClass 400
	os2[7] = 5              // usWidthClass
	os2[69] = 200
	tables["OS/2"] = os2

	// post
	post := make([]byte, 32)
	post[1] = 3 // version 3.0
	tables["post"] = post

	tables["name"] = f.nameTable()
	tables["fvar"] = f.fvarTable()
	if f.CFF2 == nil {
		tables["gvar"] = f.gvarTable()
	}
	if f.HVAR != nil {
		tables["HVAR"] = f.HVAR.table(false)
	}
	if f.MVAR != nil {
		tables["MVAR"] = f.mvarTable()
	}
	if f.CVT != nil {
		w = parse.NewBinaryWriter([]byte{})
		for _, v := range f.CVT {
			w.WriteInt16(v)
		}
		tables["cvt "] = w.Bytes()
		tables["cvar"] = f.cvarTable()
	}
	if f.Avar != nil {
		w = parse.NewBinaryWriter([]byte{})
		w.WriteUint16(1) // majorVersion
		w.WriteUint16(0) // minorVersion
		w.WriteUint16(0) // reserved
		w.WriteUint16(uint16(len(f.Avar)))
		for _, segments := range f.Avar {
			w.WriteUint16(uint16(len(segments)))
			for _, segment := range segments {
				writeF2dot14(w, segment.From)
				writeF2dot14(w, segment.To)
			}
		}
		tables["avar"] = w.Bytes()
	}
	for tag, b := range f.Extra {
		tables[tag] = b
	}
	return tables
}

// SFNT writes and parses the font.
func (f *testFont) SFNT(t *testing.T) *SFNT {
	t.Helper()
	sfnt, err := ParseSFNT(WriteSFNT(f.Tables(t)), 0)
	test.Error(t, err)
	return sfnt
}

func (f *testFont) nameTable() []byte {
	type record struct {
		nameID NameID
		value  string
	}
	records := []record{{NameFontSubfamily, "Regular"}}
	for i, axis := range f.Axes {
		records = append(records, record{NameID(256 + i), axis.Tag})
	}
	for i, instance := range f.Instances {
		records = append(records, record{NameID(512 + i), instance.Name})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].nameID < records[j].nameID })

	encoder := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
	storage := parse.NewBinaryWriter([]byte{})
	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(0) // version
	w.WriteUint16(uint16(len(records)))
	w.WriteUint16(uint16(6 + 12*len(records))) // storageOffset
	for _, record := range records {
		value, _ := encoder.String(record.value)
		w.WriteUint16(uint16(PlatformWindows))
		w.WriteUint16(1)      // Unicode BMP
		w.WriteUint16(0x0409) // English (US)
		w.WriteUint16(uint16(record.nameID))
		w.WriteUint16(uint16(len(value)))
		w.WriteUint16(uint16(storage.Len()))
		storage.WriteString(value)
	}
	w.WriteBytes(storage.Bytes())
	return w.Bytes()
}

func (f *testFont) fvarTable() []byte {
	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(1)  // majorVersion
	w.WriteUint16(0)  // minorVersion
	w.WriteUint16(16) // axesArrayOffset
	w.WriteUint16(2)  // reserved
	w.WriteUint16(uint16(f.axisCount()))
	w.WriteUint16(20) // axisSize
	w.WriteUint16(uint16(len(f.Instances)))
	w.WriteUint16(uint16(4*f.axisCount() + 4)) // instanceSize
	for i, axis := range f.Axes {
		w.WriteString(axis.Tag)
		writeFixed(w, axis.Min)
		writeFixed(w, axis.Default)
		writeFixed(w, axis.Max)
		w.WriteUint16(0) // flags
		w.WriteUint16(uint16(256 + i))
	}
	for i, instance := range f.Instances {
		w.WriteUint16(uint16(512 + i))
		w.WriteUint16(0) // flags
		for _, v := range instance.Coords {
			writeFixed(w, v)
		}
	}
	return w.Bytes()
}

// tupleVariationData writes tuple variation headers and serialized data with private point numbers. The header starts at offset start.
func writeTupleVariationData(axisCount int, tuples []testTuple, start int) []byte {
	headers := parse.NewBinaryWriter([]byte{})
	data := parse.NewBinaryWriter([]byte{})
	for _, tuple := range tuples {
		serialized := parse.NewBinaryWriter([]byte{})
		serialized.WriteBytes(encodePackedPoints(tuple.Points))
		serialized.WriteBytes(encodePackedDeltas(tuple.X))
		if tuple.Y != nil {
			serialized.WriteBytes(encodePackedDeltas(tuple.Y))
		}

		tupleIndex := uint16(tupleEmbeddedPeak | tuplePrivatePoints)
		if tuple.Start != nil {
			tupleIndex |= tupleIntermediate
		}
		headers.WriteUint16(uint16(serialized.Len()))
		headers.WriteUint16(tupleIndex)
		for _, v := range tuple.Peak {
			writeF2dot14(headers, v)
		}
		if tuple.Start != nil {
			for _, v := range tuple.Start {
				writeF2dot14(headers, v)
			}
			for _, v := range tuple.End {
				writeF2dot14(headers, v)
			}
		}
		data.WriteBytes(serialized.Bytes())
	}

	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(uint16(len(tuples)))
	w.WriteUint16(uint16(start + 4 + int(headers.Len()))) // dataOffset
	w.WriteBytes(headers.Bytes())
	w.WriteBytes(data.Bytes())
	return w.Bytes()
}

func (f *testFont) gvarTable() []byte {
	data := parse.NewBinaryWriter([]byte{})
	offsets := []uint32{0}
	for _, glyph := range f.Glyphs {
		if glyph.Broken {
			// one tuple whose data size exceeds the serialized data
			w := parse.NewBinaryWriter([]byte{})
			w.WriteUint16(1)                              // tupleVariationCount
			w.WriteUint16(uint16(4 + 4 + 2*f.axisCount())) // dataOffset
			w.WriteUint16(200)                            // variationDataSize
			w.WriteUint16(tupleEmbeddedPeak | tuplePrivatePoints)
			for i := 0; i < f.axisCount(); i++ {
				writeF2dot14(w, 1.0)
			}
			w.WriteBytes([]byte{0, 0})
			data.WriteBytes(w.Bytes())
		} else if 0 < len(glyph.Tuples) {
			data.WriteBytes(writeTupleVariationData(f.axisCount(), glyph.Tuples, 0))
		}
		if data.Len()%2 == 1 {
			data.WriteByte(0)
		}
		offsets = append(offsets, uint32(data.Len()))
	}

	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(1) // majorVersion
	w.WriteUint16(0) // minorVersion
	w.WriteUint16(uint16(f.axisCount()))
	w.WriteUint16(0)  // sharedTupleCount
	w.WriteUint32(20) // sharedTuplesOffset
	w.WriteUint16(uint16(len(f.Glyphs)))
	w.WriteUint16(gvarLongOffsets)
	w.WriteUint32(uint32(20 + 4*len(offsets))) // glyphVariationDataArrayOffset
	for _, offset := range offsets {
		w.WriteUint32(offset)
	}
	w.WriteBytes(data.Bytes())
	return w.Bytes()
}

func (f *testFont) cvarTable() []byte {
	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(1) // majorVersion
	w.WriteUint16(0) // minorVersion
	w.WriteBytes(writeTupleVariationData(f.axisCount(), f.CVTTuples, 4))
	return w.Bytes()
}

// writeItemVariationStore writes a store with a single ItemVariationData of word deltas that uses all regions.
func writeItemVariationStore(regions []varRegion, deltas [][]int16) []byte {
	axisCount := 0
	if 0 < len(regions) {
		axisCount = len(regions[0])
	}
	regionList := parse.NewBinaryWriter([]byte{})
	regionList.WriteUint16(uint16(axisCount))
	regionList.WriteUint16(uint16(len(regions)))
	for _, region := range regions {
		for _, axis := range region {
			writeF2dot14(regionList, axis.Start)
			writeF2dot14(regionList, axis.Peak)
			writeF2dot14(regionList, axis.End)
		}
	}

	itemData := parse.NewBinaryWriter([]byte{})
	itemData.WriteUint16(uint16(len(deltas)))  // itemCount
	itemData.WriteUint16(uint16(len(regions))) // wordDeltaCount
	itemData.WriteUint16(uint16(len(regions))) // regionIndexCount
	for i := range regions {
		itemData.WriteUint16(uint16(i))
	}
	for _, row := range deltas {
		for _, delta := range row {
			itemData.WriteInt16(delta)
		}
	}

	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(1)  // format
	w.WriteUint32(12) // regionListOffset
	w.WriteUint16(1)  // itemVariationDataCount
	w.WriteUint32(uint32(12 + regionList.Len()))
	w.WriteBytes(regionList.Bytes())
	w.WriteBytes(itemData.Bytes())
	return w.Bytes()
}

// table writes an HVAR or VVAR table with the ItemVariationStore directly after the header. The advance mapping is the identity and StartSide is stored as the last item.
func (m *testMetricsVar) table(vertical bool) []byte {
	headerSize := 20
	if vertical {
		headerSize = 24
	}
	deltas := m.Deltas
	if m.StartSide != nil {
		deltas = append(append([][]int16{}, deltas...), m.StartSide)
	}
	store := writeItemVariationStore(m.Regions, deltas)
	startSideOffset := 0
	if m.StartSide != nil {
		startSideOffset = headerSize + len(store)
	}

	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(1)                  // majorVersion
	w.WriteUint16(0)                  // minorVersion
	w.WriteUint32(uint32(headerSize)) // itemVariationStoreOffset
	w.WriteUint32(0)                  // advance mapping
	w.WriteUint32(uint32(startSideOffset))
	w.WriteUint32(0) // end side mapping
	if vertical {
		w.WriteUint32(0) // vOrgMappingOffset
	}
	w.WriteBytes(store)
	if m.StartSide != nil {
		// a single entry, which all glyphs past the end use as well
		w.WriteUint8(0)    // format
		w.WriteUint8(0x1F) // entryFormat, two bytes with 16 inner bits
		w.WriteUint16(1)   // mapCount
		w.WriteUint16(uint16(len(m.Deltas)))
	}
	return w.Bytes()
}

func (f *testFont) mvarTable() []byte {
	records := append([]testMVARRecord{}, f.MVAR...)
	sort.Slice(records, func(i, j int) bool { return records[i].Tag < records[j].Tag })
	deltas := make([][]int16, len(records))
	for i, record := range records {
		deltas[i] = record.Deltas
	}
	store := writeItemVariationStore(testRegions, deltas)

	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint16(1) // majorVersion
	w.WriteUint16(0) // minorVersion
	w.WriteUint16(0) // reserved
	w.WriteUint16(8) // valueRecordSize
	w.WriteUint16(uint16(len(records)))
	w.WriteUint16(uint16(12 + 8*len(records))) // itemVariationStoreOffset
	for i, record := range records {
		w.WriteString(record.Tag)
		w.WriteUint16(0)         // deltaSetOuterIndex
		w.WriteUint16(uint16(i)) // deltaSetInnerIndex
	}
	w.WriteBytes(store)
	return w.Bytes()
}
