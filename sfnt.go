package varfont

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/tdewolff/parse/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// SFNT is a parsed OpenType font. All tables are kept as raw data in Tables, only those needed to instance a variable font are parsed.
type SFNT struct {
	IsCFF  bool // CFF or CFF2 outlines instead of glyf
	Tables map[string][]byte

	Head *headTable
	Maxp *maxpTable
	Hhea *metricsHeader
	Hmtx *metricsTable
	Vhea *metricsHeader // nil if absent
	Vmtx *metricsTable  // nil if absent
	Name *nameTable
	OS2  *os2Table

	Glyf *glyfTable
	Loca *locaTable

	Fvar *fvarTable
	Avar *avarTable
}

// NumGlyphs returns the number of glyphs the font contains.
func (sfnt *SFNT) NumGlyphs() uint16 {
	return sfnt.Maxp.NumGlyphs
}

// IsVariable returns true if the font has an fvar table.
func (sfnt *SFNT) IsVariable() bool {
	return sfnt.Fvar != nil
}

// HasTable returns true if the font contains the given table.
func (sfnt *SFNT) HasTable(tag string) bool {
	_, ok := sfnt.Tables[tag]
	return ok
}

// ParseSFNT parses an OpenType file format (TTF, OTF, TTC). The index is used for font collections to select a single font.
func ParseSFNT(b []byte, index int) (*SFNT, error) {
	version, tables, err := readTableDirectory(b, index)
	if err != nil {
		return nil, err
	}

	sfnt := &SFNT{
		IsCFF:  version == "OTTO",
		Tables: tables,
	}
	required := []string{"head", "hhea", "hmtx", "maxp"}
	if !sfnt.IsCFF {
		required = append(required, "glyf", "loca")
	} else if _, hasCFF := tables["CFF "]; hasCFF == sfnt.HasTable("CFF2") {
		return nil, fmt.Errorf("OTTO: need exactly one of the CFF and CFF2 tables")
	}
	for _, tag := range required {
		if !sfnt.HasTable(tag) {
			return nil, fmt.Errorf("%s: missing table", tag)
		}
	}

	// maxp and head are needed by the metrics and outline tables
	parsers := []struct {
		tag   string
		parse func() error
	}{
		{"head", sfnt.parseHead},
		{"maxp", sfnt.parseMaxp},
		{"hhea", func() (err error) { sfnt.Hhea, err = sfnt.parseMetricsHeader("hhea"); return }},
		{"hmtx", func() (err error) { sfnt.Hmtx, err = sfnt.parseMetrics("hmtx", sfnt.Hhea); return }},
		{"vhea", func() (err error) { sfnt.Vhea, err = sfnt.parseMetricsHeader("vhea"); return }},
		{"vmtx", func() (err error) { sfnt.Vmtx, err = sfnt.parseMetrics("vmtx", sfnt.Vhea); return }},
		{"loca", sfnt.parseLoca},
		{"glyf", sfnt.parseGlyf},
		{"name", sfnt.parseName},
		{"OS/2", sfnt.parseOS2},
		{"fvar", sfnt.parseFvar},
		{"avar", sfnt.parseAvar},
	}
	for _, p := range parsers {
		if !sfnt.HasTable(p.tag) || p.tag == "vmtx" && sfnt.Vhea == nil {
			continue
		} else if err := p.parse(); err != nil {
			return nil, err
		}
	}
	return sfnt, nil
}

// readTableDirectory returns the sfntVersion and the tables of the font at index, which must be zero unless b is a font collection.
func readTableDirectory(b []byte, index int) (string, map[string][]byte, error) {
	if len(b) < 12 || uint(math.MaxUint32) < uint(len(b)) {
		return "", nil, ErrInvalidFontData
	}

	r := parse.NewBinaryReaderBytes(b)
	version := r.ReadString(4)
	if version == "ttcf" {
		offset, err := readCollectionOffset(r, index)
		if err != nil {
			return "", nil, err
		} else if uint32(len(b)) < offset || uint32(len(b))-offset < 12 {
			return "", nil, ErrInvalidFontData
		} else if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
			return "", nil, ErrInvalidFontData
		}
		version = r.ReadString(4)
	} else if index != 0 {
		return "", nil, fmt.Errorf("bad font index %d", index)
	}
	if version != "OTTO" && version != "true" && binary.BigEndian.Uint32([]byte(version)) != 0x00010000 {
		return "", nil, fmt.Errorf("bad sfntVersion %q", version)
	}

	numTables := r.ReadUint16()
	_ = r.ReadBytes(6) // searchRange, entrySelector, rangeShift
	if r.Len() < 16*int64(numTables) {
		return "", nil, ErrInvalidFontData
	}
	tables := make(map[string][]byte, numTables)
	for i := 0; i < int(numTables); i++ {
		tag := r.ReadString(4)
		_ = r.ReadUint32() // checksum
		offset, length := r.ReadUint32(), r.ReadUint32()
		if uint32(len(b)) < offset || uint32(len(b))-offset < length {
			return "", nil, fmt.Errorf("%s: bad table offset", tag)
		}
		tables[tag] = b[offset : offset+length : offset+length]
	}
	return version, tables, nil
}

func readCollectionOffset(r *parse.BinaryReader, index int) (uint32, error) {
	majorVersion, minorVersion := r.ReadUint16(), r.ReadUint16()
	if majorVersion != 1 && majorVersion != 2 || minorVersion != 0 {
		return 0, fmt.Errorf("ttcf: bad version %d.%d", majorVersion, minorVersion)
	}
	numFonts := r.ReadUint32()
	if index < 0 || numFonts <= uint32(index) {
		return 0, fmt.Errorf("bad font index %d", index)
	} else if r.Len() < 4*int64(numFonts) {
		return 0, ErrInvalidFontData
	}
	_ = r.ReadBytes(4 * int64(index))
	return r.ReadUint32(), nil
}

// Write writes out the SFNT file.
func (sfnt *SFNT) Write() []byte {
	return WriteSFNT(sfnt.Tables)
}

// WriteSFNT assembles a table map into an OpenType file, writing the table directory, checksums and the head checksum adjustment. The sfntVersion is OTTO when the table map contains CFF or CFF2 outlines.
func WriteSFNT(tables map[string][]byte) []byte {
	return writeSFNT(tables, true)
}

var headEpoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)

// writeSFNT assembles an OpenType file with its tables sorted by tag. If stampModified is set the modified date of head becomes the current time.
func writeSFNT(tables map[string][]byte, stampModified bool) []byte {
	tags := make([]string, 0, len(tables))
	for tag := range tables {
		if len(tag) == 4 {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)

	numTables := uint16(len(tags))
	entrySelector := uint16(0)
	for 2<<entrySelector <= numTables {
		entrySelector++
	}
	searchRange := uint16(16) << entrySelector

	w := parse.NewBinaryWriter([]byte{})
	_, hasCFF := tables["CFF "]
	_, hasCFF2 := tables["CFF2"]
	if hasCFF || hasCFF2 {
		w.WriteString("OTTO")
	} else {
		w.WriteUint32(0x00010000)
	}
	w.WriteUint16(numTables)
	w.WriteUint16(searchRange)
	w.WriteUint16(entrySelector)
	w.WriteUint16(16*numTables - searchRange) // rangeShift
	w.WriteBytes(make([]byte, 16*int(numTables)))

	headOffset := int64(-1)
	for _, tag := range tags {
		table := tables[tag]
		if tag == "head" && 36 <= len(table) {
			table = append([]byte{}, table...)
			binary.BigEndian.PutUint32(table[8:], 0) // checksumAdjustment
			if stampModified {
				binary.BigEndian.PutUint64(table[28:], uint64(time.Now().UTC().Sub(headEpoch)/time.Second))
			}
			headOffset = w.Len()
		}
		w.WriteBytes(table)
		w.WriteBytes(make([]byte, (4-len(table)&3)&3))
	}

	// fill in the table records now that offsets are known
	buf := w.Bytes()
	offset := uint32(12 + 16*int(numTables))
	for i, tag := range tags {
		length := uint32(len(tables[tag]))
		padded := (length + 3) &^ 3
		record := buf[12+16*i:]
		copy(record, tag)
		binary.BigEndian.PutUint32(record[4:], calcChecksum(buf[offset:offset+padded]))
		binary.BigEndian.PutUint32(record[8:], offset)
		binary.BigEndian.PutUint32(record[12:], length)
		offset += padded
	}
	if headOffset != -1 {
		binary.BigEndian.PutUint32(buf[headOffset+8:], 0xB1B0AFBA-calcChecksum(buf))
	}
	return buf
}

////////////////////////////////////////////////////////////////

type headTable struct {
	UnitsPerEm             uint16
	XMin, YMin, XMax, YMax int16
	IndexToLocFormat       int16
}

func (sfnt *SFNT) parseHead() error {
	b := sfnt.Tables["head"]
	if len(b) != 54 {
		return fmt.Errorf("head: bad table length %d", len(b))
	} else if binary.BigEndian.Uint16(b) != 1 {
		return fmt.Errorf("head: bad version")
	} else if binary.BigEndian.Uint32(b[12:]) != 0x5F0F3CF5 {
		return fmt.Errorf("head: bad magic number")
	}

	r := parse.NewBinaryReaderBytes(b[18:])
	head := &headTable{}
	head.UnitsPerEm = r.ReadUint16()
	_ = r.ReadBytes(16) // created, modified
	head.XMin, head.YMin = r.ReadInt16(), r.ReadInt16()
	head.XMax, head.YMax = r.ReadInt16(), r.ReadInt16()
	_ = r.ReadBytes(6) // macStyle, lowestRecPPEM, fontDirectionHint
	head.IndexToLocFormat = r.ReadInt16()
	if head.IndexToLocFormat != 0 && head.IndexToLocFormat != 1 {
		return fmt.Errorf("head: bad indexToLocFormat %d", head.IndexToLocFormat)
	}
	sfnt.Head = head
	return nil
}

////////////////////////////////////////////////////////////////

type maxpTable struct {
	NumGlyphs uint16
}

func (sfnt *SFNT) parseMaxp() error {
	b := sfnt.Tables["maxp"]
	if len(b) < 6 {
		return fmt.Errorf("maxp: bad table")
	}

	// version 0.5 carries only numGlyphs and is for CFF outlines
	switch version := binary.BigEndian.Uint32(b); version {
	case 0x00005000:
		if !sfnt.IsCFF {
			return fmt.Errorf("maxp: version 0.5 requires CFF outlines")
		}
	case 0x00010000:
		if sfnt.IsCFF || len(b) != 32 {
			return fmt.Errorf("maxp: bad table")
		}
	default:
		return fmt.Errorf("maxp: bad version %#08x", version)
	}
	sfnt.Maxp = &maxpTable{
		NumGlyphs: binary.BigEndian.Uint16(b[4:]),
	}
	return nil
}

////////////////////////////////////////////////////////////////

// metricsHeader holds the hhea or vhea table. Horizontal names are used for both, for vhea the bearings are top and bottom and the extent is yMaxExtent.
type metricsHeader struct {
	Ascender, Descender, LineGap int16
	AdvanceMax                   uint16
	MinStartSideBearing          int16
	MinEndSideBearing            int16
	MaxExtent                    int16
	NumberOfMetrics              uint16
}

func (sfnt *SFNT) parseMetricsHeader(tag string) (*metricsHeader, error) {
	if sfnt.Maxp == nil {
		return nil, fmt.Errorf("%s: missing maxp table", tag)
	}
	b := sfnt.Tables[tag]
	if len(b) != 36 {
		return nil, fmt.Errorf("%s: bad table length %d", tag, len(b))
	} else if binary.BigEndian.Uint16(b) != 1 {
		return nil, fmt.Errorf("%s: bad version", tag)
	}

	r := parse.NewBinaryReaderBytes(b[4:])
	h := &metricsHeader{}
	h.Ascender, h.Descender, h.LineGap = r.ReadInt16(), r.ReadInt16(), r.ReadInt16()
	h.AdvanceMax = r.ReadUint16()
	h.MinStartSideBearing = r.ReadInt16()
	h.MinEndSideBearing = r.ReadInt16()
	h.MaxExtent = r.ReadInt16()
	_ = r.ReadBytes(16) // caret slope and offset, reserved, metricDataFormat
	h.NumberOfMetrics = r.ReadUint16()
	if h.NumberOfMetrics == 0 || sfnt.Maxp.NumGlyphs < h.NumberOfMetrics {
		return nil, fmt.Errorf("%s: bad number of metrics %d", tag, h.NumberOfMetrics)
	}
	return h, nil
}

////////////////////////////////////////////////////////////////

type longMetric struct {
	Advance     uint16
	SideBearing int16
}

// metricsTable holds the hmtx or vmtx table. Glyphs beyond the long metrics repeat the last advance and have only a side bearing.
type metricsTable struct {
	Metrics      []longMetric
	SideBearings []int16
}

// Advance returns the advance width (hmtx) or height (vmtx) of a glyph.
func (t *metricsTable) Advance(glyphID uint16) uint16 {
	if n := uint16(len(t.Metrics)); n <= glyphID {
		return t.Metrics[n-1].Advance
	}
	return t.Metrics[glyphID].Advance
}

// SideBearing returns the left (hmtx) or top (vmtx) side bearing of a glyph.
func (t *metricsTable) SideBearing(glyphID uint16) int16 {
	if n := uint16(len(t.Metrics)); n <= glyphID {
		return t.SideBearings[glyphID-n]
	}
	return t.Metrics[glyphID].SideBearing
}

func (sfnt *SFNT) parseMetrics(tag string, header *metricsHeader) (*metricsTable, error) {
	if header == nil {
		return nil, fmt.Errorf("%s: missing header table", tag)
	}
	numMetrics := int(header.NumberOfMetrics)
	numBearings := int(sfnt.Maxp.NumGlyphs) - numMetrics
	b := sfnt.Tables[tag]
	if len(b) < 4*numMetrics+2*numBearings {
		return nil, fmt.Errorf("%s: bad table length %d", tag, len(b))
	}

	r := parse.NewBinaryReaderBytes(b)
	t := &metricsTable{
		Metrics:      make([]longMetric, numMetrics),
		SideBearings: make([]int16, numBearings),
	}
	for i := range t.Metrics {
		t.Metrics[i] = longMetric{r.ReadUint16(), r.ReadInt16()}
	}
	for i := range t.SideBearings {
		t.SideBearings[i] = r.ReadInt16()
	}
	return t, nil
}

////////////////////////////////////////////////////////////////

// PlatformID is the platform identifier of a name record.
type PlatformID uint16

// see PlatformID
const (
	PlatformUnicode   PlatformID = 0
	PlatformMacintosh PlatformID = 1
	PlatformWindows   PlatformID = 3
)

// NameID identifies the kind of string stored in a name record. Axis and instance names use IDs from 256 upwards.
type NameID uint16

// see NameID
const (
	NameFontFamily    NameID = 1
	NameFontSubfamily NameID = 2
	NamePostScript    NameID = 6
)

type nameRecord struct {
	Platform PlatformID
	Encoding uint16
	Language uint16
	ID       NameID
	Value    []byte
}

// String decodes UTF-16BE for the Unicode and Windows platforms and Mac Roman for Macintosh encoding 0. Other encodings are returned as is.
func (record nameRecord) String() string {
	var decoder *encoding.Decoder
	switch {
	case record.Platform == PlatformUnicode || record.Platform == PlatformWindows:
		decoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	case record.Platform == PlatformMacintosh && record.Encoding == 0:
		decoder = charmap.Macintosh.NewDecoder()
	default:
		return string(record.Value)
	}
	if s, _, err := transform.Bytes(decoder, record.Value); err == nil {
		return string(s)
	}
	return string(record.Value)
}

type nameTable struct {
	Records []nameRecord
}

// Find returns the preferred string for a name ID: Windows English (US) first, then any Unicode or Windows record, then Macintosh Roman.
func (t *nameTable) Find(id NameID) (string, bool) {
	best := -1
	for i, record := range t.Records {
		if record.ID != id {
			continue
		} else if record.Platform == PlatformWindows && record.Language == 0x0409 {
			return record.String(), true
		} else if best == -1 || t.Records[best].Platform == PlatformMacintosh && record.Platform != PlatformMacintosh {
			best = i
		}
	}
	if best == -1 {
		return "", false
	}
	return t.Records[best].String(), true
}

func (sfnt *SFNT) parseName() error {
	b := sfnt.Tables["name"]
	if len(b) < 6 {
		return fmt.Errorf("name: bad table")
	} else if version := binary.BigEndian.Uint16(b); 1 < version {
		return fmt.Errorf("name: bad version %d", version)
	}

	count := int(binary.BigEndian.Uint16(b[2:]))
	storage := int(binary.BigEndian.Uint16(b[4:]))
	if len(b) < 6+12*count || len(b) < storage {
		return fmt.Errorf("name: bad table")
	}
	data := b[storage:]

	r := parse.NewBinaryReaderBytes(b[6:])
	name := &nameTable{make([]nameRecord, count)}
	for i := range name.Records {
		record := &name.Records[i]
		record.Platform = PlatformID(r.ReadUint16())
		record.Encoding = r.ReadUint16()
		record.Language = r.ReadUint16()
		record.ID = NameID(r.ReadUint16())
		length, offset := int(r.ReadUint16()), int(r.ReadUint16())
		if len(data) < offset || len(data)-offset < length {
			return fmt.Errorf("name: bad string offset for record %d", i)
		}
		record.Value = data[offset : offset+length]
	}
	sfnt.Name = name
	return nil
}
