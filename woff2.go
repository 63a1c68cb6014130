package varfont

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/andybalholm/brotli"
	"github.com/tdewolff/parse/v2"
)

// Specification:
// https://www.w3.org/TR/WOFF2/

// woff2KnownTags are the tags that have a table directory index instead of an explicit tag.
var woff2KnownTags = []string{
	"cmap", "head", "hhea", "hmtx", "maxp", "name", "OS/2", "post",
	"cvt ", "fpgm", "glyf", "loca", "prep", "CFF ", "VORG", "EBDT",
	"EBLC", "gasp", "hdmx", "kern", "LTSH", "PCLT", "VDMX", "vhea",
	"vmtx", "BASE", "GDEF", "GPOS", "GSUB", "EBSC", "JSTF", "MATH",
	"CBDT", "CBLC", "COLR", "CPAL", "SVG ", "sbix", "acnt", "avar",
	"bdat", "bloc", "bsln", "cvar", "fdsc", "feat", "fmtx", "fvar",
	"gvar", "hsty", "just", "lcar", "mort", "morx", "opbd", "prop",
	"trak", "Zapf", "Silf", "Glat", "Gloc", "Feat", "Sill",
}

const woff2ArbitraryTag = 63

// woff2NullTransform returns the transform version that stores a table as is. For glyf and loca the null transform is version 3, for other tables version 0.
func woff2NullTransform(tag string) byte {
	if tag == "glyf" || tag == "loca" {
		return 3
	}
	return 0
}

type woff2Entry struct {
	tag    string
	length uint32
}

// ParseWOFF2 parses the WOFF2 font format and returns its contained SFNT font format (TTF or OTF). Only null-transformed tables are supported, fonts with a transformed glyf, loca or hmtx table return an error. See https://www.w3.org/TR/WOFF2/
func ParseWOFF2(b []byte) ([]byte, error) {
	tables, err := parseWOFF2Tables(b)
	if err != nil {
		return nil, err
	}
	return writeSFNT(tables, false), nil
}

func parseWOFF2Tables(b []byte) (map[string][]byte, error) {
	h, r, err := readWOFFHeader(b, "wOF2")
	if err != nil {
		return nil, err
	}

	entries := make([]woff2Entry, 0, h.NumTables)
	seen := map[string]bool{}
	var total uint32
	for i := 0; i < int(h.NumTables); i++ {
		if r.Len() < 1 {
			return nil, ErrInvalidFontData
		}
		flags := r.ReadUint8()
		index, transform := int(flags&0x3F), flags>>6

		var tag string
		if index == woff2ArbitraryTag {
			if r.Len() < 4 {
				return nil, ErrInvalidFontData
			}
			tag = r.ReadString(4)
		} else if index < len(woff2KnownTags) {
			tag = woff2KnownTags[index]
		} else {
			return nil, fmt.Errorf("wOF2: bad table tag index %d", index)
		}

		length, err := readUintBase128(r)
		if err != nil {
			return nil, err
		} else if transform != woff2NullTransform(tag) {
			return nil, fmt.Errorf("%s: transformed tables are unsupported", tag)
		} else if seen[tag] {
			return nil, fmt.Errorf("%s: table defined more than once", tag)
		} else if math.MaxUint32-total < length {
			return nil, ErrInvalidFontData
		}
		seen[tag] = true
		total += length
		entries = append(entries, woff2Entry{tag, length})
	}
	if seen["glyf"] != seen["loca"] {
		return nil, fmt.Errorf("wOF2: glyf and loca tables must be both present")
	} else if seen["DSIG"] {
		return nil, fmt.Errorf("DSIG: must be removed")
	}

	// all tables form a single Brotli stream
	if r.Len() < int64(h.TotalCompressedSize) {
		return nil, ErrInvalidFontData
	} else if MaxMemory < total {
		return nil, ErrExceedsMemory
	}
	data, err := decompress(brotli.NewReader(bytes.NewReader(r.ReadBytes(int64(h.TotalCompressedSize)))), total)
	if err != nil {
		return nil, fmt.Errorf("wOF2: %w", err)
	}

	tables := make(map[string][]byte, len(entries))
	for _, entry := range entries {
		tables[entry.tag], data = data[:entry.length:entry.length], data[entry.length:]
	}

	head := tables["head"]
	if len(head) < 18 {
		return nil, fmt.Errorf("head: missing table")
	} else if binary.BigEndian.Uint16(head[16:])&0x0800 == 0 {
		return nil, fmt.Errorf("head: bit 11 in flags must be set")
	}
	binary.BigEndian.PutUint32(head[8:], 0) // checksumAdjustment
	return tables, nil
}

// readUintBase128 reads a UIntBase128, a big-endian variable length number with seven bits per byte.
func readUintBase128(r *parse.BinaryReader) (uint32, error) {
	var v uint32
	for i := 0; i < 5; i++ {
		if r.Len() < 1 {
			return 0, ErrInvalidFontData
		}
		c := r.ReadUint8()
		if i == 0 && c == 0x80 {
			return 0, fmt.Errorf("UIntBase128: leading zeros")
		} else if v&0xFE000000 != 0 {
			return 0, fmt.Errorf("UIntBase128: overflow")
		}
		v = v<<7 | uint32(c&0x7F)
		if c&0x80 == 0 {
			return v, nil
		}
	}
	return 0, fmt.Errorf("UIntBase128: longer than five bytes")
}

func writeUintBase128(w *parse.BinaryWriter, v uint32) {
	n := 1
	for n < 5 && v>>(7*n) != 0 {
		n++
	}
	for i := n - 1; 0 < i; i-- {
		w.WriteByte(0x80 | byte(v>>(7*i))&0x7F)
	}
	w.WriteByte(byte(v) & 0x7F)
}

// woff2Order returns the tags to store sorted, except that loca directly follows glyf. DSIG is dropped since it would be invalidated.
func woff2Order(tables map[string][]byte) []string {
	_, hasGlyf := tables["glyf"]
	key := func(tag string) string {
		if tag == "loca" && hasGlyf {
			return "glyf\x00"
		}
		return tag
	}

	tags := make([]string, 0, len(tables))
	for tag := range tables {
		if tag != "DSIG" && len(tag) == 4 {
			tags = append(tags, tag)
		}
	}
	sort.Slice(tags, func(i, j int) bool {
		return key(tags[i]) < key(tags[j])
	})
	return tags
}

// WriteWOFF2 compresses a table map into the WOFF2 font format. All tables are stored without transformation and DSIG is dropped.
func WriteWOFF2(tables map[string][]byte) ([]byte, error) {
	tags := woff2Order(tables)

	flavor := "\x00\x01\x00\x00"
	_, hasCFF := tables["CFF "]
	_, hasCFF2 := tables["CFF2"]
	if hasCFF || hasCFF2 {
		flavor = "OTTO"
	}
	totalSfntSize := 12 + 16*uint32(len(tags))
	for _, tag := range tags {
		totalSfntSize += (uint32(len(tables[tag])) + 3) &^ 3
	}

	header := make([]byte, 48)
	copy(header, "wOF2")
	copy(header[4:], flavor)
	binary.BigEndian.PutUint16(header[12:], uint16(len(tags)))
	binary.BigEndian.PutUint32(header[16:], totalSfntSize)
	binary.BigEndian.PutUint16(header[24:], 1) // majorVersion

	w := parse.NewBinaryWriter(make([]byte, 0, totalSfntSize/2))
	w.WriteBytes(header)
	for _, tag := range tags {
		index := woff2ArbitraryTag
		for i, known := range woff2KnownTags {
			if known == tag {
				index = i
				break
			}
		}
		w.WriteUint8(woff2NullTransform(tag)<<6 | byte(index))
		if index == woff2ArbitraryTag {
			w.WriteString(tag)
		}
		writeUintBase128(w, uint32(len(tables[tag])))
	}

	directoryEnd := w.Len()
	bw := brotli.NewWriter(w)
	for _, tag := range tags {
		table := tables[tag]
		if tag == "head" && 18 <= len(table) {
			// bit 11 marks a font that went through lossless compression
			table = append([]byte{}, table...)
			binary.BigEndian.PutUint16(table[16:], binary.BigEndian.Uint16(table[16:])|0x0800)
		}
		if _, err := bw.Write(table); err != nil {
			return nil, err
		}
	}
	if err := bw.Close(); err != nil {
		return nil, err
	}
	compressedSize := w.Len() - directoryEnd
	w.WriteBytes(make([]byte, (4-w.Len()&3)&3))

	b := w.Bytes()
	binary.BigEndian.PutUint32(b[8:], uint32(len(b)))
	binary.BigEndian.PutUint32(b[20:], uint32(compressedSize))
	return b, nil
}

// WriteWOFF2 writes out the font in the WOFF2 font format.
func (sfnt *SFNT) WriteWOFF2() ([]byte, error) {
	return WriteWOFF2(sfnt.Tables)
}
