package varfont

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"sort"
	"testing"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/test"
)

// testWOFF wraps tables into a WOFF file, compressing every table that gets smaller.
func testWOFF(t *testing.T, tables map[string][]byte) []byte {
	t.Helper()
	tags := make([]string, 0, len(tables))
	for tag := range tables {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	data := make([][]byte, len(tags))
	for i, tag := range tags {
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		_, err := w.Write(tables[tag])
		test.Error(t, err)
		test.Error(t, w.Close())
		data[i] = tables[tag]
		if buf.Len() < len(tables[tag]) {
			data[i] = buf.Bytes()
		}
	}

	offset := 44 + 20*len(tags)
	w := parse.NewBinaryWriter([]byte{})
	w.WriteString("wOFF")
	w.WriteUint32(0x00010000)
	w.WriteUint32(0) // length (set later)
	w.WriteUint16(uint16(len(tags)))
	w.WriteUint16(0)
	w.WriteUint32(0) // totalSfntSize
	w.WriteUint16(1)
	w.WriteUint16(0)
	w.WriteUint32(0)
	w.WriteUint32(0)
	w.WriteUint32(0)
	w.WriteUint32(0)
	w.WriteUint32(0)
	for i, tag := range tags {
		w.WriteString(tag)
		w.WriteUint32(uint32(offset))
		w.WriteUint32(uint32(len(data[i])))
		w.WriteUint32(uint32(len(tables[tag])))
		w.WriteUint32(0) // origChecksum
		offset += len(data[i])
	}
	for i := range tags {
		w.WriteBytes(data[i])
	}
	b := w.Bytes()
	binary.BigEndian.PutUint32(b[8:], uint32(len(b)))
	return b
}

func TestWOFF(t *testing.T) {
	tables := newTestFont(20).Tables(t)
	b := testWOFF(t, tables)

	sfntBytes, err := ParseWOFF(b)
	test.Error(t, err)
	sfnt, err := ParseSFNT(sfntBytes, 0)
	test.Error(t, err)
	test.T(t, len(sfnt.Tables), len(tables))
	for tag, table := range tables {
		if tag != "head" {
			test.Bytes(t, sfnt.Tables[tag], table, tag)
		}
	}
}

func TestWOFFErrors(t *testing.T) {
	b := testWOFF(t, newTestFont(1).Tables(t))

	_, err := ParseWOFF(b[:40])
	test.T(t, err, ErrInvalidFontData)

	bad := append([]byte{}, b...)
	copy(bad, "wOF2")
	_, err = ParseWOFF(bad)
	test.That(t, err != nil, "expected error for bad signature")

	bad = append([]byte{}, b...)
	copy(bad[4:], "ttcf")
	_, err = ParseWOFF(bad)
	test.That(t, err != nil, "expected error for collection")

	bad = append([]byte{}, b...)
	binary.BigEndian.PutUint32(bad[8:], uint32(len(b)-1))
	_, err = ParseWOFF(bad)
	test.That(t, err != nil, "expected error for bad length")

	// offset of the first table past the end
	bad = append([]byte{}, b...)
	binary.BigEndian.PutUint32(bad[44+4:], uint32(len(b)))
	_, err = ParseWOFF(bad)
	test.That(t, err != nil, "expected error for bad table offset")
}
