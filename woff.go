package varfont

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tdewolff/parse/v2"
)

// Specification:
// https://www.w3.org/TR/WOFF/

type woffHeader struct {
	NumTables           uint16
	TotalSfntSize       uint32
	TotalCompressedSize uint32 // WOFF2 only
}

// readWOFFHeader validates the header shared by WOFF (44 bytes) and WOFF2 (48 bytes) and returns a reader positioned at the table directory.
func readWOFFHeader(b []byte, signature string) (woffHeader, *parse.BinaryReader, error) {
	size := 44
	if signature == "wOF2" {
		size = 48
	}
	if len(b) < size {
		return woffHeader{}, nil, ErrInvalidFontData
	} else if string(b[:4]) != signature {
		return woffHeader{}, nil, fmt.Errorf("%s: bad signature %q", signature, b[:4])
	} else if string(b[4:8]) == "ttcf" {
		return woffHeader{}, nil, fmt.Errorf("%s: collections are unsupported", signature)
	} else if length := binary.BigEndian.Uint32(b[8:]); length != uint32(len(b)) {
		return woffHeader{}, nil, fmt.Errorf("%s: length %d does not match file size %d", signature, length, len(b))
	} else if binary.BigEndian.Uint16(b[14:]) != 0 {
		return woffHeader{}, nil, fmt.Errorf("%s: reserved must be zero", signature)
	}

	h := woffHeader{
		NumTables:     binary.BigEndian.Uint16(b[12:]),
		TotalSfntSize: binary.BigEndian.Uint32(b[16:]),
	}
	if signature == "wOF2" {
		h.TotalCompressedSize = binary.BigEndian.Uint32(b[20:])
	}
	if h.NumTables == 0 {
		return woffHeader{}, nil, fmt.Errorf("%s: no tables", signature)
	}
	return h, parse.NewBinaryReaderBytes(b[size:]), nil
}

// decompress reads exactly n bytes from the decompressor r.
func decompress(r io.Reader, n uint32) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, n))
	if _, err := io.Copy(buf, io.LimitReader(r, int64(n)+1)); err != nil {
		return nil, err
	} else if uint32(buf.Len()) != n {
		return nil, fmt.Errorf("decompressed %d bytes instead of %d", buf.Len(), n)
	}
	return buf.Bytes(), nil
}

// ParseWOFF parses the WOFF font format and returns its contained SFNT font format (TTF or OTF). See https://www.w3.org/TR/WOFF/
func ParseWOFF(b []byte) ([]byte, error) {
	h, r, err := readWOFFHeader(b, "wOFF")
	if err != nil {
		return nil, err
	} else if MaxMemory < h.TotalSfntSize {
		return nil, ErrExceedsMemory
	} else if r.Len() < 20*int64(h.NumTables) {
		return nil, ErrInvalidFontData
	}

	tables := make(map[string][]byte, h.NumTables)
	var total uint32
	for i := 0; i < int(h.NumTables); i++ {
		tag := r.ReadString(4)
		offset, compLength, origLength := r.ReadUint32(), r.ReadUint32(), r.ReadUint32()
		_ = r.ReadUint32() // origChecksum
		if _, ok := tables[tag]; ok {
			return nil, fmt.Errorf("%s: table defined more than once", tag)
		} else if uint32(len(b)) < offset || uint32(len(b))-offset < compLength {
			return nil, fmt.Errorf("%s: bad table offset", tag)
		} else if origLength < compLength {
			return nil, fmt.Errorf("%s: compressed table larger than original", tag)
		} else if MaxMemory-total < origLength {
			return nil, ErrExceedsMemory
		}
		total += origLength

		// tables that do not shrink are stored uncompressed
		data := b[offset : offset+compLength : offset+compLength]
		if compLength < origLength {
			zr, err := zlib.NewReader(bytes.NewReader(data))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", tag, err)
			}
			data, err = decompress(zr, origLength)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", tag, err)
			} else if err := zr.Close(); err != nil {
				return nil, fmt.Errorf("%s: %w", tag, err)
			}
		}
		tables[tag] = data
	}
	return writeSFNT(tables, false), nil
}
