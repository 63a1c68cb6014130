package varfont

import (
	"encoding/binary"
	"fmt"
)

// MediaType returns the media type (MIME) for a given font.
func MediaType(b []byte) (string, error) {
	if len(b) < 4 {
		return "", fmt.Errorf("empty font file")
	}

	tag := binary.BigEndian.Uint32(b)
	switch {
	case tag == binary.BigEndian.Uint32([]byte("wOF2")):
		return "font/woff2", nil
	case tag == binary.BigEndian.Uint32([]byte("wOFF")):
		return "font/woff", nil
	case tag == binary.BigEndian.Uint32([]byte("true")) || tag == 0x00010000:
		return "font/truetype", nil
	case tag == binary.BigEndian.Uint32([]byte("OTTO")):
		return "font/opentype", nil
	case tag == binary.BigEndian.Uint32([]byte("ttcf")):
		return "font/collection", nil
	}
	return "", fmt.Errorf("unrecognized font file format")
}

// Extension returns the file extension for a media type.
func Extension(mimetype string) string {
	switch mimetype {
	case "font/truetype":
		return ".ttf"
	case "font/opentype":
		return ".otf"
	case "font/collection":
		return ".ttc"
	case "font/woff":
		return ".woff"
	case "font/woff2":
		return ".woff2"
	}
	return ""
}

// ToSFNT takes a byte slice and transforms it into an SFNT font file (TTF, OTF, or TTC). WOFF and WOFF2 are decompressed.
func ToSFNT(b []byte) ([]byte, error) {
	mimetype, err := MediaType(b)
	if err != nil {
		return nil, err
	}
	switch mimetype {
	case "font/truetype", "font/opentype", "font/collection":
		return b, nil
	case "font/woff":
		return ParseWOFF(b)
	case "font/woff2":
		return ParseWOFF2(b)
	}
	return nil, fmt.Errorf("unsupported font file format: %s", mimetype)
}

// ParseFont parses a font file of any supported format. The index is used for font collections to select a single font.
func ParseFont(b []byte, index int) (*SFNT, error) {
	b, err := ToSFNT(b)
	if err != nil {
		return nil, err
	}
	return ParseSFNT(b, index)
}
