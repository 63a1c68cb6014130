package varfont

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxMemory is the maximum memory that can be allocated by a font.
var MaxMemory uint32 = 30 * 1024 * 1024

// ErrExceedsMemory is returned if the font is malformed.
var ErrExceedsMemory = fmt.Errorf("memory limit exceded")

// ErrInvalidFontData is returned if the font is malformed.
var ErrInvalidFontData = fmt.Errorf("invalid font data")

// Tag is a four-byte OpenType tag, such as an axis tag or a table tag.
type Tag [4]byte

// ParseTag converts a string of at most four bytes into a tag, padding it with spaces.
func ParseTag(s string) (Tag, error) {
	if len(s) == 0 || 4 < len(s) {
		return Tag{}, fmt.Errorf("bad tag %q", s)
	}
	tag := Tag{' ', ' ', ' ', ' '}
	copy(tag[:], s)
	return tag, nil
}

// MustParseTag is like ParseTag but panics on error.
func MustParseTag(s string) Tag {
	tag, err := ParseTag(s)
	if err != nil {
		panic(err)
	}
	return tag
}

func (tag Tag) String() string {
	return string(tag[:])
}

func calcChecksum(b []byte) uint32 {
	if len(b)%4 != 0 {
		panic("data not multiple of four bytes")
	}
	var sum uint32
	for i := 0; i < len(b); i += 4 {
		sum += binary.BigEndian.Uint32(b[i : i+4])
	}
	return sum
}

// fixedToFloat converts a 16.16 fixed-point number.
func fixedToFloat(v uint32) float64 {
	return float64(int32(v)) / (1 << 16)
}

// f2dot14ToFloat converts a 2.14 fixed-point number.
func f2dot14ToFloat(v int16) float64 {
	return float64(v) / (1 << 14)
}

// floatToF2dot14 converts to a 2.14 fixed-point number, saturating at its range.
func floatToF2dot14(f float64) int16 {
	v := roundHalfAway(f * (1 << 14))
	if v < math.MinInt16 {
		return math.MinInt16
	} else if math.MaxInt16 < v {
		return math.MaxInt16
	}
	return int16(v)
}

// roundHalfAway rounds to the nearest integer with ties away from zero. All summed deltas are rounded this way.
func roundHalfAway(f float64) int64 {
	return int64(math.Round(f))
}

func saturateInt16(v int64) int16 {
	if v < math.MinInt16 {
		return math.MinInt16
	} else if math.MaxInt16 < v {
		return math.MaxInt16
	}
	return int16(v)
}

func saturateUint16(v int64) uint16 {
	if v < 0 {
		return 0
	} else if math.MaxUint16 < v {
		return math.MaxUint16
	}
	return uint16(v)
}
