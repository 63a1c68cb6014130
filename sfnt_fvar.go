package varfont

import (
	"fmt"
	"math"
	"sort"

	"github.com/tdewolff/parse/v2"
)

const fvarAxisHidden = 0x0001

type fvarAxis struct {
	Tag     Tag
	Min     float64
	Default float64
	Max     float64
	Flags   uint16
	NameID  NameID
}

// Hidden returns true if the axis should not be exposed in user interfaces.
func (axis fvarAxis) Hidden() bool {
	return axis.Flags&fvarAxisHidden != 0
}

type fvarInstance struct {
	SubfamilyNameID  NameID
	Flags            uint16
	Coordinates      []float64 // in axis order
	PostScriptNameID NameID    // 0xFFFF if absent
}

type fvarTable struct {
	Axes      []fvarAxis
	Instances []fvarInstance
}

// Index returns the position of the axis in axis order.
func (fvar *fvarTable) Index(tag Tag) (int, bool) {
	for i, axis := range fvar.Axes {
		if axis.Tag == tag {
			return i, true
		}
	}
	return 0, false
}

// Coordinates returns the user coordinates of a named instance keyed by axis tag.
func (fvar *fvarTable) Coordinates(instance int) map[Tag]float64 {
	coords := make(map[Tag]float64, len(fvar.Axes))
	for i, axis := range fvar.Axes {
		coords[axis.Tag] = fvar.Instances[instance].Coordinates[i]
	}
	return coords
}

func (sfnt *SFNT) parseFvar() error {
	b, ok := sfnt.Tables["fvar"]
	if !ok {
		return fmt.Errorf("fvar: missing table")
	} else if len(b) < 16 {
		return errInvalidFont("fvar", "bad table")
	}

	r := parse.NewBinaryReaderBytes(b)
	majorVersion := r.ReadUint16()
	minorVersion := r.ReadUint16()
	if majorVersion != 1 || minorVersion != 0 {
		return errInvalidFont("fvar", "bad version")
	}
	axesArrayOffset := r.ReadUint16()
	_ = r.ReadUint16() // reserved
	axisCount := r.ReadUint16()
	axisSize := r.ReadUint16()
	instanceCount := r.ReadUint16()
	instanceSize := r.ReadUint16()
	if axisSize != 20 {
		return errInvalidFont("fvar", "bad axisSize")
	} else if instanceSize != 4*axisCount+4 && instanceSize != 4*axisCount+6 {
		return errInvalidFont("fvar", "bad instanceSize")
	}
	length := uint32(axesArrayOffset) + uint32(axisCount)*uint32(axisSize) + uint32(instanceCount)*uint32(instanceSize)
	if uint32(len(b)) < length {
		return errInvalidFont("fvar", "bad table")
	}

	sfnt.Fvar = &fvarTable{}
	sfnt.Fvar.Axes = make([]fvarAxis, axisCount)
	_ = r.ReadBytes(int64(axesArrayOffset) - 16)
	for i := 0; i < int(axisCount); i++ {
		axis := &sfnt.Fvar.Axes[i]
		copy(axis.Tag[:], r.ReadBytes(4))
		axis.Min = fixedToFloat(r.ReadUint32())
		axis.Default = fixedToFloat(r.ReadUint32())
		axis.Max = fixedToFloat(r.ReadUint32())
		axis.Flags = r.ReadUint16()
		axis.NameID = NameID(r.ReadUint16())
		if axis.Default < axis.Min || axis.Max < axis.Default {
			return errInvalidFont("fvar", "bad range for axis %s", axis.Tag)
		}
		for j := 0; j < i; j++ {
			if sfnt.Fvar.Axes[j].Tag == axis.Tag {
				return errInvalidFont("fvar", "duplicate axis %s", axis.Tag)
			}
		}
	}

	sfnt.Fvar.Instances = make([]fvarInstance, instanceCount)
	for i := 0; i < int(instanceCount); i++ {
		instance := &sfnt.Fvar.Instances[i]
		instance.SubfamilyNameID = NameID(r.ReadUint16())
		instance.Flags = r.ReadUint16()
		instance.Coordinates = make([]float64, axisCount)
		for j := 0; j < int(axisCount); j++ {
			instance.Coordinates[j] = fixedToFloat(r.ReadUint32())
		}
		instance.PostScriptNameID = 0xFFFF
		if instanceSize == 4*axisCount+6 {
			instance.PostScriptNameID = NameID(r.ReadUint16())
		}
	}
	return nil
}

////////////////////////////////////////////////////////////////

type avarAxisValueMap struct {
	From, To float64
}

type avarTable struct {
	SegmentMaps [][]avarAxisValueMap // in axis order
}

// Map applies the segment maps to a normalized location.
func (avar *avarTable) Map(loc Location) Location {
	coords := make([]float64, len(loc.coords))
	for i, v := range loc.coords {
		if i < len(avar.SegmentMaps) {
			v = avarMapValue(avar.SegmentMaps[i], v)
		}
		coords[i] = v
	}
	return Location{tags: loc.tags, coords: coords}
}

// avarMapValue interpolates linearly between the surrounding mappings, shifting values beyond the first or last mapping by that mapping's offset.
func avarMapValue(segments []avarAxisValueMap, v float64) float64 {
	if len(segments) == 0 {
		return v
	}
	i := sort.Search(len(segments), func(i int) bool { return v <= segments[i].From })
	if i < len(segments) && segments[i].From == v {
		return segments[i].To
	} else if i == 0 {
		return v + segments[0].To - segments[0].From
	} else if i == len(segments) {
		last := segments[len(segments)-1]
		return v + last.To - last.From
	}
	a, b := segments[i-1], segments[i]
	v = a.To + (b.To-a.To)*(v-a.From)/(b.From-a.From)
	return math.Max(-1.0, math.Min(1.0, v))
}

func (sfnt *SFNT) parseAvar() error {
	b, ok := sfnt.Tables["avar"]
	if !ok {
		return fmt.Errorf("avar: missing table")
	} else if len(b) < 8 {
		return errInvalidFont("avar", "bad table")
	}

	r := parse.NewBinaryReaderBytes(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16() // minorVersion
	if majorVersion != 1 {
		// avar2 adds a variation store that we do not evaluate
		tracer().Infof("avar: unsupported version %d, ignoring table", majorVersion)
		return nil
	}
	_ = r.ReadUint16() // reserved
	axisCount := r.ReadUint16()
	if sfnt.Fvar != nil && int(axisCount) != len(sfnt.Fvar.Axes) {
		return errInvalidFont("avar", "axisCount does not match fvar")
	}

	sfnt.Avar = &avarTable{}
	sfnt.Avar.SegmentMaps = make([][]avarAxisValueMap, axisCount)
	for i := 0; i < int(axisCount); i++ {
		if r.Len() < 2 {
			return errInvalidFont("avar", "bad table")
		}
		positionMapCount := r.ReadUint16()
		if r.Len() < 4*int64(positionMapCount) {
			return errInvalidFont("avar", "bad table")
		}
		segments := make([]avarAxisValueMap, positionMapCount)
		for j := 0; j < int(positionMapCount); j++ {
			segments[j].From = f2dot14ToFloat(r.ReadInt16())
			segments[j].To = f2dot14ToFloat(r.ReadInt16())
			if 0 < j && segments[j].From < segments[j-1].From {
				return errInvalidFont("avar", "unsorted segment map for axis %d", i)
			}
		}
		sfnt.Avar.SegmentMaps[i] = segments
	}
	return nil
}
