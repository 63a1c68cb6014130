package varfont

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tdewolff/parse/v2"
)

////////////////////////////////////////////////////////////////

const (
	glyfOnCurve       = 0x01
	glyfXShortVector  = 0x02
	glyfYShortVector  = 0x04
	glyfRepeat        = 0x08
	glyfXSameOrPos    = 0x10
	glyfYSameOrPos    = 0x20
	glyfOverlapSimple = 0x40
)

const (
	compositeArgsAreWords     = 0x0001
	compositeArgsAreXYValues  = 0x0002
	compositeHaveScale        = 0x0008
	compositeMoreComponents   = 0x0020
	compositeHaveXYScale      = 0x0040
	compositeHaveTwoByTwo     = 0x0080
	compositeHaveInstructions = 0x0100
)

type glyfComponent struct {
	Flags      uint16
	GlyphID    uint16
	Arg1, Arg2 int16    // offset when ARGS_ARE_XY_VALUES, otherwise point numbers
	Transform  [4]int16 // F2Dot14 xx, xy, yx, yy
}

// HasTransform returns true if the component is scaled or rotated.
func (c glyfComponent) HasTransform() bool {
	return c.Flags&(compositeHaveScale|compositeHaveXYScale|compositeHaveTwoByTwo) != 0
}

// Scale applies the 2x2 transformation of the component without its offset.
func (c glyfComponent) Scale(x, y float64) (float64, float64) {
	if c.HasTransform() {
		xx, xy := f2dot14ToFloat(c.Transform[0]), f2dot14ToFloat(c.Transform[1])
		yx, yy := f2dot14ToFloat(c.Transform[2]), f2dot14ToFloat(c.Transform[3])
		x, y = x*xx+y*yx, x*xy+y*yy
	}
	return x, y
}

// Apply transforms a point of the component glyph into the coordinate space of the composite. Only valid when the arguments are an offset.
func (c glyfComponent) Apply(x, y float64) (float64, float64) {
	x, y = c.Scale(x, y)
	return x + float64(c.Arg1), y + float64(c.Arg2)
}

// glyfGlyph is a decoded glyph, either simple with contours or composite with components. An empty glyph has neither.
type glyfGlyph struct {
	GlyphID                uint16
	XMin, YMin, XMax, YMax int16
	EndPoints              []uint16
	Instructions           []byte
	OnCurve                []bool
	OverlapSimple          []bool
	XCoordinates           []int16
	YCoordinates           []int16
	Components             []glyfComponent
}

func (glyph *glyfGlyph) IsComposite() bool {
	return 0 < len(glyph.Components)
}

func (glyph *glyfGlyph) IsEmpty() bool {
	return len(glyph.EndPoints) == 0 && len(glyph.Components) == 0
}

// NumPoints returns the number of points that gvar deltas apply to, excluding phantom points. For composite glyphs there is one point per component.
func (glyph *glyfGlyph) NumPoints() int {
	if glyph.IsComposite() {
		return len(glyph.Components)
	}
	return len(glyph.XCoordinates)
}

// calcBounds sets the bounding box from the coordinates of a simple glyph.
func (glyph *glyfGlyph) calcBounds() {
	if len(glyph.XCoordinates) == 0 {
		glyph.XMin, glyph.YMin, glyph.XMax, glyph.YMax = 0, 0, 0, 0
		return
	}
	glyph.XMin, glyph.XMax = glyph.XCoordinates[0], glyph.XCoordinates[0]
	glyph.YMin, glyph.YMax = glyph.YCoordinates[0], glyph.YCoordinates[0]
	for i := 1; i < len(glyph.XCoordinates); i++ {
		glyph.XMin = min(glyph.XMin, glyph.XCoordinates[i])
		glyph.XMax = max(glyph.XMax, glyph.XCoordinates[i])
		glyph.YMin = min(glyph.YMin, glyph.YCoordinates[i])
		glyph.YMax = max(glyph.YMax, glyph.YCoordinates[i])
	}
}

// Write encodes the glyph into the glyf table format. Empty glyphs have zero length.
func (glyph *glyfGlyph) Write() []byte {
	if glyph.IsEmpty() {
		return []byte{}
	}

	w := parse.NewBinaryWriter([]byte{})
	if glyph.IsComposite() {
		w.WriteInt16(-1) // numberOfContours
	} else {
		w.WriteInt16(int16(len(glyph.EndPoints))) // numberOfContours
	}
	w.WriteInt16(glyph.XMin)
	w.WriteInt16(glyph.YMin)
	w.WriteInt16(glyph.XMax)
	w.WriteInt16(glyph.YMax)

	if glyph.IsComposite() {
		hasInstructions := false
		for i, comp := range glyph.Components {
			flags := comp.Flags &^ (compositeArgsAreWords | compositeMoreComponents)
			if i+1 < len(glyph.Components) {
				flags |= compositeMoreComponents
			}
			if comp.Flags&compositeArgsAreXYValues != 0 {
				if comp.Arg1 < math.MinInt8 || math.MaxInt8 < comp.Arg1 || comp.Arg2 < math.MinInt8 || math.MaxInt8 < comp.Arg2 {
					flags |= compositeArgsAreWords
				}
			} else if comp.Arg1 < 0 || math.MaxUint8 < comp.Arg1 || comp.Arg2 < 0 || math.MaxUint8 < comp.Arg2 {
				flags |= compositeArgsAreWords
			}
			hasInstructions = hasInstructions || flags&compositeHaveInstructions != 0

			w.WriteUint16(flags)
			w.WriteUint16(comp.GlyphID)
			if flags&compositeArgsAreWords != 0 {
				w.WriteInt16(comp.Arg1)
				w.WriteInt16(comp.Arg2)
			} else if flags&compositeArgsAreXYValues != 0 {
				w.WriteInt8(int8(comp.Arg1))
				w.WriteInt8(int8(comp.Arg2))
			} else {
				w.WriteUint8(uint8(comp.Arg1))
				w.WriteUint8(uint8(comp.Arg2))
			}
			if flags&compositeHaveScale != 0 {
				w.WriteInt16(comp.Transform[0])
			} else if flags&compositeHaveXYScale != 0 {
				w.WriteInt16(comp.Transform[0])
				w.WriteInt16(comp.Transform[3])
			} else if flags&compositeHaveTwoByTwo != 0 {
				w.WriteInt16(comp.Transform[0])
				w.WriteInt16(comp.Transform[1])
				w.WriteInt16(comp.Transform[2])
				w.WriteInt16(comp.Transform[3])
			}
		}
		if hasInstructions {
			w.WriteUint16(uint16(len(glyph.Instructions)))
			w.WriteBytes(glyph.Instructions)
		}
		return w.Bytes()
	}

	for _, endPoint := range glyph.EndPoints {
		w.WriteUint16(endPoint)
	}
	w.WriteUint16(uint16(len(glyph.Instructions)))
	w.WriteBytes(glyph.Instructions)

	numPoints := len(glyph.XCoordinates)
	flags := make([]byte, numPoints)
	xs := parse.NewBinaryWriter(make([]byte, 0, 2*numPoints))
	ys := parse.NewBinaryWriter(make([]byte, 0, 2*numPoints))
	var x, y int16
	for i := 0; i < numPoints; i++ {
		var flag byte
		if glyph.OnCurve[i] {
			flag |= glyfOnCurve
		}
		if i == 0 && glyph.OverlapSimple[0] {
			flag |= glyfOverlapSimple
		}

		dx := int(glyph.XCoordinates[i]) - int(x)
		if dx == 0 {
			flag |= glyfXSameOrPos
		} else if -255 <= dx && dx <= 255 {
			flag |= glyfXShortVector
			if 0 < dx {
				flag |= glyfXSameOrPos
			} else {
				dx = -dx
			}
			xs.WriteUint8(uint8(dx))
		} else {
			xs.WriteInt16(int16(dx))
		}

		dy := int(glyph.YCoordinates[i]) - int(y)
		if dy == 0 {
			flag |= glyfYSameOrPos
		} else if -255 <= dy && dy <= 255 {
			flag |= glyfYShortVector
			if 0 < dy {
				flag |= glyfYSameOrPos
			} else {
				dy = -dy
			}
			ys.WriteUint8(uint8(dy))
		} else {
			ys.WriteInt16(int16(dy))
		}
		flags[i] = flag
		x, y = glyph.XCoordinates[i], glyph.YCoordinates[i]
	}

	for i := 0; i < numPoints; {
		repeats := 0
		for i+repeats+1 < numPoints && flags[i+repeats+1] == flags[i] && repeats < 255 {
			repeats++
		}
		if 0 < repeats {
			w.WriteUint8(flags[i] | glyfRepeat)
			w.WriteUint8(uint8(repeats))
		} else {
			w.WriteUint8(flags[i])
		}
		i += repeats + 1
	}
	w.WriteBytes(xs.Bytes())
	w.WriteBytes(ys.Bytes())
	return w.Bytes()
}

type glyfTable struct {
	data []byte
	loca *locaTable
}

// Get returns the glyph data corresponding to the passed glyphID. It returns nil if the glyph doesn't exist.
func (glyf *glyfTable) Get(glyphID uint16) []byte {
	start, ok1 := glyf.loca.Get(glyphID)
	end, ok2 := glyf.loca.Get(glyphID + 1)
	if !ok1 || !ok2 || end < start || uint32(len(glyf.data)) < end {
		return nil
	}
	return glyf.data[start:end:end]
}

// Glyph decodes a glyph without resolving its components.
func (glyf *glyfTable) Glyph(glyphID uint16) (*glyfGlyph, error) {
	b := glyf.Get(glyphID)
	if b == nil {
		return nil, fmt.Errorf("glyf: bad glyphID %v", glyphID)
	}
	return parseGlyph(glyphID, b)
}

func parseGlyph(glyphID uint16, b []byte) (*glyfGlyph, error) {
	glyph := &glyfGlyph{GlyphID: glyphID}
	if len(b) == 0 {
		return glyph, nil
	}

	r := parse.NewBinaryReaderBytes(b)
	if r.Len() < 10 {
		return nil, fmt.Errorf("glyf: bad table for glyphID %v", glyphID)
	}
	numberOfContours := r.ReadInt16()
	glyph.XMin = r.ReadInt16()
	glyph.YMin = r.ReadInt16()
	glyph.XMax = r.ReadInt16()
	glyph.YMax = r.ReadInt16()
	if numberOfContours < 0 {
		return glyph, parseCompositeGlyph(glyph, r)
	} else if numberOfContours == 0 {
		return glyph, nil
	}

	// simple glyph
	if r.Len() < 2*int64(numberOfContours)+2 {
		return nil, fmt.Errorf("glyf: bad table for glyphID %v", glyphID)
	}
	glyph.EndPoints = make([]uint16, numberOfContours)
	for i := 0; i < int(numberOfContours); i++ {
		glyph.EndPoints[i] = r.ReadUint16()
		if 0 < i && glyph.EndPoints[i] <= glyph.EndPoints[i-1] {
			return nil, fmt.Errorf("glyf: bad endPtsOfContours for glyphID %v", glyphID)
		}
	}

	instructionLength := r.ReadUint16()
	if r.Len() < int64(instructionLength) {
		return nil, fmt.Errorf("glyf: bad table for glyphID %v", glyphID)
	}
	glyph.Instructions = r.ReadBytes(int64(instructionLength))

	numPoints := int(glyph.EndPoints[numberOfContours-1]) + 1
	flags := make([]byte, numPoints)
	glyph.OnCurve = make([]bool, numPoints)
	glyph.OverlapSimple = make([]bool, numPoints)
	for i := 0; i < numPoints; i++ {
		if r.Len() < 1 {
			return nil, fmt.Errorf("glyf: bad table for glyphID %v", glyphID)
		}

		flags[i] = r.ReadUint8()
		glyph.OnCurve[i] = flags[i]&glyfOnCurve != 0
		glyph.OverlapSimple[i] = flags[i]&glyfOverlapSimple != 0
		if flags[i]&glyfRepeat != 0 {
			if r.Len() < 1 {
				return nil, fmt.Errorf("glyf: bad table for glyphID %v", glyphID)
			}
			repeats := int(r.ReadUint8())
			if numPoints <= i+repeats {
				return nil, fmt.Errorf("glyf: bad flags for glyphID %v", glyphID)
			}
			for j := 1; j <= repeats; j++ {
				flags[i+j] = flags[i]
				glyph.OnCurve[i+j] = glyph.OnCurve[i]
				glyph.OverlapSimple[i+j] = glyph.OverlapSimple[i]
			}
			i += repeats
		}
	}

	var x int16
	glyph.XCoordinates = make([]int16, numPoints)
	for i := 0; i < numPoints; i++ {
		xShortVector := flags[i]&glyfXShortVector != 0
		xIsSameOrPositiveXShortVector := flags[i]&glyfXSameOrPos != 0
		if xShortVector {
			if r.Len() < 1 {
				return nil, fmt.Errorf("glyf: bad table or flags for glyphID %v", glyphID)
			}
			if xIsSameOrPositiveXShortVector {
				x += int16(r.ReadUint8())
			} else {
				x -= int16(r.ReadUint8())
			}
		} else if !xIsSameOrPositiveXShortVector {
			if r.Len() < 2 {
				return nil, fmt.Errorf("glyf: bad table or flags for glyphID %v", glyphID)
			}
			x += r.ReadInt16()
		}
		glyph.XCoordinates[i] = x
	}

	var y int16
	glyph.YCoordinates = make([]int16, numPoints)
	for i := 0; i < numPoints; i++ {
		yShortVector := flags[i]&glyfYShortVector != 0
		yIsSameOrPositiveYShortVector := flags[i]&glyfYSameOrPos != 0
		if yShortVector {
			if r.Len() < 1 {
				return nil, fmt.Errorf("glyf: bad table or flags for glyphID %v", glyphID)
			}
			if yIsSameOrPositiveYShortVector {
				y += int16(r.ReadUint8())
			} else {
				y -= int16(r.ReadUint8())
			}
		} else if !yIsSameOrPositiveYShortVector {
			if r.Len() < 2 {
				return nil, fmt.Errorf("glyf: bad table or flags for glyphID %v", glyphID)
			}
			y += r.ReadInt16()
		}
		glyph.YCoordinates[i] = y
	}
	return glyph, nil
}

func parseCompositeGlyph(glyph *glyfGlyph, r *parse.BinaryReader) error {
	hasInstructions := false
	for {
		if r.Len() < 4 {
			return fmt.Errorf("glyf: bad table for glyphID %v", glyph.GlyphID)
		}

		comp := glyfComponent{}
		comp.Flags = r.ReadUint16()
		comp.GlyphID = r.ReadUint16()
		length, more := glyfCompositeLength(comp.Flags)
		if r.Len() < int64(length)-4 {
			return fmt.Errorf("glyf: bad table for glyphID %v", glyph.GlyphID)
		}

		if comp.Flags&compositeArgsAreWords != 0 {
			if comp.Flags&compositeArgsAreXYValues != 0 {
				comp.Arg1 = r.ReadInt16()
				comp.Arg2 = r.ReadInt16()
			} else {
				comp.Arg1 = int16(r.ReadUint16())
				comp.Arg2 = int16(r.ReadUint16())
			}
		} else if comp.Flags&compositeArgsAreXYValues != 0 {
			comp.Arg1 = int16(r.ReadInt8())
			comp.Arg2 = int16(r.ReadInt8())
		} else {
			comp.Arg1 = int16(r.ReadUint8())
			comp.Arg2 = int16(r.ReadUint8())
		}
		comp.Transform = [4]int16{1 << 14, 0, 0, 1 << 14}
		if comp.Flags&compositeHaveScale != 0 {
			comp.Transform[0] = r.ReadInt16()
			comp.Transform[3] = comp.Transform[0]
		} else if comp.Flags&compositeHaveXYScale != 0 {
			comp.Transform[0] = r.ReadInt16()
			comp.Transform[3] = r.ReadInt16()
		} else if comp.Flags&compositeHaveTwoByTwo != 0 {
			comp.Transform[0] = r.ReadInt16()
			comp.Transform[1] = r.ReadInt16()
			comp.Transform[2] = r.ReadInt16()
			comp.Transform[3] = r.ReadInt16()
		}
		if comp.Flags&compositeHaveInstructions != 0 {
			hasInstructions = true
		}
		glyph.Components = append(glyph.Components, comp)
		if !more {
			break
		}
	}
	if hasInstructions {
		if r.Len() < 2 {
			return fmt.Errorf("glyf: bad table for glyphID %v", glyph.GlyphID)
		}
		instructionLength := r.ReadUint16()
		if r.Len() < int64(instructionLength) {
			return fmt.Errorf("glyf: bad table for glyphID %v", glyph.GlyphID)
		}
		glyph.Instructions = r.ReadBytes(int64(instructionLength))
	}
	return nil
}

func glyfCompositeLength(flags uint16) (length uint32, more bool) {
	length = 4 + 2
	if flags&compositeArgsAreWords != 0 {
		length += 2
	}
	if flags&compositeHaveScale != 0 {
		length += 2
	} else if flags&compositeHaveXYScale != 0 {
		length += 4
	} else if flags&compositeHaveTwoByTwo != 0 {
		length += 8
	}
	more = flags&compositeMoreComponents != 0
	return
}

func (sfnt *SFNT) parseGlyf() error {
	if sfnt.Loca == nil {
		return fmt.Errorf("glyf: missing loca table")
	}
	b := sfnt.Tables["glyf"]
	if end, _ := sfnt.Loca.Get(sfnt.Maxp.NumGlyphs); uint32(len(b)) < end {
		return fmt.Errorf("glyf: table shorter than loca end offset %d", end)
	}
	sfnt.Glyf = &glyfTable{data: b, loca: sfnt.Loca}
	return nil
}

////////////////////////////////////////////////////////////////

// locaTable holds glyph offsets into glyf, halved in the short format (0) and as is in the long format (1).
type locaTable struct {
	Format int16
	data   []byte
}

// Get returns the offset of glyphID into glyf. Glyph i spans the offsets of i and i+1.
func (loca *locaTable) Get(glyphID uint16) (uint32, bool) {
	i := int(glyphID)
	if loca.Format == 0 {
		if len(loca.data) < 2*i+2 {
			return 0, false
		}
		return 2 * uint32(binary.BigEndian.Uint16(loca.data[2*i:])), true
	} else if len(loca.data) < 4*i+4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(loca.data[4*i:]), true
}

func (sfnt *SFNT) parseLoca() error {
	if sfnt.Head == nil || sfnt.Maxp == nil {
		return fmt.Errorf("loca: missing head or maxp table")
	}
	b := sfnt.Tables["loca"]
	format := sfnt.Head.IndexToLocFormat
	if n := int(sfnt.Maxp.NumGlyphs) + 1; format == 0 && len(b) < 2*n || format == 1 && len(b) < 4*n {
		return fmt.Errorf("loca: bad table length %d", len(b))
	}
	sfnt.Loca = &locaTable{Format: format, data: b}
	return nil
}

// writeGlyfLoca concatenates encoded glyphs into glyf and loca tables. The short loca format is used when all offsets fit.
func writeGlyfLoca(glyphs [][]byte) ([]byte, []byte, int16, error) {
	offsets := make([]uint32, len(glyphs)+1)
	w := parse.NewBinaryWriter([]byte{})
	for i, b := range glyphs {
		w.WriteBytes(b)
		if len(b)%2 == 1 {
			// padding to ensure glyph offsets are on even bytes for loca short format
			w.WriteByte(0)
		}
		if uint64(MaxMemory) < uint64(w.Len()) {
			return nil, nil, 0, ErrExceedsMemory
		}
		offsets[i+1] = uint32(w.Len())
	}

	indexToLocFormat := int16(1)
	if w.Len() <= 2*math.MaxUint16 {
		indexToLocFormat = 0
	}

	var loca *parse.BinaryWriter
	if indexToLocFormat == 0 {
		// short format
		loca = parse.NewBinaryWriter(make([]byte, 0, 2*len(offsets)))
		for _, offset := range offsets {
			loca.WriteUint16(uint16(offset / 2))
		}
	} else {
		// long format
		loca = parse.NewBinaryWriter(make([]byte, 0, 4*len(offsets)))
		for _, offset := range offsets {
			loca.WriteUint32(offset)
		}
	}
	return w.Bytes(), loca.Bytes(), indexToLocFormat, nil
}
