package varfont

import (
	"testing"

	"github.com/tdewolff/test"
)

func TestGlyfSimpleRoundTrip(t *testing.T) {
	var tts = []struct {
		name      string
		endPoints []uint16
		xs, ys    []int16
	}{
		{"square", []uint16{3}, []int16{50, 50, 450, 450}, []int16{0, 700, 700, 0}},
		{"words", []uint16{1}, []int16{0, 1000}, []int16{-300, 300}},
		{"two contours", []uint16{2, 4}, []int16{0, 10, 10, 100, 100}, []int16{0, 0, 10, 0, -256}},
	}
	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			n := len(tt.xs)
			glyph := &glyfGlyph{
				EndPoints:     tt.endPoints,
				OnCurve:       make([]bool, n),
				OverlapSimple: make([]bool, n),
				XCoordinates:  tt.xs,
				YCoordinates:  tt.ys,
			}
			for i := range glyph.OnCurve {
				glyph.OnCurve[i] = i%2 == 0
			}
			glyph.calcBounds()

			parsed, err := parseGlyph(7, glyph.Write())
			test.Error(t, err)
			test.T(t, parsed.GlyphID, uint16(7))
			test.T(t, parsed.EndPoints, tt.endPoints)
			test.T(t, parsed.XCoordinates, tt.xs)
			test.T(t, parsed.YCoordinates, tt.ys)
			test.T(t, parsed.OnCurve, glyph.OnCurve)
			test.T(t, []int16{parsed.XMin, parsed.YMin, parsed.XMax, parsed.YMax}, []int16{glyph.XMin, glyph.YMin, glyph.XMax, glyph.YMax})
		})
	}
}

func TestGlyfCompositeRoundTrip(t *testing.T) {
	glyph := &glyfGlyph{
		XMin: 0, YMin: 0, XMax: 600, YMax: 700,
		Components: []glyfComponent{{
			Flags:     compositeArgsAreXYValues,
			GlyphID:   1,
			Arg1:      200,
			Arg2:      -5,
			Transform: [4]int16{1 << 14, 0, 0, 1 << 14},
		}, {
			Flags:     compositeArgsAreXYValues | compositeHaveScale,
			GlyphID:   2,
			Arg1:      10,
			Arg2:      -3,
			Transform: [4]int16{1 << 13, 0, 0, 1 << 13},
		}},
	}

	parsed, err := parseGlyph(3, glyph.Write())
	test.Error(t, err)
	test.That(t, parsed.IsComposite())
	test.T(t, parsed.NumPoints(), 2)
	test.T(t, len(parsed.Components), 2)

	// offsets that do not fit a byte are promoted to words
	test.T(t, parsed.Components[0].Flags, uint16(compositeArgsAreXYValues|compositeArgsAreWords|compositeMoreComponents))
	test.T(t, parsed.Components[0].Arg1, int16(200))
	test.T(t, parsed.Components[0].Arg2, int16(-5))
	test.T(t, parsed.Components[1].Flags, uint16(compositeArgsAreXYValues|compositeHaveScale))
	test.T(t, parsed.Components[1].Arg2, int16(-3))
	test.T(t, parsed.Components[1].Transform, [4]int16{1 << 13, 0, 0, 1 << 13})

	x, y := parsed.Components[1].Apply(100.0, 100.0)
	test.Float(t, x, 60.0)
	test.Float(t, y, 47.0)
	x, y = parsed.Components[0].Apply(100.0, 100.0)
	test.Float(t, x, 300.0)
	test.Float(t, y, 95.0)
}

func TestGlyfErrors(t *testing.T) {
	_, err := parseGlyph(0, []byte{0, 1, 0, 0})
	test.That(t, err != nil, "expected error for truncated header")

	glyph := &glyfGlyph{
		EndPoints:     []uint16{3},
		OnCurve:       make([]bool, 4),
		OverlapSimple: make([]bool, 4),
		XCoordinates:  []int16{0, 0, 10, 10},
		YCoordinates:  []int16{0, 10, 10, 0},
	}
	b := glyph.Write()
	_, err = parseGlyph(0, b[:len(b)-1])
	test.That(t, err != nil, "expected error for truncated coordinates")

	empty, err := parseGlyph(0, []byte{})
	test.Error(t, err)
	test.That(t, empty.IsEmpty())
	test.T(t, len((&glyfGlyph{}).Write()), 0)
}

func TestWriteGlyfLoca(t *testing.T) {
	glyf, loca, indexToLocFormat, err := writeGlyfLoca([][]byte{{1, 2, 3}, {}, {4, 5, 6, 7}})
	test.Error(t, err)
	test.Bytes(t, glyf, []byte{1, 2, 3, 0, 4, 5, 6, 7})
	test.Bytes(t, loca, []byte{0, 0, 0, 2, 0, 2, 0, 4})
	test.T(t, indexToLocFormat, int16(0))

	big := make([]byte, 0x20000)
	glyf, loca, indexToLocFormat, err = writeGlyfLoca([][]byte{big, {1}})
	test.Error(t, err)
	test.T(t, len(glyf), 0x20002)
	test.Bytes(t, loca, []byte{0, 0, 0, 0, 0, 2, 0, 0, 0, 2, 0, 2})
	test.T(t, indexToLocFormat, int16(1))
}
