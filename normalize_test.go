package varfont

import (
	"errors"
	"math"
	"testing"

	"github.com/tdewolff/test"
)

func testNormalizer(t *testing.T, opts NormalizeOptions) *Normalizer {
	t.Helper()
	sfnt := newTestFont(1).SFNT(t)
	normalizer, err := NewNormalizer(sfnt, opts)
	test.Error(t, err)
	return normalizer
}

func TestNormalizeAxis(t *testing.T) {
	wght, wdth := MustParseTag("wght"), MustParseTag("wdth")
	var tts = []struct {
		tag      Tag
		value    float64
		expected float64
	}{
		{wght, 400.0, 0.0},
		{wght, 100.0, -1.0},
		{wght, 900.0, 1.0},
		{wght, 700.0, 0.6},
		{wght, 250.0, -0.5},
		{wght, 1000.0, 1.0},
		{wght, 0.0, -1.0},
		{wdth, 100.0, 0.0},
		{wdth, 75.0, -0.5},
		{wdth, 150.0, 0.5},
		{wdth, 120.0, 0.2},
		{wght, 400.0000001, 0.0},
		{wght, 500.0, 0.2},
		{wght, 300.0, -0.333333},
	}

	normalizer := testNormalizer(t, NormalizeOptions{})
	for _, tt := range tts {
		t.Run(tt.tag.String(), func(t *testing.T) {
			v, err := normalizer.NormalizeAxis(tt.tag, tt.value)
			test.Error(t, err)
			test.Float(t, v, tt.expected)
		})
	}
}

func TestNormalizeDefaultIsZero(t *testing.T) {
	sfnt := newTestFont(1).SFNT(t)
	normalizer, err := NewNormalizer(sfnt, NormalizeOptions{})
	test.Error(t, err)
	for _, axis := range sfnt.Fvar.Axes {
		v, err := normalizer.NormalizeAxis(axis.Tag, axis.Default)
		test.Error(t, err)
		test.That(t, v == 0.0 && !math.Signbit(v), "default must normalize to exactly zero")
	}
}

func TestNormalizeRange(t *testing.T) {
	normalizer := testNormalizer(t, NormalizeOptions{})
	wght := MustParseTag("wght")
	for value := -200.0; value <= 1200.0; value += 7.3 {
		v, err := normalizer.NormalizeAxis(wght, value)
		test.Error(t, err)
		test.That(t, -1.0 <= v && v <= 1.0, "normalized value out of range")
	}
}

func TestNormalizeLocation(t *testing.T) {
	normalizer := testNormalizer(t, NormalizeOptions{})
	loc, err := normalizer.Normalize(map[Tag]float64{
		MustParseTag("wght"): 700.0,
	})
	test.Error(t, err)
	test.Floats(t, loc.Coords(), []float64{0.6, 0.0})
	test.Float(t, loc.Get(MustParseTag("wght")), 0.6)
	test.Float(t, loc.Get(MustParseTag("wdth")), 0.0)
	test.Float(t, loc.Get(MustParseTag("opsz")), 0.0)
	test.T(t, loc.IsDefault(), false)
	test.String(t, loc.String(), "wght=0.6 wdth=0")

	loc, err = normalizer.Normalize(nil)
	test.Error(t, err)
	test.T(t, loc.IsDefault(), true)
	test.T(t, len(loc.Tags()), 2)
}

func TestNormalizeErrors(t *testing.T) {
	wght := MustParseTag("wght")
	var tts = []struct {
		name   string
		opts   NormalizeOptions
		coords map[Tag]float64
	}{
		{"unknown axis", NormalizeOptions{}, map[Tag]float64{MustParseTag("opsz"): 12.0}},
		{"not a number", NormalizeOptions{}, map[Tag]float64{wght: math.NaN()}},
		{"out of range", NormalizeOptions{NoClamp: true}, map[Tag]float64{wght: 1000.0}},
		{"missing axis", NormalizeOptions{RequireAll: true}, map[Tag]float64{wght: 500.0}},
	}
	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			normalizer := testNormalizer(t, tt.opts)
			_, err := normalizer.Normalize(tt.coords)
			var coordsErr *InvalidCoordinatesError
			test.That(t, errors.As(err, &coordsErr), "expected InvalidCoordinatesError")
		})
	}
}

func TestNormalizeNoValidate(t *testing.T) {
	normalizer := testNormalizer(t, NormalizeOptions{NoValidate: true, NoClamp: true})
	v, err := normalizer.NormalizeAxis(MustParseTag("wght"), 1400.0)
	test.Error(t, err)
	test.Float(t, v, 1.0)
}

func TestNormalizePrecision(t *testing.T) {
	wght := MustParseTag("wght")
	normalizer := testNormalizer(t, NormalizeOptions{Precision: 2})
	v, err := normalizer.NormalizeAxis(wght, 300.0)
	test.Error(t, err)
	test.Float(t, v, -0.33)

	normalizer = testNormalizer(t, NormalizeOptions{Precision: -1})
	v, err = normalizer.NormalizeAxis(wght, 300.0)
	test.Error(t, err)
	test.Float(t, v, -1.0/3.0)
}

func TestNormalizeWithoutFvar(t *testing.T) {
	tables := newTestFont(1).Tables(t)
	delete(tables, "fvar")
	delete(tables, "gvar")
	sfnt, err := ParseSFNT(WriteSFNT(tables), 0)
	test.Error(t, err)

	_, err = NewNormalizer(sfnt, NormalizeOptions{})
	var coordsErr *InvalidCoordinatesError
	test.That(t, errors.As(err, &coordsErr), "expected InvalidCoordinatesError")
}

func TestAvarMap(t *testing.T) {
	f := newTestFont(1)
	f.Avar = [][]avarAxisValueMap{
		{{-1.0, -1.0}, {0.0, 0.0}, {0.5, 0.75}, {1.0, 1.0}},
		{},
	}
	sfnt := f.SFNT(t)
	test.That(t, sfnt.Avar != nil, "avar must be parsed")

	normalizer, err := NewNormalizer(sfnt, NormalizeOptions{})
	test.Error(t, err)
	loc, err := normalizer.Normalize(map[Tag]float64{
		MustParseTag("wght"): 650.0, // 0.5
		MustParseTag("wdth"): 150.0, // 0.5
	})
	test.Error(t, err)
	loc = sfnt.Avar.Map(loc)
	test.Floats(t, loc.Coords(), []float64{0.75, 0.5})

	test.Float(t, avarMapValue(sfnt.Avar.SegmentMaps[0], 0.75), 0.875)
	test.Float(t, avarMapValue(sfnt.Avar.SegmentMaps[0], -0.5), -0.5)
}
