package varfont

import (
	"testing"

	"github.com/tdewolff/test"
)

func TestPhantomPoints(t *testing.T) {
	xs, ys := phantomPoints(50, 700, 500, 40, 1000, 100)
	test.T(t, xs, [4]float64{10.0, 510.0, 0.0, 0.0})
	test.T(t, ys, [4]float64{0.0, 0.0, 800.0, -200.0})
}

func TestInterpolateDelta(t *testing.T) {
	var tts = []struct {
		x, x1, d1, x2, d2 float64
		expected          float64
	}{
		{5.0, 0.0, 10.0, 10.0, 20.0, 15.0},
		{-5.0, 0.0, 10.0, 10.0, 20.0, 10.0},
		{15.0, 0.0, 10.0, 10.0, 20.0, 20.0},
		{5.0, 10.0, 20.0, 0.0, 10.0, 15.0},
		{5.0, 10.0, 20.0, 10.0, 20.0, 20.0},
		{5.0, 10.0, 20.0, 10.0, 30.0, 0.0},
	}
	for _, tt := range tts {
		t.Run("", func(t *testing.T) {
			test.Float(t, interpolateDelta(tt.x, tt.x1, tt.d1, tt.x2, tt.d2), tt.expected)
		})
	}
}

func TestGlyphDeltasInterpolation(t *testing.T) {
	// square with a midpoint on its bottom edge, plus four phantom points
	xs := []float64{0, 0, 100, 100, 50, 0, 100, 0, 0}
	ys := []float64{0, 100, 100, 0, 0, 0, 0, 100, 0}
	endPoints := []uint16{4}

	tuples := []tupleVariation{{
		Points: []uint16{0, 3},
		Deltas: [][]int32{{0, 20}, {0, 0}},
	}}
	dx, dy, err := glyphDeltas(tuples, []float64{1.0}, xs, ys, endPoints)
	test.Error(t, err)
	// points 1 and 2 lie on the edges of the touched range, point 4 halfway
	test.Floats(t, dx, []float64{0, 0, 20, 20, 10, 0, 0, 0, 0})
	test.Floats(t, dy, []float64{0, 0, 0, 0, 0, 0, 0, 0, 0})
}

func TestGlyphDeltasSingleTouched(t *testing.T) {
	xs := []float64{0, 0, 100, 100, 0, 100, 0, 0}
	ys := []float64{0, 100, 100, 0, 0, 0, 0, 0}
	tuples := []tupleVariation{{
		Points: []uint16{2},
		Deltas: [][]int32{{10}, {-10}},
	}}
	dx, dy, err := glyphDeltas(tuples, []float64{0.5}, xs, ys, []uint16{3})
	test.Error(t, err)
	test.Floats(t, dx, []float64{5, 5, 5, 5, 0, 0, 0, 0})
	test.Floats(t, dy, []float64{-5, -5, -5, -5, 0, 0, 0, 0})
}

func TestGlyphDeltasContours(t *testing.T) {
	// two contours, only the first is touched
	xs := []float64{0, 10, 20, 100, 110, 0, 0, 0, 0}
	ys := []float64{0, 0, 0, 0, 0, 0, 0, 0, 0}
	tuples := []tupleVariation{{
		Points: []uint16{0, 2},
		Deltas: [][]int32{{0, 10}, {0, 0}},
	}, {
		Points: nil,
		Deltas: [][]int32{{1, 1, 1, 1, 1, 1, 1, 1, 1}, {0, 0, 0, 0, 0, 0, 0, 0, 2}},
	}}
	dx, dy, err := glyphDeltas(tuples, []float64{1.0, 0.5}, xs, ys, []uint16{2, 4})
	test.Error(t, err)
	test.Floats(t, dx, []float64{0.5, 5.5, 10.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5})
	test.Floats(t, dy, []float64{0, 0, 0, 0, 0, 0, 0, 0, 1})
}

func TestGlyphDeltasWithoutContours(t *testing.T) {
	// composite glyphs do not infer untouched deltas
	xs := []float64{0, 0, 0, 0, 0, 0}
	ys := []float64{0, 0, 0, 0, 0, 0}
	tuples := []tupleVariation{{
		Points: []uint16{0, 3},
		Deltas: [][]int32{{30, 40}, {-30, 0}},
	}}
	dx, dy, err := glyphDeltas(tuples, []float64{1.0}, xs, ys, nil)
	test.Error(t, err)
	test.Floats(t, dx, []float64{30, 0, 0, 40, 0, 0})
	test.Floats(t, dy, []float64{-30, 0, 0, 0, 0, 0})
}

func TestGlyphDeltasErrors(t *testing.T) {
	xs := make([]float64, 6)
	ys := make([]float64, 6)
	_, _, err := glyphDeltas([]tupleVariation{{
		Points: []uint16{6},
		Deltas: [][]int32{{1}, {1}},
	}}, []float64{1.0}, xs, ys, []uint16{1})
	test.That(t, err != nil, "expected error for point out of range")

	_, _, err = glyphDeltas([]tupleVariation{{
		Deltas: [][]int32{{1, 2}, {1, 2}},
	}}, []float64{1.0}, xs, ys, []uint16{1})
	test.That(t, err != nil, "expected error for bad number of deltas")

	_, _, err = glyphDeltas([]tupleVariation{{
		Points: []uint16{0},
		Deltas: [][]int32{{1}, {1}},
	}}, []float64{1.0}, xs, ys, []uint16{3})
	test.That(t, err != nil, "expected error for contour into phantom points")
}

func TestRoundHalfAway(t *testing.T) {
	var tts = []struct {
		f        float64
		expected int64
	}{
		{0.5, 1},
		{-0.5, -1},
		{1.5, 2},
		{2.5, 3},
		{-2.5, -3},
		{0.49, 0},
		{-0.49, 0},
	}
	for _, tt := range tts {
		test.T(t, roundHalfAway(tt.f), tt.expected)
	}
}
