package varfont

import (
	"fmt"
)

const numPhantomPoints = 4

// phantomPoints returns the horizontal and vertical metrics of a glyph as the four points that follow its outline points.
func phantomPoints(xMin, yMax int16, advance uint16, lsb int16, advanceHeight uint16, tsb int16) (xs [4]float64, ys [4]float64) {
	xs[0] = float64(xMin) - float64(lsb)
	xs[1] = xs[0] + float64(advance)
	ys[2] = float64(yMax) + float64(tsb)
	ys[3] = ys[2] - float64(advanceHeight)
	return
}

// glyphDeltas sums the scaled deltas of all tuples for every point, including the phantom points at the end. Untouched outline points are inferred per contour when endPoints is not nil, otherwise they do not move.
func glyphDeltas(tuples []tupleVariation, scalars []float64, xs, ys []float64, endPoints []uint16) ([]float64, []float64, error) {
	n := len(xs)
	dx := make([]float64, n)
	dy := make([]float64, n)

	tdx := make([]float64, n)
	tdy := make([]float64, n)
	touched := make([]bool, n)
	for i, tuple := range tuples {
		scalar := scalars[i]
		if tuple.Points == nil {
			if len(tuple.Deltas[0]) != n || len(tuple.Deltas[1]) != n {
				return nil, nil, fmt.Errorf("tuple %d: bad number of deltas", i)
			}
			for j := 0; j < n; j++ {
				dx[j] += scalar * float64(tuple.Deltas[0][j])
				dy[j] += scalar * float64(tuple.Deltas[1][j])
			}
			continue
		}

		for j := range touched {
			tdx[j], tdy[j], touched[j] = 0.0, 0.0, false
		}
		for j, point := range tuple.Points {
			if n <= int(point) {
				return nil, nil, fmt.Errorf("tuple %d: point number %d out of range", i, point)
			}
			tdx[point] = float64(tuple.Deltas[0][j])
			tdy[point] = float64(tuple.Deltas[1][j])
			touched[point] = true
		}
		if endPoints != nil {
			start := 0
			for _, end := range endPoints {
				if n-numPhantomPoints <= int(end) {
					return nil, nil, fmt.Errorf("bad contour end point %d", end)
				}
				interpolateUntouched(tdx, touched, xs, start, int(end)+1)
				interpolateUntouched(tdy, touched, ys, start, int(end)+1)
				start = int(end) + 1
			}
		}
		for j := 0; j < n; j++ {
			dx[j] += scalar * tdx[j]
			dy[j] += scalar * tdy[j]
		}
	}
	return dx, dy, nil
}

// interpolateUntouched infers the deltas of the untouched points in the contour [start,end) along one axis. Each run of untouched points is interpolated between its touched neighbours, wrapping around the contour.
func interpolateUntouched(deltas []float64, touched []bool, coords []float64, start, end int) {
	first := -1
	for i := start; i < end; i++ {
		if touched[i] {
			first = i
			break
		}
	}
	if first == -1 {
		return // untouched deltas are zero
	}

	prev := first
	for k := 1; k <= end-start; k++ {
		i := start + (first-start+k)%(end-start)
		if !touched[i] {
			continue
		}
		// interpolate the points strictly between prev and i
		for j := start + (prev-start+1)%(end-start); j != i; j = start + (j-start+1)%(end-start) {
			deltas[j] = interpolateDelta(coords[j], coords[prev], deltas[prev], coords[i], deltas[i])
		}
		prev = i
	}
}

func interpolateDelta(x, x1, d1, x2, d2 float64) float64 {
	if x1 == x2 {
		if d1 == d2 {
			return d1
		}
		return 0.0
	} else if x2 < x1 {
		x1, x2 = x2, x1
		d1, d2 = d2, d1
	}
	if x <= x1 {
		return d1
	} else if x2 <= x {
		return d2
	}
	return d1 + (x-x1)*(d2-d1)/(x2-x1)
}
