package varfont

import (
	"encoding/binary"
	"fmt"

	"github.com/tdewolff/parse/v2"
)

func parseCvar(b []byte, axisCount int) (*tupleVariationStore, error) {
	if len(b) < 8 {
		return nil, errInvalidFont("cvar", "bad table")
	}

	r := parse.NewBinaryReaderBytes(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16() // minorVersion
	if majorVersion != 1 {
		return nil, errInvalidFont("cvar", "bad version")
	}
	store, err := parseTupleVariationStore(b, 4, axisCount, nil, true)
	if err != nil {
		return nil, wrapInvalidFont("cvar", err)
	}
	return store, nil
}

// instanceCvt applies the CVT variations at the given coordinates and returns a new cvt table. Point numbers beyond the CVT are ignored.
func instanceCvt(cvt []byte, cvar *tupleVariationStore, coords []float64) ([]byte, error) {
	if len(cvt)%2 != 0 {
		return nil, fmt.Errorf("cvt: bad table")
	}
	n := len(cvt) / 2
	tuples, scalars, err := cvar.Variations(coords, n, 1)
	if err != nil {
		return nil, fmt.Errorf("cvar: %w", err)
	}

	accum := make([]float64, n)
	for i, tuple := range tuples {
		if tuple.Points == nil {
			for j, delta := range tuple.Deltas[0] {
				accum[j] += scalars[i] * float64(delta)
			}
			continue
		}
		for j, point := range tuple.Points {
			if int(point) < n {
				accum[point] += scalars[i] * float64(tuple.Deltas[0][j])
			}
		}
	}

	out := make([]byte, len(cvt))
	for i := 0; i < n; i++ {
		v := int64(int16(binary.BigEndian.Uint16(cvt[2*i:])))
		binary.BigEndian.PutUint16(out[2*i:], uint16(saturateInt16(v+roundHalfAway(accum[i]))))
	}
	return out, nil
}
