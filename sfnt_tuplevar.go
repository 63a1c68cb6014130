package varfont

import (
	"fmt"
	"io"
	"math"

	"github.com/tdewolff/parse/v2"
)

const (
	tupleEmbeddedPeak  = 0x8000
	tupleIntermediate  = 0x4000
	tuplePrivatePoints = 0x2000
	tupleIndexMask     = 0x0FFF

	tupleSharedPoints = 0x8000
	tupleCountMask    = 0x0FFF
)

const (
	pointsAreWords   = 0x80
	pointRunMask     = 0x7F
	deltasAreZero    = 0x80
	deltasAreWords   = 0x40
	deltasAreLongs   = 0xC0
	deltaRunMask     = 0x3F
	deltaRunTypeMask = 0xC0
)

type tupleVariationHeader struct {
	DataSize   uint16
	TupleIndex uint16 // flags and shared tuple index
	Peak       []float64
	Start, End []float64 // only for intermediate regions
}

// Region returns the region of the tuple. Without an intermediate region the tent spans from zero to the peak.
func (header tupleVariationHeader) Region() varRegion {
	region := make(varRegion, len(header.Peak))
	for i, peak := range header.Peak {
		if header.Start != nil {
			region[i] = varRegionAxis{header.Start[i], peak, header.End[i]}
		} else {
			region[i] = varRegionAxis{math.Min(peak, 0.0), peak, math.Max(peak, 0.0)}
		}
	}
	return region
}

// tupleScalar returns the contribution of a tuple at the given normalized coordinates.
func tupleScalar(header tupleVariationHeader, coords []float64) float64 {
	return regionScalar(header.Region(), coords)
}

type tupleVariation struct {
	tupleVariationHeader
	Points []uint16  // nil for all points
	Deltas [][]int32 // per dimension, parallel to Points
}

// tupleVariationStore is the serialized tuple variation data of a glyph or of the CVT.
type tupleVariationStore struct {
	Headers []tupleVariationHeader
	data    []byte // serialized data, starting with the shared point numbers
	shared  bool
}

// parseTupleVariationStore parses the tuple variation headers that start at offset start, with dataOffset relative to b.
func parseTupleVariationStore(b []byte, start int64, axisCount int, sharedTuples [][]float64, requirePeak bool) (*tupleVariationStore, error) {
	r := parse.NewBinaryReaderBytes(b)
	if _, err := r.Seek(start, io.SeekStart); err != nil || r.Len() < 4 {
		return nil, fmt.Errorf("bad tuple variation data")
	}
	tupleVariationCount := r.ReadUint16()
	dataOffset := r.ReadUint16()
	if uint32(len(b)) < uint32(dataOffset) {
		return nil, fmt.Errorf("bad tuple variation data offset")
	}

	count := int(tupleVariationCount & tupleCountMask)
	store := &tupleVariationStore{
		Headers: make([]tupleVariationHeader, count),
		data:    b[dataOffset:],
		shared:  tupleVariationCount&tupleSharedPoints != 0,
	}
	for i := 0; i < count; i++ {
		if r.Len() < 4 {
			return nil, fmt.Errorf("bad tuple variation header")
		}
		header := tupleVariationHeader{}
		header.DataSize = r.ReadUint16()
		header.TupleIndex = r.ReadUint16()
		if header.TupleIndex&tupleEmbeddedPeak != 0 {
			if r.Len() < 2*int64(axisCount) {
				return nil, fmt.Errorf("bad tuple variation header")
			}
			header.Peak = readTuple(r, axisCount)
		} else if requirePeak {
			return nil, fmt.Errorf("tuple variation header without peak tuple")
		} else {
			index := int(header.TupleIndex & tupleIndexMask)
			if len(sharedTuples) <= index {
				return nil, fmt.Errorf("bad shared tuple index %d", index)
			}
			header.Peak = sharedTuples[index]
		}
		if header.TupleIndex&tupleIntermediate != 0 {
			if r.Len() < 4*int64(axisCount) {
				return nil, fmt.Errorf("bad tuple variation header")
			}
			header.Start = readTuple(r, axisCount)
			header.End = readTuple(r, axisCount)
		}
		store.Headers[i] = header
	}
	return store, nil
}

func readTuple(r *parse.BinaryReader, axisCount int) []float64 {
	tuple := make([]float64, axisCount)
	for i := range tuple {
		tuple[i] = f2dot14ToFloat(r.ReadInt16())
	}
	return tuple
}

// Variations decodes the point numbers and deltas of the tuples with a non-zero scalar at coords. The returned scalars are parallel to the returned tuples. Each tuple has dims delta streams; numPoints is the number of points "all points" expands to.
func (store *tupleVariationStore) Variations(coords []float64, numPoints, dims int) ([]tupleVariation, []float64, error) {
	r := parse.NewBinaryReaderBytes(store.data)
	var sharedPoints []uint16
	if store.shared {
		var err error
		if sharedPoints, err = decodePackedPoints(r); err != nil {
			return nil, nil, fmt.Errorf("shared point numbers: %w", err)
		}
	}

	tuples := []tupleVariation{}
	scalars := []float64{}
	for i, header := range store.Headers {
		if r.Len() < int64(header.DataSize) {
			return nil, nil, fmt.Errorf("tuple %d: bad data size", i)
		}
		data := r.ReadBytes(int64(header.DataSize))
		scalar := tupleScalar(header, coords)
		if scalar == 0.0 {
			continue
		}

		rt := parse.NewBinaryReaderBytes(data)
		points := sharedPoints
		if header.TupleIndex&tuplePrivatePoints != 0 {
			var err error
			if points, err = decodePackedPoints(rt); err != nil {
				return nil, nil, fmt.Errorf("tuple %d: point numbers: %w", i, err)
			}
		}
		n := numPoints
		if points != nil {
			n = len(points)
		}

		tuple := tupleVariation{
			tupleVariationHeader: header,
			Points:               points,
			Deltas:               make([][]int32, dims),
		}
		for dim := 0; dim < dims; dim++ {
			deltas, err := decodePackedDeltas(rt, n)
			if err != nil {
				return nil, nil, fmt.Errorf("tuple %d: deltas: %w", i, err)
			}
			tuple.Deltas[dim] = deltas
		}
		tuples = append(tuples, tuple)
		scalars = append(scalars, scalar)
	}
	return tuples, scalars, nil
}

////////////////////////////////////////////////////////////////

// decodePackedPoints decodes packed point numbers. It returns nil when all points are referenced.
func decodePackedPoints(r *parse.BinaryReader) ([]uint16, error) {
	if r.Len() < 1 {
		return nil, fmt.Errorf("bad packed point numbers")
	}
	count := int(r.ReadUint8())
	if count&pointsAreWords != 0 {
		if r.Len() < 1 {
			return nil, fmt.Errorf("bad packed point numbers")
		}
		count = (count&pointRunMask)<<8 | int(r.ReadUint8())
	}
	if count == 0 {
		return nil, nil
	}

	points := make([]uint16, 0, count)
	var point uint16
	for len(points) < count {
		if r.Len() < 1 {
			return nil, fmt.Errorf("bad packed point numbers")
		}
		control := r.ReadUint8()
		runLength := int(control&pointRunMask) + 1
		if count < len(points)+runLength {
			return nil, fmt.Errorf("point run exceeds point count")
		}
		if control&pointsAreWords != 0 {
			if r.Len() < 2*int64(runLength) {
				return nil, fmt.Errorf("bad packed point numbers")
			}
			for j := 0; j < runLength; j++ {
				point += r.ReadUint16()
				points = append(points, point)
			}
		} else {
			if r.Len() < int64(runLength) {
				return nil, fmt.Errorf("bad packed point numbers")
			}
			for j := 0; j < runLength; j++ {
				point += uint16(r.ReadUint8())
				points = append(points, point)
			}
		}
	}
	return points, nil
}

// decodePackedDeltas decodes exactly count packed deltas.
func decodePackedDeltas(r *parse.BinaryReader, count int) ([]int32, error) {
	deltas := make([]int32, 0, count)
	for len(deltas) < count {
		if r.Len() < 1 {
			return nil, fmt.Errorf("bad packed deltas")
		}
		control := r.ReadUint8()
		runLength := int(control&deltaRunMask) + 1
		if count < len(deltas)+runLength {
			return nil, fmt.Errorf("delta run exceeds delta count")
		}
		switch control & deltaRunTypeMask {
		case deltasAreZero:
			for j := 0; j < runLength; j++ {
				deltas = append(deltas, 0)
			}
		case deltasAreWords:
			if r.Len() < 2*int64(runLength) {
				return nil, fmt.Errorf("bad packed deltas")
			}
			for j := 0; j < runLength; j++ {
				deltas = append(deltas, int32(r.ReadInt16()))
			}
		case deltasAreLongs:
			if r.Len() < 4*int64(runLength) {
				return nil, fmt.Errorf("bad packed deltas")
			}
			for j := 0; j < runLength; j++ {
				deltas = append(deltas, r.ReadInt32())
			}
		default:
			if r.Len() < int64(runLength) {
				return nil, fmt.Errorf("bad packed deltas")
			}
			for j := 0; j < runLength; j++ {
				deltas = append(deltas, int32(r.ReadInt8()))
			}
		}
	}
	return deltas, nil
}

// encodePackedPoints encodes sorted point numbers. A nil slice encodes all points.
func encodePackedPoints(points []uint16) []byte {
	w := parse.NewBinaryWriter(make([]byte, 0, 2+2*len(points)))
	if len(points) < pointsAreWords {
		w.WriteUint8(uint8(len(points)))
	} else {
		w.WriteUint16(uint16(len(points)) | pointsAreWords<<8)
	}

	var prev uint16
	for i := 0; i < len(points); {
		words := 0xFF < points[i]-prev
		j := i
		last := prev
		for j < len(points) && j-i <= pointRunMask {
			isWord := 0xFF < points[j]-last
			if isWord != words {
				break
			}
			last = points[j]
			j++
		}

		control := uint8(j - i - 1)
		if words {
			control |= pointsAreWords
		}
		w.WriteUint8(control)
		for ; i < j; i++ {
			if words {
				w.WriteUint16(points[i] - prev)
			} else {
				w.WriteUint8(uint8(points[i] - prev))
			}
			prev = points[i]
		}
	}
	return w.Bytes()
}

func isByteDelta(v int32) bool {
	return math.MinInt8 <= v && v <= math.MaxInt8
}

func isWordDelta(v int32) bool {
	return math.MinInt16 <= v && v <= math.MaxInt16
}

// encodePackedDeltas encodes deltas using zero, byte, word and long runs. Word runs are ended early when a zero or two byte-sized values follow, and byte runs when two zeros follow, as those encode shorter in a run of their own.
func encodePackedDeltas(deltas []int32) []byte {
	w := parse.NewBinaryWriter(make([]byte, 0, 2*len(deltas)))
	for i := 0; i < len(deltas); {
		j := i
		switch v := deltas[i]; {
		case v == 0:
			for j < len(deltas) && j-i <= deltaRunMask && deltas[j] == 0 {
				j++
			}
			w.WriteUint8(deltasAreZero | uint8(j-i-1))
		case isByteDelta(v):
			for j < len(deltas) && j-i <= deltaRunMask && isByteDelta(deltas[j]) {
				if deltas[j] == 0 && j+1 < len(deltas) && deltas[j+1] == 0 {
					break
				}
				j++
			}
			w.WriteUint8(uint8(j - i - 1))
			for k := i; k < j; k++ {
				w.WriteInt8(int8(deltas[k]))
			}
		case isWordDelta(v):
			for j < len(deltas) && j-i <= deltaRunMask && isWordDelta(deltas[j]) {
				if deltas[j] == 0 {
					break
				} else if isByteDelta(deltas[j]) && j+1 < len(deltas) && isByteDelta(deltas[j+1]) {
					break
				}
				j++
			}
			w.WriteUint8(deltasAreWords | uint8(j-i-1))
			for k := i; k < j; k++ {
				w.WriteInt16(int16(deltas[k]))
			}
		default:
			for j < len(deltas) && j-i <= deltaRunMask && !isWordDelta(deltas[j]) {
				j++
			}
			w.WriteUint8(deltasAreLongs | uint8(j-i-1))
			for k := i; k < j; k++ {
				w.WriteInt32(deltas[k])
			}
		}
		i = j
	}
	return w.Bytes()
}
