package varfont

import (
	"fmt"
	"math"

	"github.com/tdewolff/parse/v2"
)

const cffMaxSubrsDepth = 10

// blendFunc returns a function that resolves blend operators at the location of the region scalars.
func (store *itemVariationStore) blendFunc(scalars []float64) cffBlendFunc {
	return func(vsindex int, operands []float64) ([]float64, error) {
		if vsindex < 0 || math.MaxUint16 < vsindex {
			return nil, fmt.Errorf("bad vsindex %d", vsindex)
		}
		dataScalars, err := store.DataScalars(uint16(vsindex), scalars)
		if err != nil {
			return nil, err
		}
		return cffBlend(operands, dataScalars)
	}
}

// cffBlend pops n, n base values, and n*k deltas, and pushes the n blended values, where k is the number of regions.
func cffBlend(stack []float64, scalars []float64) ([]float64, error) {
	if len(stack) == 0 {
		return nil, fmt.Errorf("bad number of operands for blend")
	}
	n := int(stack[len(stack)-1])
	k := len(scalars)
	stack = stack[:len(stack)-1]
	if n < 0 || len(stack) < n*(k+1) {
		return nil, fmt.Errorf("bad number of operands for blend")
	}

	base := len(stack) - n*(k+1)
	for i := 0; i < n; i++ {
		delta := 0.0
		for j, scalar := range scalars {
			delta += scalar * stack[base+n+i*k+j]
		}
		if delta != 0.0 {
			stack[base+i] = float64(roundHalfAway(stack[base+i] + delta))
		}
	}
	return stack[:base+n], nil
}

func cffCharStringSubrsBias(n int) int {
	bias := 32768
	if n < 1240 {
		bias = 107
	} else if n < 33900 {
		bias = 1131
	}
	return bias
}

func readCharStringNumber(r *parse.BinaryReader, b0 int) (float64, error) {
	if b0 == 255 {
		if r.Len() < 4 {
			return 0.0, errCFFNumber
		}
		return float64(r.ReadInt32()) / (1 << 16), nil // 16.16 fixed
	}
	i, err := readCFFInteger(b0, r)
	return float64(i), err
}

// writeCharStringNumber writes integers in the int16 range as such and everything else as 16.16 fixed.
func writeCharStringNumber(w *parse.BinaryWriter, v float64) {
	if integer, frac := math.Modf(v); frac != 0.0 || integer < math.MinInt16 || math.MaxInt16 < integer {
		w.WriteUint8(255)
		w.WriteInt32(int32(roundHalfAway(v * (1 << 16))))
		return
	}
	writeCFFInteger(w, int(v))
}

// instanceCharString interprets a charstring at the location of the region scalars. It returns a flat charstring without blend, vsindex, or subroutine calls, together with the control-point bounds of the outline.
func (cff *cff2Table) instanceCharString(glyphID int, scalars []float64) ([]byte, *bboxPather, error) {
	charString := cff.charStrings.Get(glyphID)
	if charString == nil {
		return nil, nil, fmt.Errorf("bad glyphID %v", glyphID)
	} else if 65525 < len(charString) {
		return nil, nil, fmt.Errorf("charstring too long")
	}
	fd, ok := cff.fonts.Index(uint32(glyphID))
	if !ok {
		return nil, nil, fmt.Errorf("bad FDSelect for glyphID %v", glyphID)
	}
	localSubrs := cff.fonts.localSubrs[fd]
	vsindex := cff.fonts.private[fd].Vsindex
	var dataScalars []float64

	w := parse.NewBinaryWriter(make([]byte, 0, len(charString)))
	p := &bboxPather{}
	var x, y float64
	hints := 0
	stack := []float64{}
	callStack := []*parse.BinaryReader{}
	r := parse.NewBinaryReaderBytes(charString)
	for {
		if r.Len() == 0 {
			if 0 < len(callStack) {
				// end of subroutine
				r = callStack[len(callStack)-1]
				callStack = callStack[:len(callStack)-1]
				continue
			}
			break
		}

		b0 := int(r.ReadUint8())
		if 32 <= b0 || b0 == 28 {
			v, err := readCharStringNumber(r, b0)
			if err != nil {
				return nil, nil, err
			} else if 513 <= len(stack) {
				return nil, nil, fmt.Errorf("too many operands for operator")
			}
			stack = append(stack, v)
			continue
		}

		if b0 == 12 {
			if r.Len() < 1 {
				return nil, nil, fmt.Errorf("bad operator")
			}
			b0 = 256 + int(r.ReadUint8())
		}

		switch b0 {
		case 15:
			// vsindex
			if len(stack) != 1 {
				return nil, nil, fmt.Errorf("bad number of operands for vsindex")
			}
			vsindex = int(stack[0])
			dataScalars = nil
			stack = stack[:0]
		case 16:
			// blend
			if cff.store == nil {
				return nil, nil, fmt.Errorf("blend without variation store")
			} else if dataScalars == nil {
				if vsindex < 0 || math.MaxUint16 < vsindex {
					return nil, nil, fmt.Errorf("bad vsindex %d", vsindex)
				}
				var err error
				if dataScalars, err = cff.store.DataScalars(uint16(vsindex), scalars); err != nil {
					return nil, nil, err
				}
			}
			var err error
			if stack, err = cffBlend(stack, dataScalars); err != nil {
				return nil, nil, err
			}
		case 10, 29:
			// callsubr and callgsubr
			if cffMaxSubrsDepth <= len(callStack) {
				return nil, nil, fmt.Errorf("too many nested subroutines")
			} else if len(stack) == 0 {
				return nil, nil, fmt.Errorf("bad number of operands for operator")
			}

			subrs := cff.globalSubrs
			if b0 == 10 {
				subrs = localSubrs
			}
			i := int(stack[len(stack)-1]) + cffCharStringSubrsBias(subrs.Len())
			stack = stack[:len(stack)-1]
			subr := subrs.Get(i)
			if subr == nil {
				return nil, nil, fmt.Errorf("bad subroutine")
			}
			callStack = append(callStack, r)
			r = parse.NewBinaryReaderBytes(subr)
		case 1, 3, 18, 23:
			// hstem, vstem, hstemhm, vstemhm
			if len(stack)%2 != 0 {
				return nil, nil, fmt.Errorf("bad number of operands for operator")
			}
			hints += len(stack) / 2
			if 96 < hints {
				return nil, nil, fmt.Errorf("too many stem hints")
			}
			writeCharStringOperation(w, b0, stack)
			stack = stack[:0]
		case 19, 20:
			// hintmask, cntrmask
			if len(stack)%2 != 0 {
				return nil, nil, fmt.Errorf("bad number of operands for operator")
			}
			// implicit vstem
			hints += len(stack) / 2
			if 96 < hints {
				return nil, nil, fmt.Errorf("too many stem hints")
			}
			n := int64((hints + 7) / 8)
			if r.Len() < n {
				return nil, nil, fmt.Errorf("bad hintmask")
			}
			writeCharStringOperation(w, b0, stack)
			w.WriteBytes(r.ReadBytes(n))
			stack = stack[:0]
		default:
			if err := cffPathOperator(p, &x, &y, b0, stack); err != nil {
				return nil, nil, err
			}
			writeCharStringOperation(w, b0, stack)
			stack = stack[:0]
		}
	}
	if len(stack) != 0 {
		return nil, nil, fmt.Errorf("operands without operator")
	}
	return w.Bytes(), p, nil
}

func writeCharStringOperation(w *parse.BinaryWriter, op int, operands []float64) {
	for _, operand := range operands {
		writeCharStringNumber(w, operand)
	}
	writeCFFOperator(w, op)
}

// cffPathOperator executes a path construction operator, moving the current point.
func cffPathOperator(p *bboxPather, x, y *float64, b0 int, stack []float64) error {
	errBadNumOperands := fmt.Errorf("bad number of operands for operator %d", b0)
	switch b0 {
	case 21:
		// rmoveto
		if len(stack) != 2 {
			return errBadNumOperands
		}
		*x += stack[0]
		*y += stack[1]
		p.MoveTo(*x, *y)
	case 22:
		// hmoveto
		if len(stack) != 1 {
			return errBadNumOperands
		}
		*x += stack[0]
		p.MoveTo(*x, *y)
	case 4:
		// vmoveto
		if len(stack) != 1 {
			return errBadNumOperands
		}
		*y += stack[0]
		p.MoveTo(*x, *y)
	case 5:
		// rlineto
		if len(stack) == 0 || len(stack)%2 != 0 {
			return errBadNumOperands
		}
		for i := 0; i < len(stack); i += 2 {
			*x += stack[i+0]
			*y += stack[i+1]
			p.LineTo(*x, *y)
		}
	case 6, 7:
		// hlineto and vlineto
		if len(stack) == 0 {
			return errBadNumOperands
		}
		vertical := b0 == 7
		for i := 0; i < len(stack); i++ {
			if !vertical {
				*x += stack[i]
			} else {
				*y += stack[i]
			}
			p.LineTo(*x, *y)
			vertical = !vertical
		}
	case 8:
		// rrcurveto
		if len(stack) == 0 || len(stack)%6 != 0 {
			return errBadNumOperands
		}
		for i := 0; i < len(stack); i += 6 {
			cubeTo(p, x, y, stack[i], stack[i+1], stack[i+2], stack[i+3], stack[i+4], stack[i+5])
		}
	case 27, 26:
		// hhcurveto and vvcurveto
		if len(stack) < 4 || len(stack)%4 != 0 && (len(stack)-1)%4 != 0 {
			return errBadNumOperands
		}
		vertical := b0 == 26
		i := 0
		d1 := 0.0
		if len(stack)%4 == 1 {
			d1 = stack[0]
			i++
		}
		for ; i < len(stack); i += 4 {
			if !vertical {
				cubeTo(p, x, y, stack[i], d1, stack[i+1], stack[i+2], stack[i+3], 0.0)
			} else {
				cubeTo(p, x, y, d1, stack[i], stack[i+1], stack[i+2], 0.0, stack[i+3])
			}
			d1 = 0.0
		}
	case 31, 30:
		// hvcurveto and vhcurveto
		if len(stack) < 4 || len(stack)%4 != 0 && (len(stack)-1)%4 != 0 {
			return errBadNumOperands
		}
		vertical := b0 == 30
		for i := 0; i+4 <= len(stack); i += 4 {
			last := 0.0
			if i+5 == len(stack) {
				last = stack[i+4]
			}
			if !vertical {
				cubeTo(p, x, y, stack[i], 0.0, stack[i+1], stack[i+2], last, stack[i+3])
			} else {
				cubeTo(p, x, y, 0.0, stack[i], stack[i+1], stack[i+2], stack[i+3], last)
			}
			vertical = !vertical
		}
	case 24:
		// rcurveline
		if len(stack) < 8 || (len(stack)-2)%6 != 0 {
			return errBadNumOperands
		}
		i := 0
		for ; i < len(stack)-2; i += 6 {
			cubeTo(p, x, y, stack[i], stack[i+1], stack[i+2], stack[i+3], stack[i+4], stack[i+5])
		}
		*x += stack[i+0]
		*y += stack[i+1]
		p.LineTo(*x, *y)
	case 25:
		// rlinecurve
		if len(stack) < 8 || (len(stack)-6)%2 != 0 {
			return errBadNumOperands
		}
		i := 0
		for ; i < len(stack)-6; i += 2 {
			*x += stack[i+0]
			*y += stack[i+1]
			p.LineTo(*x, *y)
		}
		cubeTo(p, x, y, stack[i], stack[i+1], stack[i+2], stack[i+3], stack[i+4], stack[i+5])
	case 256 + 35:
		// flex
		if len(stack) != 13 {
			return errBadNumOperands
		}
		cubeTo(p, x, y, stack[0], stack[1], stack[2], stack[3], stack[4], stack[5])
		cubeTo(p, x, y, stack[6], stack[7], stack[8], stack[9], stack[10], stack[11])
	case 256 + 34:
		// hflex
		if len(stack) != 7 {
			return errBadNumOperands
		}
		y1 := *y
		cubeTo(p, x, y, stack[0], 0.0, stack[1], stack[2], stack[3], 0.0)
		cubeTo(p, x, y, stack[4], 0.0, stack[5], y1-*y, stack[6], 0.0)
	case 256 + 36:
		// hflex1
		if len(stack) != 9 {
			return errBadNumOperands
		}
		y1 := *y
		cubeTo(p, x, y, stack[0], stack[1], stack[2], stack[3], stack[4], 0.0)
		cubeTo(p, x, y, stack[5], 0.0, stack[6], stack[7], stack[8], y1-*y-stack[7])
	case 256 + 37:
		// flex1
		if len(stack) != 11 {
			return errBadNumOperands
		}
		x1, y1 := *x, *y
		cubeTo(p, x, y, stack[0], stack[1], stack[2], stack[3], stack[4], stack[5])
		dx := *x + stack[6] + stack[8] - x1
		dy := *y + stack[7] + stack[9] - y1
		if math.Abs(dy) < math.Abs(dx) {
			cubeTo(p, x, y, stack[6], stack[7], stack[8], stack[9], stack[10], y1-(*y+stack[7]+stack[9]))
		} else {
			cubeTo(p, x, y, stack[6], stack[7], stack[8], stack[9], x1-(*x+stack[6]+stack[8]), stack[10])
		}
	default:
		if 256 <= b0 {
			return fmt.Errorf("unsupported operator 12 %d", b0-256)
		}
		return fmt.Errorf("unsupported operator %d", b0)
	}
	return nil
}

// cubeTo adds a cubic Bézier given relative control and end points.
func cubeTo(p *bboxPather, x, y *float64, dx1, dy1, dx2, dy2, dx3, dy3 float64) {
	cpx1, cpy1 := *x+dx1, *y+dy1
	cpx2, cpy2 := cpx1+dx2, cpy1+dy2
	*x, *y = cpx2+dx3, cpy2+dy3
	p.CubeTo(cpx1, cpy1, cpx2, cpy2, *x, *y)
}

// instancePrivateDICT rewrites a Private DICT with its blends resolved and without vsindex and Subrs.
func (cff *cff2Table) instancePrivateDICT(fd int, scalars []float64) ([]byte, error) {
	var blend cffBlendFunc
	if cff.store != nil {
		blend = cff.store.blendFunc(scalars)
	}
	private, err := parsePrivateDICT(cff.fonts.privateData[fd], blend)
	if err != nil {
		return nil, fmt.Errorf("Private DICT: %w", err)
	}
	return private.Write()
}
