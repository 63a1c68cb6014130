package varfont

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/tdewolff/parse/v2"
)

const (
	cffDICTPrivate     = 18
	cffDICTSubrs       = 19
	cffDICTVsindex     = 22
	cffDICTBlend       = 23
	cffDICTVstore      = 24
	cffDICTCharStrings = 17
	cffDICTFontMatrix  = 256 + 7
	cffDICTFDArray     = 256 + 36
	cffDICTFDSelect    = 256 + 37
)

type cff2Table struct {
	top         *cff2TopDICT
	globalSubrs *cffINDEX
	charStrings *cffINDEX
	fonts       *cffFontINDEX
	store       *itemVariationStore // nil if the font has no variation store
}

func parseCFF2(b []byte, axisCount int) (*cff2Table, error) {
	r := parse.NewBinaryReaderBytes(b)
	if r.Len() < 5 {
		return nil, fmt.Errorf("bad table")
	}
	major := r.ReadUint8()
	minor := r.ReadUint8()
	if major != 2 || minor != 0 {
		return nil, fmt.Errorf("bad version")
	}
	headerSize := r.ReadUint8()
	topDictLength := r.ReadUint16()
	if headerSize < 5 || r.Len() < int64(headerSize-5)+int64(topDictLength) {
		return nil, fmt.Errorf("bad headerSize")
	}
	_ = r.ReadBytes(int64(headerSize - 5))

	topDICT, err := parseTopDICT2(r.ReadBytes(int64(topDictLength)))
	if err != nil {
		return nil, fmt.Errorf("Top DICT: %w", err)
	}

	globalSubrsINDEX, err := parseINDEX(r)
	if err != nil {
		return nil, fmt.Errorf("Global Subrs INDEX: %w", err)
	}

	if len(b) <= topDICT.CharStrings {
		return nil, fmt.Errorf("bad CharStrings INDEX offset")
	}
	_, _ = r.Seek(int64(topDICT.CharStrings), io.SeekStart)
	charStringsINDEX, err := parseINDEX(r)
	if err != nil {
		return nil, fmt.Errorf("CharStrings INDEX: %w", err)
	}

	cff := &cff2Table{
		top:         topDICT,
		globalSubrs: globalSubrsINDEX,
		charStrings: charStringsINDEX,
	}
	if topDICT.Vstore != 0 {
		if len(b) < topDICT.Vstore || len(b)-topDICT.Vstore < 2 {
			return nil, fmt.Errorf("bad VariationStore offset")
		}
		length := int(uint16(b[topDICT.Vstore])<<8 | uint16(b[topDICT.Vstore+1]))
		if len(b)-topDICT.Vstore-2 < length {
			return nil, fmt.Errorf("bad VariationStore length")
		}
		if cff.store, err = parseItemVariationStore(b[topDICT.Vstore+2:topDICT.Vstore+2+length], axisCount); err != nil {
			return nil, fmt.Errorf("VariationStore: %w", err)
		}
	}

	fonts, err := parseFontINDEX(b, topDICT.FDArray, topDICT.FDSelect, charStringsINDEX.Len(), cff.store)
	if err != nil {
		return nil, err
	}
	cff.fonts = fonts
	return cff, nil
}

func (cff *cff2Table) NumGlyphs() int {
	return cff.charStrings.Len()
}

////////////////////////////////////////////////////////////////

// cffINDEX is a CFF2 INDEX, an array of variable-sized objects.
type cffINDEX [][]byte

func (t *cffINDEX) Len() int {
	return len(*t)
}

// Get returns object i, or nil if it is out of range.
func (t *cffINDEX) Get(i int) []byte {
	if i < 0 || len(*t) <= i {
		return nil
	}
	return (*t)[i]
}

func (t *cffINDEX) Add(data []byte) int {
	*t = append(*t, data)
	return len(*t) - 1
}

// parseINDEX parses a CFF2 INDEX, which has a 32-bit count. Offsets are one-based relative to the byte preceding the object data.
func parseINDEX(r *parse.BinaryReader) (*cffINDEX, error) {
	if r.Len() < 4 {
		return nil, fmt.Errorf("bad data")
	}
	count := r.ReadUint32()
	if count == 0 {
		return &cffINDEX{}, nil
	} else if 1e6 < count {
		return nil, fmt.Errorf("too many objects: %d", count)
	} else if r.Len() < 1 {
		return nil, fmt.Errorf("bad data")
	}

	offSize := int(r.ReadUint8())
	if offSize < 1 || 4 < offSize {
		return nil, fmt.Errorf("bad offSize %d", offSize)
	} else if r.Len() < int64(offSize)*(int64(count)+1) {
		return nil, fmt.Errorf("bad data")
	}
	offsets := make([]uint32, count+1)
	for i := range offsets {
		for j := 0; j < offSize; j++ {
			offsets[i] = offsets[i]<<8 | uint32(r.ReadUint8())
		}
		if i == 0 && offsets[i] != 1 || 0 < i && offsets[i] < offsets[i-1] {
			return nil, fmt.Errorf("bad offsets")
		}
	}
	if r.Len() < int64(offsets[count]-1) {
		return nil, fmt.Errorf("bad data")
	}

	data := r.ReadBytes(int64(offsets[count] - 1))
	t := make(cffINDEX, count)
	for i := range t {
		start, end := offsets[i]-1, offsets[i+1]-1
		t[i] = data[start:end:end]
	}
	return &t, nil
}

// Write encodes the INDEX using the smallest offset size that fits.
func (t *cffINDEX) Write() ([]byte, error) {
	if len(*t) == 0 {
		return []byte{0, 0, 0, 0}, nil
	}
	end := uint64(1)
	for _, data := range *t {
		end += uint64(len(data))
	}
	if math.MaxUint32 < end {
		return nil, fmt.Errorf("too much data")
	}
	offSize := 1
	for offSize < 4 && uint64(1)<<(8*offSize) <= end {
		offSize++
	}

	w := parse.NewBinaryWriter(make([]byte, 0, 5+offSize*(len(*t)+1)+int(end)))
	w.WriteUint32(uint32(len(*t)))
	w.WriteUint8(uint8(offSize))
	writeOffset := func(offset int) {
		for j := offSize - 1; 0 <= j; j-- {
			w.WriteUint8(uint8(offset >> (8 * j)))
		}
	}
	offset := 1
	writeOffset(offset)
	for _, data := range *t {
		offset += len(data)
		writeOffset(offset)
	}
	for _, data := range *t {
		w.WriteBytes(data)
	}
	return w.Bytes(), nil
}

////////////////////////////////////////////////////////////////

type cffDICTEntry struct {
	Op       int
	Operands []float64
}

// cffBlendFunc resolves the operands of a blend operator given the active vsindex. The last operand is the number of blended values.
type cffBlendFunc func(vsindex int, operands []float64) ([]float64, error)

// parseDICT parses a DICT into its entries in order. Every operator consumes all preceding operands. Blend operators are resolved immediately, leaving their results on the operand stack.
func parseDICT(b []byte, isCFF2 bool, blend cffBlendFunc) ([]cffDICTEntry, error) {
	r := parse.NewBinaryReaderBytes(b)
	entries := []cffDICTEntry{}
	operands := []float64{}
	vsindex := 0
	for 0 < r.Len() {
		b0 := int(r.ReadUint8())
		if b0 < 22 || isCFF2 && b0 <= cffDICTVstore {
			// operator
			if b0 == 12 {
				if r.Len() < 1 {
					return nil, fmt.Errorf("bad operator")
				}
				b0 = 256 + int(r.ReadUint8())
			}

			if isCFF2 && b0 == cffDICTBlend {
				if blend == nil {
					return nil, fmt.Errorf("blend without variation store")
				}
				var err error
				if operands, err = blend(vsindex, operands); err != nil {
					return nil, err
				}
				continue
			} else if isCFF2 && b0 == cffDICTVsindex {
				if len(operands) != 1 {
					return nil, fmt.Errorf("bad number of operands for vsindex")
				}
				vsindex = int(operands[0])
			}
			entries = append(entries, cffDICTEntry{
				Op:       b0,
				Operands: operands,
			})
			operands = []float64{}
		} else if 22 <= b0 && b0 < 28 || b0 == 31 || b0 == 255 {
			// reserved
		} else {
			if !isCFF2 && 48 <= len(operands) || isCFF2 && 513 <= len(operands) {
				return nil, fmt.Errorf("too many operands for operator")
			}
			f, err := parseDICTNumber(b0, r)
			if err != nil {
				return nil, err
			}
			operands = append(operands, f)
		}
	}
	if len(operands) != 0 {
		return nil, fmt.Errorf("operands without operator")
	}
	return entries, nil
}

var errCFFNumber = fmt.Errorf("bad number")

// readCFFInteger reads an integer operand that starts with b0, in one of the encodings shared by DICTs and charstrings.
func readCFFInteger(b0 int, r *parse.BinaryReader) (int, error) {
	switch {
	case 32 <= b0 && b0 <= 246:
		return b0 - 139, nil
	case b0 == 28:
		if r.Len() < 2 {
			return 0, errCFFNumber
		}
		return int(r.ReadInt16()), nil
	case 247 <= b0 && b0 <= 254:
		if r.Len() < 1 {
			return 0, errCFFNumber
		}
		b1 := int(r.ReadUint8())
		if b0 < 251 {
			return (b0-247)<<8 + b1 + 108, nil
		}
		return -(b0-251)<<8 - b1 - 108, nil
	}
	return 0, errCFFNumber
}

// writeCFFInteger writes i, which must fit in an int16, in its shortest encoding.
func writeCFFInteger(w *parse.BinaryWriter, i int) {
	switch {
	case -107 <= i && i <= 107:
		w.WriteUint8(uint8(i + 139))
	case 108 <= i && i <= 1131:
		w.WriteUint8(uint8((i-108)>>8 + 247))
		w.WriteUint8(uint8(i - 108))
	case -1131 <= i && i <= -108:
		w.WriteUint8(uint8((-i-108)>>8 + 251))
		w.WriteUint8(uint8(-i - 108))
	default:
		w.WriteUint8(28)
		w.WriteInt16(int16(i))
	}
}

func parseDICTNumber(b0 int, r *parse.BinaryReader) (float64, error) {
	switch b0 {
	case 29:
		if r.Len() < 4 {
			return 0.0, errCFFNumber
		}
		return float64(r.ReadInt32()), nil
	case 30:
		return parseDICTReal(r)
	}
	i, err := readCFFInteger(b0, r)
	return float64(i), err
}

var cffRealNibbles = [16]string{0xA: ".", 0xB: "E", 0xC: "E-", 0xE: "-"}

// parseDICTReal reads a real number stored as decimal nibbles up to the 0xF terminator.
func parseDICTReal(r *parse.BinaryReader) (float64, error) {
	num := []byte{}
	for 0 < r.Len() {
		b := r.ReadUint8()
		for _, nibble := range [2]byte{b >> 4, b & 0x0F} {
			if nibble <= 9 {
				num = append(num, '0'+nibble)
			} else if nibble != 0x0F {
				num = append(num, cffRealNibbles[nibble]...)
			} else if f, err := strconv.ParseFloat(string(num), 64); err == nil {
				return f, nil
			} else {
				return 0.0, errCFFNumber
			}
		}
	}
	return 0.0, errCFFNumber
}

// writeDICTReal writes val with eight significant digits.
func writeDICTReal(w *parse.BinaryWriter, val float64) {
	s := strconv.FormatFloat(val, 'G', 8, 64)
	nibbles := make([]byte, 0, len(s)+2)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case '0' <= c && c <= '9':
			nibbles = append(nibbles, c-'0')
		case c == '.':
			nibbles = append(nibbles, 0xA)
		case c == '-':
			nibbles = append(nibbles, 0xE)
		case c == 'E' && i+1 < len(s) && s[i+1] == '-':
			nibbles = append(nibbles, 0xC)
			i++
		case c == 'E':
			nibbles = append(nibbles, 0xB)
			if i+1 < len(s) && s[i+1] == '+' {
				i++
			}
		}
	}
	nibbles = append(nibbles, 0xF)
	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, 0xF)
	}

	w.WriteUint8(30)
	for i := 0; i < len(nibbles); i += 2 {
		w.WriteUint8(nibbles[i]<<4 | nibbles[i+1])
	}
}

// writeDICTEntry writes the operands followed by the operator. Integral values are written as integers, others as real numbers.
func writeDICTEntry(w *parse.BinaryWriter, op int, vals ...float64) error {
	if 513 < len(vals) {
		return fmt.Errorf("too many operands")
	}
	for _, val := range vals {
		if integer, frac := math.Modf(val); frac != 0.0 || integer < math.MinInt32 || math.MaxInt32 < integer {
			writeDICTReal(w, val)
		} else if i := int(val); i < math.MinInt16 || math.MaxInt16 < i {
			w.WriteUint8(29)
			w.WriteInt32(int32(i))
		} else {
			writeCFFInteger(w, i)
		}
	}
	writeCFFOperator(w, op)
	return nil
}

// writeDICTOffset writes offsets as five-byte integers so that the DICT size does not depend on them.
func writeDICTOffset(w *parse.BinaryWriter, op int, offsets ...int) {
	for _, offset := range offsets {
		w.WriteUint8(29)
		w.WriteUint32(uint32(offset))
	}
	writeCFFOperator(w, op)
}

func writeCFFOperator(w *parse.BinaryWriter, op int) {
	if 256 <= op {
		w.WriteUint8(0x0C)
		op -= 256
	}
	w.WriteUint8(uint8(op))
}

////////////////////////////////////////////////////////////////

type cff2TopDICT struct {
	FontMatrix  []float64 // nil if absent
	CharStrings int
	FDArray     int
	FDSelect    int
	Vstore      int
}

func parseTopDICT2(b []byte) (*cff2TopDICT, error) {
	entries, err := parseDICT(b, true, nil)
	if err != nil {
		return nil, err
	}

	dict := &cff2TopDICT{}
	for _, entry := range entries {
		if entry.Op != cffDICTFontMatrix && len(entry.Operands) != 1 {
			return nil, fmt.Errorf("bad number of operands for operator %d", entry.Op)
		}
		switch entry.Op {
		case cffDICTFontMatrix:
			if len(entry.Operands) != 6 {
				return nil, fmt.Errorf("bad FontMatrix")
			}
			dict.FontMatrix = entry.Operands
		case cffDICTCharStrings:
			dict.CharStrings = int(entry.Operands[0])
		case cffDICTFDArray:
			dict.FDArray = int(entry.Operands[0])
		case cffDICTFDSelect:
			dict.FDSelect = int(entry.Operands[0])
		case cffDICTVstore:
			dict.Vstore = int(entry.Operands[0])
		default:
			return nil, fmt.Errorf("bad operator %d", entry.Op)
		}
	}
	if dict.CharStrings <= 0 || dict.FDArray <= 0 {
		return nil, fmt.Errorf("missing CharStrings or FDArray")
	}
	return dict, nil
}

type cffPrivateDICT struct {
	Subrs   int
	Vsindex int
	Entries []cffDICTEntry // without Subrs, vsindex, and blend
}

// parsePrivateDICT parses a CFF2 Private DICT, resolving blend operators with blend.
func parsePrivateDICT(b []byte, blend cffBlendFunc) (*cffPrivateDICT, error) {
	entries, err := parseDICT(b, true, blend)
	if err != nil {
		return nil, err
	}

	dict := &cffPrivateDICT{}
	for _, entry := range entries {
		switch entry.Op {
		case cffDICTSubrs:
			if len(entry.Operands) != 1 || entry.Operands[0] < 0 {
				return nil, fmt.Errorf("bad Subrs")
			}
			dict.Subrs = int(entry.Operands[0])
		case cffDICTVsindex:
			dict.Vsindex = int(entry.Operands[0])
		default:
			dict.Entries = append(dict.Entries, entry)
		}
	}
	return dict, nil
}

func (t *cffPrivateDICT) Write() ([]byte, error) {
	w := parse.NewBinaryWriter([]byte{})
	for _, entry := range t.Entries {
		if err := writeDICTEntry(w, entry.Op, entry.Operands...); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

type cffFontINDEX struct {
	privateData [][]byte
	private     []*cffPrivateDICT
	localSubrs  []*cffINDEX

	fds   []uint8 // fds or the other two are used
	first []uint32
	fd    []uint16
}

func (t *cffFontINDEX) Len() int {
	return len(t.private)
}

func (t *cffFontINDEX) Index(glyphID uint32) (uint16, bool) {
	if len(t.private) == 1 {
		return 0, true
	} else if t.fds != nil {
		if len(t.fds) <= int(glyphID) || len(t.private) <= int(t.fds[glyphID]) {
			return 0, false
		}
		return uint16(t.fds[glyphID]), true
	} else if len(t.first) == 0 || glyphID < t.first[0] || t.first[len(t.first)-1] <= glyphID {
		return 0, false
	}

	i := 0
	for t.first[i+1] <= glyphID {
		i++
	}
	if len(t.private) <= int(t.fd[i]) {
		return 0, false
	}
	return t.fd[i], true
}

func parseFontINDEX(b []byte, fdArray, fdSelect, nGlyphs int, store *itemVariationStore) (*cffFontINDEX, error) {
	if len(b) < fdArray {
		return nil, fmt.Errorf("bad Font INDEX offset")
	}

	r := parse.NewBinaryReaderBytes(b)
	_, _ = r.Seek(int64(fdArray), io.SeekStart)
	fontINDEX, err := parseINDEX(r)
	if err != nil {
		return nil, fmt.Errorf("Font INDEX: %w", err)
	} else if fontINDEX.Len() == 0 {
		return nil, fmt.Errorf("Font INDEX: empty")
	}

	// resolve blends at the default instance to find the Subrs offsets
	var blend cffBlendFunc
	if store != nil {
		blend = store.blendFunc(make([]float64, len(store.Regions)))
	}

	fonts := &cffFontINDEX{}
	fonts.privateData = make([][]byte, fontINDEX.Len())
	fonts.private = make([]*cffPrivateDICT, fontINDEX.Len())
	fonts.localSubrs = make([]*cffINDEX, fontINDEX.Len())
	for i := 0; i < fontINDEX.Len(); i++ {
		entries, err := parseDICT(fontINDEX.Get(i), true, nil)
		if err != nil {
			return nil, fmt.Errorf("Font DICT: %w", err)
		}
		privateOffset, privateLength := 0, 0
		for _, entry := range entries {
			if entry.Op == cffDICTPrivate && len(entry.Operands) == 2 {
				privateLength, privateOffset = int(entry.Operands[0]), int(entry.Operands[1])
			}
		}
		if privateOffset < 0 || privateLength < 0 || len(b) < privateOffset || len(b)-privateOffset < privateLength {
			return nil, fmt.Errorf("Font DICT: bad Private DICT offset")
		}
		fonts.privateData[i] = b[privateOffset : privateOffset+privateLength]
		privateDICT, err := parsePrivateDICT(fonts.privateData[i], blend)
		if err != nil {
			return nil, fmt.Errorf("Private DICT: %w", err)
		}
		fonts.private[i] = privateDICT

		fonts.localSubrs[i] = &cffINDEX{}
		if privateDICT.Subrs != 0 {
			if len(b)-privateOffset < privateDICT.Subrs {
				return nil, fmt.Errorf("bad Local Subrs INDEX offset")
			}
			_, _ = r.Seek(int64(privateOffset+privateDICT.Subrs), io.SeekStart)
			fonts.localSubrs[i], err = parseINDEX(r)
			if err != nil {
				return nil, fmt.Errorf("Local Subrs INDEX: %w", err)
			}
		}
	}

	if fdSelect == 0 {
		if 1 < fontINDEX.Len() {
			return nil, fmt.Errorf("FDSelect: missing")
		}
		return fonts, nil
	} else if len(b) <= fdSelect {
		return nil, fmt.Errorf("FDSelect: bad offset")
	}

	errFDSelect := fmt.Errorf("FDSelect: bad table")
	_, _ = r.Seek(int64(fdSelect), io.SeekStart)
	format := r.ReadUint8()
	if format == 0 {
		if r.Len() < int64(nGlyphs) {
			return nil, errFDSelect
		}
		fonts.fds = make([]uint8, nGlyphs)
		for i := 0; i < nGlyphs; i++ {
			fonts.fds[i] = r.ReadUint8()
		}
	} else if format == 3 {
		if r.Len() < 2 {
			return nil, errFDSelect
		}
		nRanges := r.ReadUint16()
		if r.Len() < 3*int64(nRanges)+2 {
			return nil, errFDSelect
		}
		fonts.first = make([]uint32, nRanges+1)
		fonts.fd = make([]uint16, nRanges)
		for i := 0; i < int(nRanges); i++ {
			fonts.first[i] = uint32(r.ReadUint16())
			fonts.fd[i] = uint16(r.ReadUint8())
		}
		fonts.first[nRanges] = uint32(r.ReadUint16())
	} else if format == 4 {
		if r.Len() < 4 {
			return nil, errFDSelect
		}
		nRanges := r.ReadUint32()
		if r.Len() < 6*int64(nRanges)+4 {
			return nil, errFDSelect
		}
		fonts.first = make([]uint32, nRanges+1)
		fonts.fd = make([]uint16, nRanges)
		for i := 0; i < int(nRanges); i++ {
			fonts.first[i] = r.ReadUint32()
			fonts.fd[i] = r.ReadUint16()
		}
		fonts.first[nRanges] = r.ReadUint32()
	} else {
		return nil, fmt.Errorf("FDSelect: bad format")
	}
	for i := 1; i < len(fonts.first); i++ {
		if fonts.first[i] < fonts.first[i-1] {
			return nil, errFDSelect
		}
	}
	return fonts, nil
}

// writeFDSelect writes FDSelect in format 3, or format 4 for large fonts.
func (t *cffFontINDEX) writeFDSelect(nGlyphs int) []byte {
	w := parse.NewBinaryWriter([]byte{})
	firsts, fds := []uint32{}, []uint16{}
	for glyphID := 0; glyphID < nGlyphs; glyphID++ {
		fd, _ := t.Index(uint32(glyphID))
		if len(fds) == 0 || fds[len(fds)-1] != fd {
			firsts = append(firsts, uint32(glyphID))
			fds = append(fds, fd)
		}
	}
	if nGlyphs <= math.MaxUint16 && len(t.private) <= math.MaxUint8+1 {
		w.WriteUint8(3)
		w.WriteUint16(uint16(len(fds)))
		for i := range fds {
			w.WriteUint16(uint16(firsts[i]))
			w.WriteUint8(uint8(fds[i]))
		}
		w.WriteUint16(uint16(nGlyphs)) // sentinel
	} else {
		w.WriteUint8(4)
		w.WriteUint32(uint32(len(fds)))
		for i := range fds {
			w.WriteUint32(firsts[i])
			w.WriteUint16(fds[i])
		}
		w.WriteUint32(uint32(nGlyphs)) // sentinel
	}
	return w.Bytes()
}

// writeCFF2 writes a static CFF2 table without variation store and with an empty Global Subrs INDEX. Offsets in DICTs have a fixed size so that the layout can be computed up front.
func writeCFF2(fontMatrix []float64, charStrings *cffINDEX, fonts *cffFontINDEX, privates [][]byte) ([]byte, error) {
	nGlyphs := charStrings.Len()
	multipleFonts := 1 < len(privates)

	// Top DICT size
	topSize := 6 + 7 // CharStrings, FDArray
	if multipleFonts {
		topSize += 7 // FDSelect
	}
	if fontMatrix != nil {
		w := parse.NewBinaryWriter([]byte{})
		if err := writeDICTEntry(w, cffDICTFontMatrix, fontMatrix...); err != nil {
			return nil, err
		}
		topSize += int(w.Len())
	}

	globalSubrs, _ := (&cffINDEX{}).Write()
	charStringsINDEX, err := charStrings.Write()
	if err != nil {
		return nil, fmt.Errorf("CharStrings INDEX: %w", err)
	}
	var fdSelect []byte
	if multipleFonts {
		fdSelect = fonts.writeFDSelect(nGlyphs)
	}

	// Font DICTs have fixed size, so we can write the FDArray twice
	writeFDArray := func(privateOffset int) ([]byte, error) {
		fdArray := &cffINDEX{}
		for _, private := range privates {
			w := parse.NewBinaryWriter([]byte{})
			writeDICTOffset(w, cffDICTPrivate, len(private), privateOffset)
			fdArray.Add(w.Bytes())
			privateOffset += len(private)
		}
		return fdArray.Write()
	}
	fdArray, err := writeFDArray(0)
	if err != nil {
		return nil, fmt.Errorf("Font INDEX: %w", err)
	}

	charStringsOffset := 5 + topSize + len(globalSubrs)
	fdSelectOffset := charStringsOffset + len(charStringsINDEX)
	fdArrayOffset := fdSelectOffset + len(fdSelect)
	privateOffset := fdArrayOffset + len(fdArray)
	if fdArray, err = writeFDArray(privateOffset); err != nil {
		return nil, fmt.Errorf("Font INDEX: %w", err)
	}

	w := parse.NewBinaryWriter([]byte{})
	w.WriteUint8(2) // major
	w.WriteUint8(0) // minor
	w.WriteUint8(5) // headerSize
	w.WriteUint16(uint16(topSize))
	if fontMatrix != nil {
		_ = writeDICTEntry(w, cffDICTFontMatrix, fontMatrix...)
	}
	writeDICTOffset(w, cffDICTCharStrings, charStringsOffset)
	writeDICTOffset(w, cffDICTFDArray, fdArrayOffset)
	if multipleFonts {
		writeDICTOffset(w, cffDICTFDSelect, fdSelectOffset)
	}
	if int(w.Len()) != 5+topSize {
		return nil, fmt.Errorf("bad Top DICT size")
	}
	w.WriteBytes(globalSubrs)
	w.WriteBytes(charStringsINDEX)
	w.WriteBytes(fdSelect)
	w.WriteBytes(fdArray)
	for _, private := range privates {
		w.WriteBytes(private)
	}
	return w.Bytes(), nil
}
