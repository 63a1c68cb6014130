package varfont

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tdewolff/parse/v2"
	"golang.org/x/sync/errgroup"
)

// InstanceOptions are the options for generating a static instance.
type InstanceOptions struct {
	Normalize NormalizeOptions
	ApplyAvar bool // map normalized coordinates through avar
	UpdateOS2 bool // set usWeightClass and usWidthClass from the wght and wdth coordinates
	Workers   int  // glyphs instanced concurrently, sequential when less than two

	// Skipped is called for every glyph whose variation data could not be applied. TrueType glyphs keep their original outline. CFF2 glyphs become empty, since their charstrings cannot be kept without the variation store they refer to. Both keep their original metrics unless HVAR or VVAR adjust them.
	Skipped func(glyphID uint16, reason error)
}

// variationTables are removed from an instance.
var variationTables = []string{"fvar", "avar", "gvar", "cvar", "HVAR", "VVAR", "MVAR"}

const maxComponentDepth = 16

type glyphBounds struct {
	XMin, YMin, XMax, YMax int16
	Empty                  bool
}

func (b glyphBounds) Width() int64 {
	return int64(b.XMax) - int64(b.XMin)
}

func (b glyphBounds) Height() int64 {
	return int64(b.YMax) - int64(b.YMin)
}

type glyphMetrics struct {
	Advance       uint16
	LSB           int16
	AdvanceHeight uint16
	TSB           int16
}

// glyphOutcome is the result of instancing a single glyph, either glyphInstanced or glyphSkipped.
type glyphOutcome interface {
	isGlyphOutcome()
}

type glyphInstanced struct {
	Glyph   *glyfGlyph  // nil for CFF2
	Data    []byte      // nil for composite glyphs, which are encoded once their bounds are known
	Bounds  glyphBounds // only for CFF2
	Phantom *[4]float64 // instanced x of pp1 and pp2 and y of pp3 and pp4, nil for CFF2
}

type glyphSkipped struct {
	Reason error
}

func (glyphInstanced) isGlyphOutcome() {}
func (glyphSkipped) isGlyphOutcome()   {}

// tableHandler rewrites a table, and the tables that depend on it, for the instance.
type tableHandler func(inst *instancer, tables map[string][]byte) error

// tableHandlers are run in order for every table present in the font.
var tableHandlers = []struct {
	Tag     string
	Handler tableHandler
}{
	{"glyf", instanceGlyf},
	{"CFF2", instanceCFF2},
	{"head", instanceHead},
	{"hmtx", instanceHmtx},
	{"vmtx", instanceVmtx},
	{"cvt ", instanceCvtTable},
	{"MVAR", instanceMvar},
	{"OS/2", instanceOS2},
}

type instancer struct {
	sfnt   *SFNT
	opts   InstanceOptions
	loc    Location
	coords []float64
	user   map[Tag]float64 // clamped user coordinates of all axes

	gvar        *gvarTable
	cvar        *tupleVariationStore
	hvar, vvar  *metricsVarTable
	mvar        *mvarTable
	cff2        *cff2Table
	hvarScalars []float64
	vvarScalars []float64
	mvarScalars []float64
	cff2Scalars []float64

	// per glyph, nil if the font has no outlines to instance
	glyphs   [][]byte
	bounds   []glyphBounds
	phantoms []*[4]float64
	skipped  []bool

	metrics          []glyphMetrics
	indexToLocFormat int16
}

// Generate returns the tables of a static font at the given user coordinates. Axes without a coordinate stay at their default. The variation tables are removed and all tables that are not affected by variations are passed through unchanged. Glyphs whose variation data is broken are reported through InstanceOptions.Skipped.
func Generate(sfnt *SFNT, userCoords map[Tag]float64, opts InstanceOptions) (map[string][]byte, error) {
	normalizer, err := NewNormalizer(sfnt, opts.Normalize)
	if err != nil {
		return nil, err
	}
	loc, err := normalizer.Normalize(userCoords)
	if err != nil {
		return nil, err
	}
	if opts.ApplyAvar && sfnt.Avar != nil {
		loc = sfnt.Avar.Map(loc)
	}
	tracer().Infof("instancing at %v", loc)

	inst, err := newInstancer(sfnt, loc, userCoords, opts)
	if err != nil {
		return nil, err
	}
	inst.instanceGlyphs()
	if err := inst.instanceMetrics(); err != nil {
		return nil, err
	}

	tables := make(map[string][]byte, len(sfnt.Tables))
	for tag, b := range sfnt.Tables {
		tables[tag] = b
	}
	for _, entry := range tableHandlers {
		if _, ok := sfnt.Tables[entry.Tag]; !ok {
			continue
		}
		if err := entry.Handler(inst, tables); err != nil {
			return nil, err
		}
	}
	for _, tag := range variationTables {
		delete(tables, tag)
	}
	return tables, nil
}

func newInstancer(sfnt *SFNT, loc Location, userCoords map[Tag]float64, opts InstanceOptions) (*instancer, error) {
	inst := &instancer{
		sfnt:   sfnt,
		opts:   opts,
		loc:    loc,
		coords: loc.Coords(),
		user:   map[Tag]float64{},
	}
	for _, axis := range sfnt.Fvar.Axes {
		v, ok := userCoords[axis.Tag]
		if !ok {
			v = axis.Default
		}
		inst.user[axis.Tag] = math.Max(axis.Min, math.Min(axis.Max, v))
	}

	var err error
	axisCount := len(sfnt.Fvar.Axes)
	if b, ok := sfnt.Tables["gvar"]; ok && sfnt.Glyf != nil {
		if inst.gvar, err = parseGvar(b, axisCount, sfnt.NumGlyphs()); err != nil {
			return nil, err
		}
	}
	if b, ok := sfnt.Tables["cvar"]; ok && sfnt.HasTable("cvt ") {
		if inst.cvar, err = parseCvar(b, axisCount); err != nil {
			return nil, err
		}
	}
	if b, ok := sfnt.Tables["HVAR"]; ok {
		if inst.hvar, err = parseMetricsVar("HVAR", b, axisCount); err != nil {
			return nil, err
		}
		inst.hvarScalars = inst.hvar.store.RegionScalars(inst.coords)
	}
	if b, ok := sfnt.Tables["VVAR"]; ok && sfnt.Vmtx != nil {
		if inst.vvar, err = parseMetricsVar("VVAR", b, axisCount); err != nil {
			return nil, err
		}
		inst.vvarScalars = inst.vvar.store.RegionScalars(inst.coords)
	}
	if b, ok := sfnt.Tables["MVAR"]; ok {
		if inst.mvar, err = parseMvar(b, axisCount); err != nil {
			return nil, err
		}
		if inst.mvar.store != nil {
			inst.mvarScalars = inst.mvar.store.RegionScalars(inst.coords)
		}
	}
	if b, ok := sfnt.Tables["CFF2"]; ok {
		if inst.cff2, err = parseCFF2(b, axisCount); err != nil {
			return nil, wrapInvalidFont("CFF2", err)
		} else if inst.cff2.NumGlyphs() != int(sfnt.NumGlyphs()) {
			return nil, errInvalidFont("CFF2", "number of charstrings does not match maxp")
		}
		if inst.cff2.store != nil {
			inst.cff2Scalars = inst.cff2.store.RegionScalars(inst.coords)
		}
	}
	return inst, nil
}

// instanceGlyphs instances all outlines, skipping the glyphs whose variations cannot be applied.
func (inst *instancer) instanceGlyphs() {
	var instance func(uint16) glyphOutcome
	if inst.cff2 != nil {
		instance = inst.instanceCharString
	} else if inst.sfnt.Glyf != nil {
		instance = inst.instanceGlyph
	} else {
		return
	}

	numGlyphs := int(inst.sfnt.NumGlyphs())
	outcomes := make([]glyphOutcome, numGlyphs)
	if inst.opts.Workers < 2 {
		for glyphID := range outcomes {
			outcomes[glyphID] = instance(uint16(glyphID))
		}
	} else {
		var g errgroup.Group
		g.SetLimit(inst.opts.Workers)
		for glyphID := range outcomes {
			glyphID := glyphID
			g.Go(func() error {
				outcomes[glyphID] = instance(uint16(glyphID))
				return nil
			})
		}
		_ = g.Wait()
	}

	inst.glyphs = make([][]byte, numGlyphs)
	inst.bounds = make([]glyphBounds, numGlyphs)
	inst.phantoms = make([]*[4]float64, numGlyphs)
	inst.skipped = make([]bool, numGlyphs)
	decoded := make([]*glyfGlyph, numGlyphs)
	for glyphID, outcome := range outcomes {
		switch o := outcome.(type) {
		case glyphInstanced:
			inst.glyphs[glyphID] = o.Data
			inst.phantoms[glyphID] = o.Phantom
			decoded[glyphID] = o.Glyph
			if o.Glyph != nil {
				inst.bounds[glyphID] = glyfBounds(o.Glyph)
			} else {
				inst.bounds[glyphID] = o.Bounds
			}
		case glyphSkipped:
			inst.skip(uint16(glyphID), o.Reason)
			if inst.sfnt.Glyf != nil && inst.cff2 == nil {
				decoded[glyphID], _ = inst.sfnt.Glyf.Glyph(uint16(glyphID))
			}
		}
	}

	if inst.cff2 == nil {
		inst.instanceComposites(decoded)
	}
}

// skip keeps the original metrics of a glyph and its original outline, or an empty one for CFF2.
func (inst *instancer) skip(glyphID uint16, reason error) {
	tracer().Infof("glyph %d: skipped: %v", glyphID, reason)
	if inst.opts.Skipped != nil {
		inst.opts.Skipped(glyphID, reason)
	}

	inst.skipped[glyphID] = true
	inst.phantoms[glyphID] = nil
	if inst.cff2 != nil {
		// charstring errors do not depend on the location
		inst.glyphs[glyphID] = []byte{}
		inst.bounds[glyphID] = glyphBounds{Empty: true}
		return
	}
	b := inst.sfnt.Glyf.Get(glyphID)
	inst.glyphs[glyphID] = b
	inst.bounds[glyphID] = glyphBounds{Empty: true}
	if 10 <= len(b) {
		inst.bounds[glyphID] = glyphBounds{
			XMin: int16(binary.BigEndian.Uint16(b[2:])),
			YMin: int16(binary.BigEndian.Uint16(b[4:])),
			XMax: int16(binary.BigEndian.Uint16(b[6:])),
			YMax: int16(binary.BigEndian.Uint16(b[8:])),
		}
	}
}

func glyfBounds(glyph *glyfGlyph) glyphBounds {
	if glyph.IsEmpty() {
		return glyphBounds{Empty: true}
	}
	return glyphBounds{glyph.XMin, glyph.YMin, glyph.XMax, glyph.YMax, false}
}

func (inst *instancer) verticalMetrics(glyphID uint16, yMax int16) (uint16, int16) {
	if inst.sfnt.Vmtx != nil {
		return inst.sfnt.Vmtx.Advance(glyphID), inst.sfnt.Vmtx.SideBearing(glyphID)
	}
	ascender, descender := int64(inst.sfnt.Hhea.Ascender), int64(inst.sfnt.Hhea.Descender)
	return saturateUint16(ascender - descender), saturateInt16(ascender - int64(yMax))
}

// instanceGlyph applies the gvar deltas to the points of a glyph and its phantom points. Composite glyphs have their component offsets moved and are encoded by instanceComposites.
func (inst *instancer) instanceGlyph(glyphID uint16) glyphOutcome {
	glyph, err := inst.sfnt.Glyf.Glyph(glyphID)
	if err != nil {
		return glyphSkipped{err}
	}

	advance, lsb := inst.sfnt.Hmtx.Advance(glyphID), inst.sfnt.Hmtx.SideBearing(glyphID)
	advanceHeight, tsb := inst.verticalMetrics(glyphID, glyph.YMax)
	pxs, pys := phantomPoints(glyph.XMin, glyph.YMax, advance, lsb, advanceHeight, tsb)
	phantom := &[4]float64{pxs[0], pxs[1], pys[2], pys[3]}

	var store *tupleVariationStore
	if inst.gvar != nil {
		if store, err = inst.gvar.Glyph(glyphID); err != nil {
			return glyphSkipped{err}
		}
	}
	if store == nil {
		var data []byte
		if !glyph.IsComposite() {
			data = inst.sfnt.Glyf.Get(glyphID)
		}
		return glyphInstanced{Glyph: glyph, Data: data, Phantom: phantom}
	}

	n := glyph.NumPoints()
	xs := make([]float64, n+numPhantomPoints)
	ys := make([]float64, n+numPhantomPoints)
	var endPoints []uint16
	if glyph.IsComposite() {
		for i, comp := range glyph.Components {
			if comp.Flags&compositeArgsAreXYValues != 0 {
				xs[i], ys[i] = float64(comp.Arg1), float64(comp.Arg2)
			}
		}
	} else {
		for i := 0; i < n; i++ {
			xs[i], ys[i] = float64(glyph.XCoordinates[i]), float64(glyph.YCoordinates[i])
		}
		endPoints = glyph.EndPoints
		if endPoints == nil {
			endPoints = []uint16{}
		}
	}
	copy(xs[n:], pxs[:])
	copy(ys[n:], pys[:])

	tuples, scalars, err := store.Variations(inst.coords, len(xs), 2)
	if err != nil {
		return glyphSkipped{fmt.Errorf("gvar: glyphID %v: %w", glyphID, err)}
	}
	dx, dy, err := glyphDeltas(tuples, scalars, xs, ys, endPoints)
	if err != nil {
		return glyphSkipped{fmt.Errorf("gvar: glyphID %v: %w", glyphID, err)}
	}

	out := *glyph
	if glyph.IsComposite() {
		out.Components = make([]glyfComponent, len(glyph.Components))
		for i, comp := range glyph.Components {
			if comp.Flags&compositeArgsAreXYValues != 0 {
				comp.Arg1 = saturateInt16(int64(comp.Arg1) + roundHalfAway(dx[i]))
				comp.Arg2 = saturateInt16(int64(comp.Arg2) + roundHalfAway(dy[i]))
			}
			out.Components[i] = comp
		}
	} else {
		out.XCoordinates = make([]int16, n)
		out.YCoordinates = make([]int16, n)
		for i := 0; i < n; i++ {
			out.XCoordinates[i] = saturateInt16(int64(glyph.XCoordinates[i]) + roundHalfAway(dx[i]))
			out.YCoordinates[i] = saturateInt16(int64(glyph.YCoordinates[i]) + roundHalfAway(dy[i]))
		}
		out.calcBounds()
	}
	for i := 0; i < 2; i++ {
		phantom[i] = float64(roundHalfAway(xs[n+i] + dx[n+i]))
		phantom[2+i] = float64(roundHalfAway(ys[n+2+i] + dy[n+2+i]))
	}

	var data []byte
	if !out.IsComposite() {
		data = out.Write()
	}
	return glyphInstanced{Glyph: &out, Data: data, Phantom: phantom}
}

// instanceComposites recomputes the bounds of the instanced composite glyphs from their instanced components and encodes them.
func (inst *instancer) instanceComposites(decoded []*glyfGlyph) {
	for glyphID, glyph := range decoded {
		if inst.skipped[glyphID] || glyph == nil || !glyph.IsComposite() {
			continue
		}

		xs, ys, err := compositePoints(decoded, uint16(glyphID), 0)
		if err != nil {
			inst.skip(uint16(glyphID), fmt.Errorf("glyf: glyphID %v: %w", glyphID, err))
			continue
		}
		p := &bboxPather{}
		for i := range xs {
			p.LineTo(float64(roundHalfAway(xs[i])), float64(roundHalfAway(ys[i])))
		}
		glyph.XMin, glyph.YMin, glyph.XMax, glyph.YMax = p.Rounded()
		inst.glyphs[glyphID] = glyph.Write()
		inst.bounds[glyphID] = glyphBounds{glyph.XMin, glyph.YMin, glyph.XMax, glyph.YMax, p.Empty()}
	}
}

// compositePoints returns the outline points of a glyph with all components resolved and transformed.
func compositePoints(decoded []*glyfGlyph, glyphID uint16, depth int) ([]float64, []float64, error) {
	if maxComponentDepth < depth {
		return nil, nil, fmt.Errorf("too many nested components")
	} else if len(decoded) <= int(glyphID) || decoded[glyphID] == nil {
		return nil, nil, fmt.Errorf("bad component glyphID %v", glyphID)
	}

	glyph := decoded[glyphID]
	if !glyph.IsComposite() {
		xs := make([]float64, len(glyph.XCoordinates))
		ys := make([]float64, len(glyph.YCoordinates))
		for i := range xs {
			xs[i], ys[i] = float64(glyph.XCoordinates[i]), float64(glyph.YCoordinates[i])
		}
		return xs, ys, nil
	}

	xs, ys := []float64{}, []float64{}
	for _, comp := range glyph.Components {
		cxs, cys, err := compositePoints(decoded, comp.GlyphID, depth+1)
		if err != nil {
			return nil, nil, err
		}

		dx, dy := float64(comp.Arg1), float64(comp.Arg2)
		if comp.Flags&compositeArgsAreXYValues == 0 {
			// align a point of the component to a point of the glyph so far
			parent, child := int(uint16(comp.Arg1)), int(uint16(comp.Arg2))
			if len(xs) <= parent || len(cxs) <= child {
				return nil, nil, fmt.Errorf("bad anchor point for component glyphID %v", comp.GlyphID)
			}
			x, y := comp.Scale(cxs[child], cys[child])
			dx, dy = xs[parent]-x, ys[parent]-y
		}
		for i := range cxs {
			x, y := comp.Scale(cxs[i], cys[i])
			xs = append(xs, x+dx)
			ys = append(ys, y+dy)
		}
	}
	return xs, ys, nil
}

func (inst *instancer) instanceCharString(glyphID uint16) glyphOutcome {
	b, p, err := inst.cff2.instanceCharString(int(glyphID), inst.cff2Scalars)
	if err != nil {
		return glyphSkipped{fmt.Errorf("CFF2: glyphID %v: %w", glyphID, err)}
	}
	xMin, yMin, xMax, yMax := p.Rounded()
	return glyphInstanced{Data: b, Bounds: glyphBounds{xMin, yMin, xMax, yMax, p.Empty()}}
}

// instanceMetrics derives the advances and side bearings from the phantom points or outline bounds, and applies HVAR and VVAR.
func (inst *instancer) instanceMetrics() error {
	hmtx, vmtx := inst.sfnt.Hmtx, inst.sfnt.Vmtx
	inst.metrics = make([]glyphMetrics, inst.sfnt.NumGlyphs())
	for i := range inst.metrics {
		glyphID := uint16(i)
		m := glyphMetrics{
			Advance: hmtx.Advance(glyphID),
			LSB:     hmtx.SideBearing(glyphID),
		}
		if vmtx != nil {
			m.AdvanceHeight = vmtx.Advance(glyphID)
			m.TSB = vmtx.SideBearing(glyphID)
		}

		if inst.glyphs != nil && !inst.skipped[i] {
			bounds := inst.bounds[i]
			if pp := inst.phantoms[i]; pp != nil {
				m.Advance = saturateUint16(int64(pp[1] - pp[0]))
				m.LSB = saturateInt16(int64(bounds.XMin) - int64(pp[0]))
				if vmtx != nil {
					m.AdvanceHeight = saturateUint16(int64(pp[2] - pp[3]))
					m.TSB = saturateInt16(int64(pp[2]) - int64(bounds.YMax))
				}
			} else if !bounds.Empty {
				m.LSB = bounds.XMin
			}
		}

		if inst.hvar != nil {
			delta, err := inst.hvar.AdvanceDelta(glyphID, inst.hvarScalars)
			if err != nil {
				return wrapInvalidFont("HVAR", fmt.Errorf("glyphID %v: %w", glyphID, err))
			}
			m.Advance = saturateUint16(int64(hmtx.Advance(glyphID)) + roundHalfAway(delta))
			if delta, ok, err := inst.hvar.StartSideDelta(glyphID, inst.hvarScalars); err != nil {
				return wrapInvalidFont("HVAR", fmt.Errorf("glyphID %v: %w", glyphID, err))
			} else if ok {
				m.LSB = saturateInt16(int64(hmtx.SideBearing(glyphID)) + roundHalfAway(delta))
			}
		}
		if inst.vvar != nil {
			delta, err := inst.vvar.AdvanceDelta(glyphID, inst.vvarScalars)
			if err != nil {
				return wrapInvalidFont("VVAR", fmt.Errorf("glyphID %v: %w", glyphID, err))
			}
			m.AdvanceHeight = saturateUint16(int64(vmtx.Advance(glyphID)) + roundHalfAway(delta))
			if delta, ok, err := inst.vvar.StartSideDelta(glyphID, inst.vvarScalars); err != nil {
				return wrapInvalidFont("VVAR", fmt.Errorf("glyphID %v: %w", glyphID, err))
			} else if ok {
				m.TSB = saturateInt16(int64(vmtx.SideBearing(glyphID)) + roundHalfAway(delta))
			}
		}
		inst.metrics[i] = m
	}
	return nil
}

////////////////////////////////////////////////////////////////

func instanceGlyf(inst *instancer, tables map[string][]byte) error {
	if inst.glyphs == nil || inst.cff2 != nil {
		return nil
	}
	glyf, loca, indexToLocFormat, err := writeGlyfLoca(inst.glyphs)
	if err != nil {
		return err
	}
	tables["glyf"] = glyf
	tables["loca"] = loca
	inst.indexToLocFormat = indexToLocFormat
	return nil
}

func instanceCFF2(inst *instancer, tables map[string][]byte) error {
	if inst.cff2 == nil {
		return nil
	}
	charStrings := &cffINDEX{}
	for _, b := range inst.glyphs {
		charStrings.Add(b)
	}
	privates := make([][]byte, inst.cff2.fonts.Len())
	for fd := range privates {
		var err error
		if privates[fd], err = inst.cff2.instancePrivateDICT(fd, inst.cff2Scalars); err != nil {
			return wrapInvalidFont("CFF2", err)
		}
	}
	b, err := writeCFF2(inst.cff2.top.FontMatrix, charStrings, inst.cff2.fonts, privates)
	if err != nil {
		return wrapInvalidFont("CFF2", err)
	}
	tables["CFF2"] = b
	return nil
}

func instanceHead(inst *instancer, tables map[string][]byte) error {
	if inst.glyphs == nil {
		return nil
	}
	head := append([]byte{}, tables["head"]...)

	bounds := glyphBounds{Empty: true}
	for _, b := range inst.bounds {
		if b.Empty {
			continue
		} else if bounds.Empty {
			bounds = b
			continue
		}
		bounds.XMin = min(bounds.XMin, b.XMin)
		bounds.YMin = min(bounds.YMin, b.YMin)
		bounds.XMax = max(bounds.XMax, b.XMax)
		bounds.YMax = max(bounds.YMax, b.YMax)
	}
	binary.BigEndian.PutUint16(head[36:], uint16(bounds.XMin))
	binary.BigEndian.PutUint16(head[38:], uint16(bounds.YMin))
	binary.BigEndian.PutUint16(head[40:], uint16(bounds.XMax))
	binary.BigEndian.PutUint16(head[42:], uint16(bounds.YMax))
	if inst.cff2 == nil {
		binary.BigEndian.PutUint16(head[50:], uint16(inst.indexToLocFormat))
	}
	tables["head"] = head
	return nil
}

// writeMetrics encodes hmtx or vmtx, dropping the trailing advances that repeat.
func writeMetrics(advances []uint16, bearings []int16) ([]byte, uint16) {
	numberOfMetrics := len(advances)
	for 1 < numberOfMetrics && advances[numberOfMetrics-1] == advances[numberOfMetrics-2] {
		numberOfMetrics--
	}

	w := parse.NewBinaryWriter(make([]byte, 0, 4*numberOfMetrics+2*(len(advances)-numberOfMetrics)))
	for i := range advances {
		if i < numberOfMetrics {
			w.WriteUint16(advances[i])
		}
		w.WriteInt16(bearings[i])
	}
	return w.Bytes(), uint16(numberOfMetrics)
}

func instanceHmtx(inst *instancer, tables map[string][]byte) error {
	advances := make([]uint16, len(inst.metrics))
	lsbs := make([]int16, len(inst.metrics))
	for i, m := range inst.metrics {
		advances[i], lsbs[i] = m.Advance, m.LSB
	}
	hmtx, numberOfHMetrics := writeMetrics(advances, lsbs)
	tables["hmtx"] = hmtx

	hhea := append([]byte{}, tables["hhea"]...)
	var advanceWidthMax uint16
	for _, advance := range advances {
		advanceWidthMax = max(advanceWidthMax, advance)
	}
	binary.BigEndian.PutUint16(hhea[10:], advanceWidthMax)
	if inst.glyphs != nil {
		var minLSB, minRSB, xMaxExtent int64
		first := true
		for i, m := range inst.metrics {
			bounds := inst.bounds[i]
			if bounds.Empty {
				continue
			}
			extent := int64(m.LSB) + bounds.Width()
			rsb := int64(m.Advance) - extent
			if first {
				minLSB, minRSB, xMaxExtent = int64(m.LSB), rsb, extent
				first = false
				continue
			}
			minLSB = min(minLSB, int64(m.LSB))
			minRSB = min(minRSB, rsb)
			xMaxExtent = max(xMaxExtent, extent)
		}
		binary.BigEndian.PutUint16(hhea[12:], uint16(saturateInt16(minLSB)))
		binary.BigEndian.PutUint16(hhea[14:], uint16(saturateInt16(minRSB)))
		binary.BigEndian.PutUint16(hhea[16:], uint16(saturateInt16(xMaxExtent)))
	}
	binary.BigEndian.PutUint16(hhea[34:], numberOfHMetrics)
	tables["hhea"] = hhea
	return nil
}

func instanceVmtx(inst *instancer, tables map[string][]byte) error {
	if inst.sfnt.Vmtx == nil || !inst.sfnt.HasTable("vhea") {
		return nil
	}
	advances := make([]uint16, len(inst.metrics))
	tsbs := make([]int16, len(inst.metrics))
	for i, m := range inst.metrics {
		advances[i], tsbs[i] = m.AdvanceHeight, m.TSB
	}
	vmtx, numberOfVMetrics := writeMetrics(advances, tsbs)
	tables["vmtx"] = vmtx

	vhea := append([]byte{}, tables["vhea"]...)
	var advanceHeightMax uint16
	for _, advance := range advances {
		advanceHeightMax = max(advanceHeightMax, advance)
	}
	binary.BigEndian.PutUint16(vhea[10:], advanceHeightMax)
	if inst.glyphs != nil {
		var minTSB, minBSB, yMaxExtent int64
		first := true
		for i, m := range inst.metrics {
			bounds := inst.bounds[i]
			if bounds.Empty {
				continue
			}
			extent := int64(m.TSB) + bounds.Height()
			bsb := int64(m.AdvanceHeight) - extent
			if first {
				minTSB, minBSB, yMaxExtent = int64(m.TSB), bsb, extent
				first = false
				continue
			}
			minTSB = min(minTSB, int64(m.TSB))
			minBSB = min(minBSB, bsb)
			yMaxExtent = max(yMaxExtent, extent)
		}
		binary.BigEndian.PutUint16(vhea[12:], uint16(saturateInt16(minTSB)))
		binary.BigEndian.PutUint16(vhea[14:], uint16(saturateInt16(minBSB)))
		binary.BigEndian.PutUint16(vhea[16:], uint16(saturateInt16(yMaxExtent)))
	}
	binary.BigEndian.PutUint16(vhea[34:], numberOfVMetrics)
	tables["vhea"] = vhea
	return nil
}

func instanceCvtTable(inst *instancer, tables map[string][]byte) error {
	if inst.cvar == nil {
		return nil
	}
	cvt, err := instanceCvt(tables["cvt "], inst.cvar, inst.coords)
	if err != nil {
		return wrapInvalidFont("cvar", err)
	}
	tables["cvt "] = cvt
	return nil
}

func instanceMvar(inst *instancer, tables map[string][]byte) error {
	return inst.mvar.Apply(tables, inst.mvarScalars)
}

func instanceOS2(inst *instancer, tables map[string][]byte) error {
	if !inst.opts.UpdateOS2 {
		return nil
	}
	os2 := append([]byte{}, tables["OS/2"]...)
	if len(os2) < 8 {
		tracer().Debugf("OS/2: table too short to update weight and width class")
		return nil
	}
	if wght, ok := inst.user[MustParseTag("wght")]; ok {
		weightClass := max(1, min(1000, roundHalfAway(wght)))
		binary.BigEndian.PutUint16(os2[4:], uint16(weightClass))
	}
	if wdth, ok := inst.user[MustParseTag("wdth")]; ok {
		binary.BigEndian.PutUint16(os2[6:], os2WidthClass(wdth))
	}
	tables["OS/2"] = os2
	return nil
}
