package varfont

import "math"

// bboxPather accumulates the control-point bounds of a path.
type bboxPather struct {
	XMin, XMax, YMin, YMax float64
	nonEmpty               bool
}

func (p *bboxPather) add(x, y float64) {
	if !p.nonEmpty {
		p.XMin, p.XMax, p.YMin, p.YMax = x, x, y, y
		p.nonEmpty = true
		return
	}
	p.XMin = math.Min(p.XMin, x)
	p.XMax = math.Max(p.XMax, x)
	p.YMin = math.Min(p.YMin, y)
	p.YMax = math.Max(p.YMax, y)
}

func (p *bboxPather) Empty() bool {
	return !p.nonEmpty
}

func (p *bboxPather) MoveTo(x float64, y float64) {
	p.add(x, y)
}

func (p *bboxPather) LineTo(x float64, y float64) {
	p.add(x, y)
}

func (p *bboxPather) CubeTo(cpx1 float64, cpy1 float64, cpx2 float64, cpy2 float64, x float64, y float64) {
	p.add(cpx1, cpy1)
	p.add(cpx2, cpy2)
	p.add(x, y)
}

func (p *bboxPather) Close() {
}

// Rounded returns the bounds rounded outwards to integers.
func (p *bboxPather) Rounded() (int16, int16, int16, int16) {
	if !p.nonEmpty {
		return 0, 0, 0, 0
	}
	return saturateInt16(int64(math.Floor(p.XMin))), saturateInt16(int64(math.Floor(p.YMin))), saturateInt16(int64(math.Ceil(p.XMax))), saturateInt16(int64(math.Ceil(p.YMax)))
}
