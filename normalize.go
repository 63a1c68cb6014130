package varfont

import (
	"fmt"
	"math"
	"strings"
)

// DefaultPrecision is the number of decimals normalized coordinates are rounded to.
const DefaultPrecision = 6

// NormalizeOptions configures the mapping from user to normalized coordinates.
type NormalizeOptions struct {
	RequireAll bool // every axis must be given a coordinate
	NoValidate bool // skip the range check of user coordinates
	NoClamp    bool // out-of-range user coordinates are an error instead of being clamped
	Precision  int  // decimals, zero means DefaultPrecision and negative disables rounding
}

// Location is a point in normalized design space, with coordinates in fvar axis order.
type Location struct {
	tags   []Tag
	coords []float64
}

// Get returns the normalized coordinate of an axis, or zero if the axis does not exist.
func (loc Location) Get(tag Tag) float64 {
	for i, t := range loc.tags {
		if t == tag {
			return loc.coords[i]
		}
	}
	return 0.0
}

// Coords returns the normalized coordinates in axis order.
func (loc Location) Coords() []float64 {
	return loc.coords
}

// Tags returns the axis tags in axis order.
func (loc Location) Tags() []Tag {
	return loc.tags
}

// IsDefault returns true if all coordinates are at the axis defaults.
func (loc Location) IsDefault() bool {
	for _, v := range loc.coords {
		if v != 0.0 {
			return false
		}
	}
	return true
}

func (loc Location) String() string {
	sb := strings.Builder{}
	for i, tag := range loc.tags {
		if i != 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%s=%g", tag, loc.coords[i])
	}
	return sb.String()
}

// Normalizer maps user coordinates onto the normalized [-1,1] range of each fvar axis.
type Normalizer struct {
	axes []fvarAxis
	opts NormalizeOptions
}

// NewNormalizer returns a normalizer for the axes of a variable font. It returns an InvalidCoordinatesError if the font has no fvar table.
func NewNormalizer(sfnt *SFNT, opts NormalizeOptions) (*Normalizer, error) {
	if sfnt.Fvar == nil {
		return nil, &InvalidCoordinatesError{Msg: "font has no fvar table"}
	}
	return &Normalizer{
		axes: sfnt.Fvar.Axes,
		opts: opts,
	}, nil
}

// Normalize maps user coordinates to a location. Axes without a coordinate are at their default, unless RequireAll is set.
func (n *Normalizer) Normalize(userCoords map[Tag]float64) (Location, error) {
	for tag := range userCoords {
		known := false
		for _, axis := range n.axes {
			if axis.Tag == tag {
				known = true
				break
			}
		}
		if !known {
			return Location{}, &InvalidCoordinatesError{Axis: tag, Msg: "unknown axis"}
		}
	}

	loc := Location{
		tags:   make([]Tag, len(n.axes)),
		coords: make([]float64, len(n.axes)),
	}
	for i, axis := range n.axes {
		loc.tags[i] = axis.Tag
		value, ok := userCoords[axis.Tag]
		if !ok {
			if n.opts.RequireAll {
				return Location{}, &InvalidCoordinatesError{Axis: axis.Tag, Msg: "missing coordinate"}
			}
			continue
		}

		v, err := n.normalize(axis, value)
		if err != nil {
			return Location{}, err
		}
		loc.coords[i] = v
	}
	return loc, nil
}

// NormalizeAxis maps a single user coordinate of an axis.
func (n *Normalizer) NormalizeAxis(tag Tag, value float64) (float64, error) {
	for _, axis := range n.axes {
		if axis.Tag == tag {
			return n.normalize(axis, value)
		}
	}
	return 0.0, &InvalidCoordinatesError{Axis: tag, Value: value, Msg: "unknown axis"}
}

func (n *Normalizer) normalize(axis fvarAxis, value float64) (float64, error) {
	if math.IsNaN(value) {
		return 0.0, &InvalidCoordinatesError{Axis: axis.Tag, Value: value, Msg: "not a number"}
	} else if !n.opts.NoValidate && (value < axis.Min || axis.Max < value) {
		if n.opts.NoClamp {
			return 0.0, &InvalidCoordinatesError{
				Axis:  axis.Tag,
				Value: value,
				Min:   axis.Min,
				Max:   axis.Max,
			}
		}
		value = math.Max(axis.Min, math.Min(axis.Max, value))
	}

	if value == axis.Default {
		return 0.0, nil
	}

	var v float64
	if value < axis.Default {
		if axis.Default == axis.Min {
			return 0.0, nil
		}
		v = (value - axis.Default) / (axis.Default - axis.Min)
	} else {
		if axis.Max == axis.Default {
			return 0.0, nil
		}
		v = (value - axis.Default) / (axis.Max - axis.Default)
	}
	v = math.Max(-1.0, math.Min(1.0, v))

	precision := n.opts.Precision
	if precision == 0 {
		precision = DefaultPrecision
	}
	if 0 < precision {
		scale := math.Pow10(precision)
		v = math.Round(v*scale) / scale
	}
	if v == 0.0 {
		v = 0.0 // no negative zero
	}
	return v, nil
}
