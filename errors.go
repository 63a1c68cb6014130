package varfont

import (
	"errors"
	"fmt"
)

// InvalidCoordinatesError is returned when user coordinates cannot be mapped onto the font's design space, such as a value outside an axis' range while clamping is disabled, an unknown axis tag, or a font without an fvar table.
type InvalidCoordinatesError struct {
	Axis  Tag
	Value float64
	Min   float64
	Max   float64
	Msg   string
}

func (e *InvalidCoordinatesError) Error() string {
	if e.Msg != "" {
		if e.Axis == (Tag{}) {
			return fmt.Sprintf("invalid coordinates: %s", e.Msg)
		}
		return fmt.Sprintf("invalid coordinates: axis %s: %s", e.Axis, e.Msg)
	}
	return fmt.Sprintf("invalid coordinates: axis %s: value %v outside [%v,%v]", e.Axis, e.Value, e.Min, e.Max)
}

// InvalidFontError is returned when a variation table is structurally broken. It matches ErrInvalidFontData with errors.Is.
type InvalidFontError struct {
	Table string
	Err   error
}

func (e *InvalidFontError) Error() string {
	return fmt.Sprintf("%s: %v", e.Table, e.Err)
}

func (e *InvalidFontError) Unwrap() error {
	return e.Err
}

func (e *InvalidFontError) Is(target error) bool {
	return target == ErrInvalidFontData
}

// ArgumentError is returned for invalid options, such as an unknown strategy or a missing or out-of-range named instance index.
type ArgumentError struct {
	Name string
	Msg  string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("bad argument %s: %s", e.Name, e.Msg)
}

func errInvalidFont(table string, format string, args ...any) error {
	return &InvalidFontError{Table: table, Err: fmt.Errorf(format, args...)}
}

// wrapInvalidFont wraps err as an InvalidFontError for table, unless it already is one.
func wrapInvalidFont(table string, err error) error {
	if err == nil {
		return nil
	}
	var fontErr *InvalidFontError
	if errors.As(err, &fontErr) {
		return err
	}
	return &InvalidFontError{Table: table, Err: err}
}
