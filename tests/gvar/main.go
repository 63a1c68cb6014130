//go:build gofuzz
// +build gofuzz

package fuzz

import "github.com/tdewolff/varfont"

// Fuzz is a fuzz test that instances the font at the maximum of every axis.
func Fuzz(data []byte) int {
	sfnt, err := varfont.ParseSFNT(data, 0)
	if err != nil || !sfnt.IsVariable() {
		return 0
	}
	coords := map[varfont.Tag]float64{}
	for _, axis := range sfnt.Fvar.Axes {
		coords[axis.Tag] = axis.Max
	}
	if _, err := varfont.Generate(sfnt, coords, varfont.InstanceOptions{}); err != nil {
		return 0
	}
	return 1
}
