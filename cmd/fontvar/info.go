package main

import (
	"fmt"
	"strings"

	"github.com/tdewolff/varfont"
)

type Info struct {
	Index int    `short:"i" desc:"Font index for font collections"`
	Input string `index:"0" desc:"Input file"`
}

func (cmd *Info) Run() error {
	sfnt, mimetype, n, err := readFont(cmd.Input, cmd.Index)
	if err != nil {
		return err
	}

	fmt.Printf("File: %s\n", cmd.Input)
	fmt.Printf("Type: %s, %s, %d glyphs\n", mimetype, formatBytes(uint64(n)), sfnt.NumGlyphs())
	if sfnt.OS2 != nil {
		fmt.Printf("OS/2: usWeightClass=%d  usWidthClass=%d\n", sfnt.OS2.UsWeightClass, sfnt.OS2.UsWidthClass)
	}
	if !sfnt.IsVariable() {
		fmt.Printf("\nNot a variable font\n")
		return nil
	}

	fmt.Printf("\nAxes:\n")
	for i, axis := range sfnt.Fvar.Axes {
		name := nameString(sfnt, axis.NameID)
		if axis.Hidden() {
			name += " (hidden)"
		}
		fmt.Printf("  %2d  %s  min=%g  default=%g  max=%g  %s\n", i, axis.Tag, axis.Min, axis.Default, axis.Max, name)
	}

	if 0 < len(sfnt.Fvar.Instances) {
		fmt.Printf("\nNamed instances:\n")
	}
	for i, instance := range sfnt.Fvar.Instances {
		coords := make([]string, len(instance.Coordinates))
		for j, coord := range instance.Coordinates {
			coords[j] = fmt.Sprintf("%s=%g", sfnt.Fvar.Axes[j].Tag, coord)
		}
		fmt.Printf("  %2d  %-20s  %s\n", i, varfont.NamedInstanceName(sfnt, i), strings.Join(coords, " "))
	}

	tables := []string{}
	for _, tag := range []string{"avar", "gvar", "cvar", "CFF2", "HVAR", "VVAR", "MVAR"} {
		if sfnt.HasTable(tag) {
			tables = append(tables, tag)
		}
	}
	fmt.Printf("\nVariation tables: fvar %s\n", strings.Join(tables, " "))
	return nil
}

func nameString(sfnt *varfont.SFNT, nameID varfont.NameID) string {
	if sfnt.Name == nil {
		return ""
	}
	name, _ := sfnt.Name.Find(nameID)
	return name
}
