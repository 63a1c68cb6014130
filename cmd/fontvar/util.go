package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/tdewolff/prompt"
	"github.com/tdewolff/varfont"
)

var extMimetype = map[string]string{
	".ttf":   "font/truetype",
	".ttc":   "font/truetype",
	".otf":   "font/opentype",
	".otc":   "font/opentype",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

var byteUnits = []string{"B", "kB", "MB", "GB", "TB", "PB", "EB"}

func formatBytes(size uint64) string {
	value, unit := float64(size), 0
	for 1000.0 <= value && unit+1 < len(byteUnits) {
		value /= 1000.0
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d B", size)
	} else if value < 10.0 {
		return fmt.Sprintf("%.1f %s", value, byteUnits[unit])
	}
	return fmt.Sprintf("%.0f %s", value, byteUnits[unit])
}

// parseCoordinates parses a list of tag=value pairs, eg. wght=700.
func parseCoordinates(args []string) (map[varfont.Tag]float64, error) {
	coords := make(map[varfont.Tag]float64, len(args))
	for _, arg := range args {
		eq := strings.IndexByte(arg, '=')
		if eq == -1 {
			return nil, fmt.Errorf("invalid coordinate %q: expected tag=value", arg)
		}
		tag, err := varfont.ParseTag(arg[:eq])
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q: %v", arg, err)
		}
		value, err := strconv.ParseFloat(arg[eq+1:], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q: %v", arg, err)
		} else if _, ok := coords[tag]; ok {
			return nil, fmt.Errorf("axis %s set more than once", tag)
		}
		coords[tag] = value
	}
	return coords, nil
}

func formatCoordinates(coords map[varfont.Tag]float64) string {
	args := make([]string, 0, len(coords))
	for tag, value := range coords {
		args = append(args, fmt.Sprintf("%s=%g", tag, value))
	}
	sort.Strings(args)
	return strings.Join(args, " ")
}

func readFont(filename string, index int) (*varfont.SFNT, string, int, error) {
	var b []byte
	var err error
	if filename == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(filename)
	}
	if err != nil {
		return nil, "", 0, err
	}

	mimetype, _ := varfont.MediaType(b)
	sfnt, err := varfont.ParseFont(b, index)
	if err != nil {
		return nil, "", 0, err
	}
	return sfnt, mimetype, len(b), nil
}

// encodeFont serializes the tables into the container of mimetype. Glyph outlines cannot be converted between TrueType and CFF.
func encodeFont(mimetype string, isCFF bool, tables map[string][]byte) ([]byte, error) {
	switch mimetype {
	case "font/truetype", "font/opentype":
		if isCFF && mimetype == "font/truetype" {
			return nil, fmt.Errorf("cannot convert CFF to TrueType glyph outlines")
		} else if !isCFF && mimetype == "font/opentype" {
			return nil, fmt.Errorf("cannot convert TrueType to CFF glyph outlines")
		}
		return varfont.WriteSFNT(tables), nil
	case "font/woff2":
		return varfont.WriteWOFF2(tables)
	case "":
		return nil, fmt.Errorf("unknown output file type")
	}
	return nil, fmt.Errorf("unsupported output file type: %v", mimetype)
}

// writeFont writes the encoded font to filename, or to stdout for "-". It returns the size before applying the base64 encoding.
func writeFont(filename, mimetype, encoding string, force, isCFF bool, tables map[string][]byte) (int, error) {
	b, err := encodeFont(mimetype, isCFF, tables)
	if err != nil {
		return 0, err
	}
	n := len(b)
	if encoding == "base64" {
		b = []byte(base64.StdEncoding.EncodeToString(b))
	}

	if filename == "-" {
		_, err = os.Stdout.Write(b)
		return n, err
	} else if _, err := os.Stat(filename); err == nil && !force {
		if !prompt.YesNo(fmt.Sprintf("%s already exists, overwrite?", filename), false) {
			return 0, fmt.Errorf("%s: file already exists", filename)
		}
	}
	return n, os.WriteFile(filename, b, 0644)
}
