package varfont

import (
	"fmt"
	"math"

	"github.com/tdewolff/parse/v2"
)

// os2Table holds the OS/2 fields that variations can change, either through MVAR or by the weight and width of an instance.
type os2Table struct {
	Version                 uint16
	XAvgCharWidth           int16
	UsWeightClass           uint16
	UsWidthClass            uint16
	YSubscriptXSize         int16
	YSubscriptYSize         int16
	YSubscriptXOffset       int16
	YSubscriptYOffset       int16
	YSuperscriptXSize       int16
	YSuperscriptYSize       int16
	YSuperscriptXOffset     int16
	YSuperscriptYOffset     int16
	YStrikeoutSize          int16
	YStrikeoutPosition      int16
	FsSelection             uint16
	STypoAscender           int16
	STypoDescender          int16
	STypoLineGap            int16
	UsWinAscent             uint16
	UsWinDescent            uint16
	SxHeight                int16
	SCapHeight              int16
	UsLowerOpticalPointSize uint16
	UsUpperOpticalPointSize uint16
}

func (sfnt *SFNT) parseOS2() error {
	b, ok := sfnt.Tables["OS/2"]
	if !ok {
		return fmt.Errorf("OS/2: missing table")
	} else if len(b) < 68 {
		return fmt.Errorf("OS/2: bad table")
	}

	r := parse.NewBinaryReaderBytes(b)
	os2 := &os2Table{}
	os2.Version = r.ReadUint16()
	if 5 < os2.Version {
		return fmt.Errorf("OS/2: bad version")
	} else if os2.Version == 0 && len(b) != 68 && len(b) != 78 ||
		os2.Version == 1 && len(b) != 86 ||
		2 <= os2.Version && os2.Version <= 4 && len(b) != 96 ||
		os2.Version == 5 && len(b) != 100 {
		return fmt.Errorf("OS/2: bad table length for version %d", os2.Version)
	}
	os2.XAvgCharWidth = r.ReadInt16()
	os2.UsWeightClass = r.ReadUint16()
	os2.UsWidthClass = r.ReadUint16()
	_ = r.ReadUint16() // fsType
	os2.YSubscriptXSize = r.ReadInt16()
	os2.YSubscriptYSize = r.ReadInt16()
	os2.YSubscriptXOffset = r.ReadInt16()
	os2.YSubscriptYOffset = r.ReadInt16()
	os2.YSuperscriptXSize = r.ReadInt16()
	os2.YSuperscriptYSize = r.ReadInt16()
	os2.YSuperscriptXOffset = r.ReadInt16()
	os2.YSuperscriptYOffset = r.ReadInt16()
	os2.YStrikeoutSize = r.ReadInt16()
	os2.YStrikeoutPosition = r.ReadInt16()
	_ = r.ReadBytes(2 + 10 + 16 + 4) // sFamilyClass, panose, ulUnicodeRange, achVendID
	os2.FsSelection = r.ReadUint16()
	_ = r.ReadBytes(4) // usFirstCharIndex and usLastCharIndex
	if 78 <= len(b) {
		os2.STypoAscender = r.ReadInt16()
		os2.STypoDescender = r.ReadInt16()
		os2.STypoLineGap = r.ReadInt16()
		os2.UsWinAscent = r.ReadUint16()
		os2.UsWinDescent = r.ReadUint16()
	}
	if 2 <= os2.Version {
		_ = r.ReadBytes(8) // ulCodePageRange
		os2.SxHeight = r.ReadInt16()
		os2.SCapHeight = r.ReadInt16()
		_ = r.ReadBytes(6) // usDefaultChar, usBreakChar, and usMaxContext
	}
	if os2.Version == 5 {
		os2.UsLowerOpticalPointSize = r.ReadUint16()
		os2.UsUpperOpticalPointSize = r.ReadUint16()
	}
	sfnt.OS2 = os2
	return nil
}

// os2WidthClasses are the wdth percentages of the usWidthClass values 1 to 9.
var os2WidthClasses = []float64{50.0, 62.5, 75.0, 87.5, 100.0, 112.5, 125.0, 150.0, 200.0}

// os2WidthClass returns the usWidthClass closest to a wdth percentage.
func os2WidthClass(wdth float64) uint16 {
	class, dist := 0, math.Inf(1)
	for i, percent := range os2WidthClasses {
		if d := math.Abs(wdth - percent); d < dist {
			class, dist = i, d
		}
	}
	return uint16(class + 1)
}
