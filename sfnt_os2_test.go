package varfont

import (
	"testing"

	"github.com/tdewolff/test"
)

func TestParseOS2(t *testing.T) {
	sfnt := newTestFont(1).SFNT(t)
	test.That(t, sfnt.OS2 != nil, "OS/2 must be parsed")
	test.T(t, sfnt.OS2.Version, uint16(4))
	test.T(t, sfnt.OS2.UsWeightClass, uint16(400))
	test.T(t, sfnt.OS2.UsWidthClass, uint16(5))
	test.T(t, sfnt.OS2.STypoAscender, int16(200))

	tables, err := Generate(sfnt, map[Tag]float64{wghtTag: 900.0, wdthTag: 50.0}, InstanceOptions{UpdateOS2: true})
	test.Error(t, err)
	instance := parseInstance(t, tables)
	test.T(t, instance.OS2.UsWeightClass, uint16(900))
	test.T(t, instance.OS2.UsWidthClass, uint16(1))
}

func TestParseOS2Errors(t *testing.T) {
	var tts = []struct {
		name    string
		version byte
		length  int
	}{
		{"short", 0, 40},
		{"bad version", 6, 100},
		{"version 1 length", 1, 96},
		{"version 4 length", 4, 100},
	}
	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			os2 := make([]byte, tt.length)
			os2[1] = tt.version
			sfnt := &SFNT{Tables: map[string][]byte{"OS/2": os2}}
			test.That(t, sfnt.parseOS2() != nil, "expected error")
		})
	}

	os2 := make([]byte, 100)
	os2[1] = 5
	os2[97] = 8 // usLowerOpticalPointSize
	os2[99] = 72
	sfnt := &SFNT{Tables: map[string][]byte{"OS/2": os2}}
	test.Error(t, sfnt.parseOS2())
	test.T(t, sfnt.OS2.UsLowerOpticalPointSize, uint16(8))
	test.T(t, sfnt.OS2.UsUpperOpticalPointSize, uint16(72))
}
