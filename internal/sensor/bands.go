package sensor

import (
	"fmt"
	"strings"
)

type Composite string

const (
	// RGBPreview is the natural color composite written as rgb_preview.
	RGBPreview Composite = "rgb_preview"
	Natural    Composite = "nat"
	Urban      Composite = "urban"
)

func ParseComposite(s string) (Composite, error) {
	switch Composite(strings.ToLower(s)) {
	case RGBPreview, "rgb":
		return RGBPreview, nil
	case Natural:
		return Natural, nil
	case Urban:
		return Urban, nil
	}
	return "", fmt.Errorf("unknown composite %q (expected rgb, nat or urban)", s)
}

var naturalColor = map[SatSensor][3]int{
	Landsat5TM:      {3, 2, 1},
	Landsat7ETM:     {3, 2, 1},
	Landsat8OLITIRS: {4, 3, 2},
}

var falseColorUrban = map[SatSensor][3]int{
	Landsat5TM:      {7, 5, 3},
	Landsat7ETM:     {7, 5, 3},
	Landsat8OLITIRS: {7, 6, 4},
}

// Bands returns the (R, G, B) band numbers of the composite for s.
func (s SatSensor) Bands(c Composite) ([3]int, error) {
	table := naturalColor
	if c == Urban {
		table = falseColorUrban
	}
	bands, ok := table[s]
	if !ok {
		return [3]int{}, fmt.Errorf("%w: no %s composite for %s", ErrUnsupportedSensor, c, s)
	}
	return bands, nil
}

var thermalBands = map[string][]string{
	"LANDSAT_8": {"B10", "B11"},
	"LANDSAT_5": {"B6", "B6_VCID_1", "B6_VCID_2", "B61", "B62"},
	"LANDSAT_7": {"B6", "B6_VCID_1", "B6_VCID_2", "B61", "B62"},
}

// IsThermal reports whether band (e.g. "B10" or "10") is a thermal band of
// satellite. Thermal bands keep physical units and are never rescaled.
func IsThermal(satellite, band string) bool {
	band = strings.ToUpper(band)
	if !strings.HasPrefix(band, "B") {
		band = "B" + band
	}
	for _, b := range thermalBands[strings.ToUpper(satellite)] {
		if b == band {
			return true
		}
	}
	return false
}

var expectedFiles = map[SatSensor][]string{
	Landsat5TM:      {"B1", "B2", "B3", "B4", "B5", "B6", "B7", "MTL.txt"},
	Landsat7ETM:     {"B1", "B2", "B3", "B4", "B5", "B6_VCID_1", "B6_VCID_2", "B7", "B8", "MTL.txt"},
	Landsat8OLITIRS: {"B1", "B2", "B3", "B4", "B5", "B6", "B7", "B8", "B9", "B10", "B11", "BQA", "MTL.txt"},
}

// ExpectedFiles lists the file suffixes a complete product of s contains.
// Band suffixes carry the ".TIF" extension.
func (s SatSensor) ExpectedFiles() ([]string, error) {
	suffixes, ok := expectedFiles[s]
	if !ok {
		return nil, fmt.Errorf("%w: no product manifest for %s", ErrUnsupportedSensor, s)
	}
	out := make([]string, 0, len(suffixes))
	for _, suffix := range suffixes {
		if !strings.Contains(suffix, ".") {
			suffix += ".TIF"
		}
		out = append(out, "_"+suffix)
	}
	return out, nil
}
