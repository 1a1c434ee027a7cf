package raster

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/sensor"
)

// Key identifies one band of one annual scene.
type Key struct {
	Satellite string
	Sensor    string
	Year      string
	// Band is the band designation without the "B" prefix ("4", "10", "6_VCID_1").
	Band string
}

func (k Key) SatSensor() string {
	return k.Satellite + "-" + k.Sensor
}

// FileName is {year}_{satellite}-{sensor}_B{n}.TIF, prefixed by "{tag}_"
// when tag is set.
func FileName(k Key, tag string) string {
	name := fmt.Sprintf("%s_%s_B%s.TIF", k.Year, k.SatSensor(), k.Band)
	if tag != "" {
		name = tag + "_" + name
	}
	return name
}

// OutputPath is root/{year}/{satellite}-{sensor}/FileName(k, tag). A scene
// directory therefore always ends in {year}/{satsensor}.
func OutputPath(root string, k Key, tag string) string {
	return filepath.Join(root, k.Year, k.SatSensor(), FileName(k, tag))
}

var (
	bandSuffix = regexp.MustCompile(`(?i)_B(\d+(?:_VCID_\d)?)\.TIF$`)
	yearDir    = regexp.MustCompile(`^\d{4}$`)
)

// ParseSource derives the key of a downloaded band file from its path,
// laid out as .../{satellite}-{sensor}/{year}/.../{name}_B{n}.TIF.
func ParseSource(path string) (Key, error) {
	m := bandSuffix.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return Key{}, fmt.Errorf("%s: not a band file", path)
	}

	parts := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	for i := 0; i+1 < len(parts)-1; i++ {
		s, err := sensor.Parse(parts[i])
		if err != nil || !yearDir.MatchString(parts[i+1]) {
			continue
		}
		return Key{
			Satellite: s.Satellite(),
			Sensor:    s.Sensor(),
			Year:      parts[i+1],
			Band:      strings.ToUpper(m[1]),
		}, nil
	}
	return Key{}, fmt.Errorf("%w: %s has no {satellite}-{sensor}/{year} directories", sensor.ErrUnsupportedSensor, path)
}
