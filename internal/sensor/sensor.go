package sensor

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedSensor = errors.New("unsupported satellite/sensor")

// SatSensor identifies a satellite and the instrument on board, as found in
// catalog rows (spacecraft_id, sensor_id) and in directory names
// ("LANDSAT_8-OLI_TIRS").
type SatSensor int

const (
	Unknown SatSensor = iota
	Landsat5TM
	Landsat7ETM
	Landsat8OLITIRS
	Sentinel2MSI
)

var all = []SatSensor{Landsat5TM, Landsat7ETM, Landsat8OLITIRS, Sentinel2MSI}

type descriptor struct {
	satellite string
	sensor    string
}

var descriptors = map[SatSensor]descriptor{
	Landsat5TM:      {"LANDSAT_5", "TM"},
	Landsat7ETM:     {"LANDSAT_7", "ETM"},
	Landsat8OLITIRS: {"LANDSAT_8", "OLI_TIRS"},
	Sentinel2MSI:    {"SENTINEL_2", "MSI"},
}

func All() []SatSensor {
	out := make([]SatSensor, len(all))
	copy(out, all)
	return out
}

func (s SatSensor) Satellite() string { return descriptors[s].satellite }

func (s SatSensor) Sensor() string { return descriptors[s].sensor }

func (s SatSensor) String() string {
	d, ok := descriptors[s]
	if !ok {
		return "unknown"
	}
	return d.satellite + "-" + d.sensor
}

// FromParts resolves a satellite and sensor pair. Sentinel-2 catalog rows use
// unit suffixes ("SENTINEL_2A") which resolve to the same entry.
func FromParts(satellite, sensorID string) (SatSensor, error) {
	satellite = strings.ToUpper(strings.TrimSpace(satellite))
	sensorID = strings.ToUpper(strings.TrimSpace(sensorID))
	if strings.HasPrefix(satellite, "SENTINEL_2") && (sensorID == "" || sensorID == "MSI") {
		return Sentinel2MSI, nil
	}
	for _, s := range all {
		d := descriptors[s]
		if d.satellite == satellite && d.sensor == sensorID {
			return s, nil
		}
	}
	return Unknown, fmt.Errorf("%w: %s-%s", ErrUnsupportedSensor, satellite, sensorID)
}

// Parse resolves a "SATELLITE-SENSOR" directory name.
func Parse(name string) (SatSensor, error) {
	satellite, sensorID, ok := strings.Cut(name, "-")
	if !ok {
		return Unknown, fmt.Errorf("%w: %q", ErrUnsupportedSensor, name)
	}
	return FromParts(satellite, sensorID)
}
