package region

import (
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"
)

// WriteCutline writes box as a single-feature GeoJSON polygon. GeoJSON
// carries no CRS, so consumers pass the box's CRS alongside the file
// (gdalwarp -cutline_srs).
func WriteCutline(path string, box BoundingBox) error {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(box.Polygon()))

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode cutline: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cutline %s: %w", path, err)
	}
	return nil
}
