package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/region"
)

type Dataset string

const (
	Landsat   Dataset = "landsat"
	Sentinel2 Dataset = "sentinel2"
)

func ParseDataset(s string) (Dataset, error) {
	switch Dataset(strings.ToLower(strings.TrimSpace(s))) {
	case Landsat:
		return Landsat, nil
	case Sentinel2:
		return Sentinel2, nil
	}
	return "", fmt.Errorf("unknown dataset %q (expected landsat or sentinel2)", s)
}

// The index tables only record each product's footprint envelope, so a
// product matches when its envelope intersects the region box:
// row.west < box.east, row.south < box.north, row.east > box.west and
// row.north > box.south. Verbs: %[1]s west, %[2]s south, %[3]s east,
// %[4]s north.
const intersects = `west_lon < %[3]s
  AND south_lat < %[4]s
  AND east_lon > %[1]s
  AND north_lat > %[2]s
  AND FLOAT(cloud_cover) < 1`

const landsatQuery = `SELECT
  YEAR(sensing_time) AS year,
  FIRST(sensing_time) AS sensing_time,
  FIRST(scene_id) AS scene_id,
  FIRST(spacecraft_id) AS spacecraft_id,
  FIRST(sensor_id) AS sensor_id,
  wrs_path,
  wrs_row,
  FIRST(cloud_cover) AS cloud_cover,
  FIRST(total_size) AS total_size,
  FIRST(base_url) AS base_url
FROM
  [bigquery-public-data:cloud_storage_geo_index.landsat_index]
WHERE
  ` + intersects + `
  AND collection_number = "01"
  AND data_type = "L1TP"
  AND sensor_id IN ("TM", "ETM", "OLI_TIRS")
GROUP BY
  year,
  wrs_path,
  wrs_row
ORDER BY
  year DESC,
  spacecraft_id DESC`

const sentinel2Query = `SELECT
  YEAR(sensing_time) AS year,
  FIRST(sensing_time) AS sensing_time,
  FIRST(granule_id) AS granule_id,
  FIRST(product_id) AS product_id,
  mgrs_tile,
  FIRST(cloud_cover) AS cloud_cover,
  FIRST(total_size) AS total_size,
  FIRST(base_url) AS base_url
FROM
  [bigquery-public-data:cloud_storage_geo_index.sentinel_2_index]
WHERE
  ` + intersects + `
  AND geometric_quality_flag = "PASSED"
GROUP BY
  year,
  mgrs_tile
ORDER BY
  year DESC`

// BuildQuery renders the legacy-SQL catalog query selecting one cloud-free
// product per year and tile (WRS path/row for Landsat, MGRS tile for
// Sentinel-2) intersecting box. box must be in longitude/latitude.
func BuildQuery(box region.BoundingBox, ds Dataset) (string, error) {
	var tmpl string
	switch ds {
	case Landsat:
		tmpl = landsatQuery
	case Sentinel2:
		tmpl = sentinel2Query
	default:
		return "", fmt.Errorf("unknown dataset %q", ds)
	}
	return fmt.Sprintf(tmpl, num(box.West), num(box.South), num(box.East), num(box.North)), nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
