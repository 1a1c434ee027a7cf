package region

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	godal.RegisterAll()
}

// writeRegion writes two polygons around Córdoba city in WGS84.
func writeRegion(t *testing.T) string {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Bound{Min: orb.Point{-64.30, -31.50}, Max: orb.Point{-64.10, -31.30}}.ToPolygon()))
	fc.Append(geojson.NewFeature(orb.Bound{Min: orb.Point{-64.25, -31.45}, Max: orb.Point{-64.05, -31.35}}.ToPolygon()))
	data, err := fc.MarshalJSON()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cordoba.geojson")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestLocate_SameCRS(t *testing.T) {
	box, err := Locate(writeRegion(t), "EPSG:4326")
	require.NoError(t, err)

	assert.InDelta(t, -64.30, box.West, 1e-9)
	assert.InDelta(t, -31.50, box.South, 1e-9)
	assert.InDelta(t, -64.05, box.East, 1e-9)
	assert.InDelta(t, -31.30, box.North, 1e-9)
}

func TestLocate_Reprojected(t *testing.T) {
	box, err := Locate(writeRegion(t), "+proj=utm +zone=20 +datum=WGS84 +units=m +no_defs")
	require.NoError(t, err)

	assert.Less(t, box.West, box.East)
	assert.Less(t, box.South, box.North)
	// metres, not degrees
	assert.Greater(t, box.East-box.West, 10000.0)
	assert.Greater(t, box.North-box.South, 10000.0)
}

func TestLocate_NullGeometry(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"name":"sin geometria"},"geometry":null},
{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[-64.30,-31.50],[-64.10,-31.50],[-64.10,-31.30],[-64.30,-31.30],[-64.30,-31.50]]]}},
{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[-64.25,-31.45],[-64.05,-31.45],[-64.05,-31.35],[-64.25,-31.35],[-64.25,-31.45]]]}}
]}`
	path := filepath.Join(t.TempDir(), "cordoba.geojson")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	box, err := Locate(path, "EPSG:4326")
	require.NoError(t, err)

	assert.InDelta(t, -64.30, box.West, 1e-9)
	assert.InDelta(t, -31.50, box.South, 1e-9)
	assert.InDelta(t, -64.05, box.East, 1e-9)
	assert.InDelta(t, -31.30, box.North, 1e-9)
}

func TestLocate_NoSpatialReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cordoba.csv")
	csv := "WKT,name\n\"POLYGON ((0 0,1 0,1 1,0 1,0 0))\",centro\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0644))

	_, err := Locate(path, "EPSG:4326")
	assert.ErrorIs(t, err, ErrProjection)
	assert.ErrorContains(t, err, "no spatial reference")
}

func TestReproject_OppositeCorners(t *testing.T) {
	src, err := godal.NewSpatialRefFromEPSG(4326)
	require.NoError(t, err)
	defer src.Close()
	dst, err := godal.NewSpatialRefFromEPSG(32720)
	require.NoError(t, err)
	defer dst.Close()

	box := BoundingBox{West: -64.30, South: -31.50, East: -64.05, North: -31.30}
	got, err := Reproject(box, src, "EPSG:32720")
	require.NoError(t, err)

	tr, err := godal.NewTransform(src, dst)
	require.NoError(t, err)
	defer tr.Close()
	xs := []float64{box.West, box.East}
	ys := []float64{box.South, box.North}
	require.NoError(t, tr.TransformEx(xs, ys, nil, nil))

	assert.InDelta(t, math.Min(xs[0], xs[1]), got.West, 1e-6)
	assert.InDelta(t, math.Max(xs[0], xs[1]), got.East, 1e-6)
	assert.InDelta(t, math.Min(ys[0], ys[1]), got.South, 1e-6)
	assert.InDelta(t, math.Max(ys[0], ys[1]), got.North, 1e-6)
	assert.LessOrEqual(t, got.West, got.East)
	assert.LessOrEqual(t, got.South, got.North)
}

func TestLocate_SourceNotFound(t *testing.T) {
	_, err := Locate(filepath.Join(t.TempDir(), "missing.shp"), "EPSG:4326")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestLocate_InvalidTarget(t *testing.T) {
	_, err := Locate(writeRegion(t), "not a coordinate system")
	assert.ErrorIs(t, err, ErrProjection)
}

func TestBoundingBox_Orb(t *testing.T) {
	box := BoundingBox{West: 10, South: 20, East: 30, North: 40}
	assert.Equal(t, box, FromBound(box.Bound()))
	assert.Len(t, box.Polygon()[0], 5)
	assert.Equal(t, "(10, 20, 30, 40)", box.String())
}

func TestWriteCutline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cutline.geojson")
	box := BoundingBox{West: 380000, South: -3490000, East: 400000, North: -3470000}
	require.NoError(t, WriteCutline(path, box))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc["type"])

	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, box.Bound(), fc.Features[0].Geometry.Bound())
}
