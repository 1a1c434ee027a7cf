package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		want    SatSensor
		wantErr bool
	}{
		{"LANDSAT_5-TM", Landsat5TM, false},
		{"LANDSAT_7-ETM", Landsat7ETM, false},
		{"LANDSAT_8-OLI_TIRS", Landsat8OLITIRS, false},
		{"SENTINEL_2-MSI", Sentinel2MSI, false},
		{"LANDSAT_9-OLI_TIRS", Unknown, true},
		{"LANDSAT_8", Unknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedSensor)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.name, got.String())
		})
	}
}

func TestFromParts_SentinelUnits(t *testing.T) {
	got, err := FromParts("SENTINEL_2A", "")
	require.NoError(t, err)
	assert.Equal(t, Sentinel2MSI, got)
}

func TestBands(t *testing.T) {
	tests := []struct {
		sensor    SatSensor
		composite Composite
		want      [3]int
	}{
		{Landsat5TM, RGBPreview, [3]int{3, 2, 1}},
		{Landsat7ETM, RGBPreview, [3]int{3, 2, 1}},
		{Landsat8OLITIRS, RGBPreview, [3]int{4, 3, 2}},
		{Landsat8OLITIRS, Natural, [3]int{4, 3, 2}},
		{Landsat8OLITIRS, Urban, [3]int{7, 6, 4}},
		{Landsat7ETM, Urban, [3]int{7, 5, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.sensor.String()+"/"+string(tt.composite), func(t *testing.T) {
			got, err := tt.sensor.Bands(tt.composite)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBands_Unsupported(t *testing.T) {
	_, err := Sentinel2MSI.Bands(RGBPreview)
	assert.ErrorIs(t, err, ErrUnsupportedSensor)

	_, err = Unknown.Bands(Urban)
	assert.ErrorIs(t, err, ErrUnsupportedSensor)
}

func TestIsThermal(t *testing.T) {
	tests := []struct {
		satellite string
		band      string
		want      bool
	}{
		{"LANDSAT_8", "B10", true},
		{"LANDSAT_8", "B11", true},
		{"LANDSAT_8", "11", true},
		{"LANDSAT_8", "B6", false},
		{"LANDSAT_8", "B4", false},
		{"LANDSAT_5", "B6", true},
		{"LANDSAT_7", "B6_VCID_1", true},
		{"LANDSAT_7", "B6_VCID_2", true},
		{"LANDSAT_7", "B62", true},
		{"LANDSAT_7", "B10", false},
		{"LANDSAT_5", "B3", false},
		{"SENTINEL_2", "B10", false},
	}

	for _, tt := range tests {
		t.Run(tt.satellite+"_"+tt.band, func(t *testing.T) {
			assert.Equal(t, tt.want, IsThermal(tt.satellite, tt.band))
		})
	}
}

func TestExpectedFiles(t *testing.T) {
	files, err := Landsat8OLITIRS.ExpectedFiles()
	require.NoError(t, err)
	assert.Contains(t, files, "_B10.TIF")
	assert.Contains(t, files, "_BQA.TIF")
	assert.Contains(t, files, "_MTL.txt")

	_, err = Sentinel2MSI.ExpectedFiles()
	assert.ErrorIs(t, err, ErrUnsupportedSensor)
}

func TestParseComposite(t *testing.T) {
	c, err := ParseComposite("rgb")
	require.NoError(t, err)
	assert.Equal(t, RGBPreview, c)

	c, err = ParseComposite("URBAN")
	require.NoError(t, err)
	assert.Equal(t, Urban, c)

	_, err = ParseComposite("infrared")
	assert.Error(t, err)
}
