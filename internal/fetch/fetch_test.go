package fetch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/catalog"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/metadata"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/pool"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/shell"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/shell/shelltest"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/storage"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var landsatRow = catalog.Row{
	"year":          "2017",
	"scene_id":      "LC82290822017001LGN00",
	"spacecraft_id": "LANDSAT_8",
	"sensor_id":     "OLI_TIRS",
	"base_url":      "gs://gcp-public-data-landsat/LC08/01/229/082/LC08_L1TP_229082_20170101_20170311_01_T1",
}

func TestProductDir(t *testing.T) {
	dir, err := ProductDir("data", landsatRow)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "LANDSAT_8-OLI_TIRS", "2017", "LC82290822017001LGN00"), dir)
}

func TestProductDir_Sentinel2(t *testing.T) {
	row := catalog.Row{
		"year":       "2018",
		"granule_id": "L1C_T20JLL_A013395_20180101T141042",
		"product_id": "S2A_MSIL1C_20180101T140051_N0206_R067_T20JLL_20180101T171420",
		"mgrs_tile":  "20JLL",
	}
	dir, err := ProductDir("data", row)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "SENTINEL_2-MSI", "2018", row["product_id"]), dir)
}

func TestProductDir_Invalid(t *testing.T) {
	_, err := ProductDir("data", catalog.Row{"spacecraft_id": "LANDSAT_8", "sensor_id": "OLI_TIRS", "scene_id": "x"})
	assert.ErrorContains(t, err, "year")

	bad := catalog.Row{"spacecraft_id": "LANDSAT_8", "sensor_id": "OLI_TIRS", "year": "2017", "scene_id": "../etc"}
	_, err = ProductDir("data", bad)
	assert.Error(t, err)
}

func newOrchestrator(ex shell.Executor) *Orchestrator {
	log, _ := test.NewNullLogger()
	return New(Options{
		Executor: ex,
		Copier:   storage.NewGsutil(ex),
		Store:    metadata.NewStore(clockwork.NewFakeClockAt(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)), "test"),
		Pool:     pool.New(2, pool.WithProgress(nil)),
		Log:      log,
	})
}

func TestFetch(t *testing.T) {
	root := t.TempDir()
	rec := &shelltest.Recorder{}
	l7 := catalog.Row{
		"year":          "2016",
		"scene_id":      "LE72290822016038CUB00",
		"spacecraft_id": "LANDSAT_7",
		"sensor_id":     "ETM",
		"base_url":      "gs://gcp-public-data-landsat/LE07/01/229/082/LE07_L1TP_229082_20160207_20161017_01_T1",
	}

	report := newOrchestrator(rec).Fetch(context.Background(), root, []catalog.Row{landsatRow, l7})
	require.True(t, report.OK(), report.String())
	assert.Equal(t, 2, report.Total)

	lines := rec.Lines()
	sort.Strings(lines)
	assert.Equal(t, []string{
		"gsutil -m cp -r " + l7["base_url"] + " " + filepath.Join(root, "LANDSAT_7-ETM", "2016", "LE72290822016038CUB00"),
		"gsutil -m cp -r " + landsatRow["base_url"] + " " + filepath.Join(root, "LANDSAT_8-OLI_TIRS", "2017", "LC82290822017001LGN00"),
	}, lines)

	rec8, err := metadata.Read(filepath.Join(root, "LANDSAT_8-OLI_TIRS", "2017", "LC82290822017001LGN00"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string(landsatRow), rec8.Row)
	assert.Equal(t, "test", rec8.Provenance.Revision)
}

func TestFetch_DryRun(t *testing.T) {
	root := t.TempDir()
	var out bytes.Buffer

	report := newOrchestrator(shell.NewDryRun(&out)).Fetch(context.Background(), root, []catalog.Row{landsatRow})
	require.True(t, report.OK())

	dir := filepath.Join(root, "LANDSAT_8-OLI_TIRS", "2017", "LC82290822017001LGN00")
	assert.Contains(t, out.String(), "gsutil -m cp -r "+landsatRow["base_url"]+" "+dir)
	assert.NoDirExists(t, filepath.Join(root, "LANDSAT_8-OLI_TIRS"))
}

func TestFetch_CopyFailureStillWritesMetadata(t *testing.T) {
	root := t.TempDir()
	rec := &shelltest.Recorder{FailOn: func(c shell.Command) bool {
		return strings.Contains(c.String(), "LC08")
	}}
	ok := catalog.Row{
		"year": "2011", "scene_id": "LT52290822011001CUB00", "spacecraft_id": "LANDSAT_5", "sensor_id": "TM",
		"base_url": "gs://gcp-public-data-landsat/LT05/01/229/082/LT05_X",
	}

	report := newOrchestrator(rec).Fetch(context.Background(), root, []catalog.Row{landsatRow, ok})

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "LC82290822017001LGN00", report.Failures[0].Name)
	var toolErr *shell.ToolError
	assert.True(t, errors.As(report.Failures[0].Err, &toolErr))
	assert.FileExists(t, filepath.Join(root, "LANDSAT_8-OLI_TIRS", "2017", "LC82290822017001LGN00", metadata.FileName))
	assert.FileExists(t, filepath.Join(root, "LANDSAT_5-TM", "2011", "LT52290822011001CUB00", metadata.FileName))
}

func TestFetch_MissingBaseURL(t *testing.T) {
	row := catalog.Row{"year": "2017", "scene_id": "x", "spacecraft_id": "LANDSAT_8", "sensor_id": "OLI_TIRS"}
	report := newOrchestrator(&shelltest.Recorder{}).Fetch(context.Background(), t.TempDir(), []catalog.Row{row})
	require.Len(t, report.Failures, 1)
	assert.ErrorContains(t, report.Failures[0].Err, "base_url")
}

func TestVerify(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "LANDSAT_5-TM", "2011", "LT52290822011001CUB00")
	nested := filepath.Join(dir, "LT05_L1TP_229082_20110101_20161010_01_T1")
	require.NoError(t, os.MkdirAll(nested, 0755))
	for _, suffix := range []string{"B1.TIF", "B2.TIF", "B3.TIF", "B4.TIF", "B5.TIF", "B6.TIF", "MTL.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(nested, "LT05_L1TP_229082_20110101_20161010_01_T1_"+suffix), nil, 0644))
	}

	err := Verify(dir)
	var partial *PartialProductError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, []string{"B7.TIF"}, partial.Missing)

	require.NoError(t, os.WriteFile(filepath.Join(nested, "LT05_L1TP_229082_20110101_20161010_01_T1_B7.TIF"), nil, 0644))
	assert.NoError(t, Verify(dir))
}

func TestVerifyAll(t *testing.T) {
	root := t.TempDir()
	store := metadata.NewStore(clockwork.NewFakeClock(), "test")

	l8 := filepath.Join(root, "LANDSAT_8-OLI_TIRS", "2017", "LC82290822017001LGN00")
	s2 := filepath.Join(root, "SENTINEL_2-MSI", "2018", "S2A_X")
	for _, d := range []string{l8, s2} {
		require.NoError(t, os.MkdirAll(d, 0755))
		require.NoError(t, store.Write(d, map[string]string{"year": "x"}, nil))
	}
	require.NoError(t, os.WriteFile(filepath.Join(l8, "LC08_B4.TIF"), nil, 0644))

	log, _ := test.NewNullLogger()
	report, err := VerifyAll(context.Background(), pool.New(2, pool.WithProgress(nil)), root, log)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, filepath.Join("LANDSAT_8-OLI_TIRS", "2017", "LC82290822017001LGN00"), report.Failures[0].Name)
}
