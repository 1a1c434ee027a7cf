package properties

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, 10*time.Second, cfg.QueryTimeout)
	assert.Equal(t, DefaultQueryCRS, cfg.QueryCRS)
	assert.Equal(t, DefaultRasterCRS, cfg.RasterCRS)
	assert.Equal(t, "data/", cfg.DataDir)
	assert.Equal(t, "processed_data/", cfg.ProcessedDir)
	assert.Equal(t, 32620, cfg.GrassEPSG)
	assert.False(t, cfg.DryRun)
	assert.NotEmpty(t, cfg.Revision)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("WORKERS", "3")
	t.Setenv("QUERY_TIMEOUT", "250ms")
	t.Setenv("RASTER_CRS", "EPSG:32720")
	t.Setenv("PIPELINE_REVISION", "abc123")
	t.Setenv("DRY_RUN", "true")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.QueryTimeout)
	assert.Equal(t, "EPSG:32720", cfg.RasterCRS)
	assert.Equal(t, "abc123", cfg.Revision)
	assert.True(t, cfg.DryRun)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		msg  string
	}{
		{"zero workers", "WORKERS", "0", "WORKERS must be positive"},
		{"bad timeout", "QUERY_TIMEOUT", "soon", "invalid QUERY_TIMEOUT"},
		{"negative timeout", "QUERY_TIMEOUT", "-1s", "QUERY_TIMEOUT must be positive"},
		{"negative rate", "DOWNLOAD_RATE", "-2", "DOWNLOAD_RATE must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load(NewViper())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GRASS_BIN=grass78\n"), 0644))
	t.Setenv("GRASS_BIN", "")
	os.Unsetenv("GRASS_BIN")

	LoadEnv(filepath.Join(t.TempDir(), "missing.env"), path)

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "grass78", cfg.GrassBin)
}

func TestLoadEnv_FallsBackToWorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GRASS_DB=/data/grassdata\n"), 0644))
	chdir(t, dir)
	t.Setenv("GRASS_DB", "")
	os.Unsetenv("GRASS_DB")

	LoadEnv(filepath.Join(dir, "missing.env"))

	assert.Equal(t, "/data/grassdata", os.Getenv("GRASS_DB"))
}

func TestLoadEnv_ExplicitFileWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GRASS_DB=/data/default\n"), 0644))
	explicit := filepath.Join(dir, "prod.env")
	require.NoError(t, os.WriteFile(explicit, []byte("GRASS_DB=/data/prod\n"), 0644))
	chdir(t, dir)
	t.Setenv("GRASS_DB", "")
	os.Unsetenv("GRASS_DB")

	LoadEnv(explicit)

	assert.Equal(t, "/data/prod", os.Getenv("GRASS_DB"))
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
