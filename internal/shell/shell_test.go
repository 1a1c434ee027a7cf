package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandString(t *testing.T) {
	cmd := NewCommand("rio", "hist", "-c", "LCH", "-b", "1,2,3", "/data/a b.tif", "it's")
	assert.Equal(t, `rio hist -c LCH -b 1,2,3 '/data/a b.tif' 'it'\''s'`, cmd.String())
}

func TestDryRun_PrintsWithoutSideEffects(t *testing.T) {
	var buf bytes.Buffer
	ex := NewDryRun(&buf)
	dir := filepath.Join(t.TempDir(), "product")

	require.NoError(t, ex.Run(context.Background(), NewCommand("gsutil", "-m", "cp", "-r", "gs://b/p", dir)))
	require.NoError(t, MkdirAll(context.Background(), ex, dir))

	assert.Equal(t, "gsutil -m cp -r gs://b/p "+dir+"\nmkdir -p "+dir+"\n", buf.String())
	assert.NoDirExists(t, dir)
}

func TestLocal_ToolFailure(t *testing.T) {
	log, _ := test.NewNullLogger()
	ex := NewLocal(log)

	err := ex.Run(context.Background(), NewCommand("sh", "-c", "echo boom >&2; exit 3"))

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, 3, toolErr.ExitCode)
	assert.Equal(t, "boom", toolErr.Output)
}

func TestLocal_MissingTool(t *testing.T) {
	ex := NewLocal(logrus.New())

	err := ex.Run(context.Background(), NewCommand("definitely-not-a-real-tool-xyz"))

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, -1, toolErr.ExitCode)
}

func TestRunTo_RemovesPartialOutputOnFailure(t *testing.T) {
	log, _ := test.NewNullLogger()
	ex := NewLocal(log)
	dst := filepath.Join(t.TempDir(), "out.tif")

	err := RunTo(context.Background(), ex, dst, func(tmp string) Command {
		return NewCommand("sh", "-c", "echo partial > "+tmp+"; exit 1")
	})
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunTo_Publishes(t *testing.T) {
	log, _ := test.NewNullLogger()
	ex := NewLocal(log)
	dst := filepath.Join(t.TempDir(), "out.tif")

	err := RunTo(context.Background(), ex, dst, func(tmp string) Command {
		return NewCommand("sh", "-c", "printf done > "+tmp)
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "done", string(data))
}

func TestTempPath(t *testing.T) {
	p := TempPath("/data/2017/rgb_preview.tif")
	assert.True(t, strings.HasPrefix(p, "/data/2017/rgb_preview."))
	assert.True(t, strings.HasSuffix(p, ".tmp.tif"))
	assert.NotEqual(t, p, TempPath("/data/2017/rgb_preview.tif"))
}
