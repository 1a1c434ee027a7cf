// Package animate assembles the scene previews of each satellite/sensor into
// a labelled time-series animation.
package animate

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/pool"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/shell"
	"github.com/sirupsen/logrus"
)

type Format string

const (
	GIF Format = "gif"
	AVI Format = "avi"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case GIF, AVI:
		return f, nil
	}
	return "", fmt.Errorf("unknown animation format %q (expected gif or avi)", s)
}

const (
	DefaultFrameDuration = 100 * time.Millisecond
	DefaultPreviewName   = "rgb_preview.png"
)

type Options struct {
	Executor      shell.Executor
	Pool          *pool.Pool
	Log           logrus.FieldLogger
	FrameDuration time.Duration
	Format        Format
	// FontPath is a TrueType font for the year label. Go Bold is used when
	// it cannot be loaded.
	FontPath    string
	PreviewName string
}

// Frame is one preview, located at .../{year}/{satsensor}/{name}.
type Frame struct {
	Path      string
	SatSensor string
	Year      string
}

type Group struct {
	SatSensor string
	Frames    []Frame
}

// FindGroups returns the previews named name below root grouped by
// satellite/sensor, each group sorted by year. Both keys come from the
// preview's path only.
func FindGroups(root, name string) ([]Group, error) {
	var frames []Frame
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != name {
			return nil
		}
		dir := filepath.Dir(path)
		frames = append(frames, Frame{
			Path:      path,
			SatSensor: filepath.Base(dir),
			Year:      filepath.Base(filepath.Dir(dir)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(frames, func(i, j int) bool {
		if frames[i].SatSensor != frames[j].SatSensor {
			return frames[i].SatSensor < frames[j].SatSensor
		}
		return frames[i].Year < frames[j].Year
	})

	var groups []Group
	for _, f := range frames {
		if n := len(groups); n == 0 || groups[n-1].SatSensor != f.SatSensor {
			groups = append(groups, Group{SatSensor: f.SatSensor})
		}
		g := &groups[len(groups)-1]
		g.Frames = append(g.Frames, f)
	}
	return groups, nil
}

// OutputPath is root/rgb_{satsensor}.{format} for the default previews and
// root/rgb_{composite}_{satsensor}.{format} for any other composite, where
// composite is previewName without its extension.
func OutputPath(root, previewName, satsensor string, f Format) string {
	name := "rgb_" + satsensor + "." + string(f)
	composite := strings.TrimSuffix(previewName, filepath.Ext(previewName))
	if composite != "" && previewName != DefaultPreviewName {
		name = "rgb_" + composite + "_" + satsensor + "." + string(f)
	}
	return filepath.Join(root, name)
}

// Build writes one animation per satellite/sensor group found below root.
func Build(ctx context.Context, root string, opts Options) (pool.Report, error) {
	if opts.FrameDuration <= 0 {
		opts.FrameDuration = DefaultFrameDuration
	}
	if opts.Format == "" {
		opts.Format = GIF
	}
	if opts.PreviewName == "" {
		opts.PreviewName = DefaultPreviewName
	}

	groups, err := FindGroups(root, opts.PreviewName)
	if err != nil {
		return pool.Report{}, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	if len(groups) == 0 {
		opts.Log.Warnf("No %s found in %s", opts.PreviewName, root)
	}

	jobs := make([]pool.Job, 0, len(groups))
	for _, g := range groups {
		g := g
		out := OutputPath(root, opts.PreviewName, g.SatSensor, opts.Format)
		jobs = append(jobs, pool.Job{
			Name: g.SatSensor,
			Run: func(ctx context.Context) error {
				desc := fmt.Sprintf("animate %d frames > %s", len(g.Frames), out)
				return opts.Executor.Do(ctx, desc, func(ctx context.Context) error {
					if err := render(ctx, g, out, opts); err != nil {
						return err
					}
					opts.Log.WithField("frames", len(g.Frames)).Infof("%s written", out)
					return nil
				})
			},
		})
	}
	return opts.Pool.Run(ctx, "Building animations", jobs), nil
}

func render(ctx context.Context, g Group, out string, opts Options) error {
	face, err := LoadFace(opts.FontPath, labelSize)
	if err != nil {
		return err
	}
	defer face.Close()

	first, err := decode(g.Frames[0].Path)
	if err != nil {
		return err
	}
	size := first.Bounds().Size()

	tmp := shell.TempPath(out)
	enc, err := newEncoder(opts.Format, tmp, size, opts.FrameDuration)
	if err != nil {
		return err
	}

	for i, f := range g.Frames {
		if err := ctx.Err(); err != nil {
			enc.abort()
			return err
		}
		img := first
		if i > 0 {
			if img, err = decode(f.Path); err != nil {
				enc.abort()
				return err
			}
			if img.Bounds().Size() != size {
				opts.Log.Warnf("%s is %v, fitting to %v", f.Path, img.Bounds().Size(), size)
			}
		}
		if err := enc.add(Label(img, size, f.Year, face)); err != nil {
			enc.abort()
			return fmt.Errorf("failed to encode %s: %w", f.Path, err)
		}
	}

	if err := enc.close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to publish %s: %w", out, err)
	}
	return nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}
