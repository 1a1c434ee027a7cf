package raster

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/metadata"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/pool"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/sensor"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/shell"
	"github.com/sirupsen/logrus"
)

// Scene is a directory of processed bands, root/{year}/{satsensor}.
type Scene struct {
	Dir       string
	Year      string
	SatSensor sensor.SatSensor
}

// Name is the scene path relative to its processing root.
func (s Scene) Name() string {
	return filepath.Join(s.Year, filepath.Base(s.Dir))
}

// FindScenes returns every directory below root holding band GeoTIFFs, in
// lexical order. Scenes of unknown sensors are returned with
// sensor.Unknown.
func FindScenes(root string) ([]Scene, error) {
	var scenes []Scene
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		bands, err := filepath.Glob(filepath.Join(path, "*.TIF"))
		if err != nil || len(bands) == 0 {
			return err
		}
		s, _ := sensor.Parse(d.Name())
		scenes = append(scenes, Scene{
			Dir:       path,
			Year:      filepath.Base(filepath.Dir(path)),
			SatSensor: s,
		})
		return nil
	})
	sort.Slice(scenes, func(i, j int) bool { return scenes[i].Dir < scenes[j].Dir })
	return scenes, err
}

type SceneOptions struct {
	Executor  shell.Executor
	Pool      *pool.Pool
	Log       logrus.FieldLogger
	Composite sensor.Composite
	Store     *metadata.Store
}

// ScenePipeline builds color-balanced composite previews. The reference
// scene is color corrected; every other scene is histogram matched to it.
type ScenePipeline struct {
	opts SceneOptions
}

func NewScenePipeline(opts SceneOptions) *ScenePipeline {
	if opts.Composite == "" {
		opts.Composite = sensor.RGBPreview
	}
	return &ScenePipeline{opts: opts}
}

func (p *ScenePipeline) CompositePath(s Scene) string {
	return filepath.Join(s.Dir, string(p.opts.Composite)+".tif")
}

// ProcessReference composites and color corrects s, and exports its PNG.
func (p *ScenePipeline) ProcessReference(ctx context.Context, s Scene) (string, error) {
	return p.process(ctx, s, "", func(path string) error {
		if err := ColorCorrect(ctx, p.opts.Executor, path); err != nil {
			return fmt.Errorf("color correction: %w", err)
		}
		return nil
	})
}

// Process composites s, matches it to the reference composite and exports
// its PNG.
func (p *ScenePipeline) Process(ctx context.Context, s Scene, reference string) (string, error) {
	return p.process(ctx, s, reference, func(path string) error {
		if err := MatchHistogram(ctx, p.opts.Executor, path, reference); err != nil {
			return fmt.Errorf("histogram matching: %w", err)
		}
		return nil
	})
}

func (p *ScenePipeline) process(ctx context.Context, s Scene, reference string, balance func(string) error) (string, error) {
	ex := p.opts.Executor
	log := p.opts.Log.WithField("scene", s.Name())

	bands, err := BandFiles(s.Dir, s.SatSensor, p.opts.Composite)
	if err != nil {
		return "", err
	}
	out := p.CompositePath(s)
	if err := Composite(ctx, ex, bands, out); err != nil {
		return "", fmt.Errorf("composite: %w", err)
	}
	log.Infof("%s written", out)

	if err := balance(out); err != nil {
		return "", err
	}

	png, err := ExportPNG(ctx, ex, out)
	if err != nil {
		return "", fmt.Errorf("png export: %w", err)
	}
	log.Infof("%s written", png)

	if p.opts.Store != nil {
		row := map[string]string{
			"satsensor": s.SatSensor.String(),
			"year":      s.Year,
			"composite": string(p.opts.Composite),
		}
		if reference != "" {
			row["reference"] = reference
		}
		files := make([]string, 0, len(bands))
		for _, b := range bands {
			files = append(files, filepath.Base(b))
		}
		err := ex.Do(ctx, "write "+filepath.Join(s.Dir, metadata.FileName), func(context.Context) error {
			return p.opts.Store.Write(s.Dir, row, files)
		})
		if err != nil {
			return "", err
		}
	}
	return out, nil
}

var errReferenceFailed = errors.New("reference scene failed")

// Run processes every scene below root. The first supported scene is the
// reference; it is finished before any other scene starts.
func (p *ScenePipeline) Run(ctx context.Context, root string) (pool.Report, error) {
	scenes, err := FindScenes(root)
	if err != nil {
		return pool.Report{}, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	var (
		supported   []Scene
		unsupported pool.Report
	)
	for _, s := range scenes {
		if _, err := s.SatSensor.Bands(p.opts.Composite); err != nil {
			unsupported.Total++
			unsupported.Failures = append(unsupported.Failures, pool.Failure{Name: s.Name(), Err: err})
			continue
		}
		supported = append(supported, s)
	}
	if len(supported) == 0 {
		return unsupported, nil
	}

	ref := supported[0]
	var refPath string
	refReport := p.opts.Pool.Run(ctx, "Reference scene", []pool.Job{{
		Name: ref.Name(),
		Run: func(ctx context.Context) error {
			var err error
			refPath, err = p.ProcessReference(ctx, ref)
			return err
		},
	}})
	report := unsupported.Merge(refReport)

	rest := supported[1:]
	if !refReport.OK() {
		skipped := pool.Report{Total: len(rest)}
		for _, s := range rest {
			skipped.Failures = append(skipped.Failures, pool.Failure{Name: s.Name(), Err: errReferenceFailed})
		}
		return report.Merge(skipped), nil
	}
	p.opts.Log.Infof("Reference scene %s done", ref.Name())

	jobs := make([]pool.Job, 0, len(rest))
	for _, s := range rest {
		s := s
		jobs = append(jobs, pool.Job{
			Name: s.Name(),
			Run: func(ctx context.Context) error {
				_, err := p.Process(ctx, s, refPath)
				return err
			},
		})
	}
	return report.Merge(p.opts.Pool.Run(ctx, "Matching scenes", jobs)), nil
}
