package raster

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/pool"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/region"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/sensor"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/shell"
	"github.com/sirupsen/logrus"
)

type CropMode string

const (
	// MaskCrop clips in-process to the region's bounding box.
	MaskCrop CropMode = "mask"
	// CutlineCrop clips with gdalwarp to the region's features.
	CutlineCrop CropMode = "cutline"
	NoCrop      CropMode = "none"
)

func ParseCropMode(s string) (CropMode, error) {
	switch m := CropMode(s); m {
	case MaskCrop, CutlineCrop, NoCrop:
		return m, nil
	}
	return "", fmt.Errorf("unknown crop mode %q (expected mask, cutline or none)", s)
}

// DefaultPattern matches the reflectance bands written by the TOA
// conversion.
const DefaultPattern = "*_TOAR_*.TIF"

type BandOptions struct {
	Executor shell.Executor
	Pool     *pool.Pool
	Log      logrus.FieldLogger
	Tag      string
	Crop     CropMode
	// Box and BoxCRS define the MaskCrop region.
	Box    region.BoundingBox
	BoxCRS string
	// Cutline is the vector file used by CutlineCrop.
	Cutline string
}

// BandPipeline turns downloaded reflectance bands into cropped UInt16
// bands under the scene layout of OutputPath.
type BandPipeline struct {
	opts BandOptions
}

func NewBandPipeline(opts BandOptions) *BandPipeline {
	return &BandPipeline{opts: opts}
}

// FindSources returns every file below root whose name matches pattern.
func FindSources(root, pattern string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}

// Process runs rescale, gap fill and crop on src and returns the output
// path below outRoot.
func (p *BandPipeline) Process(ctx context.Context, src, outRoot string) (string, error) {
	key, err := ParseSource(src)
	if err != nil {
		return "", err
	}
	dst := OutputPath(outRoot, key, p.opts.Tag)
	ex := p.opts.Executor
	log := p.opts.Log.WithField("file", filepath.Base(src))

	if err := shell.MkdirAll(ctx, ex, filepath.Dir(dst)); err != nil {
		return "", err
	}

	thermal := sensor.IsThermal(key.Satellite, key.Band)
	if err := Rescale(ctx, ex, src, dst, thermal); err != nil {
		return "", fmt.Errorf("rescale: %w", err)
	}
	log.Debugf("Converted to %s", dst)

	if NeedsGapFill(src) {
		if err := GapFill(ctx, ex, dst); err != nil {
			return "", fmt.Errorf("gap fill: %w", err)
		}
		log.Debug("Filled gaps")
	}

	switch p.opts.Crop {
	case MaskCrop:
		err = CropMask(ctx, ex, dst, p.opts.Box, p.opts.BoxCRS)
	case CutlineCrop:
		err = CropCutline(ctx, ex, dst, p.opts.Cutline)
	}
	if err != nil {
		return "", fmt.Errorf("crop: %w", err)
	}

	log.Infof("%s done", filepath.Base(dst))
	return dst, nil
}

// Run processes every file below inRoot matching pattern.
func (p *BandPipeline) Run(ctx context.Context, inRoot, outRoot, pattern string) (pool.Report, error) {
	sources, err := FindSources(inRoot, pattern)
	if err != nil {
		return pool.Report{}, fmt.Errorf("failed to scan %s: %w", inRoot, err)
	}

	jobs := make([]pool.Job, 0, len(sources))
	for _, src := range sources {
		src := src
		name, _ := filepath.Rel(inRoot, src)
		jobs = append(jobs, pool.Job{
			Name: name,
			Run: func(ctx context.Context) error {
				_, err := p.Process(ctx, src, outRoot)
				return err
			},
		})
	}
	return p.opts.Pool.Run(ctx, "Processing bands", jobs), nil
}
