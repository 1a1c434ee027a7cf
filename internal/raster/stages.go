package raster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/region"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/sensor"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/shell"
	"github.com/airbusgeo/godal"
)

// Landsat 7 products acquired after the scan line corrector failure carry
// this marker and need their gaps filled.
const landsat7Marker = "LE07"

// Rescale converts a reflectance band (0-1 floats) to UInt16 1-10000 with 0
// as nodata. Thermal bands are only type converted.
func Rescale(ctx context.Context, ex shell.Executor, src, dst string, thermal bool) error {
	return shell.RunTo(ctx, ex, dst, func(tmp string) shell.Command {
		args := []string{"-q", "-ot", "UInt16", "-of", "GTiff"}
		if !thermal {
			args = append(args, "-scale", "0", "1", "1", "10000")
		}
		args = append(args, "-a_nodata", "0", src, "-co", "compress=lzw", tmp)
		return shell.NewCommand("gdal_translate", args...)
	})
}

// NeedsGapFill reports whether source comes from a Landsat 7 product.
func NeedsGapFill(source string) bool {
	return strings.Contains(source, landsat7Marker)
}

// GapFill interpolates nodata gaps of path in place.
func GapFill(ctx context.Context, ex shell.Executor, path string) error {
	return shell.RunTo(ctx, ex, path, func(tmp string) shell.Command {
		return shell.NewCommand("gdal_fillnodata.py", "-q", path, tmp)
	})
}

// CropCutline clips path in place to the features of a vector file with
// gdalwarp.
func CropCutline(ctx context.Context, ex shell.Executor, path, cutline string) error {
	return shell.RunTo(ctx, ex, path, func(tmp string) shell.Command {
		return shell.NewCommand("gdalwarp", "-q", "-of", "GTiff",
			"-cutline", cutline, "-crop_to_cutline", "-dstnodata", "0",
			"-co", "compress=lzw", path, tmp)
	})
}

// CropMask clips path in place to box, expressed in crs, with GDAL's warper.
// Pixels outside the box are set to nodata.
func CropMask(ctx context.Context, ex shell.Executor, path string, box region.BoundingBox, crs string) error {
	return ex.Do(ctx, fmt.Sprintf("crop %s to %s", path, box), func(context.Context) error {
		cutline, err := os.CreateTemp(filepath.Dir(path), ".cutline-*.geojson")
		if err != nil {
			return fmt.Errorf("failed to create cutline file: %w", err)
		}
		cutline.Close()
		defer os.Remove(cutline.Name())

		if err := region.WriteCutline(cutline.Name(), box); err != nil {
			return err
		}

		ds, err := godal.Open(path, godal.RasterOnly())
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer ds.Close()

		tmp := shell.TempPath(path)
		out, err := ds.Warp(tmp, []string{
			"-of", "GTiff",
			"-cutline", cutline.Name(),
			"-cutline_srs", crs,
			"-crop_to_cutline",
			"-dstnodata", "0",
			"-co", "COMPRESS=LZW",
		})
		if err != nil {
			os.Remove(tmp)
			return fmt.Errorf("failed to crop %s: %w", path, err)
		}
		if err := out.Close(); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("failed to write %s: %w", tmp, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("failed to publish %s: %w", path, err)
		}
		return nil
	})
}

// BandFiles returns the scene files holding the composite bands of s, in
// (R, G, B) order.
func BandFiles(dir string, s sensor.SatSensor, c sensor.Composite) ([3]string, error) {
	var files [3]string
	bands, err := s.Bands(c)
	if err != nil {
		return files, err
	}
	for i, b := range bands {
		matches, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("*_B%d.TIF", b)))
		if err != nil {
			return files, err
		}
		if len(matches) == 0 {
			return files, fmt.Errorf("band %d not found in %s", b, dir)
		}
		sort.Strings(matches)
		files[i] = matches[0]
	}
	return files, nil
}

// stripRows is the number of rows copied per read when compositing.
const stripRows = 256

// Composite stacks three single-band files into a 3-band LZW GeoTIFF at dst,
// keeping the grid, projection, data type and nodata of the first file.
func Composite(ctx context.Context, ex shell.Executor, bands [3]string, dst string) error {
	return ex.Do(ctx, fmt.Sprintf("composite %s %s %s > %s", bands[0], bands[1], bands[2], dst), func(context.Context) error {
		tmp := shell.TempPath(dst)
		if err := stack(bands, tmp); err != nil {
			os.Remove(tmp)
			return err
		}
		if err := os.Rename(tmp, dst); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("failed to publish %s: %w", dst, err)
		}
		return nil
	})
}

func stack(bands [3]string, dst string) error {
	srcs := make([]*godal.Dataset, 0, len(bands))
	defer func() {
		for _, ds := range srcs {
			ds.Close()
		}
	}()
	for _, path := range bands {
		ds, err := godal.Open(path, godal.RasterOnly())
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		srcs = append(srcs, ds)
	}

	first := srcs[0]
	st := first.Structure()
	for i, ds := range srcs[1:] {
		s := ds.Structure()
		if s.SizeX != st.SizeX || s.SizeY != st.SizeY {
			return fmt.Errorf("%s is %dx%d, expected %dx%d", bands[i+1], s.SizeX, s.SizeY, st.SizeX, st.SizeY)
		}
	}
	firstBand := first.Bands()[0]

	out, err := godal.Create(godal.GTiff, dst, len(srcs), firstBand.Structure().DataType, st.SizeX, st.SizeY,
		godal.CreationOption("COMPRESS=LZW"))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if err := copyGeoreference(first, out); err != nil {
		out.Close()
		return err
	}

	nodata, hasNodata := firstBand.NoData()
	buf := make([]float64, st.SizeX*stripRows)
	for i, ds := range srcs {
		src := ds.Bands()[0]
		dstBand := out.Bands()[i]
		if hasNodata {
			if err := dstBand.SetNoData(nodata); err != nil {
				out.Close()
				return fmt.Errorf("failed to set nodata: %w", err)
			}
		}
		for y := 0; y < st.SizeY; y += stripRows {
			rows := stripRows
			if y+rows > st.SizeY {
				rows = st.SizeY - y
			}
			strip := buf[:st.SizeX*rows]
			if err := src.Read(0, y, strip, st.SizeX, rows); err != nil {
				out.Close()
				return fmt.Errorf("failed to read %s: %w", bands[i], err)
			}
			if err := dstBand.Write(0, y, strip, st.SizeX, rows); err != nil {
				out.Close()
				return fmt.Errorf("failed to write %s: %w", dst, err)
			}
		}
	}
	return out.Close()
}

func copyGeoreference(src, dst *godal.Dataset) error {
	gt, err := src.GeoTransform()
	if err == nil {
		if err := dst.SetGeoTransform(gt); err != nil {
			return fmt.Errorf("failed to set geotransform: %w", err)
		}
	}
	if wkt := src.Projection(); wkt != "" {
		if err := dst.SetProjection(wkt); err != nil {
			return fmt.Errorf("failed to set projection: %w", err)
		}
	}
	return nil
}

// ColorCorrect applies the sigmoidal contrast, per-channel gamma and
// saturation used for the reference scene, in place.
func ColorCorrect(ctx context.Context, ex shell.Executor, path string) error {
	return shell.RunTo(ctx, ex, path, func(tmp string) shell.Command {
		return shell.NewCommand("rio", "color", "-j", "-1", path, tmp,
			"sigmoidal", "RGB", "5", "0.1",
			"gamma", "R", "1.06",
			"gamma", "G", "1.08",
			"gamma", "B", "1.02",
			"saturation", "1.2")
	})
}

// MatchHistogram matches the histogram of path to reference in LCH space,
// in place.
func MatchHistogram(ctx context.Context, ex shell.Executor, path, reference string) error {
	return shell.RunTo(ctx, ex, path, func(tmp string) shell.Command {
		return shell.NewCommand("rio", "hist", "-c", "LCH", "-b", "1,2,3", path, reference, tmp)
	})
}

// ExportPNG writes an 8-bit PNG next to path and returns its path.
func ExportPNG(ctx context.Context, ex shell.Executor, path string) (string, error) {
	dst := strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
	err := shell.RunTo(ctx, ex, dst, func(tmp string) shell.Command {
		return shell.NewCommand("gdal_translate", "-q", path, tmp,
			"-of", "PNG", "-ot", "Byte",
			"-scale_1", "1", "255",
			"-scale_2", "1", "255",
			"-scale_3", "1", "255")
	})
	return dst, err
}
