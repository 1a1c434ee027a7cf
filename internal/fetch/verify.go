package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/metadata"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/pool"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/sensor"
	"github.com/sirupsen/logrus"
)

// PartialProductError reports a product directory missing expected files.
type PartialProductError struct {
	Dir     string
	Missing []string
}

func (e *PartialProductError) Error() string {
	return fmt.Sprintf("partial product %s: missing %s", e.Dir, strings.Join(e.Missing, ", "))
}

// Verify checks that dir (root/{sat}-{sensor}/{year}/{id}) holds every file
// a complete product of its sensor has. Files may be nested, as gsutil
// copies the product folder itself into dir.
func Verify(dir string) error {
	satsensor := filepath.Base(filepath.Dir(filepath.Dir(dir)))
	s, err := sensor.Parse(satsensor)
	if err != nil {
		return err
	}
	expected, err := s.ExpectedFiles()
	if err != nil {
		return err
	}

	var names []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			names = append(names, d.Name())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var missing []string
	for _, suffix := range expected {
		if !hasSuffix(names, suffix) {
			missing = append(missing, strings.TrimPrefix(suffix, "_"))
		}
	}
	if len(missing) > 0 {
		return &PartialProductError{Dir: dir, Missing: missing}
	}
	return nil
}

func hasSuffix(names []string, suffix string) bool {
	for _, n := range names {
		if strings.HasSuffix(n, suffix) {
			return true
		}
	}
	return false
}

// ProductDirs finds product directories below root by their metadata record.
func ProductDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == metadata.FileName {
			dirs = append(dirs, filepath.Dir(path))
		}
		return nil
	})
	sort.Strings(dirs)
	return dirs, err
}

// VerifyAll verifies every product below root. Products of sensors without
// a known manifest are skipped.
func VerifyAll(ctx context.Context, p *pool.Pool, root string, log logrus.FieldLogger) (pool.Report, error) {
	dirs, err := ProductDirs(root)
	if err != nil {
		return pool.Report{}, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	jobs := make([]pool.Job, 0, len(dirs))
	for _, dir := range dirs {
		dir := dir
		rel, _ := filepath.Rel(root, dir)
		jobs = append(jobs, pool.Job{
			Name: rel,
			Run: func(context.Context) error {
				err := Verify(dir)
				if errors.Is(err, sensor.ErrUnsupportedSensor) {
					log.WithField("product", rel).Warnf("Skipping verification: %v", err)
					return nil
				}
				return err
			},
		})
	}
	return p.Run(ctx, "Verifying products", jobs), nil
}
