// Package toar converts Landsat digital numbers to top-of-atmosphere
// reflectance with GRASS GIS (i.landsat.toar).
package toar

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/pool"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/shell"
	"github.com/sirupsen/logrus"
)

const (
	locationName = "imagenes"
	mtlSuffix    = "_MTL.txt"
)

type Options struct {
	Executor shell.Executor
	// GrassBin is the GRASS start script ("grass", "grass78").
	GrassBin string
	// GrassDB holds the temporary GRASS location.
	GrassDB string
	EPSG    int
	// DockerImage, when set, runs every GRASS command in a container with
	// the data and database directories mounted at the same paths.
	DockerImage string
	Pool        *pool.Pool
	Log         logrus.FieldLogger
}

type Converter struct {
	opts Options
}

func New(opts Options) *Converter {
	return &Converter{opts: opts}
}

// Product is a downloaded Landsat product folder.
type Product struct {
	Dir string
	ID  string
	// Bands are the DN GeoTIFF file names to import.
	Bands []string
}

// FindProducts returns every folder below root holding an MTL file and
// DN band GeoTIFFs, in lexical order.
func FindProducts(root string) ([]Product, error) {
	var products []Product
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), mtlSuffix) {
			return nil
		}

		dir := filepath.Dir(path)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		p := Product{Dir: dir, ID: strings.TrimSuffix(d.Name(), mtlSuffix)}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".tif") || strings.Contains(name, "_TOAR_") {
				continue
			}
			p.Bands = append(p.Bands, name)
		}
		if len(p.Bands) > 0 {
			sort.Strings(p.Bands)
			products = append(products, p)
		}
		return nil
	})
	return products, err
}

// RasterName is the GRASS raster a band file is imported as. Landsat 7
// thermal bands B6_VCID_1 and B6_VCID_2 become B61 and B62, the names
// i.landsat.toar expects.
func RasterName(file string) string {
	name := strings.TrimSuffix(file, filepath.Ext(file))
	if prefix, num, ok := strings.Cut(name, "_VCID_"); ok {
		name = prefix + num
	}
	return name
}

var numberedBand = regexp.MustCompile(`_B(\d+)$`)

// Run converts every product below root, one at a time since all products
// share the same GRASS mapset.
func (c *Converter) Run(ctx context.Context, root string) (pool.Report, error) {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	products, err := FindProducts(root)
	if err != nil {
		return pool.Report{}, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	if len(products) == 0 {
		return pool.Report{}, nil
	}

	if err := c.ensureLocation(ctx, root); err != nil {
		return pool.Report{}, err
	}

	jobs := make([]pool.Job, 0, len(products))
	for _, p := range products {
		p := p
		jobs = append(jobs, pool.Job{
			Name: p.ID,
			Run: func(ctx context.Context) error {
				return c.Convert(ctx, root, p)
			},
		})
	}
	return c.opts.Pool.Run(ctx, "Converting to TOA reflectance", jobs), nil
}

func (c *Converter) location() string {
	return filepath.Join(c.opts.GrassDB, locationName)
}

func (c *Converter) ensureLocation(ctx context.Context, root string) error {
	if _, err := os.Stat(c.location()); err == nil {
		return nil
	}
	if err := shell.MkdirAll(ctx, c.opts.Executor, c.opts.GrassDB); err != nil {
		return err
	}
	cmd := c.wrap(root, c.opts.GrassBin, "-c", "epsg:"+strconv.Itoa(c.opts.EPSG), "-e", c.location())
	if err := c.opts.Executor.Run(ctx, cmd); err != nil {
		return fmt.Errorf("failed to create GRASS location: %w", err)
	}
	return nil
}

// Convert imports the product bands, runs i.landsat.toar and exports each
// reflectance band next to its source as {id}_TOAR_B{n}.TIF. Imported
// rasters are always removed afterwards.
func (c *Converter) Convert(ctx context.Context, root string, p Product) (err error) {
	log := c.opts.Log.WithField("product", p.ID)
	log.Infof("Working on %s", p.ID)

	var loaded []string
	defer func() {
		if len(loaded) == 0 {
			return
		}
		if rmErr := c.exec(ctx, root, "g.remove", "-f", "type=raster", "name="+strings.Join(loaded, ",")); rmErr != nil && err == nil {
			err = rmErr
		}
	}()

	for _, band := range p.Bands {
		name := RasterName(band)
		log.Debugf("Loading %s", name)
		if err := c.exec(ctx, root, "r.in.gdal", "-e", "--overwrite", "--quiet",
			"input="+filepath.Join(p.Dir, band), "output="+name); err != nil {
			return err
		}
		loaded = append(loaded, name)
	}

	log.Infof("Applying TOA reflectance conversion to %s", p.Dir)
	if err := c.exec(ctx, root, "i.landsat.toar",
		"input="+p.ID+"_B", "output="+p.ID+"_TOAR_B", "metfile="+filepath.Join(p.Dir, p.ID+mtlSuffix)); err != nil {
		return err
	}

	var outputs []string
	for _, name := range loaded {
		m := numberedBand.FindStringSubmatch(name)
		if m == nil || !strings.HasPrefix(name, p.ID+"_B") {
			continue
		}
		outputs = append(outputs, p.ID+"_TOAR_B"+m[1])
	}
	loaded = append(loaded, outputs...)

	for _, name := range outputs {
		log.Debugf("Exporting %s", name)
		dst := filepath.Join(p.Dir, name+".TIF")
		err := shell.RunTo(ctx, c.opts.Executor, dst, func(tmp string) shell.Command {
			return c.grass(root, "r.out.gdal", "-c", "--overwrite", "input="+name, "output="+tmp,
				"format=GTiff", "type=Float64", "createopt=profile=GeoTIFF,compress=lzw")
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Converter) exec(ctx context.Context, root, module string, args ...string) error {
	return c.opts.Executor.Run(ctx, c.grass(root, module, args...))
}

// grass builds a command running module inside the GRASS session.
func (c *Converter) grass(root, module string, args ...string) shell.Command {
	full := append([]string{filepath.Join(c.location(), "PERMANENT"), "--exec", module}, args...)
	return c.wrap(root, c.opts.GrassBin, full...)
}

func (c *Converter) wrap(root, name string, args ...string) shell.Command {
	if c.opts.DockerImage == "" {
		return shell.NewCommand(name, args...)
	}
	data, err := filepath.Abs(root)
	if err != nil {
		data = root
	}
	docker := []string{"run", "--rm",
		"-v", c.opts.GrassDB + ":" + c.opts.GrassDB,
		"-v", data + ":" + data,
		c.opts.DockerImage, name}
	return shell.NewCommand("docker", append(docker, args...)...)
}
