package fetch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/catalog"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/metadata"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/pool"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/shell"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ProductDir is where a catalog product is stored below root:
// root/{spacecraft_id}-{sensor_id}/{year}/{id}. Sentinel-2 rows carry no
// spacecraft or sensor columns and are stored under SENTINEL_2-MSI.
func ProductDir(root string, row catalog.Row) (string, error) {
	satellite, sensorID := row["spacecraft_id"], row["sensor_id"]
	if satellite == "" && sensorID == "" && (row["granule_id"] != "" || row["mgrs_tile"] != "") {
		satellite, sensorID = "SENTINEL_2", "MSI"
	}
	id := firstOf(row, "scene_id", "product_id", "granule_id", "id")

	parts := []struct{ name, value string }{
		{"spacecraft_id", satellite},
		{"sensor_id", sensorID},
		{"year", row["year"]},
		{"id", id},
	}
	for _, p := range parts {
		if p.value == "" {
			return "", fmt.Errorf("product row has no %s", p.name)
		}
		if strings.ContainsAny(p.value, `/\`) || p.value == "." || p.value == ".." {
			return "", fmt.Errorf("product row has an invalid %s %q", p.name, p.value)
		}
	}
	return filepath.Join(root, satellite+"-"+sensorID, row["year"], id), nil
}

func firstOf(row catalog.Row, keys ...string) string {
	for _, k := range keys {
		if v := row[k]; v != "" {
			return v
		}
	}
	return ""
}

// ProductName identifies a row in logs and reports.
func ProductName(row catalog.Row) string {
	if id := firstOf(row, "scene_id", "product_id", "granule_id", "id"); id != "" {
		return id
	}
	return row["base_url"]
}

type Options struct {
	Executor shell.Executor
	Copier   storage.Copier
	Store    *metadata.Store
	Pool     *pool.Pool
	// RatePerSecond throttles copy starts; zero means unlimited.
	RatePerSecond float64
	Log           logrus.FieldLogger
}

// Orchestrator downloads catalog products into the local tree and records
// their metadata.
type Orchestrator struct {
	ex      shell.Executor
	copier  storage.Copier
	store   *metadata.Store
	pool    *pool.Pool
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

func New(opts Options) *Orchestrator {
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &Orchestrator{
		ex:      opts.Executor,
		copier:  opts.Copier,
		store:   opts.Store,
		pool:    opts.Pool,
		limiter: rate.NewLimiter(limit, 1),
		log:     opts.Log,
	}
}

// Fetch downloads every row below root. One product failing does not stop
// the others; failures are collected in the report.
func (o *Orchestrator) Fetch(ctx context.Context, root string, rows []catalog.Row) pool.Report {
	jobs := make([]pool.Job, 0, len(rows))
	for _, row := range rows {
		row := row
		jobs = append(jobs, pool.Job{
			Name: ProductName(row),
			Run: func(ctx context.Context) error {
				return o.fetchProduct(ctx, root, row)
			},
		})
	}
	return o.pool.Run(ctx, "Downloading products", jobs)
}

func (o *Orchestrator) fetchProduct(ctx context.Context, root string, row catalog.Row) error {
	dir, err := ProductDir(root, row)
	if err != nil {
		return err
	}
	src := row["base_url"]
	if src == "" {
		return fmt.Errorf("product row has no base_url")
	}

	log := o.log.WithField("product", ProductName(row))
	if err := shell.MkdirAll(ctx, o.ex, dir); err != nil {
		return err
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return err
	}
	log.Infof("Downloading %s", src)
	copyErr := o.copier.Copy(ctx, src, dir)
	if copyErr != nil {
		copyErr = fmt.Errorf("failed to copy %s: %w", src, copyErr)
	}

	// The record is written even when the copy failed, so a partial product
	// can still be traced back to its catalog row.
	metaPath := filepath.Join(dir, metadata.FileName)
	metaErr := o.ex.Do(ctx, "write "+metaPath, func(context.Context) error {
		return o.store.Write(dir, row, nil)
	})

	return errors.Join(copyErr, metaErr)
}
