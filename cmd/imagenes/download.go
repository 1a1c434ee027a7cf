package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/catalog"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/fetch"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/shell"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/storage"
	"github.com/spf13/cobra"
)

var (
	downloadDir string
	copierName  string
)

var downloadCmd = &cobra.Command{
	Use:   "download [CSV_FILE]",
	Short: "Download the products listed by query (read from stdin when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		rows, err := catalog.ReadCSV(in)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		ex := executor()
		copier, closeCopier, err := newCopier(ctx, copierName, ex)
		if err != nil {
			return err
		}
		defer closeCopier()

		out := dataPath(downloadDir, cfg.DataDir)
		log.Infof("Downloading %d products to %s", len(rows), out)
		orch := fetch.New(fetch.Options{
			Executor:      ex,
			Copier:        copier,
			Store:         newStore(),
			Pool:          newPool(cfg.Workers),
			RatePerSecond: cfg.DownloadRate,
			Log:           log,
		})
		return finish(cmd, orch.Fetch(ctx, out, rows))
	},
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadDir, "output-dir", "o", "", "download directory (default ROOT_PATH/DATA_DIR)")
	downloadCmd.Flags().StringVar(&copierName, "copier", "auto", "product copier (auto, gsutil, gcs, s3)")
	downloadCmd.Flags().Bool("dry-run", false, "print the commands instead of running them")
}

func newCopier(ctx context.Context, name string, ex shell.Executor) (storage.Copier, func(), error) {
	noop := func() {}
	s3cfg := storage.S3Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
	}

	switch name {
	case "gsutil":
		return storage.NewGsutil(ex), noop, nil
	case "gcs":
		g, err := storage.NewGCS(ctx, ex, cfg.DownloadConcurrency)
		if err != nil {
			return nil, noop, err
		}
		return g, func() { g.Close() }, nil
	case "s3":
		s, err := storage.NewS3(s3cfg, ex, cfg.DownloadConcurrency)
		return s, noop, err
	case "auto":
		mux := storage.Mux{"gs": storage.NewGsutil(ex)}
		if cfg.S3Endpoint != "" {
			s, err := storage.NewS3(s3cfg, ex, cfg.DownloadConcurrency)
			if err != nil {
				return nil, noop, err
			}
			mux["s3"] = s
		}
		return mux, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown copier %q (expected auto, gsutil, gcs or s3)", name)
}
