package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/logging"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/metadata"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/notification"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/pool"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/properties"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/shell"
	"github.com/airbusgeo/godal"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	envFile string

	v   = properties.NewViper()
	cfg *properties.Config
	log *logrus.Logger
)

// flagKeys maps command line flags to configuration keys. Flags are bound
// for the command being run only, so commands can share a key.
var flagKeys = map[string]string{
	"workers":   "workers",
	"log-level": "log_level",
	"dry-run":   "dry_run",
}

var rootCmd = &cobra.Command{
	Use:   "imagenes",
	Short: "Landsat and Sentinel-2 imagery pipeline for a region of interest",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		properties.LoadEnv(envFile)

		var bindErr error
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
				bindErr = v.BindPFlag(key, f)
			}
		})
		if bindErr != nil {
			return bindErr
		}

		var err error
		if cfg, err = properties.Load(v); err != nil {
			return err
		}

		// query writes CSV to stdout.
		out := os.Stdout
		if cmd.Name() == queryCmd.Name() {
			out = os.Stderr
		}
		if log, err = logging.New(out, cfg.LogLevel); err != nil {
			return err
		}

		godal.RegisterAll()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "environment file to load (default .env)")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "number of parallel workers (default: number of CPUs)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(queryCmd, downloadCmd, verifyCmd, toarCmd, processCmd, rgbCmd, animateCmd, versionCmd)
}

// executor returns the dry-run printer when DRY_RUN is set.
func executor() shell.Executor {
	if cfg.DryRun {
		return shell.NewDryRun(os.Stdout)
	}
	return shell.NewLocal(log)
}

func newPool(size int) *pool.Pool {
	return pool.New(size, pool.WithProgress(os.Stderr))
}

func newStore() *metadata.Store {
	return metadata.NewStore(clockwork.NewRealClock(), cfg.Revision)
}

// dataPath resolves a directory flag, defaulting to ROOT_PATH/def.
func dataPath(flag, def string) string {
	if flag != "" {
		return flag
	}
	return filepath.Join(cfg.RootPath, def)
}

// finish reports the outcome of a pool run and fails the command when any
// unit failed.
func finish(cmd *cobra.Command, report pool.Report) error {
	printSummary(cmd.OutOrStdout(), cmd.Name(), report)

	n := notification.New(cfg.NotifyWebhookURL)
	if err := n.NotifyReport(cmd.Context(), cmd.Name(), report); err != nil {
		log.Warnf("Failed to send notification: %v", err)
	}

	if !report.OK() {
		return fmt.Errorf("%d of %d units failed", len(report.Failures), report.Total)
	}
	return nil
}
