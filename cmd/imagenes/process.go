package main

import (
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/raster"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/region"
	"github.com/spf13/cobra"
)

var (
	processInput  string
	processOutput string
	pattern       string
	tag           string
	cropMode      string
)

var processCmd = &cobra.Command{
	Use:   "process SHAPE_FILE",
	Short: "Rescale, gap fill and crop reflectance bands to the region",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := raster.ParseCropMode(cropMode)
		if err != nil {
			return err
		}

		opts := raster.BandOptions{
			Executor: executor(),
			Pool:     newPool(cfg.Workers),
			Log:      log,
			Tag:      tag,
			Crop:     mode,
			Cutline:  args[0],
			BoxCRS:   cfg.RasterCRS,
		}
		if mode == raster.MaskCrop {
			if opts.Box, err = region.Locate(args[0], cfg.RasterCRS); err != nil {
				return err
			}
			log.Infof("Cropping to %s", opts.Box)
		}

		in := dataPath(processInput, cfg.DataDir)
		out := dataPath(processOutput, cfg.ProcessedDir)
		report, err := raster.NewBandPipeline(opts).Run(cmd.Context(), in, out, pattern)
		if err != nil {
			return err
		}
		return finish(cmd, report)
	},
}

func init() {
	f := processCmd.Flags()
	f.StringVarP(&processInput, "input-dir", "i", "", "download directory (default ROOT_PATH/DATA_DIR)")
	f.StringVarP(&processOutput, "output-dir", "o", "", "output directory (default ROOT_PATH/PROCESSED_DIR)")
	f.StringVar(&pattern, "pattern", raster.DefaultPattern, "file name pattern of the bands to process")
	f.StringVar(&tag, "tag", "", "prefix for output file names")
	f.StringVar(&cropMode, "crop", string(raster.MaskCrop), "crop method (mask, cutline, none)")
	f.Bool("dry-run", false, "print the commands instead of running them")
}
