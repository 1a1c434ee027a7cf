package main

import (
	"time"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/animate"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/raster"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/sensor"
	"github.com/spf13/cobra"
)

var (
	rgbDir        string
	composite     string
	noAnimate     bool
	frameDuration time.Duration
	animFormat    string
)

var rgbCmd = &cobra.Command{
	Use:   "rgb",
	Short: "Build color-balanced composites and PNG previews of every scene",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := sensor.ParseComposite(composite)
		if err != nil {
			return err
		}

		ex := executor()
		p := newPool(cfg.Workers)
		root := dataPath(rgbDir, cfg.ProcessedDir)
		scenes := raster.NewScenePipeline(raster.SceneOptions{
			Executor:  ex,
			Pool:      p,
			Log:       log,
			Composite: c,
			Store:     newStore(),
		})
		report, err := scenes.Run(cmd.Context(), root)
		if err != nil {
			return err
		}

		if !noAnimate {
			anims, err := animate.Build(cmd.Context(), root, animate.Options{
				Executor:      ex,
				Pool:          p,
				Log:           log,
				FrameDuration: frameDuration,
				Format:        animate.GIF,
				FontPath:      cfg.FontPath,
				PreviewName:   string(c) + ".png",
			})
			if err != nil {
				return err
			}
			report = report.Merge(anims)
		}
		return finish(cmd, report)
	},
}

var animateCmd = &cobra.Command{
	Use:   "animate",
	Short: "Assemble the scene previews of each satellite/sensor into an animation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := animate.ParseFormat(animFormat)
		if err != nil {
			return err
		}
		c, err := sensor.ParseComposite(composite)
		if err != nil {
			return err
		}
		report, err := animate.Build(cmd.Context(), dataPath(rgbDir, cfg.ProcessedDir), animate.Options{
			Executor:      executor(),
			Pool:          newPool(cfg.Workers),
			Log:           log,
			FrameDuration: frameDuration,
			Format:        format,
			FontPath:      cfg.FontPath,
			PreviewName:   string(c) + ".png",
		})
		if err != nil {
			return err
		}
		return finish(cmd, report)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{rgbCmd, animateCmd} {
		f := cmd.Flags()
		f.StringVarP(&rgbDir, "input-dir", "i", "", "processed directory (default ROOT_PATH/PROCESSED_DIR)")
		f.StringVar(&composite, "composite", string(sensor.RGBPreview), "band combination (rgb, nat, urban)")
		f.DurationVar(&frameDuration, "frame-duration", animate.DefaultFrameDuration, "display time of each animation frame")
	}
	rgbCmd.Flags().BoolVar(&noAnimate, "no-animate", false, "skip the animations")
	rgbCmd.Flags().Bool("dry-run", false, "print the commands instead of running them")
	animateCmd.Flags().StringVar(&animFormat, "format", string(animate.GIF), "animation format (gif, avi)")
}
