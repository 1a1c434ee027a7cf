package main

import (
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/toar"
	"github.com/spf13/cobra"
)

var toarDir string

var toarCmd = &cobra.Command{
	Use:   "toar",
	Short: "Convert downloaded Landsat bands to top-of-atmosphere reflectance with GRASS",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conv := toar.New(toar.Options{
			Executor:    executor(),
			GrassBin:    cfg.GrassBin,
			GrassDB:     cfg.GrassDB,
			EPSG:        cfg.GrassEPSG,
			DockerImage: cfg.GrassDockerImage,
			// GRASS modules share the PERMANENT mapset.
			Pool: newPool(1),
			Log:  log,
		})
		report, err := conv.Run(cmd.Context(), dataPath(toarDir, cfg.DataDir))
		if err != nil {
			return err
		}
		return finish(cmd, report)
	},
}

func init() {
	toarCmd.Flags().StringVarP(&toarDir, "input-dir", "i", "", "download directory (default ROOT_PATH/DATA_DIR)")
	toarCmd.Flags().Bool("dry-run", false, "print the commands instead of running them")
}
