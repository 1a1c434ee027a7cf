package main

import (
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/fetch"
	"github.com/spf13/cobra"
)

var verifyDir string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check downloaded products for missing band files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := fetch.VerifyAll(cmd.Context(), newPool(cfg.Workers), dataPath(verifyDir, cfg.DataDir), log)
		if err != nil {
			return err
		}
		return finish(cmd, report)
	},
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyDir, "input-dir", "i", "", "download directory (default ROOT_PATH/DATA_DIR)")
}
