package main

import (
	"fmt"
	"io"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/pool"
	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pipeline revision",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printBanner(cmd.OutOrStdout())
		fmt.Fprintf(cmd.OutOrStdout(), "revision %s\n", cfg.Revision)
	},
}

func printBanner(w io.Writer) {
	banner := figure.NewFigure("Imagenes", "isometric1", true)
	color.New(color.FgCyan).Fprintln(w, banner.String())
}

func printSummary(w io.Writer, command string, report pool.Report) {
	if report.OK() {
		color.New(color.FgGreen).Fprintf(w, "\n%s: %d/%d succeeded\n", command, report.Succeeded(), report.Total)
		return
	}

	color.New(color.FgRed).Fprintf(w, "\n%s: %d/%d succeeded\n", command, report.Succeeded(), report.Total)
	warn := color.New(color.FgYellow)
	for _, f := range report.Failures {
		warn.Fprintf(w, "  %s: %v\n", f.Name, f.Err)
	}
}
