package main

import (
	"fmt"
	"os"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/catalog"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/region"
	"github.com/spf13/cobra"
)

var (
	dataset    string
	printQuery bool
)

var queryCmd = &cobra.Command{
	Use:   "query SHAPE_FILE",
	Short: "List the catalog products intersecting a region as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := catalog.ParseDataset(dataset)
		if err != nil {
			return err
		}

		box, err := region.Locate(args[0], cfg.QueryCRS)
		if err != nil {
			return err
		}
		log.Debugf("Region bounds: %s", box)

		if printQuery {
			sql, err := catalog.BuildQuery(box, ds)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, sql)
		}

		ctx := cmd.Context()
		bq, err := catalog.NewBigQuery(ctx, cfg.GCPProject, cfg.QueryTimeout)
		if err != nil {
			return err
		}
		defer bq.Close()

		rows, _, err := catalog.Search(ctx, bq, box, ds)
		if err != nil {
			return err
		}
		n, err := catalog.WriteCSV(cmd.OutOrStdout(), rows)
		if err != nil {
			return err
		}
		log.Infof("%d products found", n)
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVarP(&dataset, "dataset", "d", string(catalog.Landsat), "catalog to query (landsat, sentinel2)")
	queryCmd.Flags().BoolVar(&printQuery, "print-query", false, "print the SQL query to stderr")
}
