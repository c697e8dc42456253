package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geoharvest/geoharvest/catalog"
	"github.com/geoharvest/geoharvest/service/log"
)

func newImportCmd() *cobra.Command {
	config := &downloadConfig{}
	var noConfirmation bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Download the products of a curated GeoJSON file",
		Long: `Import reads a GeoJSON FeatureCollection previously written by "batch
--export", possibly hand-edited to discard unwanted acquisitions, and
downloads the remaining products.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			products, _, err := catalog.ImportGeoJSON(data)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			if len(products) == 0 {
				log.Logger(ctx).Sugar().Infof("import: %s holds no product", args[0])
				return nil
			}

			var totalSize int64
			for _, product := range products {
				totalSize += product.SizeBytes
			}
			prompt := fmt.Sprintf("Download %d products (%s)?", len(products), humanBytes(totalSize))
			if !confirm(noConfirmation, prompt) {
				return nil
			}
			return download(ctx, *config, products)
		},
	}
	addDownloadFlags(cmd, config)
	cmd.Flags().BoolVar(&noConfirmation, "no-confirmation", false, "do not ask before downloading")
	return cmd
}
