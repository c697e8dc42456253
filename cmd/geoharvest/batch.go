package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cobra"

	"github.com/geoharvest/geoharvest/catalog"
	"github.com/geoharvest/geoharvest/catalog/entities"
	"github.com/geoharvest/geoharvest/common"
	"github.com/geoharvest/geoharvest/service/log"
)

type batchConfig struct {
	roi          string
	bufferMetres float64
	start        string
	end          string
	satellites   []string
	cloudCover   string
	frequency    string

	export         string
	dryRun         bool
	noConfirmation bool

	downloadConfig
}

func addSearchFlags(cmd *cobra.Command, config *batchConfig) {
	cmd.Flags().StringVar(&config.roi, "roi", "", `region of interest: "latmin,lonmin,latmax,lonmax", "lat,lon" or a GeoJSON file`)
	cmd.Flags().Float64Var(&config.bufferMetres, "buffer", 0, "buffer around the region of interest, in metres")
	cmd.Flags().StringVar(&config.start, "start", "", "start of the time interval (inclusive)")
	cmd.Flags().StringVar(&config.end, "end", "", "end of the time interval (inclusive)")
	cmd.Flags().StringSliceVar(&config.satellites, "satellites", nil, `satellites to search, as "SATELLITE[:LEVEL]" (e.g. SENTINEL2:L2A)`)
	cmd.Flags().StringVar(&config.cloudCover, "cloud-cover", "", `cloud cover filter in percent: "max" or "min,max"`)
	cmd.Flags().StringVar(&config.export, "export", "", "write the search results to this GeoJSON file")
	cmd.Flags().BoolVar(&config.dryRun, "dry-run", false, "search and export only, do not download")
	cmd.Flags().BoolVar(&config.noConfirmation, "no-confirmation", false, "do not ask before downloading")
	cmd.MarkFlagRequired("roi")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	cmd.MarkFlagRequired("satellites")
}

func newBatchCmd() *cobra.Command {
	config := &batchConfig{}
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Search the catalogues and download every matching product",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), config)
		},
	}
	addSearchFlags(cmd, config)
	addDownloadFlags(cmd, &config.downloadConfig)
	return cmd
}

func newBatchIntervalCmd() *cobra.Command {
	config := &batchConfig{}
	cmd := &cobra.Command{
		Use:   "batch-interval",
		Short: "Search the catalogues and download the best product of each period",
		Long: `Batch-interval splits the time interval into periods of the given frequency
and keeps, per satellite and period, the acquisition with the lowest cloud
cover (the most recent one on a tie). Satellites without cloud cover in their
catalogue are downloaded in full.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), config)
		},
	}
	addSearchFlags(cmd, config)
	addDownloadFlags(cmd, &config.downloadConfig)
	cmd.Flags().StringVar(&config.frequency, "frequency", "", "length of the selection periods: daily, weekly, monthly or yearly")
	cmd.MarkFlagRequired("frequency")
	return cmd
}

func runBatch(ctx context.Context, config *batchConfig) error {
	query, err := buildQuery(config)
	if err != nil {
		return err
	}

	products, err := catalog.NewCatalog().Search(ctx, query)
	if err != nil {
		if len(products) == 0 {
			return fmt.Errorf("batch: %w", err)
		}
		log.Logger(ctx).Sugar().Warnf("batch: partial results: %v", err)
	}
	if query.Frequency != entities.None {
		products = catalog.SelectBest(ctx, products, query)
	}
	if len(products) == 0 {
		log.Logger(ctx).Sugar().Infof("batch: no product found")
		return nil
	}

	if config.export != "" {
		if err := exportProducts(config.export, products, query); err != nil {
			return err
		}
		log.Logger(ctx).Sugar().Infof("batch: %d products written to %s", len(products), config.export)
	}
	if config.dryRun {
		printProducts(products)
		return nil
	}

	var totalSize int64
	for _, product := range products {
		totalSize += product.SizeBytes
	}
	prompt := fmt.Sprintf("Download %d products (%s)?", len(products), humanBytes(totalSize))
	if !confirm(config.noConfirmation, prompt) {
		return nil
	}
	return download(ctx, config.downloadConfig, products)
}

func buildQuery(config *batchConfig) (*entities.Query, error) {
	aoi, err := parseAOI(config.roi, config.bufferMetres)
	if err != nil {
		return nil, err
	}

	start, err := dateparse.ParseAny(config.start)
	if err != nil {
		return nil, fmt.Errorf("buildQuery: invalid start %q: %w", config.start, err)
	}
	end, err := dateparse.ParseAny(config.end)
	if err != nil {
		return nil, fmt.Errorf("buildQuery: invalid end %q: %w", config.end, err)
	}
	// A bare end date means the whole day
	if end = end.UTC(); end.Equal(end.Truncate(24 * time.Hour)) {
		end = end.Add(24*time.Hour - time.Second)
	}

	satellites := make([]entities.SatelliteLevel, len(config.satellites))
	for i, s := range config.satellites {
		if satellites[i], err = entities.ParseSatelliteLevel(s); err != nil {
			return nil, fmt.Errorf("buildQuery: %w", err)
		}
	}

	cloudCover, err := parseCloudCover(config.cloudCover)
	if err != nil {
		return nil, err
	}

	frequency, err := entities.ParseFrequency(config.frequency)
	if err != nil {
		return nil, fmt.Errorf("buildQuery: %w", err)
	}

	query := &entities.Query{
		AOI:        aoi,
		Start:      start.UTC(),
		End:        end.UTC(),
		Satellites: satellites,
		CloudCover: cloudCover,
		Frequency:  frequency,
	}
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("buildQuery: %w", err)
	}
	return query, nil
}

func exportProducts(path string, products []common.Product, query *entities.Query) error {
	data, err := catalog.ExportGeoJSON(products, query)
	if err != nil {
		return fmt.Errorf("exportProducts: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("exportProducts: %w", err)
	}
	return nil
}

func printProducts(products []common.Product) {
	for _, product := range products {
		cover := ""
		if product.CloudCover != nil {
			cover = fmt.Sprintf(" cloud=%.0f%%", *product.CloudCover)
		}
		fmt.Printf("%s %s %s%s %s\n", product.SensingTime.Format(time.RFC3339),
			product.ID, humanBytes(product.SizeBytes), cover, product.Provider)
	}
}

func humanBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
