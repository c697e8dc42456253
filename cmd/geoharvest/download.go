package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/spf13/cobra"

	"github.com/geoharvest/geoharvest/catalog/entities"
	"github.com/geoharvest/geoharvest/common"
	"github.com/geoharvest/geoharvest/downloader"
	"github.com/geoharvest/geoharvest/interface/credentials"
	"github.com/geoharvest/geoharvest/interface/provider"
	"github.com/geoharvest/geoharvest/service/geometry"
	"github.com/geoharvest/geoharvest/service/log"
)

type downloadConfig struct {
	outputDir   string
	workers     int
	maxAttempts int
	overwrite   bool
	extract     bool

	downloadProvider string
	mirrors          []string
	localPath        string
	ftpPattern       string
	gsBuckets        []string
	s3Buckets        []string
	s3Region         string
	s3RequesterPays  bool
}

func addDownloadFlags(cmd *cobra.Command, config *downloadConfig) {
	cmd.Flags().StringVar(&config.outputDir, "output", "downloads", "directory receiving the products")
	cmd.Flags().IntVar(&config.workers, "workers", 4, "number of concurrent downloads")
	cmd.Flags().IntVar(&config.maxAttempts, "max-attempts", 3, "attempts per product before giving up")
	cmd.Flags().BoolVar(&config.overwrite, "overwrite", false, "download again products already on disk")
	cmd.Flags().BoolVar(&config.extract, "extract", false, "unpack the archives after download")
	cmd.Flags().StringVar(&config.downloadProvider, "download-provider", "", "force all downloads through this service (copernicus, asf, cmr, gs, s3, ftp, local)")
	cmd.Flags().StringSliceVar(&config.mirrors, "mirrors", nil, "services tried, in order, before the default service of each satellite (e.g. local,gs)")
	cmd.Flags().StringVar(&config.localPath, "local-path", "", "root of a local mirror, laid out as <path>/YYYY/MM/DD/<scene>.zip")
	cmd.Flags().StringVar(&config.ftpPattern, "ftp-pattern", "", `FTP mirror, as "host:port/path/{SCENE}.zip" (brackets are product attributes)`)
	cmd.Flags().StringSliceVar(&config.gsBuckets, "gs-buckets", nil, `Google Storage mirrors, as "CONSTELLATION=gs://bucket/path" (comma-separated)`)
	cmd.Flags().StringSliceVar(&config.s3Buckets, "s3-buckets", nil, `S3 mirrors, as "CONSTELLATION=bucket/path" (comma-separated)`)
	cmd.Flags().StringVar(&config.s3Region, "s3-region", "", "region of the S3 mirrors")
	cmd.Flags().BoolVar(&config.s3RequesterPays, "s3-requester-pays", false, "bill the S3 transfers to the requester")
}

// download fetches the products with the configured registry and logs the
// per-satellite report. The returned error reports the failed tasks, if any.
func download(ctx context.Context, config downloadConfig, products []common.Product) error {
	registry, err := newRegistry(config)
	if err != nil {
		return err
	}

	d := downloader.NewDownloader(registry, downloader.Options{
		OutputDir:   config.outputDir,
		Workers:     config.workers,
		MaxAttempts: config.maxAttempts,
		Overwrite:   config.overwrite,
		Extract:     config.extract,
		Provider:    config.downloadProvider,
		Mirrors:     config.mirrors,
	})
	report, err := d.Download(ctx, products)
	log.Logger(ctx).Sugar().Infof("download report:\n%s", report.Summary())
	return err
}

func newRegistry(config downloadConfig) (*provider.Registry, error) {
	resolver, err := credentials.Default(envFile)
	if err != nil {
		return nil, fmt.Errorf("newRegistry: %w", err)
	}
	gsBuckets, err := parseBuckets(config.gsBuckets)
	if err != nil {
		return nil, fmt.Errorf("newRegistry: gs-buckets: %w", err)
	}
	s3Buckets, err := parseBuckets(config.s3Buckets)
	if err != nil {
		return nil, fmt.Errorf("newRegistry: s3-buckets: %w", err)
	}
	return &provider.Registry{
		Resolver:        resolver,
		LocalPath:       config.localPath,
		FTPPattern:      config.ftpPattern,
		GSBuckets:       gsBuckets,
		S3Buckets:       s3Buckets,
		S3Region:        config.s3Region,
		S3RequesterPays: config.s3RequesterPays,
	}, nil
}

// parseBuckets parses "CONSTELLATION=bucket" pairs into a per-constellation
// list of buckets
func parseBuckets(pairs []string) (map[string][]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	buckets := map[string][]string{}
	for _, pair := range pairs {
		name, bucket, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expecting CONSTELLATION=bucket, got %q", pair)
		}
		constellation := common.GetConstellationFromString(name)
		if constellation == common.Unknown {
			return nil, fmt.Errorf("unknown constellation: %s", name)
		}
		buckets[constellation.String()] = append(buckets[constellation.String()], bucket)
	}
	return buckets, nil
}

func parseAOI(roi string, bufferMetres float64) (geojson.Geometry, error) {
	g, err := geometry.ParseROI(roi, bufferMetres)
	if err != nil {
		return geojson.Geometry{}, fmt.Errorf("parseAOI: %w", err)
	}
	aoi, err := geometry.GeosToGeom(g)
	if err != nil {
		return geojson.Geometry{}, fmt.Errorf("parseAOI: %w", err)
	}
	return geojson.Geometry{Geometry: aoi}, nil
}

// parseCloudCover parses "max" or "min,max", in percent
func parseCloudCover(s string) (*entities.Range, error) {
	if s == "" {
		return nil, nil
	}
	r := entities.Range{Min: 0, Max: 100}
	min, max := "", s
	if i := strings.Index(s, ","); i != -1 {
		min, max = s[:i], s[i+1:]
	}
	var err error
	if min != "" {
		if r.Min, err = strconv.ParseFloat(min, 64); err != nil {
			return nil, fmt.Errorf("parseCloudCover: invalid minimum %q", min)
		}
	}
	if r.Max, err = strconv.ParseFloat(max, 64); err != nil {
		return nil, fmt.Errorf("parseCloudCover: invalid maximum %q", max)
	}
	return &r, nil
}
