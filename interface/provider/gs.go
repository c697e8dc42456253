package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/geoharvest/geoharvest/common"
	"github.com/geoharvest/geoharvest/service"
)

// GSImageProvider implements ImageProvider for Google Storage mirror buckets
type GSImageProvider struct {
	buckets map[common.Constellation][]string
}

// Name implements ImageProvider
func (ip *GSImageProvider) Name() string {
	return common.ProviderGS
}

// NewGSImageProvider creates a new ImageProvider from Google Storage mirror buckets
func NewGSImageProvider() *GSImageProvider {
	return &GSImageProvider{buckets: map[common.Constellation][]string{}}
}

// AddBucket to the provider
// constellation must be one of sentinel1, sentinel-1, sentinel2, sentinel-2, sentinel3, sentinel-3
// bucket can contain several {IDENTIFIER} that will be replaced according to the information found in the product id
// IDENTIFIER must be one of SCENE, MISSION_ID, PRODUCT_LEVEL, DATE(YEAR/MONTH/DAY), TIME(HOUR/MINUTE/SECOND), ORBIT, TILE, ...
func (ip *GSImageProvider) AddBucket(constellation, bucket string) error {
	c := common.GetConstellationFromString(constellation)
	if c == common.Unknown {
		return fmt.Errorf("GSImageProvider: constellation not supported: %s", constellation)
	}
	ip.buckets[c] = append(ip.buckets[c], bucket)
	return nil
}

func parseGsURI(uri string) (bucket, object string, err error) {
	trimmed := strings.TrimPrefix(uri, "gs://")
	if trimmed == uri {
		return "", "", fmt.Errorf("not a gs uri: %s", uri)
	}
	splits := strings.SplitN(trimmed, "/", 2)
	if len(splits) != 2 || splits[0] == "" || splits[1] == "" {
		return "", "", fmt.Errorf("invalid gs uri: %s", uri)
	}
	return splits[0], splits[1], nil
}

// findBlob finds the first blob that matches the url pattern
func findBlob(ctx context.Context, client *storage.Client, url string) (string, error) {
	bucket, blob, err := parseGsURI(url)
	if err != nil {
		return "", err
	}
	// Create a regexp from blob, replacing "*" by ".*" and "?" by "."
	blobRe := strings.ReplaceAll(strings.ReplaceAll(regexp.QuoteMeta(blob), "\\*", ".*"), "\\?", ".")
	re, err := regexp.Compile(blobRe)
	if err != nil {
		return "", fmt.Errorf("compile[%s]: %w", blobRe, err)
	}
	// Extract the prefix
	if i := strings.Index(blob, "*"); i != -1 {
		blob = blob[:i]
	}
	// Find all the blobs that match the prefix
	it := client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: blob})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", fmt.Errorf("list[%s/%s*]: %w", bucket, blob, err)
		}
		if idx := re.FindIndex([]byte(attrs.Name)); idx != nil && idx[0] == 0 {
			return "gs://" + bucket + "/" + attrs.Name[:idx[1]], nil
		}
	}
	return url, ErrProductNotFound{url}
}

// Download implements ImageProvider
func (ip *GSImageProvider) Download(ctx context.Context, product common.Product, localPath string) error {
	constellation := common.GetConstellationFromProductId(product.ID)
	buckets, ok := ip.buckets[constellation]
	if constellation == common.Unknown || !ok {
		return fmt.Errorf("GSImageProvider: constellation not supported")
	}
	format, err := common.Info(product.ID)
	if err != nil {
		return fmt.Errorf("GSImageProvider: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return service.MakeTemporary(fmt.Errorf("GSImageProvider.NewClient: %w", err))
	}
	defer client.Close()

	for _, bucket := range buckets {
		url := common.FormatBrackets(bucket, format)
		if strings.Contains(url, "*") {
			if url, err = findBlob(ctx, client, url); err != nil {
				return fmt.Errorf("GSImageProvider: %w", err)
			}
		}
		e := ip.downloadObject(ctx, client, url, localPath)
		if err = service.MergeErrors(false, err, e); err == nil {
			break
		}
	}
	return err
}

func (ip *GSImageProvider) downloadObject(ctx context.Context, client *storage.Client, uri, localPath string) error {
	bucket, object, err := parseGsURI(uri)
	if err != nil {
		return fmt.Errorf("downloadObject: %w", err)
	}
	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return ErrProductNotFound{uri}
		}
		return service.MakeTemporary(fmt.Errorf("downloadObject.NewReader: %w", err))
	}
	defer reader.Close()

	dest, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("downloadObject.Create: %w", err)
	}
	defer dest.Close()
	if _, err := io.Copy(dest, reader); err != nil {
		os.Remove(localPath)
		return service.MakeTemporary(fmt.Errorf("downloadObject.Copy: %w", err))
	}
	return nil
}
