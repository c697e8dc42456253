package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscredentials "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/geoharvest/geoharvest/common"
	"github.com/geoharvest/geoharvest/service"
)

// S3ImageProvider implements ImageProvider for AWS S3 mirror buckets
// (e.g. the requester-pays Sentinel mirrors of the AWS Open Data program)
type S3ImageProvider struct {
	accessKeyID     string
	secretAccessKey string
	region          string
	requesterPays   bool
	buckets         map[common.Constellation][]string
}

// Name implements ImageProvider
func (ip *S3ImageProvider) Name() string {
	return common.ProviderS3
}

// NewS3ImageProvider creates a new ImageProvider from AWS S3 mirror buckets
func NewS3ImageProvider(accessKeyID, secretAccessKey, region string, requesterPays bool) *S3ImageProvider {
	return &S3ImageProvider{
		accessKeyID:     accessKeyID,
		secretAccessKey: secretAccessKey,
		region:          region,
		requesterPays:   requesterPays,
		buckets:         map[common.Constellation][]string{},
	}
}

// AddBucket to the provider, same pattern syntax as GSImageProvider.AddBucket
func (ip *S3ImageProvider) AddBucket(constellation, bucket string) error {
	c := common.GetConstellationFromString(constellation)
	if c == common.Unknown {
		return fmt.Errorf("S3ImageProvider: constellation not supported: %s", constellation)
	}
	ip.buckets[c] = append(ip.buckets[c], bucket)
	return nil
}

func (ip *S3ImageProvider) client(ctx context.Context) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(ip.region)}
	if ip.accessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			awscredentials.NewStaticCredentialsProvider(ip.accessKeyID, ip.secretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("LoadDefaultConfig: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func parseS3URI(uri string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	if trimmed == uri {
		return "", "", fmt.Errorf("not a s3 uri: %s", uri)
	}
	splits := strings.SplitN(trimmed, "/", 2)
	if len(splits) != 2 || splits[0] == "" || splits[1] == "" {
		return "", "", fmt.Errorf("invalid s3 uri: %s", uri)
	}
	return splits[0], splits[1], nil
}

// findKey finds the first key that matches the uri pattern
func (ip *S3ImageProvider) findKey(ctx context.Context, client *s3.Client, uri string) (string, error) {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return "", err
	}
	keyRe := strings.ReplaceAll(strings.ReplaceAll(regexp.QuoteMeta(key), "\\*", ".*"), "\\?", ".")
	re, err := regexp.Compile(keyRe)
	if err != nil {
		return "", fmt.Errorf("compile[%s]: %w", keyRe, err)
	}
	if i := strings.Index(key, "*"); i != -1 {
		key = key[:i]
	}

	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket), Prefix: aws.String(key)}
	if ip.requesterPays {
		input.RequestPayer = types.RequestPayerRequester
	}
	paginator := s3.NewListObjectsV2Paginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", service.MakeTemporary(fmt.Errorf("list[%s/%s*]: %w", bucket, key, err))
		}
		for _, object := range page.Contents {
			if idx := re.FindIndex([]byte(*object.Key)); idx != nil && idx[0] == 0 {
				return "s3://" + bucket + "/" + (*object.Key)[:idx[1]], nil
			}
		}
	}
	return uri, ErrProductNotFound{uri}
}

// Download implements ImageProvider
func (ip *S3ImageProvider) Download(ctx context.Context, product common.Product, localPath string) error {
	constellation := common.GetConstellationFromProductId(product.ID)
	buckets, ok := ip.buckets[constellation]
	if constellation == common.Unknown || !ok {
		return fmt.Errorf("S3ImageProvider: constellation not supported")
	}
	format, err := common.Info(product.ID)
	if err != nil {
		return fmt.Errorf("S3ImageProvider: %w", err)
	}

	client, err := ip.client(ctx)
	if err != nil {
		return fmt.Errorf("S3ImageProvider.%w", err)
	}

	for _, bucket := range buckets {
		uri := common.FormatBrackets(bucket, format)
		if strings.Contains(uri, "*") {
			if uri, err = ip.findKey(ctx, client, uri); err != nil {
				return fmt.Errorf("S3ImageProvider: %w", err)
			}
		}
		e := ip.downloadObject(ctx, client, uri, localPath)
		if err = service.MergeErrors(false, err, e); err == nil {
			break
		}
	}
	return err
}

func (ip *S3ImageProvider) downloadObject(ctx context.Context, client *s3.Client, uri, localPath string) error {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return fmt.Errorf("downloadObject: %w", err)
	}

	dest, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("downloadObject.Create: %w", err)
	}
	defer dest.Close()

	input := &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}
	if ip.requesterPays {
		input.RequestPayer = types.RequestPayerRequester
	}
	downloader := manager.NewDownloader(client)
	if _, err := downloader.Download(ctx, dest, input); err != nil {
		os.Remove(localPath)
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return ErrProductNotFound{uri}
		}
		return service.MakeTemporary(fmt.Errorf("downloadObject.Download: %w", err))
	}
	return nil
}
