package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/geoharvest/geoharvest/common"
)

// LocalImageProvider implements ImageProvider for a pre-staged local storage,
// sharded by acquisition date: <path>/YYYY/MM/DD/<scene>.zip
type LocalImageProvider struct {
	path string
}

// Name implements ImageProvider
func (ip *LocalImageProvider) Name() string {
	return common.ProviderLocal
}

// NewLocalImageProvider creates a new ImageProvider from local storage
func NewLocalImageProvider(path string) *LocalImageProvider {
	return &LocalImageProvider{path: path}
}

// Download implements ImageProvider
func (ip *LocalImageProvider) Download(ctx context.Context, product common.Product, localPath string) error {
	date, err := common.GetDateFromProductId(product.ID)
	if err != nil {
		return fmt.Errorf("LocalImageProvider: %w", err)
	}

	folders := strings.Split(date.Format("2006-01-02"), "-")
	srcZip := path.Join(ip.path, folders[0], folders[1], folders[2], product.ID+".zip")
	if _, err := os.Stat(srcZip); err != nil {
		if os.IsNotExist(err) {
			return ErrProductNotFound{srcZip}
		}
		return fmt.Errorf("LocalImageProvider: %w", err)
	}
	if err := fileCopy(srcZip, localPath); err != nil {
		return fmt.Errorf("LocalImageProvider.%w", err)
	}
	return nil
}

// fileCopy copies a single file from src to dst
func fileCopy(src, dst string) error {
	input, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("fileCopy.Open: %w", err)
	}
	defer input.Close()

	output, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("fileCopy.Create: %w", err)
	}
	defer output.Close()

	if _, err := io.Copy(output, input); err != nil {
		os.Remove(dst)
		return fmt.Errorf("fileCopy.Copy: %w", err)
	}
	return nil
}
