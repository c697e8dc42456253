package provider

import (
	"context"
	"fmt"

	"github.com/geoharvest/geoharvest/common"
)

// CMRImageProvider implements ImageProvider for NASA Earthdata distribution
type CMRImageProvider struct {
	token string
}

// Name implements ImageProvider
func (ip *CMRImageProvider) Name() string {
	return common.ProviderCMR
}

// NewCMRImageProvider creates a new ImageProvider from NASA Earthdata
func NewCMRImageProvider(token string) *CMRImageProvider {
	return &CMRImageProvider{token: token}
}

// Download implements ImageProvider
func (ip *CMRImageProvider) Download(ctx context.Context, product common.Product, localPath string) error {
	// Earthdata urls come from the CMR search, there is no stable pattern to derive
	if len(product.Links) == 0 {
		return ErrProductNotFound{Product: product.ID}
	}

	token := "Bearer " + ip.token
	var err error
	for _, url := range product.Links {
		e := downloadWithAuth(ctx, url, localPath, ip.Name()+":"+product.ID, nil, nil, "Authorization", &token, true)
		if e == nil {
			return nil
		}
		err = e
	}
	return fmt.Errorf("CMRImageProvider.%w", err)
}
