package provider

import (
	"context"
	"fmt"

	"github.com/geoharvest/geoharvest/common"
	asfcatalog "github.com/geoharvest/geoharvest/interface/catalog/asf"
)

const (
	ASFDownloadProductSLC = "https://datapool.asf.alaska.edu/SLC/S{MISSION_VERSION}/{SCENE}.zip"
	ASFDownloadProductGRD = "https://datapool.asf.alaska.edu/GRD-HD/S{MISSION_VERSION}/{SCENE}.zip"
	ASFDownloadProductOCN = "https://datapool.asf.alaska.edu/OCN/S{MISSION_VERSION}/{SCENE}.zip"

	// catalogue lookups per second when the url cannot be derived locally
	asfLookupRate = 2
)

// ASFImageProvider implements ImageProvider for Alaska Satellite Facility
type ASFImageProvider struct {
	token  string
	finder *asfcatalog.Provider
}

// Name implements ImageProvider
func (ip *ASFImageProvider) Name() string {
	return common.ProviderASF
}

// NewASFImageProvider creates a new ImageProvider from ASF
func NewASFImageProvider(token string) *ASFImageProvider {
	return &ASFImageProvider{token: token, finder: asfcatalog.NewProvider(asfLookupRate)}
}

// Download implements ImageProvider
func (ip *ASFImageProvider) Download(ctx context.Context, product common.Product, localPath string) error {
	switch common.GetConstellationFromProductId(product.ID) {
	case common.Sentinel1:
	default:
		return fmt.Errorf("ASFImageProvider: constellation not supported")
	}

	// The catalogue may have provided a direct link, else derive the datapool url
	url := ""
	if product.Provider == ip.Name() && len(product.Links) > 0 {
		url = product.Links[0]
	} else {
		info, err := common.Info(product.ID)
		if err != nil {
			return fmt.Errorf("ASFImageProvider.%w", err)
		}
		switch info["PRODUCT_TYPE"] {
		case "SLC":
			url = ASFDownloadProductSLC
		case "GRD":
			url = ASFDownloadProductGRD
		case "OCN":
			url = ASFDownloadProductOCN
		}
		if url != "" {
			url = common.FormatBrackets(url, info)
		} else {
			// Product types outside the datapool layout: look the scene up
			found, err := ip.finder.FindProduct(ctx, product.ID)
			if err != nil {
				return fmt.Errorf("ASFImageProvider.%w", err)
			}
			if len(found.Links) == 0 {
				return ErrProductNotFound{product.ID}
			}
			url = found.Links[0]
		}
	}

	token := "Bearer " + ip.token
	if err := downloadWithAuth(ctx, url, localPath, ip.Name()+":"+product.ID, nil, nil, "Authorization", &token, true); err != nil {
		return fmt.Errorf("ASFImageProvider.%w", err)
	}
	return nil
}
