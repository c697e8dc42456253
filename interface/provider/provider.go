package provider

import (
	"context"
	"fmt"

	"github.com/geoharvest/geoharvest/common"
)

// ImageProvider is the interface of an image download service
type ImageProvider interface {
	// Download the product archive to localPath.
	// The caller owns localPath: providers write the archive there and nothing
	// else, integrity checks and extraction happen on the caller side.
	Download(ctx context.Context, product common.Product, localPath string) error

	// Name of the provider
	Name() string
}

// ErrProductNotFound is an error returned when a product is not found or available
type ErrProductNotFound struct {
	Product string
}

func (e ErrProductNotFound) Error() string {
	return fmt.Sprintf("Product not found or unavailable: %s", e.Product)
}
