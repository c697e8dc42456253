package catalog

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/paulsmith/gogeos/geos"

	"github.com/geoharvest/geoharvest/common"
	"github.com/geoharvest/geoharvest/service/log"
)

// Normalize removes duplicated products and sorts the results.
// Two products with the same (satellite, id) are the same acquisition even when
// returned by different services: the most recently retrieved one wins.
// The result is sorted by sensing time, then by id.
func Normalize(products []common.Product) []common.Product {
	byKey := map[common.ProductKey]common.Product{}
	for _, product := range products {
		if previous, ok := byKey[product.Key()]; ok && !previous.Retrieved.Before(product.Retrieved) {
			continue
		}
		byKey[product.Key()] = product
	}

	normalized := make([]common.Product, 0, len(byKey))
	for _, product := range byKey {
		normalized = append(normalized, product)
	}
	sort.Slice(normalized, func(i, j int) bool {
		if !normalized[i].SensingTime.Equal(normalized[j].SensingTime) {
			return normalized[i].SensingTime.Before(normalized[j].SensingTime)
		}
		return normalized[i].ID < normalized[j].ID
	})
	return normalized
}

// RemoveOutsideAOI drops the products whose footprint does not intersect the
// area of interest. Catalogues match on bounding boxes and may return scenes
// that only touch the box, not the area itself. Products without a footprint
// are kept.
func RemoveOutsideAOI(ctx context.Context, products []common.Product, aoi *geos.Geometry) ([]common.Product, error) {
	// Prepare geometry for intersection
	paoi := aoi.Prepare()

	kept := make([]common.Product, 0, len(products))
	for _, product := range products {
		if product.GeometryWKT == "" {
			kept = append(kept, product)
			continue
		}
		footprint, err := geos.FromWKT(product.GeometryWKT)
		if err != nil {
			return nil, fmt.Errorf("RemoveOutsideAOI.FromWKT[%s]: %w", product.ID, err)
		}
		intersects, err := paoi.Intersects(footprint)
		if err != nil {
			return nil, fmt.Errorf("RemoveOutsideAOI.Intersects[%s]: %w", product.ID, err)
		}
		if intersects {
			kept = append(kept, product)
		} else {
			log.Logger(ctx).Sugar().Debugf("remove %s: outside the area of interest", product.ID)
		}
	}
	runtime.KeepAlive(aoi)
	return kept, nil
}
