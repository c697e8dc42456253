package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"
	"golang.org/x/sync/errgroup"

	"github.com/geoharvest/geoharvest/catalog/entities"
	"github.com/geoharvest/geoharvest/common"
	ifcatalog "github.com/geoharvest/geoharvest/interface/catalog"
	"github.com/geoharvest/geoharvest/interface/catalog/asf"
	"github.com/geoharvest/geoharvest/interface/catalog/cmr"
	"github.com/geoharvest/geoharvest/interface/catalog/copernicus"
	"github.com/geoharvest/geoharvest/service"
	"github.com/geoharvest/geoharvest/service/log"
)

// requests per second per catalogue
const defaultSearchRate = 2

// retry budget per satellite search; rate-limited catalogues dictate their
// own delay through RateLimitError.RetryDelay
const (
	searchAttempts = 3
	searchBackoff  = 10 * time.Second
)

// Catalog searches the remote catalogues and normalizes their results
type Catalog struct {
	Providers map[string]ifcatalog.ProductsProvider
}

func NewCatalog() *Catalog {
	return &Catalog{
		Providers: map[string]ifcatalog.ProductsProvider{
			common.ProviderCopernicus: copernicus.NewProvider(defaultSearchRate),
			common.ProviderASF:        asf.NewProvider(defaultSearchRate),
			common.ProviderCMR:        cmr.NewProvider(defaultSearchRate),
		},
	}
}

// Search queries the catalogue of each requested satellite and returns the
// normalized, deduplicated products intersecting the area of interest.
// Satellites are searched concurrently and independently: the failure of one
// does not discard the results of the others. The returned error, if any,
// aggregates the per-satellite failures.
func (c *Catalog) Search(ctx context.Context, query *entities.Query) ([]common.Product, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("Search.%w", err)
	}

	// Resolve every satellite before any network call
	specs := make([]entities.SatelliteSpec, len(query.Satellites))
	for i, sl := range query.Satellites {
		spec, err := Resolve(sl)
		if err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}
		specs[i] = spec
	}

	productsPerSatellite := make([][]common.Product, len(specs))
	errs := make([]error, len(specs))
	wg := errgroup.Group{}
	for i, spec := range specs {
		wg.Go(func() error {
			productsPerSatellite[i], errs[i] = c.searchSatellite(ctx, query, spec)
			return nil
		})
	}
	wg.Wait()

	var err error
	var products []common.Product
	for i := range specs {
		products = append(products, productsPerSatellite[i]...)
		err = service.MergeErrors(true, err, errs[i])
	}

	products = Normalize(products)

	aoiWKT, aoiErr := wkt.EncodeString(query.AOI.Geometry)
	if aoiErr != nil {
		return products, service.MergeErrors(true, err, fmt.Errorf("Search.EncodeString: %w", aoiErr))
	}
	aoi, aoiErr := geos.FromWKT(aoiWKT)
	if aoiErr != nil {
		return products, service.MergeErrors(true, err, fmt.Errorf("Search.FromWKT: %w", aoiErr))
	}
	products, aoiErr = RemoveOutsideAOI(ctx, products, aoi)
	if aoiErr != nil {
		return products, service.MergeErrors(true, err, fmt.Errorf("Search.%w", aoiErr))
	}

	log.Logger(ctx).Sugar().Infof("%d products found", len(products))
	return products, err
}

func (c *Catalog) searchSatellite(ctx context.Context, query *entities.Query, spec entities.SatelliteSpec) ([]common.Product, error) {
	provider, ok := c.Providers[spec.SearchProvider]
	if !ok {
		return nil, fmt.Errorf("searchSatellite: no such provider: %s", spec.SearchProvider)
	}

	// Transient failures (throttling, 5xx) are retried with backoff so that
	// one throttled page does not lose the whole satellite
	search := func(q *entities.Query) (products []common.Product, err error) {
		err = service.Retriable(ctx, func() error {
			var e error
			if products, e = provider.SearchProducts(ctx, q, spec); e != nil && service.Temporary(e) {
				log.Logger(ctx).Sugar().Warnf("%s: %v: retrying", provider.Name(), e)
			}
			return e
		}, searchBackoff, searchAttempts)
		return products, err
	}

	log.Logger(ctx).Sugar().Infof("search %s on %s", spec.Satellite, provider.Name())
	products, err := search(query)

	// A catalogue may reject a query because of an optional filter: retry
	// without it and filter on our side
	var rejected ifcatalog.QueryRejectedError
	if errors.As(err, &rejected) && query.CloudCover != nil {
		log.Logger(ctx).Sugar().Warnf("%s rejected the query (%s): retrying without the cloud cover filter", provider.Name(), rejected.Reason)
		unfiltered := *query
		unfiltered.CloudCover = nil
		if products, err = search(&unfiltered); err == nil {
			products = filterCloudCover(products, *query.CloudCover)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("searchSatellite[%s].%w", spec.Satellite, err)
	}
	log.Logger(ctx).Sugar().Infof("%d %s products found on %s", len(products), spec.Satellite, provider.Name())
	return products, nil
}

// filterCloudCover keeps the products within the range, and those that do not
// report a cloud cover
func filterCloudCover(products []common.Product, r entities.Range) []common.Product {
	kept := make([]common.Product, 0, len(products))
	for _, product := range products {
		if product.CloudCover == nil || r.Contains(*product.CloudCover) {
			kept = append(kept, product)
		}
	}
	return kept
}
